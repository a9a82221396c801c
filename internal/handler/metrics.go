package handler

import (
	"fmt"
	"net/http"

	"github.com/projectdesk/projectdesk/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "projectdesk_signups_total{status=\"success\"} %d\n", snap.SignupsSucceeded)
	writeMetric(w, "projectdesk_signups_total{status=\"duplicate\"} %d\n", snap.SignupsDuplicate)
	writeMetric(w, "projectdesk_signups_total{status=\"invalid\"} %d\n", snap.SignupsInvalid)
	writeMetric(w, "projectdesk_logins_total{status=\"success\"} %d\n", snap.LoginsSucceeded)
	writeMetric(w, "projectdesk_logins_total{status=\"failed\"} %d\n", snap.LoginsFailed)

	writeMetric(w, "projectdesk_projects_created_total %d\n", snap.ProjectsCreated)
	writeMetric(w, "projectdesk_projects_updated_total %d\n", snap.ProjectsUpdated)
	writeMetric(w, "projectdesk_projects_deleted_total %d\n", snap.ProjectsDeleted)
	writeMetric(w, "projectdesk_queries_raised_total %d\n", snap.QueriesRaised)

	writeMetric(w, "projectdesk_role_switches_total{result=\"granted\"} %d\n", snap.RoleSwitchGranted)
	writeMetric(w, "projectdesk_role_switches_total{result=\"rejected\"} %d\n", snap.RoleSwitchRejected)
	writeMetric(w, "projectdesk_role_switches_total{result=\"limited\"} %d\n", snap.RoleSwitchLimited)

	writeMetric(w, "projectdesk_active_subscriptions %d\n", snap.ActiveSubscriptions)
	writeMetric(w, "projectdesk_snapshot_load_seconds_count %d\n", snap.SnapshotLoadCount)
	writeMetric(w, "projectdesk_snapshot_load_seconds_sum %.6f\n", float64(snap.SnapshotLoadTotalNs)/1e9)

	writeMetric(w, "projectdesk_query_notifications_total{status=\"delivered\"} %d\n", snap.NotificationsDelivered)
	writeMetric(w, "projectdesk_query_notifications_total{status=\"retried\"} %d\n", snap.NotificationsRetried)
	writeMetric(w, "projectdesk_query_notifications_total{status=\"dead_lettered\"} %d\n", snap.NotificationsDeadLettered)
	writeMetric(w, "projectdesk_query_notification_backlog %d\n", snap.NotificationBacklog)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
