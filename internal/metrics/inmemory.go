package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	SignupsSucceeded    uint64
	SignupsDuplicate    uint64
	SignupsInvalid      uint64
	LoginsSucceeded     uint64
	LoginsFailed        uint64
	ProjectsCreated     uint64
	ProjectsUpdated     uint64
	ProjectsDeleted     uint64
	QueriesRaised       uint64
	RoleSwitchGranted   uint64
	RoleSwitchRejected  uint64
	RoleSwitchLimited   uint64
	ActiveSubscriptions int64
	SnapshotLoadCount   uint64
	SnapshotLoadTotalNs int64

	NotificationsDelivered    uint64
	NotificationsRetried      uint64
	NotificationsDeadLettered uint64
	NotificationBacklog       int64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint.
type InMemoryRecorder struct {
	signupsSucceeded    atomic.Uint64
	signupsDuplicate    atomic.Uint64
	signupsInvalid      atomic.Uint64
	loginsSucceeded     atomic.Uint64
	loginsFailed        atomic.Uint64
	projectsCreated     atomic.Uint64
	projectsUpdated     atomic.Uint64
	projectsDeleted     atomic.Uint64
	queriesRaised       atomic.Uint64
	roleSwitchGranted   atomic.Uint64
	roleSwitchRejected  atomic.Uint64
	roleSwitchLimited   atomic.Uint64
	activeSubscriptions atomic.Int64
	snapshotLoadCount   atomic.Uint64
	snapshotLoadTotalNs atomic.Int64

	notificationsDelivered    atomic.Uint64
	notificationsRetried      atomic.Uint64
	notificationsDeadLettered atomic.Uint64
	notificationBacklog       atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		SignupsSucceeded:    m.signupsSucceeded.Load(),
		SignupsDuplicate:    m.signupsDuplicate.Load(),
		SignupsInvalid:      m.signupsInvalid.Load(),
		LoginsSucceeded:     m.loginsSucceeded.Load(),
		LoginsFailed:        m.loginsFailed.Load(),
		ProjectsCreated:     m.projectsCreated.Load(),
		ProjectsUpdated:     m.projectsUpdated.Load(),
		ProjectsDeleted:     m.projectsDeleted.Load(),
		QueriesRaised:       m.queriesRaised.Load(),
		RoleSwitchGranted:   m.roleSwitchGranted.Load(),
		RoleSwitchRejected:  m.roleSwitchRejected.Load(),
		RoleSwitchLimited:   m.roleSwitchLimited.Load(),
		ActiveSubscriptions: m.activeSubscriptions.Load(),
		SnapshotLoadCount:   m.snapshotLoadCount.Load(),
		SnapshotLoadTotalNs: m.snapshotLoadTotalNs.Load(),

		NotificationsDelivered:    m.notificationsDelivered.Load(),
		NotificationsRetried:      m.notificationsRetried.Load(),
		NotificationsDeadLettered: m.notificationsDeadLettered.Load(),
		NotificationBacklog:       m.notificationBacklog.Load(),
	}
}

// IncSignup counts a signup attempt by outcome. Unknown outcomes are ignored.
func (m *InMemoryRecorder) IncSignup(status string) {
	switch status {
	case "success":
		m.signupsSucceeded.Add(1)
	case "duplicate":
		m.signupsDuplicate.Add(1)
	case "invalid":
		m.signupsInvalid.Add(1)
	}
}

// IncLogin counts a login attempt by outcome.
func (m *InMemoryRecorder) IncLogin(status string) {
	if status == "success" {
		m.loginsSucceeded.Add(1)
		return
	}
	m.loginsFailed.Add(1)
}

func (m *InMemoryRecorder) IncProjectCreated() { m.projectsCreated.Add(1) }
func (m *InMemoryRecorder) IncProjectUpdated() { m.projectsUpdated.Add(1) }
func (m *InMemoryRecorder) IncProjectDeleted() { m.projectsDeleted.Add(1) }
func (m *InMemoryRecorder) IncQueryRaised()    { m.queriesRaised.Add(1) }

// IncRoleSwitch counts a role switch by result.
func (m *InMemoryRecorder) IncRoleSwitch(result string) {
	switch result {
	case "granted":
		m.roleSwitchGranted.Add(1)
	case "rejected":
		m.roleSwitchRejected.Add(1)
	case "limited":
		m.roleSwitchLimited.Add(1)
	}
}

func (m *InMemoryRecorder) IncSubscriptionOpened() { m.activeSubscriptions.Add(1) }
func (m *InMemoryRecorder) IncSubscriptionClosed() { m.activeSubscriptions.Add(-1) }

// ObserveSnapshotLoad records how long a snapshot reload took.
func (m *InMemoryRecorder) ObserveSnapshotLoad(duration time.Duration) {
	m.snapshotLoadCount.Add(1)
	m.snapshotLoadTotalNs.Add(duration.Nanoseconds())
}

// IncQueryNotification counts a webhook delivery attempt by outcome.
func (m *InMemoryRecorder) IncQueryNotification(status string) {
	switch status {
	case "delivered":
		m.notificationsDelivered.Add(1)
	case "retried":
		m.notificationsRetried.Add(1)
	case "dead_lettered":
		m.notificationsDeadLettered.Add(1)
	}
}

// SetNotificationBacklog records how many queries await notification.
func (m *InMemoryRecorder) SetNotificationBacklog(depth int64) {
	m.notificationBacklog.Store(depth)
}
