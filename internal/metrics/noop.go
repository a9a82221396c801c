package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncSignup(status string)                    {}
func (n *NoopRecorder) IncLogin(status string)                     {}
func (n *NoopRecorder) IncProjectCreated()                         {}
func (n *NoopRecorder) IncProjectUpdated()                         {}
func (n *NoopRecorder) IncProjectDeleted()                         {}
func (n *NoopRecorder) IncQueryRaised()                            {}
func (n *NoopRecorder) IncRoleSwitch(result string)                {}
func (n *NoopRecorder) IncSubscriptionOpened()                     {}
func (n *NoopRecorder) IncSubscriptionClosed()                     {}
func (n *NoopRecorder) ObserveSnapshotLoad(duration time.Duration) {}
func (n *NoopRecorder) IncQueryNotification(status string)         {}
func (n *NoopRecorder) SetNotificationBacklog(depth int64)         {}
