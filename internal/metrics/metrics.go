// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// User directory metrics
	IncSignup(status string) // status: "success", "duplicate", "invalid"
	IncLogin(status string)  // status: "success", "failed"

	// Project directory metrics
	IncProjectCreated()
	IncProjectUpdated()
	IncProjectDeleted()
	IncQueryRaised()

	// Role switch metrics
	IncRoleSwitch(result string) // result: "granted", "rejected", "limited"

	// Live feed metrics
	IncSubscriptionOpened()
	IncSubscriptionClosed()
	ObserveSnapshotLoad(duration time.Duration)

	// Query notification metrics
	IncQueryNotification(status string) // status: "delivered", "retried", "dead_lettered"
	SetNotificationBacklog(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
