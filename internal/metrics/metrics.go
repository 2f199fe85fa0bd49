// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Membership actions.
const (
	MemberAdded    = "added"
	MemberRemoved  = "removed"
	MemberAccepted = "accepted"
	MemberRejected = "rejected"
)

// Expense actions.
const (
	ExpenseAdded   = "added"
	ExpenseEdited  = "edited"
	ExpenseDeleted = "deleted"
)

// Delivery outcomes for real-time notifications.
const (
	DeliveryDelivered = "delivered"
	DeliveryOffline   = "offline"
	DeliveryDropped   = "dropped"
)

// Activity feed outcomes.
const (
	ActivityPublished    = "published"
	ActivityDropped      = "dropped"
	ActivityStored       = "stored"
	ActivityFailed       = "failed"
	ActivityDeadLettered = "dead_lettered"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// Group lifecycle
	IncGroupCreated()
	IncGroupDeleted()
	IncMembershipChange(action string)
	IncVersionConflict()

	// Ledger and settlement
	IncExpenseMutation(action string)
	ObserveBalanceDuration(duration time.Duration)

	// Presence and delivery
	IncNotificationDelivery(outcome string)
	SetOnlineUsers(n int)

	// Activity feed
	IncActivityPublished(outcome string)
	IncActivityProcessed(outcome string)
	ObserveActivityBatch(size int, duration time.Duration)
	SetActivityQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
