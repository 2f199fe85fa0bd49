package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncGroupCreated()                                      {}
func (n *NoopRecorder) IncGroupDeleted()                                      {}
func (n *NoopRecorder) IncMembershipChange(action string)                     {}
func (n *NoopRecorder) IncVersionConflict()                                   {}
func (n *NoopRecorder) IncExpenseMutation(action string)                      {}
func (n *NoopRecorder) ObserveBalanceDuration(duration time.Duration)         {}
func (n *NoopRecorder) IncNotificationDelivery(outcome string)                {}
func (n *NoopRecorder) SetOnlineUsers(count int)                              {}
func (n *NoopRecorder) IncActivityPublished(outcome string)                   {}
func (n *NoopRecorder) IncActivityProcessed(outcome string)                   {}
func (n *NoopRecorder) ObserveActivityBatch(size int, duration time.Duration) {}
func (n *NoopRecorder) SetActivityQueueDepth(depth int64)                     {}
