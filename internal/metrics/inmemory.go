package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	GroupsCreated          uint64
	GroupsDeleted          uint64
	VersionConflicts       uint64
	MembershipChanges      map[string]uint64
	ExpenseMutations       map[string]uint64
	Deliveries             map[string]uint64
	BalanceDurationCount   uint64
	BalanceDurationTotalNs int64
	OnlineUsers            int64
	ActivityPublished      map[string]uint64
	ActivityProcessed      map[string]uint64
	ActivityBatches        uint64
	ActivityQueueDepth     int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	groupsCreated          uint64
	groupsDeleted          uint64
	versionConflicts       uint64
	balanceDurationCount   uint64
	balanceDurationTotalNs int64
	onlineUsers            int64
	activityBatches        uint64
	activityQueueDepth     int64

	mu                sync.Mutex
	memberships       map[string]uint64
	expenses          map[string]uint64
	deliveries        map[string]uint64
	activityPublished map[string]uint64
	activityProcessed map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		memberships:       make(map[string]uint64),
		expenses:          make(map[string]uint64),
		deliveries:        make(map[string]uint64),
		activityPublished: make(map[string]uint64),
		activityProcessed: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		GroupsCreated:          atomic.LoadUint64(&m.groupsCreated),
		GroupsDeleted:          atomic.LoadUint64(&m.groupsDeleted),
		VersionConflicts:       atomic.LoadUint64(&m.versionConflicts),
		MembershipChanges:      copyCounts(m.memberships),
		ExpenseMutations:       copyCounts(m.expenses),
		Deliveries:             copyCounts(m.deliveries),
		BalanceDurationCount:   atomic.LoadUint64(&m.balanceDurationCount),
		BalanceDurationTotalNs: atomic.LoadInt64(&m.balanceDurationTotalNs),
		OnlineUsers:            atomic.LoadInt64(&m.onlineUsers),
		ActivityPublished:      copyCounts(m.activityPublished),
		ActivityProcessed:      copyCounts(m.activityProcessed),
		ActivityBatches:        atomic.LoadUint64(&m.activityBatches),
		ActivityQueueDepth:     atomic.LoadInt64(&m.activityQueueDepth),
	}
}

// IncGroupCreated increments the group created counter.
func (m *InMemoryRecorder) IncGroupCreated() {
	atomic.AddUint64(&m.groupsCreated, 1)
}

// IncGroupDeleted increments the group deleted counter.
func (m *InMemoryRecorder) IncGroupDeleted() {
	atomic.AddUint64(&m.groupsDeleted, 1)
}

// IncVersionConflict increments the optimistic concurrency retry counter.
func (m *InMemoryRecorder) IncVersionConflict() {
	atomic.AddUint64(&m.versionConflicts, 1)
}

// IncMembershipChange counts a membership action.
func (m *InMemoryRecorder) IncMembershipChange(action string) {
	m.inc(m.memberships, action)
}

// IncExpenseMutation counts a ledger action.
func (m *InMemoryRecorder) IncExpenseMutation(action string) {
	m.inc(m.expenses, action)
}

// IncNotificationDelivery counts a delivery outcome.
func (m *InMemoryRecorder) IncNotificationDelivery(outcome string) {
	m.inc(m.deliveries, outcome)
}

// ObserveBalanceDuration records balance calculation duration.
func (m *InMemoryRecorder) ObserveBalanceDuration(duration time.Duration) {
	atomic.AddUint64(&m.balanceDurationCount, 1)
	atomic.AddInt64(&m.balanceDurationTotalNs, duration.Nanoseconds())
}

// SetOnlineUsers records the number of registered connections.
func (m *InMemoryRecorder) SetOnlineUsers(n int) {
	atomic.StoreInt64(&m.onlineUsers, int64(n))
}

// IncActivityPublished counts an activity publish outcome.
func (m *InMemoryRecorder) IncActivityPublished(outcome string) {
	m.inc(m.activityPublished, outcome)
}

// IncActivityProcessed counts an activity consume outcome.
func (m *InMemoryRecorder) IncActivityProcessed(outcome string) {
	m.inc(m.activityProcessed, outcome)
}

// ObserveActivityBatch counts stored batches.
func (m *InMemoryRecorder) ObserveActivityBatch(size int, duration time.Duration) {
	atomic.AddUint64(&m.activityBatches, 1)
}

// SetActivityQueueDepth records the stream backlog.
func (m *InMemoryRecorder) SetActivityQueueDepth(depth int64) {
	atomic.StoreInt64(&m.activityQueueDepth, depth)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
