package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	m := NewInMemory()

	m.IncGroupCreated()
	m.IncMembershipChange(MemberAdded)
	m.IncMembershipChange(MemberAdded)
	m.IncExpenseMutation(ExpenseDeleted)
	m.IncNotificationDelivery(DeliveryOffline)
	m.ObserveBalanceDuration(2 * time.Millisecond)
	m.SetOnlineUsers(3)

	snap := m.Snapshot()
	if snap.GroupsCreated != 1 {
		t.Errorf("GroupsCreated = %d, want 1", snap.GroupsCreated)
	}
	if snap.MembershipChanges[MemberAdded] != 2 {
		t.Errorf("MembershipChanges[added] = %d, want 2", snap.MembershipChanges[MemberAdded])
	}
	if snap.ExpenseMutations[ExpenseDeleted] != 1 {
		t.Errorf("ExpenseMutations[deleted] = %d, want 1", snap.ExpenseMutations[ExpenseDeleted])
	}
	if snap.Deliveries[DeliveryOffline] != 1 {
		t.Errorf("Deliveries[offline] = %d, want 1", snap.Deliveries[DeliveryOffline])
	}
	if snap.BalanceDurationCount != 1 || snap.BalanceDurationTotalNs != int64(2*time.Millisecond) {
		t.Errorf("balance duration = %d/%d", snap.BalanceDurationCount, snap.BalanceDurationTotalNs)
	}
	if snap.OnlineUsers != 3 {
		t.Errorf("OnlineUsers = %d, want 3", snap.OnlineUsers)
	}
}

func TestInMemoryRecorder_SnapshotIsCopy(t *testing.T) {
	m := NewInMemory()
	m.IncExpenseMutation(ExpenseAdded)

	snap := m.Snapshot()
	snap.ExpenseMutations[ExpenseAdded] = 99

	if got := m.Snapshot().ExpenseMutations[ExpenseAdded]; got != 1 {
		t.Errorf("snapshot mutation leaked into recorder: %d", got)
	}
}

func TestPrometheusRecorder_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPrometheus(reg)

	r.IncGroupCreated()
	r.IncNotificationDelivery(DeliveryDelivered)
	r.SetOnlineUsers(2)

	expected := `
# HELP splitledger_groups_created_total Groups created.
# TYPE splitledger_groups_created_total counter
splitledger_groups_created_total 1
# HELP splitledger_online_users Users with a registered real-time connection on this instance.
# TYPE splitledger_online_users gauge
splitledger_online_users 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"splitledger_groups_created_total", "splitledger_online_users"); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}

	if got := testutil.ToFloat64(r.deliveries.WithLabelValues(DeliveryDelivered)); got != 1 {
		t.Errorf("deliveries{delivered} = %v, want 1", got)
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoop()
	r.IncGroupCreated()
	r.ObserveBalanceDuration(time.Second)
}

func TestActivityMetrics(t *testing.T) {
	m := NewInMemory()
	m.IncActivityPublished(ActivityPublished)
	m.IncActivityPublished(ActivityDropped)
	m.IncActivityProcessed(ActivityDeadLettered)
	m.ObserveActivityBatch(4, time.Millisecond)
	m.SetActivityQueueDepth(12)

	snap := m.Snapshot()
	if snap.ActivityPublished[ActivityPublished] != 1 || snap.ActivityPublished[ActivityDropped] != 1 {
		t.Errorf("ActivityPublished = %v", snap.ActivityPublished)
	}
	if snap.ActivityProcessed[ActivityDeadLettered] != 1 {
		t.Errorf("ActivityProcessed = %v", snap.ActivityProcessed)
	}
	if snap.ActivityBatches != 1 || snap.ActivityQueueDepth != 12 {
		t.Errorf("batches/depth = %d/%d", snap.ActivityBatches, snap.ActivityQueueDepth)
	}

	reg := prometheus.NewRegistry()
	r := NewPrometheus(reg)
	r.IncActivityProcessed(ActivityStored)
	r.SetActivityQueueDepth(5)
	if got := testutil.ToFloat64(r.activityProcessed.WithLabelValues(ActivityStored)); got != 1 {
		t.Errorf("activity processed{stored} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.activityQueueDepth); got != 5 {
		t.Errorf("activity queue depth = %v, want 5", got)
	}
}
