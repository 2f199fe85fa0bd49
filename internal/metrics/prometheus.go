package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	groupsCreated    prometheus.Counter
	groupsDeleted    prometheus.Counter
	versionConflicts prometheus.Counter
	memberships      *prometheus.CounterVec
	expenses         *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	balanceDuration  prometheus.Histogram
	onlineUsers      prometheus.Gauge

	activityPublished  *prometheus.CounterVec
	activityProcessed  *prometheus.CounterVec
	activityBatchSize  prometheus.Histogram
	activityBatchTime  prometheus.Histogram
	activityQueueDepth prometheus.Gauge
}

// NewPrometheus creates a recorder and registers its collectors with reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		groupsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "splitledger_groups_created_total",
			Help: "Groups created.",
		}),
		groupsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "splitledger_groups_deleted_total",
			Help: "Groups deleted.",
		}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "splitledger_group_version_conflicts_total",
			Help: "Group saves rejected by optimistic concurrency and retried.",
		}),
		memberships: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitledger_membership_changes_total",
			Help: "Membership state changes by action.",
		}, []string{"action"}),
		expenses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitledger_expense_mutations_total",
			Help: "Ledger mutations by action.",
		}, []string{"action"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitledger_notification_deliveries_total",
			Help: "Real-time notification delivery attempts by outcome.",
		}, []string{"outcome"}),
		balanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "splitledger_balance_duration_seconds",
			Help:    "Time spent computing group balances.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "splitledger_online_users",
			Help: "Users with a registered real-time connection on this instance.",
		}),
		activityPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitledger_activity_events_published_total",
			Help: "Activity events appended to the stream by outcome.",
		}, []string{"outcome"}),
		activityProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitledger_activity_events_processed_total",
			Help: "Activity events consumed from the stream by outcome.",
		}, []string{"outcome"}),
		activityBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "splitledger_activity_batch_size",
			Help:    "Activity events stored per batch.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		activityBatchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "splitledger_activity_batch_duration_seconds",
			Help:    "Time spent storing one activity batch.",
			Buckets: prometheus.DefBuckets,
		}),
		activityQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "splitledger_activity_queue_depth",
			Help: "Pending plus unread entries of the activity stream.",
		}),
	}

	reg.MustRegister(
		r.groupsCreated,
		r.groupsDeleted,
		r.versionConflicts,
		r.memberships,
		r.expenses,
		r.deliveries,
		r.balanceDuration,
		r.onlineUsers,
		r.activityPublished,
		r.activityProcessed,
		r.activityBatchSize,
		r.activityBatchTime,
		r.activityQueueDepth,
	)
	return r
}

func (r *PrometheusRecorder) IncGroupCreated()    { r.groupsCreated.Inc() }
func (r *PrometheusRecorder) IncGroupDeleted()    { r.groupsDeleted.Inc() }
func (r *PrometheusRecorder) IncVersionConflict() { r.versionConflicts.Inc() }

func (r *PrometheusRecorder) IncMembershipChange(action string) {
	r.memberships.WithLabelValues(action).Inc()
}

func (r *PrometheusRecorder) IncExpenseMutation(action string) {
	r.expenses.WithLabelValues(action).Inc()
}

func (r *PrometheusRecorder) IncNotificationDelivery(outcome string) {
	r.deliveries.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) ObserveBalanceDuration(duration time.Duration) {
	r.balanceDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) SetOnlineUsers(n int) {
	r.onlineUsers.Set(float64(n))
}

func (r *PrometheusRecorder) IncActivityPublished(outcome string) {
	r.activityPublished.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) IncActivityProcessed(outcome string) {
	r.activityProcessed.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) ObserveActivityBatch(size int, duration time.Duration) {
	r.activityBatchSize.Observe(float64(size))
	r.activityBatchTime.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) SetActivityQueueDepth(depth int64) {
	r.activityQueueDepth.Set(float64(depth))
}
