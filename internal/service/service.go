// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/notifier"
	"github.com/splitledger/splitledger/internal/repository"
)

// GroupStore persists group aggregates.
type GroupStore interface {
	CreateGroup(ctx context.Context, g *model.Group) error
	SaveGroup(ctx context.Context, g *model.Group) error
	GetGroup(ctx context.Context, id string) (*model.Group, error)
	ListGroupsByMember(ctx context.Context, userID string, status model.MemberStatus) ([]*model.Group, error)
	DeleteGroup(ctx context.Context, id string) error
}

// UserStore resolves users.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUsersByEmails(ctx context.Context, emails []string) ([]*model.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ConsumeNotification(ctx context.Context, id, userID, groupID string) (*model.Notification, error)
	ListNotificationsByUser(ctx context.Context, userID string, status model.NotificationStatus) ([]*model.Notification, error)
}

// ActivityStore reads group activity feeds.
type ActivityStore interface {
	ListActivities(ctx context.Context, groupID string, limit int) ([]*model.Activity, error)
}

// Store is everything the services need from persistence.
type Store interface {
	GroupStore
	UserStore
	NotificationStore
	ActivityStore
}

// ActivityRecorder receives activity entries after a change is saved.
// Implementations must not block.
type ActivityRecorder interface {
	Record(ctx context.Context, a *model.Activity)
}

var _ Store = (*repository.Repository)(nil)

const (
	defaultOpTimeout  = 5 * time.Second
	defaultMaxRetries = 5
)

// Options tunes service behavior. Zero values select defaults.
type Options struct {
	// OpTimeout bounds the persistence work of a single operation.
	OpTimeout time.Duration
	// MaxRetries is how many times a mutation is re-applied after a version conflict.
	MaxRetries int
	// Location is used to interpret month filters.
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
	// Activity receives feed entries. Nil discards them.
	Activity ActivityRecorder
}

func (o Options) withDefaults() Options {
	if o.OpTimeout <= 0 {
		o.OpTimeout = defaultOpTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Activity == nil {
		o.Activity = discardActivity{}
	}
	return o
}

// Services bundles the services that share one store and group lock table.
type Services struct {
	Groups        *GroupService
	Expenses      *ExpenseService
	Balances      *BalanceService
	Notifications *NotificationService
	Activity      *ActivityService
}

// New wires all services. A nil notifier drops deliveries and a nil recorder disables metrics.
func New(store Store, n notifier.Notifier, recorder metrics.Recorder, opts Options) *Services {
	c := newCore(store, n, recorder, opts)
	return &Services{
		Groups:        &GroupService{core: c},
		Expenses:      &ExpenseService{core: c},
		Balances:      &BalanceService{core: c},
		Notifications: &NotificationService{core: c},
		Activity:      &ActivityService{core: c},
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, string, *model.Notification) {}

type discardActivity struct{}

func (discardActivity) Record(context.Context, *model.Activity) {}

// core holds the dependencies shared by every service.
type core struct {
	store    Store
	notifier notifier.Notifier
	metrics  metrics.Recorder
	opts     Options
	locks    *keyedMutex
}

func newCore(store Store, n notifier.Notifier, recorder metrics.Recorder, opts Options) *core {
	if n == nil {
		n = discardNotifier{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &core{
		store:    store,
		notifier: n,
		metrics:  recorder,
		opts:     opts.withDefaults(),
		locks:    newKeyedMutex(),
	}
}

func (c *core) logger() *slog.Logger {
	return c.opts.Logger
}

func (c *core) now() time.Time {
	return c.opts.Now().UTC()
}

// record emits a feed entry stamped with the current time.
func (c *core) record(ctx context.Context, a model.Activity) {
	a.OccurredAt = c.now()
	c.opts.Activity.Record(ctx, &a)
}

func (c *core) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opts.OpTimeout)
}

// errUnchanged aborts a mutation without saving.
var errUnchanged = errors.New("unchanged")

// mutate loads the group, applies fn and saves it. Mutations for one group are
// serialized in-process; a version conflict from another writer reloads the
// group and re-applies fn.
func (c *core) mutate(ctx context.Context, groupID string, fn func(g *model.Group) error) (*model.Group, error) {
	unlock := c.locks.lock(groupID)
	defer unlock()

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		g, err := c.store.GetGroup(ctx, groupID)
		if err != nil {
			return nil, storeError("failed to load group", err)
		}

		if err := fn(g); err != nil {
			if errors.Is(err, errUnchanged) {
				return g, nil
			}
			return nil, err
		}

		err = c.store.SaveGroup(ctx, g)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, storeError("failed to save group", err)
		}

		c.metrics.IncVersionConflict()
		c.logger().Debug("group version conflict, retrying",
			slog.String("group_id", groupID),
			slog.Int("attempt", attempt+1),
		)
	}
	return nil, ErrConcurrentUpdate
}

// loadGroup fetches a group and checks that actorID holds some membership.
func (c *core) loadGroup(ctx context.Context, actorID, groupID string) (*model.Group, error) {
	g, err := c.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storeError("failed to load group", err)
	}
	if _, ok := g.Member(actorID); !ok {
		return nil, ErrNotMember
	}
	return g, nil
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// generateULID creates a new ULID.
func generateULID() string {
	return ulid.Make().String()
}
