package notify

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/xid"
	"gorm.io/gorm"

	"github.com/pitabwire/frame/datastore/pool"

	"github.com/cheamigo/cheamigo/pkg/events"
)

// ErrNotFound is returned for unknown subscription IDs.
var ErrNotFound = errors.New("subscription not found")

// Store persists subscriptions and their delivery log.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context) ([]Subscription, error)
	// Matching returns the active subscriptions that want env.
	Matching(ctx context.Context, env events.Envelope) ([]Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	Delete(ctx context.Context, id string) error

	RecordDelivery(ctx context.Context, d *Delivery) error
	// Deliveries returns the newest attempts for a subscription first.
	Deliveries(ctx context.Context, subscriptionID string, limit int) ([]Delivery, error)
}

// Repository is the gorm-backed Store.
type Repository struct {
	pool pool.Pool
}

// NewRepository creates a repository over frame's datastore pool.
func NewRepository(pool pool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.pool.DB(ctx, readOnly)
}

// Migrate creates or updates the notification tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db(ctx, false).AutoMigrate(&Subscription{}, &Delivery{})
}

func (r *Repository) Create(ctx context.Context, s *Subscription) error {
	if s.ID == "" {
		s.ID = xid.New().String()
	}
	return r.db(ctx, false).Create(s).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*Subscription, error) {
	var s Subscription
	err := r.db(ctx, true).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) List(ctx context.Context) ([]Subscription, error) {
	var subs []Subscription
	err := r.db(ctx, true).Order("created_at ASC").Find(&subs).Error
	return subs, err
}

// Matching filters active subscriptions in process; the table is small and
// the event filter lives in a JSON column.
func (r *Repository) Matching(ctx context.Context, env events.Envelope) ([]Subscription, error) {
	var active []Subscription
	if err := r.db(ctx, true).Where("active = ?", true).Find(&active).Error; err != nil {
		return nil, err
	}
	return filter(active, env), nil
}

func (r *Repository) Update(ctx context.Context, s *Subscription) error {
	return r.db(ctx, false).Save(s).Error
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res := r.db(ctx, false).Where("id = ?", id).Delete(&Subscription{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) RecordDelivery(ctx context.Context, d *Delivery) error {
	if d.ID == "" {
		d.ID = xid.New().String()
	}
	return r.db(ctx, false).Create(d).Error
}

func (r *Repository) Deliveries(ctx context.Context, subscriptionID string, limit int) ([]Delivery, error) {
	var out []Delivery
	q := r.db(ctx, true).Where("subscription_id = ?", subscriptionID).Order("attempted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func filter(subs []Subscription, env events.Envelope) []Subscription {
	var out []Subscription
	for _, s := range subs {
		if s.Wants(env) {
			out = append(out, s)
		}
	}
	return out
}

// MemoryStore keeps subscriptions in process. Used when no datastore is
// configured and in tests.
type MemoryStore struct {
	mu         sync.Mutex
	subs       map[string]Subscription
	deliveries []Delivery
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]Subscription)}
}

func (m *MemoryStore) Create(_ context.Context, s *Subscription) error {
	if s.ID == "" {
		s.ID = xid.New().String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[s.ID] = *s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Matching(ctx context.Context, env events.Envelope) ([]Subscription, error) {
	all, _ := m.List(ctx)
	return filter(all, env), nil
}

func (m *MemoryStore) Update(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s.ID]; !ok {
		return ErrNotFound
	}
	m.subs[s.ID] = *s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *MemoryStore) RecordDelivery(_ context.Context, d *Delivery) error {
	if d.ID == "" {
		d.ID = xid.New().String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, *d)
	return nil
}

func (m *MemoryStore) Deliveries(_ context.Context, subscriptionID string, limit int) ([]Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Delivery
	for i := len(m.deliveries) - 1; i >= 0; i-- {
		if m.deliveries[i].SubscriptionID != subscriptionID {
			continue
		}
		out = append(out, m.deliveries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
