package history

import (
	"context"
	"sync"

	"github.com/rs/xid"
	"gorm.io/gorm"

	"github.com/pitabwire/frame/datastore/pool"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Store persists detection records.
type Store interface {
	Create(ctx context.Context, rec *DetectionRecord) error
	// List returns the newest records first. An empty sessionID lists all
	// sessions.
	List(ctx context.Context, sessionID string, limit int) ([]DetectionRecord, error)
}

// Repository is the gorm-backed Store on frame's datastore pool.
type Repository struct {
	pool pool.Pool
}

// NewRepository creates a repository over pool.
func NewRepository(pool pool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.pool.DB(ctx, readOnly)
}

// Migrate creates or updates the detection_records table.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db(ctx, false).AutoMigrate(&DetectionRecord{})
}

// Create persists rec, assigning an ID when it has none.
func (r *Repository) Create(ctx context.Context, rec *DetectionRecord) error {
	if rec.ID == "" {
		rec.ID = xid.New().String()
	}
	return r.db(ctx, false).Create(rec).Error
}

// List returns recent records, newest first.
func (r *Repository) List(ctx context.Context, sessionID string, limit int) ([]DetectionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := r.db(ctx, true).Order("detected_at DESC").Limit(limit)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var records []DetectionRecord
	err := q.Find(&records).Error
	return records, err
}

// MemoryStore keeps records in process, bounded to a fixed size. It serves
// deployments without a datastore.
type MemoryStore struct {
	mu      sync.RWMutex
	max     int
	records []DetectionRecord
}

// NewMemoryStore keeps at most max records; non-positive means 1000.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 1000
	}
	return &MemoryStore{max: max}
}

func (m *MemoryStore) Create(_ context.Context, rec *DetectionRecord) error {
	if rec.ID == "" {
		rec.ID = xid.New().String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	if over := len(m.records) - m.max; over > 0 {
		m.records = append([]DetectionRecord(nil), m.records[over:]...)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, sessionID string, limit int) ([]DetectionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []DetectionRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if sessionID == "" || m.records[i].SessionID == sessionID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}
