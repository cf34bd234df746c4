// Package weightstore persists serialized engine weight bundles so a
// caller can restore trained engines across process restarts.
package weightstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
)

// Store persists weight snapshots in SQLite, with an in-memory fallback
// when no usable database path is given.
type Store struct {
	mu          sync.RWMutex
	dbPath      string
	db          *sql.DB
	snapshots   map[string]*forecast.WeightSnapshot // in-memory fallback
	initialized bool
	useInMemory bool
}

// Option configures the Store.
type Option func(*Store)

// WithInMemoryFallback forces in-memory storage.
func WithInMemoryFallback() Option {
	return func(s *Store) {
		s.useInMemory = true
	}
}

// NewStore creates a store backed by the given SQLite path.
func NewStore(dbPath string, opts ...Option) *Store {
	s := &Store{
		dbPath:    dbPath,
		snapshots: make(map[string]*forecast.WeightSnapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize opens the database and creates the schema. Idempotent; an
// unopenable path degrades to in-memory storage.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if s.useInMemory || s.dbPath == "" || s.dbPath == ":memory:" {
		s.useInMemory = true
		s.initialized = true
		return nil
	}

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		s.useInMemory = true
		s.initialized = true
		return nil
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS weight_bundles (
			id TEXT PRIMARY KEY,
			engine TEXT NOT NULL,
			trained_at INTEGER NOT NULL,
			sample_count INTEGER NOT NULL,
			validation_loss REAL NOT NULL,
			config TEXT NOT NULL,
			payload TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_weight_bundles_engine ON weight_bundles(engine);
	`)
	if err != nil {
		db.Close()
		s.useInMemory = true
		s.initialized = true
		return nil
	}

	s.db = db
	s.initialized = true
	return nil
}

// Save upserts a snapshot.
func (s *Store) Save(snap *forecast.WeightSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return forecast.ErrNotInitialized
	}
	if snap.ID == "" {
		return fmt.Errorf("weightstore: snapshot has no ID")
	}

	if s.useInMemory {
		c := *snap
		s.snapshots[snap.ID] = &c
		return nil
	}

	_, err := s.db.Exec(`
		INSERT INTO weight_bundles (id, engine, trained_at, sample_count, validation_loss, config, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			engine = excluded.engine,
			trained_at = excluded.trained_at,
			sample_count = excluded.sample_count,
			validation_loss = excluded.validation_loss,
			config = excluded.config,
			payload = excluded.payload
	`, snap.ID, snap.Engine, snap.TrainedAt.UnixMilli(), snap.SampleCount,
		snap.ValidationLoss, string(snap.Config), string(snap.Payload))
	if err != nil {
		return fmt.Errorf("weightstore: save %s: %w", snap.ID, err)
	}
	return nil
}

// Load fetches one snapshot by ID.
func (s *Store) Load(id string) (*forecast.WeightSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, forecast.ErrNotInitialized
	}

	if s.useInMemory {
		snap, ok := s.snapshots[id]
		if !ok {
			return nil, fmt.Errorf("weightstore: snapshot not found: %s", id)
		}
		c := *snap
		return &c, nil
	}

	row := s.db.QueryRow(`
		SELECT id, engine, trained_at, sample_count, validation_loss, config, payload
		FROM weight_bundles WHERE id = ?
	`, id)
	return scanSnapshot(row)
}

// LoadLatest fetches the most recently trained snapshot for an engine.
func (s *Store) LoadLatest(engine string) (*forecast.WeightSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, forecast.ErrNotInitialized
	}

	if s.useInMemory {
		var latest *forecast.WeightSnapshot
		for _, snap := range s.snapshots {
			if snap.Engine != engine {
				continue
			}
			if latest == nil || snap.TrainedAt.After(latest.TrainedAt) {
				latest = snap
			}
		}
		if latest == nil {
			return nil, fmt.Errorf("weightstore: no snapshot for engine %s", engine)
		}
		c := *latest
		return &c, nil
	}

	row := s.db.QueryRow(`
		SELECT id, engine, trained_at, sample_count, validation_loss, config, payload
		FROM weight_bundles WHERE engine = ?
		ORDER BY trained_at DESC LIMIT 1
	`, engine)
	return scanSnapshot(row)
}

// List returns all stored snapshots, most recently trained first, without
// their payloads.
func (s *Store) List() ([]*forecast.WeightSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, forecast.ErrNotInitialized
	}

	var out []*forecast.WeightSnapshot
	if s.useInMemory {
		for _, snap := range s.snapshots {
			c := *snap
			c.Payload = nil
			out = append(out, &c)
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].TrainedAt.After(out[j].TrainedAt)
		})
		return out, nil
	}

	rows, err := s.db.Query(`
		SELECT id, engine, trained_at, sample_count, validation_loss, config
		FROM weight_bundles ORDER BY trained_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("weightstore: list: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var snap forecast.WeightSnapshot
		var trainedAt int64
		var config string
		if err := rows.Scan(&snap.ID, &snap.Engine, &trainedAt, &snap.SampleCount,
			&snap.ValidationLoss, &config); err != nil {
			return nil, fmt.Errorf("weightstore: scan: %w", err)
		}
		snap.TrainedAt = time.UnixMilli(trainedAt)
		snap.Config = json.RawMessage(config)
		out = append(out, &snap)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*forecast.WeightSnapshot, error) {
	var snap forecast.WeightSnapshot
	var trainedAt int64
	var config, payload string
	if err := row.Scan(&snap.ID, &snap.Engine, &trainedAt, &snap.SampleCount,
		&snap.ValidationLoss, &config, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("weightstore: snapshot not found")
		}
		return nil, fmt.Errorf("weightstore: scan: %w", err)
	}
	snap.TrainedAt = time.UnixMilli(trainedAt)
	snap.Config = json.RawMessage(config)
	snap.Payload = json.RawMessage(payload)
	return &snap, nil
}
