package history

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/mrlite/mrlite/pkg/types"
)

var bucketRuns = []byte("runs")

// Record is one job run as remembered by the ledger. It is written when the
// job starts and overwritten with the outcome when the job ends; it is an
// append-only audit trail, not recoverable scheduler state.
type Record struct {
	ID               string      `json:"id"`
	Identity         string      `json:"identity"`
	Mode             string      `json:"mode"` // "batch", "incremental" or "map-only"
	NumMapWorkers    int         `json:"num_map_workers"`
	NumReduceWorkers int         `json:"num_reduce_workers"`
	Phase            types.Phase `json:"phase"`
	Error            string      `json:"error,omitempty"`
	StartedAt        time.Time   `json:"started_at"`
	FinishedAt       time.Time   `json:"finished_at,omitempty"`
}

// NewRecord opens a record for a job that is about to run.
func NewRecord(cfg *types.JobConfig) *Record {
	mode := "batch"
	switch {
	case cfg.MapOnly:
		mode = "map-only"
	case cfg.Incremental:
		mode = "incremental"
	}
	return &Record{
		ID:               uuid.New().String(),
		Identity:         cfg.Identity,
		Mode:             mode,
		NumMapWorkers:    cfg.NumMapWorkers,
		NumReduceWorkers: cfg.NumReduceWorkers,
		Phase:            types.PhaseInit,
		StartedAt:        time.Now(),
	}
}

// Store is a BoltDB-backed job run ledger
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the ledger database under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "mrlite.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes a record (upsert keyed by record ID).
func (s *Store) Put(rec *Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), data)
	})
}

// Get returns the record with the given ID.
func (s *Store) Get(id string) (*Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("run not found: %s", id)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all records, most recently started first.
func (s *Store) List() ([]*Record, error) {
	var records []*Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		return b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}
