// Package history keeps a durable audit trail of relayed messages in a
// BoltDB file. It is an operator-facing record, separate from the ledger's
// event journal.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/questbridge/internal/relay"
)

const (
	sentBucket     = "sent"
	receivedBucket = "received"
)

// Store records sent and received relay messages, each bucket keyed by a
// monotonic sequence.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordSent appends an outbound message record.
func (s *Store) RecordSent(rec relay.Record) error {
	return s.append(sentBucket, rec)
}

// RecordReceived appends an inbound message record.
func (s *Store) RecordReceived(rec relay.Record) error {
	return s.append(receivedBucket, rec)
}

// Sent returns every outbound record in append order.
func (s *Store) Sent() ([]relay.Record, error) {
	return s.list(sentBucket)
}

// Received returns every inbound record in append order.
func (s *Store) Received() ([]relay.Record, error) {
	return s.list(receivedBucket)
}

func (s *Store) append(bucketName string, rec relay.Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history is not configured")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", bucketName)
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("next history sequence: %w", err)
		}
		return bucket.Put(sequenceKey(seq), payload)
	})
}

func (s *Store) list(bucketName string) ([]relay.Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history is not configured")
	}

	var records []relay.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", bucketName)
		}
		return bucket.ForEach(func(_, value []byte) error {
			var rec relay.Record
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("unmarshal history record: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{sentBucket, receivedBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
