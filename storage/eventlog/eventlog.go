package eventlog

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"pegvault/core/events"
)

var bucketEvents = []byte("events")

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 100

var errClosed = errors.New("eventlog: closed")

// Log is an append-only journal of committed ledger events backed by bbolt.
// Every event receives a gapless sequence number starting at 1.
type Log struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open creates or reopens the journal at path.
func Open(path string, options *bolt.Options) (*Log, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Log{db: db, logger: slog.Default()}, nil
}

// SetLogger replaces the logger used to report failed appends.
func (l *Log) SetLogger(logger *slog.Logger) {
	if l == nil || logger == nil {
		return
	}
	l.logger = logger
}

// Close releases the bbolt handle.
func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Emit satisfies events.Emitter. Events reach the journal only after the
// ledger committed them, so a failed append is logged rather than undone.
func (l *Log) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	if _, err := l.Append(evt); err != nil {
		l.logger.Error("append ledger event", "type", evt.EventType(), "error", err)
	}
}

// Append stores evt and returns the persisted record.
func (l *Log) Append(evt events.Event) (events.Record, error) {
	if l == nil || l.db == nil {
		return events.Record{}, errClosed
	}
	record := events.ToRecord(evt)
	err := l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		record.Sequence = seq
		encoded, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return bucket.Put(sequenceKey(seq), encoded)
	})
	if err != nil {
		return events.Record{}, err
	}
	return record, nil
}

// List returns up to limit records with a sequence greater than after, in
// order. A non-empty eventType filters by type.
func (l *Log) List(after uint64, limit int, eventType string) ([]events.Record, error) {
	if l == nil || l.db == nil {
		return nil, errClosed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	out := make([]events.Record, 0)
	err := l.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketEvents).Cursor()
		for key, value := cursor.Seek(sequenceKey(after + 1)); key != nil && len(out) < limit; key, value = cursor.Next() {
			var record events.Record
			if err := json.Unmarshal(value, &record); err != nil {
				return err
			}
			if eventType != "" && record.Type != eventType {
				continue
			}
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
