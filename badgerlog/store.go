// Package badgerlog is a reference LogReader backed by BadgerDB. It is
// supplementary: the dispatch core only depends on the dispatch.LogReader
// interface, never on this package directly. It exists to show a durable
// alternative to dispatch.MemoryLogReader, grounded on the teacher's
// FileStore (a disk-backed, pluggable implementation of a storage
// interface defined by the core package).
package badgerlog

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mqttcore/dispatch"
)

// Compile-time check that Store implements dispatch.LogReader.
var _ dispatch.LogReader = (*Store)(nil)

// Store is a BadgerDB-backed LogReader. Records are stored under
// rec/{topicID}/{offset}; cursors are stored under cur/{topicID}/{group}
// and advanced implicitly on a successful read, matching
// dispatch.LogReader's documented acknowledge-on-read policy.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a Store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerlog: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores records under topicID, for producers feeding the log
// this Store backs. Offsets must be assigned by the caller and strictly
// increasing per topic (spec §5 "Ordering guarantees").
func (s *Store) Append(topicID string, records ...dispatch.Record) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			data, err := msgpack.Marshal(&r)
			if err != nil {
				return fmt.Errorf("badgerlog: encode record: %w", err)
			}
			if err := txn.Set(recordKey(topicID, r.Offset), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadTopicMessage implements dispatch.LogReader.
func (s *Store) ReadTopicMessage(ctx context.Context, topicID, consumerGroup string, max int) ([]dispatch.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var out []dispatch.Record
	var nextCursor uint64

	err := s.db.Update(func(txn *badger.Txn) error {
		cursor, err := readCursor(txn, topicID, consumerGroup)
		if err != nil {
			return err
		}

		prefix := []byte(fmt.Sprintf("rec/%s/", topicID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		start := recordKey(topicID, cursor)
		for it.Seek(start); it.ValidForPrefix(prefix) && len(out) < max; it.Next() {
			item := it.Item()
			var r dispatch.Record
			err := item.Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &r)
			})
			if err != nil {
				return fmt.Errorf("badgerlog: decode record: %w", err)
			}
			out = append(out, r)
			nextCursor = r.Offset + 1
		}

		if len(out) == 0 {
			return nil
		}
		return writeCursor(txn, topicID, consumerGroup, nextCursor)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dispatch.ErrLogUnavailable, err)
	}
	return out, nil
}

func recordKey(topicID string, offset uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], offset)
	return append([]byte(fmt.Sprintf("rec/%s/", topicID)), buf[:]...)
}

func cursorKey(topicID, consumerGroup string) []byte {
	return []byte(fmt.Sprintf("cur/%s/%s", topicID, consumerGroup))
}

func readCursor(txn *badger.Txn, topicID, consumerGroup string) (uint64, error) {
	item, err := txn.Get(cursorKey(topicID, consumerGroup))
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var cursor uint64
	err = item.Value(func(val []byte) error {
		cursor = binary.BigEndian.Uint64(val)
		return nil
	})
	return cursor, err
}

func writeCursor(txn *badger.Txn, topicID, consumerGroup string, cursor uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], cursor)
	return txn.Set(cursorKey(topicID, consumerGroup), buf[:])
}
