package kv

import (
	"context"

	badger "github.com/dgraph-io/badger/v2"
)

// BadgerKv is a Backend persisted to disk with badger, the durable
// counterpart to InMemoryKv for PageFs deployments that must survive a
// restart (cfg.KvBackendBadger).
type BadgerKv struct {
	db *badger.DB
}

// OpenBadgerKv opens (or creates) a badger database rooted at dir.
func OpenBadgerKv(dir string) (*BadgerKv, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerKv{db: db}, nil
}

func (b *BadgerKv) Close() error {
	return b.db.Close()
}

var _ Backend = (*BadgerKv)(nil)

func (b *BadgerKv) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			value = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (b *BadgerKv) Set(_ context.Context, key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *BadgerKv) Delete(_ context.Context, key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (b *BadgerKv) Scan(_ context.Context, prefix []byte) ([]Entry, error) {
	var out []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)
			err := item.Value(func(v []byte) error {
				out = append(out, Entry{Key: key, Value: append([]byte(nil), v...)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}
