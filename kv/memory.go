package kv

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// InMemoryKv is the reference Backend: a sorted-key slice guarded by a
// single reader/writer lock, the direct Go translation of the Rust
// original's BTreeMap<Vec<u8>, Vec<u8>> behind an RwLock.
type InMemoryKv struct {
	mu   sync.RWMutex
	keys [][]byte
	vals [][]byte
}

// NewInMemoryKv returns an empty backend.
func NewInMemoryKv() *InMemoryKv {
	return &InMemoryKv{}
}

var _ Backend = (*InMemoryKv)(nil)

func (kv *InMemoryKv) search(key []byte) (int, bool) {
	i := sort.Search(len(kv.keys), func(i int) bool {
		return bytes.Compare(kv.keys[i], key) >= 0
	})
	if i < len(kv.keys) && bytes.Equal(kv.keys[i], key) {
		return i, true
	}
	return i, false
}

func (kv *InMemoryKv) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	i, ok := kv.search(key)
	if !ok {
		return nil, false, nil
	}
	v := make([]byte, len(kv.vals[i]))
	copy(v, kv.vals[i])
	return v, true, nil
}

func (kv *InMemoryKv) Set(_ context.Context, key, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	i, ok := kv.search(k)
	if ok {
		kv.vals[i] = v
		return nil
	}
	kv.keys = append(kv.keys, nil)
	copy(kv.keys[i+1:], kv.keys[i:])
	kv.keys[i] = k
	kv.vals = append(kv.vals, nil)
	copy(kv.vals[i+1:], kv.vals[i:])
	kv.vals[i] = v
	return nil
}

func (kv *InMemoryKv) Delete(_ context.Context, key []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	i, ok := kv.search(key)
	if !ok {
		return nil
	}
	kv.keys = append(kv.keys[:i], kv.keys[i+1:]...)
	kv.vals = append(kv.vals[:i], kv.vals[i+1:]...)
	return nil
}

func (kv *InMemoryKv) Scan(_ context.Context, prefix []byte) ([]Entry, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	start := sort.Search(len(kv.keys), func(i int) bool {
		return bytes.Compare(kv.keys[i], prefix) >= 0
	})
	var out []Entry
	for i := start; i < len(kv.keys); i++ {
		if !bytes.HasPrefix(kv.keys[i], prefix) {
			break
		}
		out = append(out, Entry{
			Key:   append([]byte(nil), kv.keys[i]...),
			Value: append([]byte(nil), kv.vals[i]...),
		})
	}
	return out, nil
}
