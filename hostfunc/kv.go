package hostfunc

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/caffeineduck/quickjs/bridge"
	"github.com/caffeineduck/quickjs/value"
)

const (
	DefaultMaxKeySize   = 256
	DefaultMaxValueSize = 64 << 10
	DefaultMaxEntries   = 1024
)

// KVOption configures a KV store.
type KVOption func(*KV)

// WithMaxKeySize sets the maximum key size in bytes.
func WithMaxKeySize(size int) KVOption {
	return func(kv *KV) { kv.maxKeySize = size }
}

// WithMaxValueSize sets the maximum value size in bytes.
func WithMaxValueSize(size int) KVOption {
	return func(kv *KV) { kv.maxValueSize = size }
}

// WithMaxEntries sets the maximum number of entries.
func WithMaxEntries(n int) KVOption {
	return func(kv *KV) { kv.maxEntries = n }
}

// KV is an in-memory string store exposed to scripts as kv_get, kv_set,
// kv_delete, and kv_keys globals. The store itself is safe for concurrent
// host use; the installed globals follow their context's threading rules.
type KV struct {
	mu           sync.RWMutex
	data         map[string]string
	maxKeySize   int
	maxValueSize int
	maxEntries   int
}

func NewKV(opts ...KVOption) *KV {
	kv := &KV{
		data:         make(map[string]string),
		maxKeySize:   DefaultMaxKeySize,
		maxValueSize: DefaultMaxValueSize,
		maxEntries:   DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(kv)
	}
	return kv
}

// Get returns the stored value for key.
func (kv *KV) Get(key string) (string, bool) {
	kv.mu.RLock()
	v, ok := kv.data[key]
	kv.mu.RUnlock()
	return v, ok
}

// Set stores val under key, enforcing the configured limits.
func (kv *KV) Set(key, val string) error {
	if len(key) > kv.maxKeySize {
		return errors.New("key exceeds max size")
	}
	if len(val) > kv.maxValueSize {
		return errors.New("value exceeds max size")
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, exists := kv.data[key]; !exists && len(kv.data) >= kv.maxEntries {
		return errors.New("store is full")
	}
	kv.data[key] = val
	return nil
}

// Delete removes key. Removing an absent key is not an error.
func (kv *KV) Delete(key string) {
	kv.mu.Lock()
	delete(kv.data, key)
	kv.mu.Unlock()
}

// Keys returns all keys in sorted order.
func (kv *KV) Keys() []string {
	kv.mu.RLock()
	keys := make([]string, 0, len(kv.data))
	for k := range kv.data {
		keys = append(keys, k)
	}
	kv.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Install binds the store's operations as globals. kv_get returns null for
// an absent key.
func (kv *KV) Install(ctx context.Context, qjs *bridge.Context) error {
	err := qjs.RegisterCallback(ctx, "kv_get", 1, func(args []value.Value) (value.Value, error) {
		key, ok := argString(args, 0)
		if !ok {
			return value.Value{}, errors.New("key required")
		}
		v, ok := kv.Get(key)
		if !ok {
			return value.Null(), nil
		}
		return value.String(v), nil
	})
	if err != nil {
		return err
	}

	err = qjs.RegisterCallback(ctx, "kv_set", 2, func(args []value.Value) (value.Value, error) {
		key, ok := argString(args, 0)
		if !ok {
			return value.Value{}, errors.New("key required")
		}
		val, ok := argString(args, 1)
		if !ok {
			return value.Value{}, errors.New("value required")
		}
		if err := kv.Set(key, val); err != nil {
			return value.Value{}, err
		}
		return value.Undefined(), nil
	})
	if err != nil {
		return err
	}

	err = qjs.RegisterCallback(ctx, "kv_delete", 1, func(args []value.Value) (value.Value, error) {
		key, ok := argString(args, 0)
		if !ok {
			return value.Value{}, errors.New("key required")
		}
		kv.Delete(key)
		return value.Undefined(), nil
	})
	if err != nil {
		return err
	}

	return qjs.RegisterCallback(ctx, "kv_keys", 0, func(args []value.Value) (value.Value, error) {
		keys := kv.Keys()
		out := make([]value.Value, len(keys))
		for i, k := range keys {
			out[i] = value.String(k)
		}
		return value.Array(out), nil
	})
}

func argString(args []value.Value, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	return args[i].AsString()
}
