package fake

import (
	"bytes"
	"sort"
	"sync"

	"go.dedis.ch/ballotbox/core/store/kv"
)

// InMemoryDB is a fake implementation of a key/value database. Updates are
// applied on a copy that replaces the state only on success.
//
// - implements kv.DB
type InMemoryDB struct {
	sync.Mutex

	buckets  map[string]map[string][]byte
	ErrRead  error
	ErrWrite error
}

// NewInMemoryDB creates a new empty database.
func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		buckets: make(map[string]map[string][]byte),
	}
}

// NewBadDB creates a new empty database that will always return an error.
func NewBadDB() *InMemoryDB {
	db := NewInMemoryDB()
	db.ErrRead = fakeErr
	db.ErrWrite = fakeErr

	return db
}

// View implements kv.DB.
func (db *InMemoryDB) View(fn func(kv.ReadableTx) error) error {
	db.Lock()
	defer db.Unlock()

	if db.ErrRead != nil {
		return db.ErrRead
	}

	return fn(&memTx{buckets: db.buckets})
}

// Update implements kv.DB.
func (db *InMemoryDB) Update(fn func(kv.WritableTx) error) error {
	db.Lock()
	defer db.Unlock()

	if db.ErrWrite != nil {
		return db.ErrWrite
	}

	tx := &memTx{buckets: cloneBuckets(db.buckets)}

	err := fn(tx)
	if err != nil {
		return err
	}

	db.buckets = tx.buckets

	for _, cb := range tx.callbacks {
		cb()
	}

	return nil
}

// Close implements kv.DB.
func (db *InMemoryDB) Close() error {
	return nil
}

type memTx struct {
	buckets   map[string]map[string][]byte
	callbacks []func()
}

func (tx *memTx) GetBucket(name []byte) kv.Bucket {
	b, found := tx.buckets[string(name)]
	if !found {
		return nil
	}

	return memBucket{values: b}
}

func (tx *memTx) GetBucketOrCreate(name []byte) (kv.Bucket, error) {
	b, found := tx.buckets[string(name)]
	if !found {
		b = make(map[string][]byte)
		tx.buckets[string(name)] = b
	}

	return memBucket{values: b}, nil
}

func (tx *memTx) OnCommit(fn func()) {
	tx.callbacks = append(tx.callbacks, fn)
}

type memBucket struct {
	values map[string][]byte
}

func (b memBucket) Get(key []byte) []byte {
	return b.values[string(key)]
}

func (b memBucket) Set(key, value []byte) error {
	b.values[string(key)] = append([]byte(nil), value...)
	return nil
}

func (b memBucket) Delete(key []byte) error {
	delete(b.values, string(key))
	return nil
}

func (b memBucket) ForEach(fn func(k, v []byte) error) error {
	return b.Scan(nil, fn)
}

func (b memBucket) Scan(prefix []byte, fn func(k, v []byte) error) error {
	keys := make([]string, 0, len(b.values))
	for key := range b.values {
		if bytes.HasPrefix([]byte(key), prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	for _, key := range keys {
		err := fn([]byte(key), b.values[key])
		if err != nil {
			return err
		}
	}

	return nil
}

func cloneBuckets(buckets map[string]map[string][]byte) map[string]map[string][]byte {
	res := make(map[string]map[string][]byte, len(buckets))

	for name, values := range buckets {
		clone := make(map[string][]byte, len(values))
		for k, v := range values {
			clone[k] = v
		}

		res[name] = clone
	}

	return res
}
