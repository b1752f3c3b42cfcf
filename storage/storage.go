// Package storage is the key/value store for client preferences and
// credentials, backed by bbolt.
package storage

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var logger = logrus.WithFields(logrus.Fields{"prefix": "storage"})

func SetLogger(l *logrus.Entry) {
	logger = l
}

// KV is a string keyed byte store. Get returns nil for a missing key.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

var defaultBucket = []byte("matterstate")

type Bolt struct {
	db     *bolt.DB
	bucket []byte
}

// Open opens (or creates) the database at path.
func Open(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	return New(db, "")
}

// New uses bucket in an already opened db, creating it if needed.
func New(db *bolt.DB, bucket string) (*Bolt, error) {
	name := defaultBucket
	if bucket != "" {
		name = []byte(bucket)
	}

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "create bucket")
	}

	return &Bolt{db: db, bucket: name}, nil
}

func (b *Bolt) Get(key string) ([]byte, error) {
	var value []byte

	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(b.bucket).Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})

	return value, err
}

func (b *Bolt) Set(key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), value)
	})
}

func (b *Bolt) Delete(key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Delete([]byte(key))
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

// GetJSON decodes the value of key into v. A missing key, a read error or
// a value that does not decode all report false; callers then treat the
// value as absent.
func GetJSON(kv KV, key string, v interface{}) bool {
	raw, err := kv.Get(key)
	if err != nil {
		logger.Errorf("get %s: %s", key, err)
		return false
	}

	if raw == nil {
		return false
	}

	if !json.Valid(raw) {
		logger.Debugf("ignoring malformed value for %s", key)
		return false
	}

	if err := json.Unmarshal(raw, v); err != nil {
		logger.Debugf("ignoring malformed value for %s: %s", key, err)
		return false
	}

	return true
}

func SetJSON(kv KV, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}

	return kv.Set(key, raw)
}
