package boltdb

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var (
	usersBucket      = []byte("users")
	homeworkBucket   = []byte("homework")
	backpacksBucket  = []byte("backpacks")
	attendanceBucket = []byte("attendance")
	gradesBucket     = []byte("grades")
	leaveBucket      = []byte("leave_requests")

	buckets = [][]byte{usersBucket, homeworkBucket, backpacksBucket, attendanceBucket, gradesBucket, leaveBucket}

	errKeyNotFound = errors.New("key not found")
)

// Store is a bbolt file holding one bucket of JSON documents per collection.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the store at path and makes sure every bucket exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "creating store directory")
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening store")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating buckets")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func put(tx *bbolt.Tx, bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

func get[T any](tx *bbolt.Tx, bucket []byte, key string) (T, error) {
	var out T
	v := tx.Bucket(bucket).Get([]byte(key))
	if v == nil {
		return out, errKeyNotFound
	}
	err := json.Unmarshal(v, &out)
	return out, err
}

func save[T any](s *Store, bucket []byte, key string, value T) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, bucket, key, value)
	})
}

func load[T any](s *Store, bucket []byte, key string) (T, error) {
	var out T
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		out, err = get[T](tx, bucket, key)
		return err
	})
	return out, err
}

// list decodes every document of bucket whose key starts with prefix, in key order.
func list[T any](s *Store, bucket []byte, prefix string, keep func(T) bool) ([]T, error) {
	results := make([]T, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var out T
			if err := json.Unmarshal(v, &out); err != nil {
				return err
			}
			if keep == nil || keep(out) {
				results = append(results, out)
			}
		}
		return nil
	})
	return results, err
}

func remove(s *Store, bucket []byte, keys ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		for _, key := range keys {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}
