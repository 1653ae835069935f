// Package store persists the host-app configuration with rotating backups,
// backed by an embedded bbolt database.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

const logPrefix = "store:store"

var (
	bucketConfig   = []byte("config")
	bucketBackups  = []byte("backups")
	bucketDefaults = []byte("defaults")

	keyCurrent = []byte("current")
)

// DefaultMaxBackups bounds the rotation of config backups.
const DefaultMaxBackups = 10

// Store is the config store. All values are JSON documents.
type Store struct {
	db         *bolt.DB
	maxBackups int
}

// Open opens (or creates) the store in dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "mirror-remote.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to open database: %w", logPrefix, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketConfig, bucketBackups, bucketDefaults} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("%s - failed to create bucket %s: %w", logPrefix, bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, maxBackups: DefaultMaxBackups}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Config returns the current config document, or nil when none is stored.
func (s *Store) Config() (json.RawMessage, error) {
	var out json.RawMessage
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketConfig).Get(keyCurrent)
		if data != nil {
			out = append(json.RawMessage(nil), data...)
		}
		return nil
	})
	return out, err
}

// SetConfig replaces the current config. The previous document, if any, is
// moved into the backup bucket and the rotation bound is enforced.
func (s *Store) SetConfig(cfg json.RawMessage) error {
	if !json.Valid(cfg) {
		return fmt.Errorf("%s - config is not valid JSON", logPrefix)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		configs := tx.Bucket(bucketConfig)
		backups := tx.Bucket(bucketBackups)

		if prev := configs.Get(keyCurrent); prev != nil {
			key := []byte(time.Now().UTC().Format(time.RFC3339Nano))
			if err := backups.Put(key, prev); err != nil {
				return err
			}
			if err := rotate(backups, s.maxBackups); err != nil {
				return err
			}
		}
		return configs.Put(keyCurrent, cfg)
	})
}

// rotate deletes the oldest backups beyond the keep bound. Keys are RFC3339
// timestamps, so byte order is chronological order.
func rotate(backups *bolt.Bucket, keep int) error {
	var keys [][]byte
	c := backups.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for len(keys) > keep {
		if err := backups.Delete(keys[0]); err != nil {
			return err
		}
		keys = keys[1:]
	}
	return nil
}

// Saves lists the stored backup timestamps, newest first.
func (s *Store) Saves() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBackups).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// Undo restores the most recent backup as the current config and removes it
// from the backup bucket. The replaced config is returned.
func (s *Store) Undo() (json.RawMessage, error) {
	var restored json.RawMessage
	err := s.db.Update(func(tx *bolt.Tx) error {
		configs := tx.Bucket(bucketConfig)
		backups := tx.Bucket(bucketBackups)

		k, v := backups.Cursor().Last()
		if k == nil {
			return fmt.Errorf("%s - no backup available to restore", logPrefix)
		}
		restored = append(json.RawMessage(nil), v...)
		if err := backups.Delete(k); err != nil {
			return err
		}
		return configs.Put(keyCurrent, restored)
	})
	if err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("%s - restored config from most recent backup", logPrefix))
	return restored, nil
}

// Default returns the stored default config for a widget, or an empty object
// when none is known.
func (s *Store) Default(module string) (json.RawMessage, error) {
	out := json.RawMessage("{}")
	err := s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketDefaults).Get([]byte(module)); data != nil {
			out = append(json.RawMessage(nil), data...)
		}
		return nil
	})
	return out, err
}

// SetDefault stores the default config for a widget.
func (s *Store) SetDefault(module string, cfg json.RawMessage) error {
	if !json.Valid(cfg) {
		return fmt.Errorf("%s - default config for %s is not valid JSON", logPrefix, module)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDefaults).Put([]byte(module), cfg)
	})
}
