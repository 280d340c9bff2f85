// Package settings persists the gateway endpoint between runs.
package settings

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName = "settings"
	// EndpointKey is the key the gateway URL is stored under
	EndpointKey = "pythonApiUrl"
)

// Store defines the interface for settings operations
type Store interface {
	// Endpoint returns the configured gateway URL, or "" when none is set
	Endpoint() (string, error)

	// SetEndpoint stores the gateway URL
	SetEndpoint(endpoint string) error

	// Close closes the store
	Close() error
}

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens or creates the settings database at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Endpoint returns the stored gateway URL
func (b *BoltStore) Endpoint() (string, error) {
	var endpoint string
	err := b.db.View(func(tx *bbolt.Tx) error {
		endpoint = string(tx.Bucket([]byte(bucketName)).Get([]byte(EndpointKey)))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading endpoint: %w", err)
	}
	return endpoint, nil
}

// SetEndpoint validates and stores the gateway URL. An empty value clears it.
func (b *BoltStore) SetEndpoint(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint != "" {
		if err := ValidateEndpoint(endpoint); err != nil {
			return err
		}
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if endpoint == "" {
			return bucket.Delete([]byte(EndpointKey))
		}
		return bucket.Put([]byte(EndpointKey), []byte(endpoint))
	})
}

// Close closes the database
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// ValidateEndpoint checks that endpoint is an absolute http(s) URL
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parsing endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute http(s) URL: %q", endpoint)
	}
	return nil
}
