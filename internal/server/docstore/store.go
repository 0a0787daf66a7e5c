// Package docstore is the credential store: a key/value document store with
// named collections. Two backends exist, S3Store (one object per document)
// and PostgresStore (one row per document). Both are derived indexes; the
// identity registry stays the source of truth for tenant existence.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
)

// Store is implemented by every backend.
//
// Get returns an error wrapping common.ErrorNotFound for a missing key.
// List returns the keys of a collection in ascending order. Delete of a
// missing key is not an error. Put overwrites (last writer wins).
// Pinger is implemented by backends that can report readiness cheaply.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Store interface {
	Put(ctx context.Context, collection, key string, doc []byte) error
	Get(ctx context.Context, collection, key string) ([]byte, error)
	List(ctx context.Context, collection string) ([]string, error)
	Delete(ctx context.Context, collection, key string) error
}

// validate rejects unknown collections and keys that cannot be addressed.
func validate(collection, key string) error {
	if !slices.Contains(common.Collections, collection) {
		return fmt.Errorf("%w: unknown collection %q", common.ErrorValidation, collection)
	}
	if key == "" {
		return fmt.Errorf("%w: empty key", common.ErrorValidation)
	}
	if strings.Contains(key, "/") {
		return fmt.Errorf("%w: key %q contains '/'", common.ErrorValidation, key)
	}
	return nil
}

func validateCollection(collection string) error {
	return validate(collection, "-")
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, s Store, collection, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return s.Put(ctx, collection, key, b)
}

// GetJSON loads key and decodes it into v.
func GetJSON(ctx context.Context, s Store, collection, key string, v any) error {
	b, err := s.Get(ctx, collection, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: decode %s/%s: %v", common.ErrorBackend, collection, key, err)
	}
	return nil
}
