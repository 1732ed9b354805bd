package cache

import (
	"context"
	"errors"
	"fmt"
	"path"

	"findoc-gateway/internal/shared/storage/object"
)

const durableObjectDir = "durable"

// ObjectDurable implements DurableScope with one JSON object per key in an
// object store (local directory or S3 bucket).
type ObjectDurable struct {
	Store object.Store
}

func objectKey(key string) string {
	return path.Join(durableObjectDir, key+".json")
}

// Get returns the stored value for key.
func (o *ObjectDurable) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := o.Store.Get(ctx, objectKey(key))
	if errors.Is(err, object.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read durable object %s: %w", key, err)
	}
	return data, nil
}

// Put stores value under key.
func (o *ObjectDurable) Put(ctx context.Context, key string, value []byte) error {
	if err := o.Store.Put(ctx, objectKey(key), "application/json", value); err != nil {
		return fmt.Errorf("save durable object %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (o *ObjectDurable) Delete(ctx context.Context, key string) error {
	if err := o.Store.Delete(ctx, objectKey(key)); err != nil {
		return fmt.Errorf("delete durable object %s: %w", key, err)
	}
	return nil
}

var _ DurableScope = (*ObjectDurable)(nil)
