package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kode4food/stride/internal/config"
	"github.com/kode4food/stride/pkg/api"
)

type (
	// Repository stores the latest snapshot of every submission in Redis.
	// Only the newest instance is kept per key; there is no history
	Repository struct {
		client *redis.Client
		prefix string
	}

	// UpdateFunc computes the next snapshot from the current one. A nil
	// input means the submission does not exist yet
	UpdateFunc func(*api.WorkflowInstance) (*api.WorkflowInstance, error)
)

const maxUpdateRetries = 5

var (
	ErrNotFound         = errors.New("submission not found")
	ErrUpdateContention = errors.New("submission update contention")
)

// NewRepository creates a repository over a Redis connection
func NewRepository(cfg config.RedisConfig) *Repository {
	return &Repository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
	}
}

// Load retrieves the latest snapshot for a submission
func (r *Repository) Load(
	ctx context.Context, id api.SubmissionID,
) (*api.WorkflowInstance, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return unmarshal(data)
}

// Save replaces the snapshot for a submission unconditionally
func (r *Repository) Save(
	ctx context.Context, w *api.WorkflowInstance,
) error {
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(w.SubmissionID), data, 0).Err()
}

// Update runs an optimistic read-modify-write cycle against the snapshot
// key. Concurrent writers are detected through Redis WATCH and the cycle is
// retried; persistent contention surfaces as an error
func (r *Repository) Update(
	ctx context.Context, id api.SubmissionID, fn UpdateFunc,
) (*api.WorkflowInstance, error) {
	var result *api.WorkflowInstance

	txn := func(tx *redis.Tx) error {
		var current *api.WorkflowInstance
		data, err := tx.Get(ctx, r.key(id)).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// fn decides what a missing submission means
		case err != nil:
			return err
		default:
			if current, err = unmarshal(data); err != nil {
				return err
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(id), encoded, 0)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for range maxUpdateRetries {
		err := r.client.Watch(ctx, txn, r.key(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUpdateContention, id)
}

// Delete removes the snapshot for a submission
func (r *Repository) Delete(ctx context.Context, id api.SubmissionID) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

// Ping verifies the Redis connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis connection
func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) key(id api.SubmissionID) string {
	return fmt.Sprintf("%s:submission:%s", r.prefix, id)
}

func unmarshal(data []byte) (*api.WorkflowInstance, error) {
	var w api.WorkflowInstance
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
