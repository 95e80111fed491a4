package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/kode4food/stride/pkg/api"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// Archiver stores the final snapshot of completed submissions in a blob
// bucket, supporting S3, GCS, Azure Blob Storage, local files, and in-memory
// buckets. Only the final snapshot is written; the engine keeps no history
type Archiver struct {
	bucket *blob.Bucket
	prefix string
}

var ErrArchiveNotFound = errors.New("archived submission not found")

// New opens the bucket at bucketURL and returns an archiver rooted at the
// given key prefix
func New(ctx context.Context, bucketURL, prefix string) (*Archiver, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &Archiver{bucket: bucket, prefix: prefix}, nil
}

// Put writes the snapshot for a completed submission
func (a *Archiver) Put(ctx context.Context, w *api.WorkflowInstance) error {
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return a.bucket.WriteAll(ctx, a.keyFor(w.SubmissionID), data, nil)
}

// Get reads back an archived snapshot
func (a *Archiver) Get(
	ctx context.Context, id api.SubmissionID,
) (*api.WorkflowInstance, error) {
	data, err := a.bucket.ReadAll(ctx, a.keyFor(id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, id)
		}
		return nil, err
	}

	var w api.WorkflowInstance
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Delete removes an archived snapshot. Deleting a missing snapshot is not an
// error
func (a *Archiver) Delete(ctx context.Context, id api.SubmissionID) error {
	err := a.bucket.Delete(ctx, a.keyFor(id))
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

// Close releases the bucket
func (a *Archiver) Close() error {
	return a.bucket.Close()
}

func (a *Archiver) keyFor(id api.SubmissionID) string {
	return fmt.Sprintf("%s/%s.json", a.prefix, id)
}
