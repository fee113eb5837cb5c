package casstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// Registered drivers for bucket URLs accepted by Open.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// ErrNotFound is returned when no object exists for a digest.
var ErrNotFound = errors.New("casstore: object not found")

// DigestMismatchError is returned when content does not hash to its key.
type DigestMismatchError struct {
	Want string
	Got  string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("casstore: digest mismatch: want %s, got %s", e.Want, e.Got)
}

// Options configures a Store.
type Options struct {
	Prefix string
}

// Option is a functional option for configuring a Store.
type Option func(*Options)

// WithPrefix stores all objects under prefix.
func WithPrefix(prefix string) Option {
	return func(o *Options) {
		o.Prefix = prefix
	}
}

// Store is a content-addressed cache backed by a blob bucket.
type Store struct {
	bucket *blob.Bucket
	opts   Options
	owned  bool
}

// Open opens the bucket at bucketURL and returns a Store that closes it.
func Open(ctx context.Context, bucketURL string, options ...Option) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("casstore: open bucket: %w", err)
	}
	s := New(bucket, options...)
	s.owned = true
	return s, nil
}

// New wraps an existing bucket. The caller keeps ownership of bucket.
func New(bucket *blob.Bucket, options ...Option) *Store {
	opts := Options{Prefix: "cas/"}
	for _, opt := range options {
		opt(&opts)
	}
	return &Store{bucket: bucket, opts: opts}
}

// Close releases the bucket if the Store opened it.
func (s *Store) Close() error {
	if s.owned {
		return s.bucket.Close()
	}
	return nil
}

// Key returns the object key for digest.
func (s *Store) Key(digest string) string {
	digest = Normalize(digest)
	if len(digest) < 2 {
		return s.opts.Prefix + digest
	}
	return s.opts.Prefix + digest[:2] + "/" + digest
}

// Has reports whether an object exists for digest.
func (s *Store) Has(ctx context.Context, digest string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, s.Key(digest))
	if err != nil {
		return false, fmt.Errorf("casstore: exists: %w", err)
	}
	return ok, nil
}

// CopyTo streams the object for digest into w and returns the byte count.
// The content is hashed on the way and a mismatch is reported as
// *DigestMismatchError.
func (s *Store) CopyTo(ctx context.Context, digest string, w io.Writer) (int64, error) {
	digest = Normalize(digest)
	h, err := NewHash(digest)
	if err != nil {
		return 0, err
	}

	r, err := s.bucket.NewReader(ctx, s.Key(digest), nil)
	if err != nil {
		if isNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("casstore: open %s: %w", digest, err)
	}
	defer r.Close()

	n, err := io.Copy(io.MultiWriter(w, h), r)
	if err != nil {
		return n, fmt.Errorf("casstore: read %s: %w", digest, err)
	}
	if got := Sum(h); got != digest {
		return n, &DigestMismatchError{Want: digest, Got: got}
	}
	return n, nil
}

// Put writes content from r under digest. The write is discarded when the
// content does not hash to digest. Existing objects are left untouched.
func (s *Store) Put(ctx context.Context, digest string, r io.Reader) error {
	digest = Normalize(digest)
	h, err := NewHash(digest)
	if err != nil {
		return err
	}

	ok, err := s.Has(ctx, digest)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// Cancelling the writer's context aborts the upload on Close.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(wctx, s.Key(digest), &blob.WriterOptions{
		ContentType: "application/octet-stream",
		Metadata:    map[string]string{"digest": digest},
	})
	if err != nil {
		return fmt.Errorf("casstore: create writer: %w", err)
	}

	if _, err := io.Copy(io.MultiWriter(w, h), r); err != nil {
		cancel()
		w.Close()
		return fmt.Errorf("casstore: write %s: %w", digest, err)
	}
	if got := Sum(h); got != digest {
		cancel()
		w.Close()
		return &DigestMismatchError{Want: digest, Got: got}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("casstore: close writer: %w", err)
	}
	return nil
}

// PutFile stores the file at path under digest.
func (s *Store) PutFile(ctx context.Context, digest, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Put(ctx, digest, f)
}

// Verify re-reads the object for digest and reports whether its content
// still matches. A missing object returns ErrNotFound.
func (s *Store) Verify(ctx context.Context, digest string) (bool, error) {
	_, err := s.CopyTo(ctx, digest, io.Discard)
	var mismatch *DigestMismatchError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &mismatch):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes the object for digest. Deleting a missing object is not an
// error.
func (s *Store) Delete(ctx context.Context, digest string) error {
	if err := s.bucket.Delete(ctx, s.Key(digest)); err != nil && !isNotExist(err) {
		return fmt.Errorf("casstore: delete %s: %w", digest, err)
	}
	return nil
}

// isNotExist checks if an error indicates the object doesn't exist.
func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
