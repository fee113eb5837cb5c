// Package casstore is a content-addressed artifact cache in cloud storage.
//
// Objects are keyed by the hex digest of their content, so a library jar
// verified once can be restored into any installation without touching the
// network again. The package is storage-agnostic via gocloud.dev/blob.
//
// # Storage Layout
//
//	{bucket}/{prefix}{hash[0:2]}/{hash}
//
// # Integrity
//
// [Store.Put] hashes the content while writing and discards the object if the
// digest differs from the key. [Store.Verify] re-reads an object and checks it
// against its key. The digest algorithm follows the key length: 40 hex digits
// is SHA-1, 64 is SHA-256.
//
// # Usage
//
//	store, err := casstore.Open(ctx, "s3://artifacts?region=us-east-1")
//	defer store.Close()
//
//	if err := store.Put(ctx, sha1, file); err != nil { ... }
//	n, err := store.CopyTo(ctx, sha1, w)
package casstore
