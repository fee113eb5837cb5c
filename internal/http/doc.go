// Package http provides the HTTP client shared by fetch tasks and metadata
// lookups.
//
// This package handles:
//   - Connection pooling for many parallel transfers
//   - Single-attempt streaming GETs for fetch tasks, which own their retries
//   - Retry with exponential backoff for small JSON metadata requests
//   - file:// URLs for artifacts embedded in unpacked installers
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	resp, err := client.Open(ctx, url)
//	defer resp.Body.Close()
//
//	var meta LoaderMeta
//	err = client.GetJSON(ctx, metaURL, &meta)
package http
