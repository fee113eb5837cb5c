package downloader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAborted is returned by Batch.Run after Abort.
var ErrAborted = errors.New("downloader: batch aborted")

// ErrBatchRunning is returned by Batch.Run while another Run is in progress.
var ErrBatchRunning = errors.New("downloader: batch already running")

// NetworkError is returned when every candidate URL and retry for one file
// has been exhausted.
type NetworkError struct {
	Dest string
	URL  string // last URL tried
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Dest, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IntegrityError is returned when the final attempt for a file produced
// content that does not match the expected hash. The corrupt file has been
// deleted by the time this error is returned.
type IntegrityError struct {
	Dest string
	URL  string
	Want string
	Got  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("verify %s from %s: want %s, got %s", e.Dest, e.URL, e.Want, e.Got)
}

// BatchError lists every task that failed in a batch run.
//
// Use errors.As to extract *NetworkError or *IntegrityError from it.
type BatchError struct {
	Errs []error
}

func (e *BatchError) Error() string {
	if len(e.Errs) == 1 {
		return "batch: " + e.Errs[0].Error()
	}
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("batch: %d tasks failed: %s", len(e.Errs), strings.Join(msgs, "; "))
}

func (e *BatchError) Unwrap() []error { return e.Errs }
