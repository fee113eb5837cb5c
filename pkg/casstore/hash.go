package casstore

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// ErrUnsupportedHash is returned for a digest whose length matches no
// supported algorithm.
var ErrUnsupportedHash = errors.New("casstore: unsupported hash")

// NewHash returns a hash.Hash for the algorithm implied by the hex digest.
func NewHash(digest string) (hash.Hash, error) {
	switch len(digest) {
	case 2 * sha1.Size:
		return sha1.New(), nil
	case 2 * sha256.Size:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHash, digest)
	}
}

// Sum returns the lowercase hex digest of h.
func Sum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize lowercases and trims a digest.
func Normalize(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}

// HashFile hashes the file at path using the algorithm implied by digest and
// returns the hex result.
func HashFile(path, digest string) (string, error) {
	h, err := NewHash(digest)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return Sum(h), nil
}

// FileMatches reports whether the file at path has the given digest. A
// missing file is not an error.
func FileMatches(path, digest string) (bool, error) {
	got, err := HashFile(path, Normalize(digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return got == Normalize(digest), nil
}
