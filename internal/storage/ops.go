package storage

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/cesargomez89/recshelf/internal/constants"
)

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

// IsNotExist reports whether err, or anything it wraps, is a not-exist error.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Fingerprint derives the content identity of the file at path. Only the
// first constants.FingerprintWindow bytes are read; declaredSize is mixed in
// so files sharing a prefix but differing in length stay distinct.
func Fingerprint(path string, declaredSize int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for fingerprint: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	fp, err := FingerprintReader(f, declaredSize)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return fp, nil
}

// FingerprintReader hashes up to constants.FingerprintWindow bytes of r
// followed by declaredSize encoded as a little-endian uint64.
func FingerprintReader(r io.Reader, declaredSize int64) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(r, constants.FingerprintWindow)); err != nil {
		return "", err
	}

	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(declaredSize))
	h.Write(size[:])

	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsFingerprint reports whether s looks like a rendered fingerprint.
func IsFingerprint(s string) bool {
	if len(s) != constants.FingerprintHexLength {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
