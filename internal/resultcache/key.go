package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"strings"

	"audit-backend/internal/shared/storage/object"
	"audit-backend/internal/shared/util"
)

// ComputeKey derives the content-addressed cache key for one audit: the
// SHA-256 of the audio hash concatenated with the sorted image hashes.
// Sorting makes the key independent of upload order; a single changed byte
// in any input produces a different key.
func ComputeKey(audioHash string, imageHashes []string) string {
	sorted := make([]string, len(imageHashes))
	copy(sorted, imageHashes)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(audioHash)
	for _, h := range sorted {
		b.WriteString("|")
		b.WriteString(h)
	}
	return util.HashString(b.String())
}

// HashStoredObject hashes an object already persisted in the store.
func HashStoredObject(ctx context.Context, store object.ObjectStore, key string) (string, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
