package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Fingerprint derives the cache key component for a catalog build. It is a
// deterministic function of the build timestamp, object count, and the sorted
// per-database DDL checksums: any catalog rebuild or object change produces a
// different value.
func Fingerprint(info BuildInfo) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|", info.BuiltAt.UTC().UnixNano(), info.ObjectCount)

	dbs := make([]string, 0, len(info.DDLChecksums))
	for db := range info.DDLChecksums {
		dbs = append(dbs, db)
	}
	sort.Strings(dbs)
	for _, db := range dbs {
		fmt.Fprintf(h, "%s=%s|", db, info.DDLChecksums[db])
	}

	return hex.EncodeToString(h.Sum(nil))
}

// ChecksumObjects computes the per-database checksums for a set of records.
// The checksum covers each object's key and last-modified timestamp, in
// sorted key order, so it is independent of listing order.
func ChecksumObjects(records []ObjectRecord) map[string]string {
	byDB := make(map[string][]string)
	for _, r := range records {
		line := r.Key() + "@" + r.LastModified.UTC().Format(time.RFC3339Nano)
		byDB[r.QualifiedName.Database] = append(byDB[r.QualifiedName.Database], line)
	}

	sums := make(map[string]string, len(byDB))
	for db, lines := range byDB {
		sort.Strings(lines)
		sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
		sums[db] = hex.EncodeToString(sum[:])
	}
	return sums
}
