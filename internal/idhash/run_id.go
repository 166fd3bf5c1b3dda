package idhash

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"pv-fault-lab/internal/domain"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(from|to|sorted monitor_ids joined by ','|config_fingerprint|started_at_unix_ms)
// Returns the base58-encoded hash. Monitor order does not affect the result.
func ComputeRunID(
	r domain.DateRange,
	monitorIDs []string,
	configFingerprint string,
	startedAt time.Time,
) string {
	ids := append([]string(nil), monitorIDs...)
	sort.Strings(ids)

	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		r.From,
		r.To,
		strings.Join(ids, ","),
		configFingerprint,
		startedAt.UnixMilli(),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// DecodeRunID reports whether id is a well-formed run_id.
func DecodeRunID(id string) bool {
	raw, err := base58.Decode(id)
	return err == nil && len(raw) == sha256.Size
}
