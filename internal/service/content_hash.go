package service

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// ComputeContentHash fingerprints a work item's description and requester for
// duplicate detection. The description is canonicalized before the requester
// is joined in: lowercase, trim, collapse runs of whitespace to a single
// space. Leading or trailing whitespace must never change the fingerprint.
func ComputeContentHash(description, requesterID string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(description)), " ")
	sum := blake3.Sum256([]byte(strings.ToLower(requesterID) + "|" + normalized))
	return hex.EncodeToString(sum[:])
}
