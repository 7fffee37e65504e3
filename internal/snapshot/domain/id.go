package snapshot

import (
	"crypto/rand"
	"encoding/hex"
)

// NewSnapshotID generates a random snapshot identifier.
func NewSnapshotID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return "snap-" + hex.EncodeToString(buf[:])
}
