package path

import (
	"encoding/hex"

	"github.com/minio/highwayhash"
)

// scratchKeySeed is a fixed 32-byte HighwayHash key. Digest is used only to
// derive stable local identifiers (scratch file names) from a
// resolved locator within one process, never as a security boundary, so a
// fixed key is fine.
var scratchKeySeed = make([]byte, 32)

// Digest returns a stable, filesystem-safe identifier for s, used to name
// sandboxed-rewrite scratch files, so that two stages resolving the same remote object within a run share one
// scratch file instead of writing a fresh temp file per reference.
func Digest(s string) string {
	h, err := highwayhash.New128(scratchKeySeed)
	if err != nil {
		// scratchKeySeed is a fixed, correctly-sized key; New128 can only
		// fail on key length, which can't happen here.
		panic("ankaflow: invalid highwayhash key: " + err.Error())
	}
	_, _ = h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil)[:8])
}
