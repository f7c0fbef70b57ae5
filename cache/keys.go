package cache

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/mitchellh/hashstructure/v2"
)

// nilFingerprint is the stable placeholder hash for a nil theme or
// configuration input.
const nilFingerprint uint64 = 0xcbf29ce484222325

// GenerateKey derives a deterministic cache key from a theme-like object and
// a configuration-like object. Structurally equal inputs produce the same
// key within one process and across restarts; any observable field change
// produces a different key. Nil inputs are valid and hash to a stable
// placeholder.
//
// Each extra string is a discriminator: supplying one (even "") changes the
// key relative to the call without it, so multiple entries can be derived
// from the same theme/config pair.
func GenerateKey(theme, config any, extra ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%016x-%016x", fingerprint(theme), fingerprint(config))
	for _, e := range extra {
		fmt.Fprintf(&b, "-%016x", xxhash.Sum64String(e))
	}
	return b.String()
}

// fingerprint hashes an arbitrary value structurally. hashstructure's
// FormatV2 is stable across processes, which the persistent tier relies on
// to hit after a restart.
func fingerprint(v any) uint64 {
	if v == nil {
		return nilFingerprint
	}
	h, err := hashstructure.Hash(v, hashstructure.FormatV2, nil)
	if err != nil {
		// Unhashable values (chans, funcs) fall back to their printed
		// representation, which is still deterministic for a given value.
		return xxhash.Sum64String(fmt.Sprintf("%#v", v))
	}
	return h
}
