// Package cache is a two-tier stylesheet cache: a fast in-process memory
// tier in front of a durable file-per-key disk tier, keyed by a
// deterministic fingerprint of the inputs that produced a piece of CSS.
//
// # Tiers
//
// [Cache.Get] checks the memory tier first and hydrates from disk on a
// miss, so a restarted process serves previously generated stylesheets
// without recompiling them. [Cache.Set] writes the memory tier
// synchronously and mirrors to disk asynchronously through a single writer
// goroutine; a full queue drops the mirror write (logged) rather than
// blocking the caller. Operations on the same key are applied in order; a
// journal of unflushed mirror ops keeps reads coherent with the queue.
//
// # Keys
//
// [GenerateKey] fingerprints a theme-like and a configuration-like object
// with [github.com/mitchellh/hashstructure/v2], which is stable across
// processes — a requirement for the disk tier to hit after a restart.
// Optional extra strings act as discriminators so several entries can
// derive from one theme/config pair. Durable record filenames are the
// sha256 of the key, keeping arbitrary keys filesystem-safe.
//
// # Expiration
//
// Each entry carries an optional deadline; a zero TTL means the entry
// never expires on its own. Staleness is one pure function of
// (now, deadline) shared by the read path (lazy eviction) and by
// [Cache.Cleanup] (explicit sweep), so the two can never disagree. No
// background timer runs; an external scheduler calls Cleanup when it
// wants eager reclamation.
//
// # Errors
//
// Invalid input (empty or whitespace key or content) is a deliberate
// no-op or miss, never an error. Disk faults are logged through the
// narrow [Logger] interface and the memory tier stays authoritative for
// the rest of the process lifetime. Corrupt or unreadable records behave
// as absent and are deleted so the same failure is not hit twice. The
// only fatal condition is an uncreatable cache directory, reported once
// by [New].
package cache
