// Package subst implements a deterministic, reversible monoalphabetic
// substitution cipher keyed by an integer seed.
//
// # Overview
//
// A seed selects a permutation of the 26 uppercase letters. Seeds 3 and 4 are
// reserved and resolve to fixed tables shipped with the package; every other
// seed, including zero and negatives, drives a seeded Fisher–Yates shuffle.
// The permutation is expanded into total encode and decode tables over
// letters, digits, ASCII punctuation and whitespace:
//
//	c := subst.New(7)
//	out := c.Encode("Hello, World!")
//	back := c.Decode(out) // "Hello, World!"
//
// Lowercase letters mirror their uppercase images, non-letters map to
// themselves, and anything outside the table domain (for example non-ASCII
// runes) passes through unchanged.
//
// # Reserved seeds
//
// Encoding with a reserved seed uppercases the whole output after the table
// is applied. Decoding such output recovers the letters but not the original
// case, so the round trip only holds for non-reserved seeds.
//
// # Generated permutations
//
// The shuffle is driven by a math/rand/v2 PCG source seeded with
// (uint64(seed), pcgStream). Index j for position i (25 down to 1) is
// Uint64() % (i+1). Only the reserved tables are meant to be stable across
// other implementations; generated tables are stable for this package.
//
// # Thread Safety
//
// A Cipher is read-only after construction and safe for concurrent use.
// Cache guards its map with a RWMutex.
package subst
