package subst

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// DefaultSeed is used when a caller does not pick a seed.
const DefaultSeed int64 = 3

// Mode selects the direction of a cipher run.
type Mode string

const (
	ModeEncode Mode = "encode"
	ModeDecode Mode = "decode"
)

// ParseMode accepts "encode" or "decode" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeEncode:
		return ModeEncode, nil
	case ModeDecode:
		return ModeDecode, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want encode or decode)", s)
	}
}

// ModeFor maps a decode flag to a Mode.
func ModeFor(decode bool) Mode {
	if decode {
		return ModeDecode
	}
	return ModeEncode
}

// Cipher pairs a seed with its encode and decode tables.
type Cipher struct {
	seed        int64
	reserved    bool
	perm        Permutation
	encode      Table
	decode      Table
	fingerprint string
}

// New builds the cipher for seed.
func New(seed int64) *Cipher {
	perm, reserved := PermutationFor(seed)
	enc, dec := Build(perm)
	return &Cipher{
		seed:        seed,
		reserved:    reserved,
		perm:        perm,
		encode:      enc,
		decode:      dec,
		fingerprint: fingerprint(perm),
	}
}

// Tables returns the encode and decode tables for seed.
func Tables(seed int64) (encode, decode Table) {
	c := New(seed)
	return c.encode, c.decode
}

// Seed returns the seed the cipher was built from.
func (c *Cipher) Seed() int64 { return c.seed }

// Reserved reports whether the cipher came from a fixed table.
func (c *Cipher) Reserved() bool { return c.reserved }

// Permutation returns the letter permutation behind the encode table.
func (c *Cipher) Permutation() Permutation { return c.perm }

// EncodeTable returns the encode table.
func (c *Cipher) EncodeTable() *Table { return &c.encode }

// DecodeTable returns the decode table.
func (c *Cipher) DecodeTable() *Table { return &c.decode }

// Fingerprint is a short BLAKE3 digest of the letter mapping. It identifies a
// key without exposing it.
func (c *Cipher) Fingerprint() string { return c.fingerprint }

// ForcesUppercase reports whether output of mode is uppercased after the
// table is applied.
func (c *Cipher) ForcesUppercase(mode Mode) bool {
	return c.reserved && mode == ModeEncode
}

// Table returns the table used by mode.
func (c *Cipher) Table(mode Mode) *Table {
	if mode == ModeDecode {
		return &c.decode
	}
	return &c.encode
}

// Run transforms text in the given direction.
func (c *Cipher) Run(mode Mode, text string) string {
	return Apply(text, c.Table(mode), c.ForcesUppercase(mode))
}

// Encode is Run(ModeEncode, text).
func (c *Cipher) Encode(text string) string { return c.Run(ModeEncode, text) }

// Decode is Run(ModeDecode, text).
func (c *Cipher) Decode(text string) string { return c.Run(ModeDecode, text) }

func fingerprint(p Permutation) string {
	sum := blake3.Sum256(p[:])
	return hex.EncodeToString(sum[:8])
}
