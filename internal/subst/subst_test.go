package subst

import (
	"strings"
	"sync"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

var sampleSeeds = []int64{-1 << 40, -42, -1, 0, 1, 2, 5, 7, 42, 1234567, 1 << 50}

func allSeeds() []int64 {
	return append(append([]int64{}, sampleSeeds...), ReservedSeeds()...)
}

func TestReservedFixtures(t *testing.T) {
	tests := []struct {
		seed int64
		want map[byte]byte
	}{
		{3, map[byte]byte{'A': 'H', 'B': 'S', 'C': 'R', 'M': 'I', 'X': 'X', 'Z': 'G'}},
		{4, map[byte]byte{'Q': 'K', 'U': 'B', 'I': 'A', 'C': 'D', 'K': 'Y', 'T': 'G'}},
	}
	for _, tt := range tests {
		p, ok := Reserved(tt.seed)
		if !ok {
			t.Fatalf("seed %d should be reserved", tt.seed)
		}
		for from, to := range tt.want {
			if got := p.Image(from); got != to {
				t.Errorf("seed %d: %c -> %c, want %c", tt.seed, from, got, to)
			}
		}
	}

	p3, _ := Reserved(3)
	if p3.String() != "HSRELTPYCAUWIDMZNJKVFBOXQG" {
		t.Errorf("seed 3 table changed: %s", p3)
	}
	p4, _ := Reserved(4)
	if p4.String() != "HJDMPECTAWYQORXIKFUGBNSZLV" {
		t.Errorf("seed 4 table changed: %s", p4)
	}
}

func TestReservedLookupAbsent(t *testing.T) {
	for _, seed := range sampleSeeds {
		if _, ok := Reserved(seed); ok {
			t.Errorf("seed %d should not be reserved", seed)
		}
	}
	if got := ReservedSeeds(); len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("unexpected reserved seeds %v", got)
	}
	if FixtureVersion() != "v1.0.0" {
		t.Fatalf("unexpected fixture version %q", FixtureVersion())
	}
}

func TestParseFixturesRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"invalid version", "version: one\nseeds: []\n"},
		{"future major", "version: v2.0.0\nseeds: []\n"},
		{"short table", "version: v1.0.0\nseeds:\n  - seed: 9\n    images: ABC\n"},
		{"duplicate seed", "version: v1.0.0\nseeds:\n  - seed: 9\n    images: ABCDEFGHIJKLMNOPQRSTUVWXYZ\n  - seed: 9\n    images: ABCDEFGHIJKLMNOPQRSTUVWXYZ\n"},
		{"override breaks bijection", "version: v1.0.0\nseeds:\n  - seed: 9\n    images: ABCDEFGHIJKLMNOPQRSTUVWXYZ\n    overrides:\n      - from: A\n        to: B\n"},
		{"multi letter override", "version: v1.0.0\nseeds:\n  - seed: 9\n    images: ABCDEFGHIJKLMNOPQRSTUVWXYZ\n    overrides:\n      - from: AB\n        to: C\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := parseFixtures([]byte(tt.doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGenerateIsDeterministicBijection(t *testing.T) {
	for _, seed := range sampleSeeds {
		a := Generate(seed)
		b := Generate(seed)
		if a != b {
			t.Fatalf("seed %d: generate not deterministic: %s vs %s", seed, a, b)
		}
		if err := a.Validate(); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
	}
	if Generate(1) == Generate(2) {
		t.Fatal("different seeds should not share a permutation")
	}
}

func TestPermutationInverse(t *testing.T) {
	p := Generate(99)
	q := p.Inverse()
	for i := 0; i < len(Alphabet); i++ {
		if got := q.Image(p.Image(Alphabet[i])); got != Alphabet[i] {
			t.Fatalf("inverse broke %c: got %c", Alphabet[i], got)
		}
	}
}

func TestParsePermutation(t *testing.T) {
	p, err := ParsePermutation("hsreltpycauwidmznjkvfboxqg")
	if err != nil {
		t.Fatalf("ParsePermutation: %v", err)
	}
	if want, _ := Reserved(3); p != want {
		t.Fatalf("expected seed 3 table, got %s", p)
	}
	if _, err := ParsePermutation("AACDEFGHIJKLMNOPQRSTUVWXYZ"); err == nil {
		t.Fatal("expected duplicate image error")
	}
	if _, err := ParsePermutation("ABC"); err == nil {
		t.Fatal("expected length error")
	}
}

func TestTableProperties(t *testing.T) {
	for _, seed := range allSeeds() {
		enc, dec := Tables(seed)

		var seen [26]bool
		for i := 0; i < len(Alphabet); i++ {
			u := rune(Alphabet[i])
			img := enc.Map(u)
			if img < 'A' || img > 'Z' || seen[img-'A'] {
				t.Fatalf("seed %d: encode images are not a permutation at %c", seed, u)
			}
			seen[img-'A'] = true

			l := u + ('a' - 'A')
			if got, want := enc.Map(l), img+('a'-'A'); got != want {
				t.Fatalf("seed %d: lowercase %c -> %c, want %c", seed, l, got, want)
			}
			if got := dec.Map(img); got != u {
				t.Fatalf("seed %d: decode(%c) = %c, want %c", seed, img, got, u)
			}
			if got := dec.Map(img + ('a' - 'A')); got != l {
				t.Fatalf("seed %d: decode lowercase mismatch for %c", seed, l)
			}
		}

		for _, set := range []string{Digits, Punctuation, Whitespace} {
			for _, c := range set {
				e, ok := enc.Lookup(c)
				if !ok || e != c {
					t.Fatalf("seed %d: encode(%q) = %q, %v", seed, c, e, ok)
				}
				d, ok := dec.Lookup(c)
				if !ok || d != c {
					t.Fatalf("seed %d: decode(%q) = %q, %v", seed, c, d, ok)
				}
			}
		}
	}
}

func TestLookupOutsideDomain(t *testing.T) {
	enc, _ := Tables(11)
	for _, r := range []rune{0, 0x7f, 'é', '世', -1} {
		got, ok := enc.Lookup(r)
		if ok {
			t.Errorf("%q should be outside the table domain", r)
		}
		if got != r {
			t.Errorf("%q should pass through, got %q", r, got)
		}
	}
}

func TestRoundTripGeneratedSeeds(t *testing.T) {
	texts := []string{
		"The quick brown fox jumps over the lazy dog.",
		"Hello, World! 123\n\tTabs & \"quotes\" {braces} ~tilde~",
		"",
		"naïve café 世界",
	}
	for _, seed := range sampleSeeds {
		c := New(seed)
		for _, text := range texts {
			if got := c.Decode(c.Encode(text)); got != text {
				t.Errorf("seed %d: round trip %q -> %q", seed, text, got)
			}
		}
	}
}

func TestReservedSeedsForceUppercaseOnEncode(t *testing.T) {
	c := New(4)
	if !c.Reserved() {
		t.Fatal("seed 4 should be reserved")
	}
	if got := c.Encode("quick"); got != "KBADY" {
		t.Fatalf("encode quick: got %q, want KBADY", got)
	}
	if got := c.Decode("KBADY"); got != "QUICK" {
		t.Fatalf("decode KBADY: got %q, want QUICK", got)
	}
	if got := c.Decode("kbady"); got != "quick" {
		t.Fatalf("decode kbady: got %q, want quick", got)
	}

	c3 := New(3)
	if got := c3.Encode("hello, 42"); got != "YLWWM, 42" {
		t.Fatalf("seed 3 encode: got %q", got)
	}
	if !c3.ForcesUppercase(ModeEncode) || c3.ForcesUppercase(ModeDecode) {
		t.Fatal("seed 3 should force uppercase on encode only")
	}
	if New(5).ForcesUppercase(ModeEncode) {
		t.Fatal("generated seeds never force uppercase")
	}
}

func TestApplyUnmappedPassthrough(t *testing.T) {
	enc, _ := Tables(8)
	in := "ü→\x00"
	if got := Apply(in, &enc, false); got != in {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestTransformKeepsInvalidUTF8Bytes(t *testing.T) {
	tests := []struct {
		name string
		seed int64
		in   string
		want string
	}{
		{"generated", 7, "ab\xffcd", "wu\xffqi"},
		{"reserved", 3, "a\xffb", "H\xffS"},
		{"truncated sequence", 7, "a\xc3", "w\xc3"},
		{"reserved non-ascii", 3, "\u00e9a", "\u00c9H"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.seed)
			got := c.Encode(tt.in)
			if got != tt.want {
				t.Fatalf("encode %q: got %q, want %q", tt.in, got, tt.want)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("encode %q changed byte length: %d", tt.in, len(got))
			}
		})
	}

	if got := New(7).Decode("wu\xffqi"); got != "ab\xffcd" {
		t.Fatalf("decode: got %q", got)
	}
}

func TestGenerateGolden(t *testing.T) {
	tests := []struct {
		seed int64
		want string
	}{
		{0, "CWJOIDBTZPUYAELRFSGHKVMQXN"},
		{1, "WDYKGAQCOJIHZMPFTSLVBUXNRE"},
		{-1, "CJUTERSWDVNLXKOBYAIPFQMGZH"},
		{7, "WUQILVRNFPZKSOAJHBMEXYTCGD"},
		{42, "HTIJVPMLKYFXZSECDBQNGOAWUR"},
		{1234, "NSZIDXLAPMFKGCUQEBOJWTHRVY"},
		{1 << 50, "EYTOJSRDVMFKWLZHAUCPBQGNXI"},
		{9007199254740992, "NIJMGZKEOCHQVPATBDYUFRSXWL"},
		{9007199254740993, "MKCTISHVUGAFPQZWJOBYRNDEXL"},
	}
	for _, tt := range tests {
		if got := Generate(tt.seed).String(); got != tt.want {
			t.Errorf("seed %d: got %s, want %s", tt.seed, got, tt.want)
		}
	}
	if got := New(9007199254740993).Encode("hello world"); got != "viffz dzoft" {
		t.Errorf("seed 9007199254740993 encode: got %q", got)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" Decode "); err != nil || m != ModeDecode {
		t.Fatalf("ParseMode decode: %v %v", m, err)
	}
	if _, err := ParseMode("sideways"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if ModeFor(true) != ModeDecode || ModeFor(false) != ModeEncode {
		t.Fatal("ModeFor mismatch")
	}
}

func TestFingerprint(t *testing.T) {
	if New(7).Fingerprint() != New(7).Fingerprint() {
		t.Fatal("fingerprint must be stable")
	}
	if New(7).Fingerprint() == New(8).Fingerprint() {
		t.Fatal("fingerprints of different tables should differ")
	}
	if len(New(7).Fingerprint()) != 16 {
		t.Fatalf("unexpected fingerprint length %d", len(New(7).Fingerprint()))
	}
}

func TestCacheConcurrentGet(t *testing.T) {
	cache := NewCache()
	var wg sync.WaitGroup
	results := make([]*Cipher, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cache.Get(21)
		}(i)
	}
	wg.Wait()

	for _, c := range results[1:] {
		if c.Permutation() != results[0].Permutation() {
			t.Fatal("cached ciphers disagree")
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one entry, got %d", cache.Len())
	}
	if _, hit := cache.Get(21); !hit {
		t.Fatal("expected cache hit")
	}
	hits, misses := cache.Stats()
	if hits+misses != 17 {
		t.Fatalf("expected 17 lookups, got %d", hits+misses)
	}
	cache.Purge()
	if cache.Len() != 0 {
		t.Fatal("purge should empty the cache")
	}
}

func TestExportFormats(t *testing.T) {
	c := New(3)

	data, err := c.Export(FormatYAML)
	if err != nil {
		t.Fatalf("yaml export: %v", err)
	}
	var fromYAML Dump
	if err := yaml.Unmarshal(data, &fromYAML); err != nil {
		t.Fatalf("yaml decode: %v", err)
	}
	if fromYAML.Encode["A"] != "H" || !fromYAML.Reserved || fromYAML.FixtureVersion != "v1.0.0" {
		t.Fatalf("unexpected yaml dump %+v", fromYAML)
	}

	data, err = c.Export(FormatCBOR)
	if err != nil {
		t.Fatalf("cbor export: %v", err)
	}
	var fromCBOR Dump
	if err := cbor.Unmarshal(data, &fromCBOR); err != nil {
		t.Fatalf("cbor decode: %v", err)
	}
	if fromCBOR.Decode["H"] != "A" || fromCBOR.Fingerprint != c.Fingerprint() {
		t.Fatalf("unexpected cbor dump %+v", fromCBOR)
	}

	data, err = c.Export(FormatJSON)
	if err != nil || !strings.Contains(string(data), `"forced_uppercase": true`) {
		t.Fatalf("json export: %v %s", err, data)
	}

	if _, err := c.Export("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
