package cipher

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/RowanDark/subcipher/internal/subst"
)

func TestBase64Operations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple text", "Hello, World!", "SGVsbG8sIFdvcmxkIQ=="},
		{"empty string", "", ""},
		{"unicode", "Hello 世界", "SGVsbG8g5LiW55WM"},
	}

	ctx := context.Background()
	encoder, _ := GetOperation("base64_encode")
	decoder, _ := GetOperation("base64_decode")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := encoder.Execute(ctx, []byte(tt.input), nil)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			if string(encoded) != tt.expected {
				t.Errorf("encode: expected %q, got %q", tt.expected, string(encoded))
			}

			decoded, err := decoder.Execute(ctx, append(encoded, '\n'), nil)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if string(decoded) != tt.input {
				t.Errorf("decode: expected %q, got %q", tt.input, string(decoded))
			}
		})
	}

	if _, err := decoder.Execute(ctx, []byte("not base64!"), nil); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestHexDecodeWithPrefixes(t *testing.T) {
	decoder, _ := GetOperation("hex_decode")
	for _, input := range []string{"68656c6c6f", "0x68656c6c6f", "68:65:6c:6c:6f", "68 65 6c 6c 6f\n"} {
		out, err := decoder.Execute(context.Background(), []byte(input), nil)
		if err != nil {
			t.Fatalf("decode %q: %v", input, err)
		}
		if string(out) != "hello" {
			t.Fatalf("decode %q: got %q", input, out)
		}
	}
	if _, err := decoder.Execute(context.Background(), []byte("zz"), nil); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestSubstituteOperations(t *testing.T) {
	ctx := context.Background()
	encoder, _ := GetOperation("substitute_encode")
	decoder, _ := GetOperation("substitute_decode")

	tests := []struct {
		name   string
		params map[string]any
		input  string
		want   string
	}{
		{"default seed uppercases", nil, "hello, 42", "YLWWM, 42"},
		{"reserved seed 4", map[string]any{"seed": 4}, "quick", "KBADY"},
		{"seed as float", map[string]any{"seed": float64(3)}, "a", "H"},
		{"seed as string", map[string]any{"seed": "4"}, "I", "A"},
		{"seed as json number", map[string]any{"seed": json.Number("4")}, "c", "D"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := encoder.Execute(ctx, []byte(tt.input), tt.params)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if string(out) != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, out)
			}
		})
	}

	plain := "The quick brown fox, 1999!\tok"
	params := map[string]any{"seed": int64(12345)}
	encoded, err := encoder.Execute(ctx, []byte(plain), params)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if want := subst.New(12345).Encode(plain); string(encoded) != want {
		t.Fatalf("operation disagrees with cipher: %q vs %q", encoded, want)
	}
	decoded, err := decoder.Execute(ctx, encoded, params)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != plain {
		t.Fatalf("round trip: expected %q, got %q", plain, decoded)
	}
}

func TestSubstituteInvalidSeed(t *testing.T) {
	encoder, _ := GetOperation("substitute_encode")
	for _, seed := range []any{1.5, "abc", true, []int{1}} {
		if _, err := encoder.Execute(context.Background(), []byte("x"), map[string]any{"seed": seed}); err == nil {
			t.Fatalf("expected error for seed %v", seed)
		}
	}
}

func TestSubstituteJSONPath(t *testing.T) {
	ctx := context.Background()
	encoder, _ := GetOperation("substitute_encode")
	decoder, _ := GetOperation("substitute_decode")
	doc := []byte(`{"id":7,"msg":{"body":"meet at noon"},"tag":"keep"}`)
	params := map[string]any{"seed": 99, "json_path": "msg.body"}

	out, err := encoder.Execute(ctx, doc, params)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := gjson.GetBytes(out, "msg.body").String(); got != subst.New(99).Encode("meet at noon") {
		t.Fatalf("unexpected field value %q", got)
	}
	if gjson.GetBytes(out, "tag").String() != "keep" || gjson.GetBytes(out, "id").Int() != 7 {
		t.Fatalf("other fields changed: %s", out)
	}

	back, err := decoder.Execute(ctx, out, params)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gjson.GetBytes(back, "msg.body").String() != "meet at noon" {
		t.Fatalf("round trip failed: %s", back)
	}

	errorCases := []struct {
		name string
		doc  string
		path any
	}{
		{"invalid json", `{"msg":`, "msg"},
		{"missing field", `{"msg":"x"}`, "other"},
		{"non string field", `{"msg":1}`, "msg"},
		{"path not a string", `{"msg":"x"}`, 5},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := encoder.Execute(ctx, []byte(tc.doc), map[string]any{"json_path": tc.path})
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSeedParamDefault(t *testing.T) {
	seed, err := SeedParam(nil)
	if err != nil || seed != subst.DefaultSeed {
		t.Fatalf("expected default seed, got %d (%v)", seed, err)
	}
	seed, err = SeedParam(map[string]any{"seed": " -8 "})
	if err != nil || seed != -8 {
		t.Fatalf("expected -8, got %d (%v)", seed, err)
	}
}

func TestCipherForUsesCache(t *testing.T) {
	hitsBefore, _ := CacheStats()
	first := CipherFor(424242)
	second := CipherFor(424242)
	if first != second {
		t.Fatal("expected the cached cipher to be reused")
	}
	hitsAfter, _ := CacheStats()
	if hitsAfter <= hitsBefore {
		t.Fatal("expected a cache hit")
	}
	if !strings.EqualFold(first.Fingerprint(), subst.New(424242).Fingerprint()) {
		t.Fatal("fingerprint mismatch")
	}
}

func TestSeedParamPrecision(t *testing.T) {
	const big int64 = 9007199254740993
	tests := []struct {
		name    string
		raw     any
		want    int64
		wantErr bool
	}{
		{"json number beyond 2^53", json.Number("9007199254740993"), big, false},
		{"int64 beyond 2^53", big, big, false},
		{"string beyond 2^53", "9007199254740993", big, false},
		{"float at 2^53", float64(1 << 53), 1 << 53, false},
		{"negative float at -2^53", -float64(1 << 53), -(1 << 53), false},
		{"float beyond 2^53", float64(1<<53) * 2, 0, true},
		{"huge float", 1e300, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SeedParam(map[string]any{"seed": tt.raw})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got seed %d", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("expected %d, got %d (%v)", tt.want, got, err)
			}
		})
	}
}

func TestSubstituteCountsOneCacheLookup(t *testing.T) {
	ctx := context.Background()
	lookups := func() uint64 {
		hits, misses := CacheStats()
		return hits + misses
	}

	before := lookups()
	c := CipherFor(515151)
	out, err := Substitute(ctx, c, subst.ModeEncode, []byte("lookup once"), "")
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if string(out) != subst.New(515151).Encode("lookup once") {
		t.Fatalf("unexpected output %q", out)
	}
	if got := lookups() - before; got != 1 {
		t.Fatalf("expected 1 cache lookup, got %d", got)
	}

	before = lookups()
	encoder, _ := GetOperation("substitute_encode")
	if _, err := encoder.Execute(ctx, []byte("x"), map[string]any{"seed": 515151}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := lookups() - before; got != 1 {
		t.Fatalf("expected 1 cache lookup per Execute, got %d", got)
	}
}
