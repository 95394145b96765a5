package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RowanDark/subcipher/internal/cipher"
	"github.com/RowanDark/subcipher/internal/history"
)

// isolate keeps the user's config files and SUBCIPHER_ variables out of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	for _, key := range []string{"SUBCIPHER_SEED", "SUBCIPHER_RECIPES_DIR", "SUBCIPHER_HISTORY", "SUBCIPHER_AUDIT_LOG", "SUBCIPHER_TRACE_FILE", "SUBCIPHER_TRACE_SAMPLE_RATIO"} {
		t.Setenv(key, "")
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestEncodeStdinReservedSeed(t *testing.T) {
	isolate(t)
	out, stderr, code := runCLI(t, "hello, 42\n\n", "-s", "3", "-")
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr)
	}
	if out != "YLWWM, 42\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDecodeReservedSeedKeepsCase(t *testing.T) {
	isolate(t)
	out, _, code := runCLI(t, "KBADY", "--seed=4", "--decode", "-")
	if code != 0 || out != "QUICK\n" {
		t.Fatalf("unexpected decode result %d %q", code, out)
	}
}

func TestFileRoundTripWithOutfile(t *testing.T) {
	dir := isolate(t)
	in := filepath.Join(dir, "plain.txt")
	enc := filepath.Join(dir, "cipher.txt")
	dec := filepath.Join(dir, "back.txt")
	if err := os.WriteFile(in, []byte("Attack at dawn!\t \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, stderr, code := runCLI(t, "", "-s", "1234", "-o", enc, in); code != 0 {
		t.Fatalf("encode failed: %s", stderr)
	}
	if _, stderr, code := runCLI(t, "", "-s", "1234", "-d", "-o", dec, enc); code != 0 {
		t.Fatalf("decode failed: %s", stderr)
	}
	data, err := os.ReadFile(dec)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Attack at dawn!\n" {
		t.Fatalf("round trip produced %q", data)
	}
}

func TestSeedDefaultsFromConfig(t *testing.T) {
	isolate(t)
	t.Setenv("SUBCIPHER_SEED", "4")
	out, _, code := runCLI(t, "quick", "-")
	if code != 0 || out != "KBADY\n" {
		t.Fatalf("expected seed 4 from environment, got %d %q", code, out)
	}

	t.Setenv("SUBCIPHER_SEED", "")
	out, _, _ = runCLI(t, "ab", "-")
	if out != "HS\n" {
		t.Fatalf("expected built-in seed 3, got %q", out)
	}
}

func TestRunRecipe(t *testing.T) {
	dir := isolate(t)
	recipesDir := filepath.Join(dir, "recipes")
	t.Setenv("SUBCIPHER_RECIPES_DIR", recipesDir)

	rm := cipher.NewRecipeManager(recipesDir)
	err := rm.SaveRecipe(&cipher.Recipe{
		Name: "hexsub",
		Pipeline: cipher.Pipeline{
			Operations: []cipher.OperationConfig{
				{Name: "substitute_encode", Parameters: map[string]any{"seed": 3}},
				{Name: "hex_encode"},
			},
			Reversible: true,
		},
	})
	if err != nil {
		t.Fatalf("SaveRecipe: %v", err)
	}

	out, stderr, code := runCLI(t, "ab\n", "-r", "hexsub", "-")
	if code != 0 || out != "4853\n" {
		t.Fatalf("recipe encode: %d %q %s", code, out, stderr)
	}
	out, _, code = runCLI(t, "4853", "-r", "hexsub", "-d", "-")
	if code != 0 || out != "AB\n" {
		t.Fatalf("recipe decode: %d %q", code, out)
	}

	if _, stderr, code := runCLI(t, "x", "-r", "missing", "-"); code != 1 || !strings.Contains(stderr, "error:") {
		t.Fatalf("expected runtime failure for missing recipe, got %d %q", code, stderr)
	}
}

func TestHistoryAndAuditRecorded(t *testing.T) {
	dir := isolate(t)
	dbPath := filepath.Join(dir, "state", "history.db")
	auditPath := filepath.Join(dir, "audit.jsonl")
	t.Setenv("SUBCIPHER_HISTORY", dbPath)
	t.Setenv("SUBCIPHER_AUDIT_LOG", auditPath)

	if _, stderr, code := runCLI(t, "classified", "-s", "77", "-"); code != 0 {
		t.Fatalf("run failed: %s", stderr)
	}

	store, err := history.Open(dbPath)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer store.Close()
	entries, err := store.List(context.Background(), 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one entry, got %d (%v)", len(entries), err)
	}
	if e := entries[0]; e.Seed != 77 || e.Source != history.SourceCLI || e.InputBytes != len("classified") {
		t.Fatalf("unexpected entry %+v", e)
	}

	audit, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if !strings.Contains(string(audit), `"event_type":"cipher_run"`) || strings.Contains(string(audit), "classified") {
		t.Fatalf("unexpected audit log %s", audit)
	}
}

func TestExitCodes(t *testing.T) {
	dir := isolate(t)
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no file", nil, 2},
		{"two files", []string{"a", "b"}, 2},
		{"unknown flag", []string{"--bogus", "-"}, 2},
		{"bad seed", []string{"-s", "abc", "-"}, 2},
		{"seed with recipe", []string{"-s", "3", "-r", "x", "-"}, 2},
		{"missing file", []string{filepath.Join(dir, "nope.txt")}, 2},
		{"missing config", []string{"--config", filepath.Join(dir, "nope.yml"), "-"}, 1},
		{"help", []string{"--help"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, stderr, code := runCLI(t, "", tt.args...); code != tt.code {
				t.Fatalf("expected exit %d, got %d: %s", tt.code, code, stderr)
			}
		})
	}
}

func TestMissingFileIsUsageError(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nope.txt")
	_, stderr, code := runCLI(t, "", path)
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr, "can't open") || !strings.Contains(stderr, "nope.txt") {
		t.Fatalf("unexpected stderr %q", stderr)
	}
}

func TestEncodeKeepsInvalidUTF8(t *testing.T) {
	isolate(t)
	out, stderr, code := runCLI(t, "ab\xffcd\n", "-s", "7", "-")
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr)
	}
	if out != "wu\xffqi\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestVersionFlag(t *testing.T) {
	out, _, code := runCLI(t, "", "--version")
	if code != 0 || strings.TrimSpace(out) != version {
		t.Fatalf("unexpected version output %d %q", code, out)
	}
}
