package cipher

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/RowanDark/subcipher/internal/observability/metrics"
	"github.com/RowanDark/subcipher/internal/observability/tracing"
	"github.com/RowanDark/subcipher/internal/subst"
)

// tables is shared by every substitution operation in the process.
var tables = subst.NewCache()

// CipherFor returns the cached cipher for seed, recording the lookup.
func CipherFor(seed int64) *subst.Cipher {
	c, hit := tables.Get(seed)
	metrics.RecordCacheLookup(hit, tables.Len())
	return c
}

// CacheStats reports hits and misses of the shared table cache.
func CacheStats() (hits, misses uint64) {
	return tables.Stats()
}

// SubstituteOp runs the seeded substitution in the direction given by its type.
type SubstituteOp struct {
	BaseOperation
}

func (op *SubstituteOp) mode() subst.Mode {
	return subst.ModeFor(op.Type() == OperationTypeDecode)
}

func (op *SubstituteOp) Execute(ctx context.Context, input []byte, params map[string]any) ([]byte, error) {
	seed, err := SeedParam(params)
	if err != nil {
		return nil, err
	}
	path, err := stringParam(params, "json_path")
	if err != nil {
		return nil, err
	}
	return Substitute(ctx, CipherFor(seed), op.mode(), input, path)
}

// Substitute runs c over input, or only over the string at jsonPath when it is
// set. Callers that already hold the cipher use it directly so the cache
// lookup is counted once.
func Substitute(ctx context.Context, c *subst.Cipher, mode subst.Mode, input []byte, jsonPath string) ([]byte, error) {
	name := "substitute_" + string(mode)
	ctx, span := tracing.StartSpan(ctx, "cipher."+name, tracing.WithAttributes(map[string]any{
		"cipher.seed":     c.Seed(),
		"cipher.mode":     string(mode),
		"cipher.reserved": c.Reserved(),
	}))
	start := time.Now()

	var out []byte
	if jsonPath == "" {
		out = []byte(c.Run(mode, string(input)))
	} else {
		var err error
		out, err = transformJSONField(input, jsonPath, func(s string) string { return c.Run(mode, s) })
		if err != nil {
			span.RecordError(err)
			span.End()
			return nil, err
		}
		span.SetAttribute("cipher.json_path", jsonPath)
	}

	metrics.ObserveTransform(ctx, name, string(mode), len(input), time.Since(start))
	span.EndWithStatus(tracing.StatusOK, "")
	return out, nil
}

// transformJSONField rewrites the string at path inside doc and leaves the
// rest of the document untouched.
func transformJSONField(doc []byte, path string, fn func(string) string) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("json_path %q: input is not valid JSON", path)
	}
	field := gjson.GetBytes(doc, path)
	if !field.Exists() {
		return nil, fmt.Errorf("json_path %q: no such field", path)
	}
	if field.Type != gjson.String {
		return nil, fmt.Errorf("json_path %q: field is %s, not a string", path, field.Type)
	}
	out, err := sjson.SetBytes(doc, path, fn(field.Str))
	if err != nil {
		return nil, fmt.Errorf("json_path %q: %w", path, err)
	}
	return out, nil
}

// maxExactFloat is the largest magnitude up to which every integer has an
// exact float64 representation.
const maxExactFloat = 1 << 53

// SeedParam reads the "seed" parameter. A missing seed selects
// subst.DefaultSeed. Float values must be whole and within ±2^53; larger
// seeds must arrive as json.Number, integers or strings.
func SeedParam(params map[string]any) (int64, error) {
	raw, ok := params["seed"]
	if !ok || raw == nil {
		return subst.DefaultSeed, nil
	}
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("seed must be an integer, got %v", v)
		}
		if math.Abs(v) > maxExactFloat {
			return 0, fmt.Errorf("seed %v is beyond float precision; pass it as an integer or string", v)
		}
		return int64(v), nil
	case json.Number:
		seed, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("seed must be an integer: %w", err)
		}
		return seed, nil
	case string:
		seed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("seed must be an integer: %w", err)
		}
		return seed, nil
	default:
		return 0, fmt.Errorf("seed must be an integer, got %T", raw)
	}
}

func stringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, raw)
	}
	return strings.TrimSpace(s), nil
}
