package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RowanDark/subcipher/internal/observability/tracing"
)

type collector interface {
	write(sb *strings.Builder)
}

type counterVec struct {
	name   string
	help   string
	labels []string

	mu     sync.RWMutex
	values map[string]float64
}

type gaugeVec struct {
	name   string
	help   string
	labels []string

	mu     sync.RWMutex
	values map[string]float64
}

type histogramVec struct {
	name    string
	help    string
	labels  []string
	buckets []float64

	mu     sync.RWMutex
	values map[string]*histogramValue
}

type histogramValue struct {
	counts   []uint64
	sum      float64
	total    uint64
	exemplar *metricExemplar
}

type metricExemplar struct {
	traceID string
	value   float64
}

var (
	collectors []collector

	cipherOps      = newCounterVec("subcipher_operations_total", "Number of cipher transforms executed.", []string{"operation", "mode"})
	cipherBytes    = newCounterVec("subcipher_transformed_bytes_total", "Bytes passed through the substitution tables.", []string{"mode"})
	cipherLatency  = newHistogramVec("subcipher_transform_duration_seconds", "Latency of a single cipher transform.", []string{"mode"})
	cacheLookups   = newCounterVec("subcipher_cache_lookups_total", "Cipher table cache lookups by result.", []string{"result"})
	cachedCiphers  = newGaugeVec("subcipher_cached_ciphers", "Number of seeds with cached tables.", nil)
	apiRequests    = newCounterVec("subcipher_api_requests_total", "HTTP API requests by route and status code.", []string{"route", "code"})
	apiLatency     = newHistogramVec("subcipher_api_request_duration_seconds", "Latency of HTTP API handlers.", []string{"route"})
	historyRecords = newCounterVec("subcipher_history_records_total", "History rows written by outcome.", []string{"outcome"})
)

func init() {
	collectors = []collector{cipherOps, cipherBytes, cipherLatency, cacheLookups, cachedCiphers, apiRequests, apiLatency, historyRecords}
}

func newCounterVec(name, help string, labels []string) *counterVec {
	return &counterVec{name: name, help: help, labels: labels, values: make(map[string]float64)}
}

func newGaugeVec(name, help string, labels []string) *gaugeVec {
	return &gaugeVec{name: name, help: help, labels: labels, values: make(map[string]float64)}
}

func newHistogramVec(name, help string, labels []string) *histogramVec {
	buckets := []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}
	return &histogramVec{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: buckets,
		values:  make(map[string]*histogramValue),
	}
}

func labelKey(labels, values []string) string {
	if len(values) != len(labels) {
		panic(fmt.Sprintf("expected %d labels, got %d", len(labels), len(values)))
	}
	return strings.Join(values, "\x1f")
}

func (cv *counterVec) add(delta float64, values ...string) {
	key := labelKey(cv.labels, values)
	cv.mu.Lock()
	cv.values[key] += delta
	cv.mu.Unlock()
}

func (cv *counterVec) value(values ...string) float64 {
	key := labelKey(cv.labels, values)
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	return cv.values[key]
}

func (cv *counterVec) write(sb *strings.Builder) {
	writeHeader(sb, cv.name, cv.help, "counter")
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	for _, key := range sortedKeys(cv.values) {
		sb.WriteString(cv.name)
		writeLabels(sb, cv.labels, key, "")
		fmt.Fprintf(sb, " %g\n", cv.values[key])
	}
}

func (gv *gaugeVec) set(v float64, values ...string) {
	key := labelKey(gv.labels, values)
	gv.mu.Lock()
	gv.values[key] = v
	gv.mu.Unlock()
}

func (gv *gaugeVec) write(sb *strings.Builder) {
	writeHeader(sb, gv.name, gv.help, "gauge")
	gv.mu.RLock()
	defer gv.mu.RUnlock()
	for _, key := range sortedKeys(gv.values) {
		sb.WriteString(gv.name)
		writeLabels(sb, gv.labels, key, "")
		fmt.Fprintf(sb, " %g\n", gv.values[key])
	}
}

func (hv *histogramVec) observe(ctx context.Context, sample float64, values ...string) {
	key := labelKey(hv.labels, values)
	ex := exemplarFromContext(ctx, sample)
	hv.mu.Lock()
	defer hv.mu.Unlock()
	entry, ok := hv.values[key]
	if !ok {
		entry = &histogramValue{counts: make([]uint64, len(hv.buckets)+1)}
		hv.values[key] = entry
	}
	entry.sum += sample
	entry.total++
	idx := sort.SearchFloat64s(hv.buckets, sample)
	entry.counts[idx]++
	if ex != nil {
		entry.exemplar = ex
	}
}

func (hv *histogramVec) write(sb *strings.Builder) {
	writeHeader(sb, hv.name, hv.help, "histogram")
	hv.mu.RLock()
	defer hv.mu.RUnlock()
	for _, key := range sortedKeys(hv.values) {
		entry := hv.values[key]
		cumulative := uint64(0)
		for i, upper := range hv.buckets {
			cumulative += entry.counts[i]
			sb.WriteString(hv.name)
			sb.WriteString("_bucket")
			writeLabels(sb, hv.labels, key, fmt.Sprintf("le=%q", strconv.FormatFloat(upper, 'g', -1, 64)))
			fmt.Fprintf(sb, " %d\n", cumulative)
		}
		cumulative += entry.counts[len(hv.buckets)]
		sb.WriteString(hv.name)
		sb.WriteString("_bucket")
		writeLabels(sb, hv.labels, key, `le="+Inf"`)
		fmt.Fprintf(sb, " %d\n", cumulative)

		sb.WriteString(hv.name)
		sb.WriteString("_sum")
		writeLabels(sb, hv.labels, key, "")
		fmt.Fprintf(sb, " %g", entry.sum)
		if entry.exemplar != nil {
			fmt.Fprintf(sb, " # {trace_id=\"%s\"} %g", escapeLabel(entry.exemplar.traceID), entry.exemplar.value)
		}
		sb.WriteString("\n")

		sb.WriteString(hv.name)
		sb.WriteString("_count")
		writeLabels(sb, hv.labels, key, "")
		fmt.Fprintf(sb, " %d\n", entry.total)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeLabels(sb *strings.Builder, labels []string, key, extra string) {
	if len(labels) == 0 && extra == "" {
		return
	}
	pairs := make([]string, 0, len(labels)+1)
	if len(labels) > 0 {
		parts := strings.Split(key, "\x1f")
		for i, label := range labels {
			pairs = append(pairs, label+"=\""+escapeLabel(parts[i])+"\"")
		}
	}
	if extra != "" {
		pairs = append(pairs, extra)
	}
	sb.WriteString("{")
	sb.WriteString(strings.Join(pairs, ","))
	sb.WriteString("}")
}

func writeHeader(sb *strings.Builder, name, help, metricType string) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, metricType)
}

func exemplarFromContext(ctx context.Context, sample float64) *metricExemplar {
	if ctx == nil {
		return nil
	}
	traceID := tracing.TraceIDFromContext(ctx)
	if traceID == "" {
		return nil
	}
	return &metricExemplar{traceID: traceID, value: sample}
}

func escapeLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\n", "\\n")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}

// Handler exposes the metrics registry in the Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var sb strings.Builder
		for _, c := range collectors {
			c.write(&sb)
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(sb.String()))
	})
}

// ObserveTransform records one cipher transform for the named operation.
func ObserveTransform(ctx context.Context, operation, mode string, inputBytes int, dur time.Duration) {
	operation = fallback(operation, "unknown")
	mode = fallback(mode, "unknown")
	cipherOps.add(1, operation, mode)
	if inputBytes > 0 {
		cipherBytes.add(float64(inputBytes), mode)
	}
	cipherLatency.observe(ctx, dur.Seconds(), mode)
}

// RecordCacheLookup counts a table cache hit or miss and updates the size gauge.
func RecordCacheLookup(hit bool, size int) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.add(1, result)
	cachedCiphers.set(float64(size))
}

// ObserveAPIRequest records an HTTP API request served on route.
func ObserveAPIRequest(ctx context.Context, route string, code int, dur time.Duration) {
	route = fallback(route, "unmatched")
	apiRequests.add(1, route, strconv.Itoa(code))
	apiLatency.observe(ctx, dur.Seconds(), route)
}

// RecordHistory counts a history write. A nil err is recorded as "ok".
func RecordHistory(err error) {
	if err != nil {
		historyRecords.add(1, "error")
		return
	}
	historyRecords.add(1, "ok")
}

// OperationCount returns how many transforms ran for operation and mode.
func OperationCount(operation, mode string) float64 {
	return cipherOps.value(operation, mode)
}

func fallback(value, def string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	return value
}
