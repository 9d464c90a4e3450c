// Package cache implements the Tiered Cache (§4.3): an L1 in-process LRU
// fronting an L2 networked key-value store, with canonical key derivation
// and namespace/prefix invalidation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// valueShapeVersion is folded into every key so a later change to a
// namespace's stored value shape invalidates old entries implicitly.
const valueShapeVersion = 1

// Key derives the canonical cache key for (namespace, params): a hash of
// the namespace, the value-shape version, and the sorted parameter pairs
// (§4.3 Key derivation). The returned key has the wire format
// "<namespace>:<hex-hash>" (§6 Persisted state layouts).
func Key(namespace string, params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)

	h := sha256.New()
	fmt.Fprintf(h, "%s|v%d|%s", namespace, valueShapeVersion, strings.Join(pairs, "&"))

	return namespace + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

// VectorKey derives a cache key for an embedding query, quantizing each
// component to 6 significant digits before hashing so near-identical
// vectors across runs map to the same entry (§4.3 Key derivation).
func VectorKey(namespace string, embedding []float32, extra map[string]string) string {
	quantized := make([]string, len(embedding))
	for i, v := range embedding {
		quantized[i] = quantizeSignificant(float64(v), 6)
	}

	params := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		params[k] = v
	}
	params["embedding"] = strings.Join(quantized, ",")

	return Key(namespace, params)
}

// quantizeSignificant formats v to digits significant figures.
func quantizeSignificant(v float64, digits int) string {
	if v == 0 {
		return "0"
	}
	mag := math.Ceil(math.Log10(math.Abs(v)))
	factor := math.Pow(10, float64(digits)-mag)
	rounded := math.Round(v*factor) / factor
	return fmt.Sprintf("%g", rounded)
}
