package knowledge

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embed computes a deterministic, dependency-free embedding for text: a
// hashing-trick bag-of-words into VectorDim buckets, L2-normalized so
// cosine similarity reduces to a dot product. This intentionally is not
// a learned embedding — spec.md §11 scopes the knowledge store to small
// per-repository corpora, explicitly ruling out a real embedding-model
// or ANN/vector-DB dependency for this path.
func Embed(text string) []float32 {
	vec := make([]float32, VectorDim)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		bucket := h.Sum32() % VectorDim

		sign := fnv.New32a()
		_, _ = sign.Write([]byte(token + "#sign"))
		if sign.Sum32()%2 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}
	normalize(vec)
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] /= norm
	}
}

// CosineSimilarity assumes both vectors are already L2-normalized (true
// for every vector Embed produces), so it reduces to a plain dot product.
func CosineSimilarity(a, b []float32) float32 {
	var sum float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
