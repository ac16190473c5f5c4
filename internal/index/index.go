// Package index provides the per-turn in-memory similarity index. An Index
// is built fresh for each user turn from that turn's search results and
// discarded when the turn completes; it is never shared or reused.
package index

import (
	"math"
	"sort"
)

// Chunk is an embedded span of retrieved text.
type Chunk struct {
	SourceURL string
	Title     string
	Content   string
	Embedding []float32
}

// Scored is a Chunk with its similarity to the query.
type Scored struct {
	Chunk
	Score float32
}

// Index holds chunks for brute-force cosine similarity search.
type Index struct {
	chunks []Chunk
}

// New creates an empty Index.
func New() *Index { return &Index{} }

// Add inserts a chunk. Chunks without an embedding are ignored.
func (ix *Index) Add(c Chunk) {
	if len(c.Embedding) == 0 {
		return
	}
	ix.chunks = append(ix.chunks, c)
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Search returns the top-K chunks by cosine similarity to the query vector.
// Ordering is deterministic: equal scores keep insertion order. No score
// threshold is applied; the synthesizer's prompt handles low-relevance
// chunks.
func (ix *Index) Search(vector []float32, topK int) []Scored {
	if topK <= 0 {
		topK = 3
	}
	queryNorm := norm(vector)
	if queryNorm == 0 || len(ix.chunks) == 0 {
		return nil
	}

	scored := make([]Scored, 0, len(ix.chunks))
	for _, c := range ix.chunks {
		scored = append(scored, Scored{Chunk: c, Score: cosine(vector, c.Embedding, queryNorm)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

func cosine(query, candidate []float32, queryNorm float32) float32 {
	n := len(query)
	if len(candidate) < n {
		n = len(candidate)
	}
	var dot float32
	for i := 0; i < n; i++ {
		dot += query[i] * candidate[i]
	}
	cn := norm(candidate)
	if cn == 0 {
		return 0
	}
	return dot / (queryNorm * cn)
}

func norm(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return float32(math.Sqrt(float64(sum)))
}
