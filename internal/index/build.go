package index

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rybalko/askfirm/internal/chunk"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Document is one retrieved source to be split, embedded and indexed.
type Document struct {
	URL   string
	Title string
	Text  string
}

// Build splits the documents into chunks, embeds each chunk and assembles a
// fresh Index. Embedding failures exclude the affected chunk (logged, never
// fatal); an empty document list yields an empty index. Chunk insertion
// order is stable regardless of embedding completion order.
func Build(ctx context.Context, emb Embedder, splitter *chunk.Splitter, docs []Document) *Index {
	type pending struct {
		doc  int
		text string
	}

	var work []pending
	for i, d := range docs {
		for _, piece := range splitter.Split(d.Text) {
			work = append(work, pending{doc: i, text: piece})
		}
	}

	ix := New()
	if len(work) == 0 {
		return ix
	}

	vectors := make([][]float32, len(work))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency against the embedding API.

	for i, w := range work {
		i, w := i, w
		g.Go(func() error {
			vec, err := emb.Embed(gCtx, w.text)
			if err != nil {
				slog.Warn("embedding failed, excluding chunk from index",
					"source", docs[w.doc].URL, "error", err)
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	// Workers only log failures, so Wait cannot return an error here.
	g.Wait()

	for i, w := range work {
		if vectors[i] == nil {
			continue
		}
		ix.Add(Chunk{
			SourceURL: docs[w.doc].URL,
			Title:     docs[w.doc].Title,
			Content:   w.text,
			Embedding: vectors[i],
		})
	}
	return ix
}
