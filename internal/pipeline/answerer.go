// Package pipeline orchestrates one conversational turn: small-talk
// interception, entity extraction, web search, per-turn indexing, context
// selection and grounded answer synthesis. Each turn's retrieval state is
// ephemeral; only the conversation transcript carries across turns.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rybalko/askfirm/internal/chunk"
	"github.com/rybalko/askfirm/internal/composer"
	"github.com/rybalko/askfirm/internal/extract"
	"github.com/rybalko/askfirm/internal/genai"
	"github.com/rybalko/askfirm/internal/index"
	"github.com/rybalko/askfirm/internal/session"
	"github.com/rybalko/askfirm/internal/smalltalk"
	"github.com/rybalko/askfirm/internal/storage"
	"github.com/rybalko/askfirm/internal/websearch"
)

// Canned replies for turns the pipeline cannot answer from the web. These
// are user-facing degradations, not errors: the turn always completes.
const (
	replyNoEntities = "I couldn't identify a specific company or service in your query. " +
		"Please ask about a company's services (e.g., 'What are Google's cloud services?')."
	replyCompanyOnlyFmt = "I can look up information about %s. " +
		"What specific services or aspects are you interested in?"
	replyUnavailable = "I couldn't find specific information for that company and service on the web. " +
		"Could you please rephrase or provide more details?"
	replyInternalError = "I'm sorry, I encountered an internal error while trying to process your request."
)

// Chatter generates text with a hosted chat model.
type Chatter interface {
	Generate(ctx context.Context, model, system string, messages []genai.Message, opts genai.GenerateOptions) (string, error)
}

// Searcher runs one web search per turn.
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]websearch.Result, error)
}

// Fetcher retrieves readable full-page text for a result URL.
type Fetcher interface {
	Text(ctx context.Context, url string) (string, error)
}

// Recorder persists the audit record of a completed turn.
type Recorder interface {
	SaveInteraction(storage.Interaction) error
}

// Reply is the outcome of one turn.
type Reply struct {
	Text    string
	Sources []string
	Status  string
}

// Options configures an Answerer. Chat, Extractor, Search, Embedder,
// Splitter and Composer are required; Fetcher and Recorder are optional.
type Options struct {
	Chat      Chatter
	ChatModel string
	Extractor *extract.Extractor
	Search    Searcher
	Embedder  index.Embedder
	Fetcher   Fetcher
	Splitter  *chunk.Splitter
	Composer  *composer.Composer
	Recorder  Recorder

	TopK            int
	ResultCount     int
	HistoryTurns    int
	MinSnippetChars int
}

// Answerer runs the full question-answering pipeline for a session.
type Answerer struct {
	chat      Chatter
	chatModel string
	extractor *extract.Extractor
	search    Searcher
	embedder  index.Embedder
	fetcher   Fetcher
	splitter  *chunk.Splitter
	composer  *composer.Composer
	recorder  Recorder

	topK            int
	resultCount     int
	historyTurns    int
	minSnippetChars int
}

// NewAnswerer creates an Answerer from the given options, applying defaults
// for unset limits.
func NewAnswerer(opts Options) *Answerer {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.ResultCount <= 0 {
		opts.ResultCount = 5
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 10
	}
	return &Answerer{
		chat:            opts.Chat,
		chatModel:       opts.ChatModel,
		extractor:       opts.Extractor,
		search:          opts.Search,
		embedder:        opts.Embedder,
		fetcher:         opts.Fetcher,
		splitter:        opts.Splitter,
		composer:        opts.Composer,
		recorder:        opts.Recorder,
		topK:            opts.TopK,
		resultCount:     opts.ResultCount,
		historyTurns:    opts.HistoryTurns,
		minSnippetChars: opts.MinSnippetChars,
	}
}

// Answer processes one user turn against the session. It never returns an
// error: every failure past configuration degrades to a user-facing reply
// with a status recording how the turn ended.
func (a *Answerer) Answer(ctx context.Context, sess *session.Session, query string) Reply {
	start := time.Now()

	// Small-talk never reaches the retrieval pipeline.
	if text, ok := smalltalk.Match(query); ok {
		return a.finish(sess, query, turnRecord{}, Reply{Text: text, Status: storage.StatusSmalltalk})
	}

	history := composer.HistoryMessages(sess.Recent(a.historyTurns))

	entities := a.extractor.Extract(ctx, query, history)
	if entities.Smalltalk != smalltalk.None {
		return a.finish(sess, query, turnRecord{},
			Reply{Text: smalltalk.Reply(entities.Smalltalk), Status: storage.StatusSmalltalk})
	}

	rec := turnRecord{company: entities.Company, keywords: entities.Keywords}

	if entities.Company == "" && len(entities.Keywords) == 0 {
		return a.finish(sess, query, rec, Reply{Text: replyNoEntities, Status: storage.StatusNoEntities})
	}
	if len(entities.Keywords) == 0 {
		return a.finish(sess, query, rec,
			Reply{Text: fmt.Sprintf(replyCompanyOnlyFmt, entities.Company), Status: storage.StatusNoEntities})
	}

	searchQuery := websearch.BuildQuery(entities.Company, entities.Keywords)
	rec.searchQuery = searchQuery

	results, err := a.search.Search(ctx, searchQuery, a.resultCount)
	if err != nil {
		slog.Warn("web search failed", "query", searchQuery, "error", err)
		return a.finish(sess, query, rec, Reply{Text: replyUnavailable, Status: storage.StatusSearchError})
	}
	if len(results) == 0 {
		slog.Info("web search returned no results", "query", searchQuery)
		return a.finish(sess, query, rec, Reply{Text: replyUnavailable, Status: storage.StatusNoResults})
	}

	ix := index.Build(ctx, a.embedder, a.splitter, a.documents(ctx, results))

	queryVec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed", "error", err)
		return a.finish(sess, query, rec, Reply{Text: replyUnavailable, Status: storage.StatusSearchError})
	}

	top := ix.Search(queryVec, a.topK)
	if len(top) == 0 {
		// Nothing survived indexing; the answer model is never called
		// without retrieved context.
		slog.Warn("no context retrieved, skipping synthesis", "query", searchQuery)
		return a.finish(sess, query, rec, Reply{Text: replyUnavailable, Status: storage.StatusNoResults})
	}
	rec.sources = sourceURLs(top)

	system, messages := a.composer.Compose(query, top, sess.Recent(a.historyTurns))
	answer, err := a.chat.Generate(ctx, a.chatModel, system, messages, genai.GenerateOptions{})
	if err != nil {
		slog.Warn("answer synthesis failed", "error", err)
		return a.finish(sess, query, rec, Reply{Text: replyInternalError, Status: storage.StatusChatError})
	}

	slog.Debug("turn answered",
		"company", entities.Company,
		"results", len(results),
		"chunks_indexed", ix.Len(),
		"chunks_used", len(top),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return a.finish(sess, query, rec,
		Reply{Text: answer, Sources: rec.sources, Status: storage.StatusAnswered})
}

// documents converts search results into indexable documents. When a
// snippet is thinner than the configured minimum and a fetcher is wired,
// the full page text replaces it; fetch failures fall back to the snippet.
func (a *Answerer) documents(ctx context.Context, results []websearch.Result) []index.Document {
	docs := make([]index.Document, 0, len(results))
	for _, r := range results {
		text := r.Snippet
		if a.fetcher != nil && len(text) < a.minSnippetChars {
			full, err := a.fetcher.Text(ctx, r.Link)
			if err != nil {
				slog.Warn("page fetch failed, indexing snippet only", "url", r.Link, "error", err)
			} else if full != "" {
				text = full
			}
		}
		docs = append(docs, index.Document{URL: r.Link, Title: r.Title, Text: text})
	}
	return docs
}

// turnRecord carries the intermediate products of a turn into the audit log.
type turnRecord struct {
	company     string
	keywords    []string
	searchQuery string
	sources     []string
}

// finish appends the turn to the session transcript and records the
// interaction. Recording is best-effort: a storage failure never changes
// the reply.
func (a *Answerer) finish(sess *session.Session, query string, rec turnRecord, reply Reply) Reply {
	sess.Append(session.RoleUser, query)
	sess.Append(session.RoleAssistant, reply.Text)

	if a.recorder != nil {
		err := a.recorder.SaveInteraction(storage.Interaction{
			ID:          uuid.NewString(),
			SessionID:   sess.ID(),
			UserQuery:   query,
			Company:     rec.company,
			Keywords:    toJSON(rec.keywords),
			SearchQuery: rec.searchQuery,
			Sources:     toJSON(rec.sources),
			Answer:      reply.Text,
			Status:      reply.Status,
		})
		if err != nil {
			slog.Warn("recording interaction failed", "session", sess.ID(), "error", err)
		}
	}
	return reply
}

// sourceURLs returns the distinct source URLs of the selected chunks,
// preserving rank order.
func sourceURLs(chunks []index.Scored) []string {
	seen := make(map[string]bool, len(chunks))
	var urls []string
	for _, c := range chunks {
		if c.SourceURL == "" || seen[c.SourceURL] {
			continue
		}
		seen[c.SourceURL] = true
		urls = append(urls, c.SourceURL)
	}
	return urls
}

func toJSON(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}
