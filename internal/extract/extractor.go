// Package extract pulls a company name and service keywords out of a user
// query with a structured language-model call. Model output is untrusted:
// every parse failure degrades to searching with the raw query terms.
package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/rybalko/askfirm/internal/genai"
	"github.com/rybalko/askfirm/internal/smalltalk"
)

const extractionTimeout = 10 * time.Second

// Chatter is the interface for text generation used by the extractor.
type Chatter interface {
	Generate(ctx context.Context, model, system string, messages []genai.Message, opts genai.GenerateOptions) (string, error)
}

// Entities is the structured extraction result for one query.
type Entities struct {
	Company  string
	Keywords []string
	// Smalltalk is set when the model classified the query as a greeting
	// or chit-chat instead of an information request.
	Smalltalk smalltalk.Category
}

// Extractor runs entity extraction against a hosted chat model.
type Extractor struct {
	client Chatter
	model  string
}

// NewExtractor creates an Extractor using the given client and model name.
func NewExtractor(client Chatter, model string) *Extractor {
	return &Extractor{client: client, model: model}
}

// Extract analyses the query plus recent history and returns the extracted
// entities. It never returns an error: on timeout, API failure or malformed
// model output it logs and falls back to the raw query terms so the pipeline
// still attempts a generic search.
func (e *Extractor) Extract(ctx context.Context, query string, history []genai.Message) Entities {
	if strings.TrimSpace(query) == "" {
		return Entities{}
	}

	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	messages := buildMessages(query, history)
	raw, err := e.client.Generate(ctx, e.model, extractionSystemPrompt, messages, genai.GenerateOptions{
		Temperature: 0.1,
		JSONOutput:  true,
	})
	if err != nil {
		slog.Warn("entity extraction call failed, using raw query terms", "error", err)
		return fallback(query)
	}

	entities, ok := parseResponse(raw)
	if !ok {
		slog.Warn("unparseable entity extraction response, using raw query terms", "response", raw)
		return fallback(query)
	}
	return entities
}

// rawEntities tolerates the model emitting strings, arrays or nulls for
// either field.
type rawEntities struct {
	CompanyName     json.RawMessage `json:"company_name"`
	ServiceKeywords json.RawMessage `json:"service_keywords"`
}

func parseResponse(raw string) (Entities, bool) {
	cleaned := stripFences(raw)

	var re rawEntities
	if err := json.Unmarshal([]byte(cleaned), &re); err != nil {
		return Entities{}, false
	}

	company := flattenField(re.CompanyName)
	keywords := listField(re.ServiceKeywords)

	// The model flags pure greetings/chit-chat with sentinel values in both
	// fields rather than inventing a company.
	switch strings.ToUpper(company) {
	case "GREETING":
		return Entities{Smalltalk: smalltalk.Greeting}, true
	case "CHITCHAT":
		return Entities{Smalltalk: smalltalk.Chitchat}, true
	case "NONE", "NULL":
		company = ""
	}
	if len(keywords) == 1 {
		switch strings.ToUpper(keywords[0]) {
		case "GREETING":
			return Entities{Smalltalk: smalltalk.Greeting}, true
		case "CHITCHAT":
			return Entities{Smalltalk: smalltalk.Chitchat}, true
		case "NONE", "NULL":
			keywords = nil
		}
	}

	return Entities{Company: company, Keywords: keywords}, true
}

// flattenField decodes a field that may be a string, an array of strings,
// or null, into a single space-joined string.
func flattenField(raw json.RawMessage) string {
	return strings.Join(listField(raw), " ")
}

// listField decodes a field that may be a string, an array of strings,
// or null, into a slice of non-empty strings.
func listField(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := list[:0]
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}

// stripFences removes a surrounding markdown code fence if the model wrapped
// its JSON despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// fallback builds a permissive Entities from the raw query so a generic
// search still runs when extraction is unusable.
func fallback(query string) Entities {
	var keywords []string
	for _, f := range strings.Fields(query) {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f != "" {
			keywords = append(keywords, f)
		}
	}
	return Entities{Keywords: keywords}
}
