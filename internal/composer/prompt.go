// Package composer assembles the grounded answer prompt from selected
// context chunks and conversation history.
package composer

import (
	"fmt"
	"strings"

	"github.com/rybalko/askfirm/internal/genai"
	"github.com/rybalko/askfirm/internal/index"
	"github.com/rybalko/askfirm/internal/session"
)

const defaultMaxContextTokens = 4000

const answerSystemPrompt = `You are an AI assistant specializing in providing information about various companies' services. Use the following SEARCH RESULTS to answer the user's question accurately and concisely. Focus only on the information provided in the SEARCH RESULTS. If the SEARCH RESULTS do not contain the answer, state clearly that you cannot find the answer based on the provided information. Do not make up any details. If the user asks for contact information, provide it if available in the search results, otherwise state that it's not available.`

// Composer builds chat requests for answer synthesis, keeping the injected
// context under a token budget.
type Composer struct {
	MaxContextTokens int
}

// New creates a Composer with the given token budget for injected context.
// If maxContextTokens <= 0, the default (4000) is used.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens}
}

// Compose returns the system instruction and message list for the answer
// call. Chunks arrive ranked by similarity; entries that would blow the
// token budget are skipped, keeping higher-ranked context. History is
// already bounded by the caller.
func (c *Composer) Compose(question string, chunks []index.Scored, history []session.Turn) (system string, messages []genai.Message) {
	var sb strings.Builder
	sb.WriteString(answerSystemPrompt)
	sb.WriteString("\n\nSEARCH RESULTS:\n")

	remaining := c.MaxContextTokens
	for _, ch := range chunks {
		entry := formatChunk(ch)
		tokens := EstimateTokens(entry)
		if tokens > remaining {
			continue
		}
		sb.WriteString(entry)
		remaining -= tokens
	}

	messages = HistoryMessages(history)
	messages = append(messages, genai.Message{Role: genai.RoleUser, Text: question})
	return sb.String(), messages
}

func formatChunk(ch index.Scored) string {
	return fmt.Sprintf("(Source: %s)\n%s\n\n", ch.SourceURL, ch.Content)
}

// HistoryMessages converts conversation turns into chat messages. The
// extractor and the synthesizer both consume history in this form.
func HistoryMessages(turns []session.Turn) []genai.Message {
	messages := make([]genai.Message, 0, len(turns))
	for _, t := range turns {
		role := genai.RoleUser
		if t.Role == session.RoleAssistant {
			role = genai.RoleModel
		}
		messages = append(messages, genai.Message{Role: role, Text: t.Text})
	}
	return messages
}

// EstimateTokens provides a rough token count using a 4 chars per token
// heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
