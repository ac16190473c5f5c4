// Package smalltalk short-circuits greeting and chit-chat turns with canned
// replies so the retrieval pipeline only runs for information requests.
package smalltalk

import "strings"

// Category classifies an intercepted turn.
type Category int

const (
	None Category = iota
	Greeting
	Chitchat
	Farewell
)

// patterns maps normalized user input to its category. Matching is exact on
// the normalized text: a greeting embedded in a longer question ("hi, what
// does Google do?") must fall through to the full pipeline.
var patterns = map[string]Category{
	"hi":             Greeting,
	"hello":          Greeting,
	"hey":            Greeting,
	"hi there":       Greeting,
	"hello there":    Greeting,
	"good morning":   Greeting,
	"good afternoon": Greeting,
	"good evening":   Greeting,
	"how are you":    Greeting,
	"thanks":         Chitchat,
	"thank you":      Chitchat,
	"thanks a lot":   Chitchat,
	"ok":             Chitchat,
	"okay":           Chitchat,
	"got it":         Chitchat,
	"great":          Chitchat,
	"bye":            Farewell,
	"goodbye":        Farewell,
	"see you":        Farewell,
	"see you later":  Farewell,
}

var replies = map[Category]string{
	Greeting: "Hello there! How can I assist you with company services today?",
	Chitchat: "You're welcome! Is there anything specific about company services you'd like to know?",
	Farewell: "Goodbye! Come back any time you want to know what a company offers.",
}

// Match reports whether text is pure small talk and, if so, returns the
// canned reply for its category. It has no side effects.
func Match(text string) (reply string, ok bool) {
	cat := Classify(text)
	if cat == None {
		return "", false
	}
	return replies[cat], true
}

// Classify normalizes text and looks it up in the fixed pattern table.
func Classify(text string) Category {
	cat, ok := patterns[normalize(text)]
	if !ok {
		return None
	}
	return cat
}

// Reply returns the canned response for a category detected elsewhere
// (the extractor's GREETING/CHITCHAT sentinels reuse these strings).
func Reply(cat Category) string {
	return replies[cat]
}

// normalize lowercases, trims surrounding whitespace and strips trailing
// punctuation so "Hello!!" and "hello" match the same pattern.
func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRight(s, "!.?,:; ")
	return strings.Join(strings.Fields(s), " ")
}
