// Package chunk splits retrieved text into bounded-length spans on sentence
// boundaries, with a one-sentence overlap between neighbours.
package chunk

import (
	"regexp"
	"strings"
)

const defaultMaxChars = 500

var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// Splitter produces chunks of at most MaxChars characters.
type Splitter struct {
	MaxChars int
}

// NewSplitter creates a Splitter; maxChars <= 0 selects the default (500).
func NewSplitter(maxChars int) *Splitter {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Splitter{MaxChars: maxChars}
}

// Split breaks text into chunks. Sentences are packed greedily up to
// MaxChars; each new chunk starts with the previous chunk's last sentence
// for context continuity. A sentence longer than MaxChars is hard-cut.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	locs := sentenceRe.FindAllStringIndex(text, -1)
	for _, loc := range locs {
		sentences = append(sentences, text[loc[0]:loc[1]])
	}
	// Text after the last terminator has no closing punctuation but is
	// still content; keep it as a final sentence.
	if len(locs) > 0 {
		if rest := strings.TrimSpace(text[locs[len(locs)-1][1]:]); rest != "" {
			sentences = append(sentences, rest)
		}
	}
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var oversize []string
	for _, sent := range sentences {
		oversize = append(oversize, hardCut(sent, s.MaxChars)...)
	}
	sentences = oversize

	var chunks []string
	var current []string
	currentLen := 0
	for _, sent := range sentences {
		// +1 for the joining space.
		addLen := len(sent)
		if currentLen > 0 {
			addLen++
		}
		if currentLen+addLen > s.MaxChars && currentLen > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			// Overlap: carry the last sentence into the next chunk when it
			// leaves room for more text.
			last := current[len(current)-1]
			if len(last)+1 < s.MaxChars/2 {
				current = []string{last, sent}
				currentLen = len(last) + 1 + len(sent)
			} else {
				current = []string{sent}
				currentLen = len(sent)
			}
			continue
		}
		current = append(current, sent)
		currentLen += addLen
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// hardCut slices a single over-long sentence into maxChars pieces.
func hardCut(sent string, maxChars int) []string {
	if len(sent) <= maxChars {
		return []string{sent}
	}
	var parts []string
	for len(sent) > maxChars {
		cut := maxChars
		// Prefer cutting at a space to avoid splitting words.
		if idx := strings.LastIndex(sent[:maxChars], " "); idx > maxChars/2 {
			cut = idx
		}
		parts = append(parts, strings.TrimSpace(sent[:cut]))
		sent = strings.TrimSpace(sent[cut:])
	}
	if sent != "" {
		parts = append(parts, sent)
	}
	return parts
}
