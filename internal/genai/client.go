// Package genai is a minimal client for the Gemini REST API, covering the
// two calls the pipeline needs: text generation and text embedding.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Message represents one conversational message in the Gemini API format.
// Role is "user" or "model".
type Message struct {
	Role string
	Text string
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// GenerateOptions tune a single generateContent call.
type GenerateOptions struct {
	// Temperature for sampling. Zero means the API default.
	Temperature float64
	// JSONOutput requests a JSON response body (responseMimeType).
	JSONOutput bool
}

// Client communicates with the Gemini REST API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client for the given API base URL and key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// Generate sends the system instruction and messages to the named model and
// returns the text of the first candidate.
func (c *Client) Generate(ctx context.Context, model, system string, messages []Message, opts GenerateOptions) (string, error) {
	gr := generateRequest{
		Contents: make([]content, 0, len(messages)),
	}
	if system != "" {
		gr.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	for _, m := range messages {
		gr.Contents = append(gr.Contents, content{Role: m.Role, Parts: []part{{Text: m.Text}}})
	}

	gc := &generationConfig{}
	if opts.Temperature > 0 {
		t := opts.Temperature
		gc.Temperature = &t
	}
	if opts.JSONOutput {
		gc.ResponseMimeType = "application/json"
	}
	if gc.Temperature != nil || gc.ResponseMimeType != "" {
		gr.GenerationConfig = gc
	}

	var result generateResponse
	if err := c.post(ctx, model, "generateContent", gr, &result); err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generate: empty candidates")
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

type embedRequest struct {
	Content content `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding vector for the given text using the named model.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	er := embedRequest{Content: content{Parts: []part{{Text: text}}}}

	var result embedResponse
	if err := c.post(ctx, model, "embedContent", er, &result); err != nil {
		return nil, err
	}

	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embed: empty embedding values")
	}
	return result.Embedding.Values, nil
}

// post issues one {model}:{method} call and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, model, method string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/models/%s:%s?key=%s",
		c.baseURL, model, method, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}
