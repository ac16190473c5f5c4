package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate_Success(t *testing.T) {
	var gotPath string
	var gotBody generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Acme offers "},{"text":"cloud services."}]}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	got, err := c.Generate(context.Background(), "gemini-1.5-flash", "be helpful",
		[]Message{{Role: RoleUser, Text: "what does Acme do?"}}, GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Acme offers cloud services." {
		t.Errorf("Generate() = %q, want joined candidate parts", got)
	}
	if gotPath != "/models/gemini-1.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.SystemInstruction == nil || gotBody.SystemInstruction.Parts[0].Text != "be helpful" {
		t.Errorf("system instruction not sent: %+v", gotBody.SystemInstruction)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Role != "user" {
		t.Errorf("contents = %+v", gotBody.Contents)
	}
}

func TestGenerate_JSONOutputSetsMimeType(t *testing.T) {
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	if _, err := c.Generate(context.Background(), "m", "", nil, GenerateOptions{JSONOutput: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody.GenerationConfig == nil || gotBody.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("responseMimeType not set: %+v", gotBody.GenerationConfig)
	}
}

func TestGenerate_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	if _, err := c.Generate(context.Background(), "m", "", nil, GenerateOptions{}); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestGenerate_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	_, err := c.Generate(context.Background(), "m", "", nil, GenerateOptions{})
	if err == nil {
		t.Fatal("expected error on 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the status code: %v", err)
	}
}

func TestEmbed_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/text-embedding-004:embedContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key query param missing")
		}
		w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	vec, err := c.Embed(context.Background(), "text-embedding-004", "some text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("Embed() = %v", vec)
	}
}

func TestEmbed_EmptyValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":{"values":[]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	if _, err := c.Embed(context.Background(), "m", "text"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}
