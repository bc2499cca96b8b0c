package vlm

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, pngBytes(t), 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage error: %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Errorf("MIMEType: got %q, want image/png", img.MIMEType)
	}
	if !strings.HasPrefix(img.DataURL(), "data:image/png;base64,") {
		t.Errorf("DataURL prefix wrong: %q", img.DataURL()[:30])
	}
}

func TestLoadImage_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadImage(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}

	text := filepath.Join(dir, "notes.png")
	if err := os.WriteFile(text, []byte("just some text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadImage(text); err == nil {
		t.Error("expected error for non-image content")
	}
}

func TestOllamaBackend_Invoke(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response":          "red",
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 12,
			"eval_count":        1,
		})
	}))
	defer srv.Close()

	b := NewOllamaBackend(OllamaConfig{BaseURL: srv.URL + "/", Model: "llava:7b", MaxTokens: 50})
	img, err := NewImage("x.png", pngBytes(t))
	if err != nil {
		t.Fatal(err)
	}

	out, err := b.Invoke(context.Background(), img, "What color?")
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if out != "red" {
		t.Errorf("output: got %q, want %q", out, "red")
	}
	if got.Model != "llava:7b" || got.Prompt != "What color?" || got.Stream {
		t.Errorf("unexpected request: %+v", got)
	}
	if len(got.Images) != 1 || got.Images[0] != img.Base64() {
		t.Errorf("image not attached as base64")
	}
}

func TestOllamaBackend_TextOnlyAndErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "model not found", wantErr: "model not found"},
		{name: "api error field", status: http.StatusOK, body: `{"error":"out of memory"}`, wantErr: "out of memory"},
		{name: "invalid json", status: http.StatusOK, body: `not json`, wantErr: "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var images int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req ollamaGenerateRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				images = len(req.Images)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			b := NewOllamaBackend(OllamaConfig{BaseURL: srv.URL, Model: "llava"})
			_, err := b.Invoke(context.Background(), nil, "judge this")
			if !IsInference(err) {
				t.Fatalf("expected InferenceError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
			if images != 0 {
				t.Errorf("text-only call sent %d images", images)
			}
		})
	}
}

func TestOpenAIBackend_Invoke(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "a red square"}}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 3, "total_tokens": 23}
		}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "test", Model: "gpt-4o-mini"})
	img, err := NewImage("x.png", pngBytes(t))
	if err != nil {
		t.Fatal(err)
	}

	out, err := b.Invoke(context.Background(), img, "What is in the image?")
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if out != "a red square" {
		t.Errorf("output: got %q", out)
	}

	raw, _ := json.Marshal(req["messages"])
	if !strings.Contains(string(raw), "data:image/png;base64,") {
		t.Errorf("request missing image data URL: %s", raw)
	}
	if !strings.Contains(string(raw), "What is in the image?") {
		t.Errorf("request missing prompt: %s", raw)
	}
}

func TestAnthropicBackend_Invoke(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "Yes"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 30, "output_tokens": 1}
		}`))
	}))
	defer srv.Close()

	b := NewAnthropicBackend(AnthropicConfig{BaseURL: srv.URL + "/", APIKey: "test", Model: "claude-sonnet-4-5"})
	out, err := b.Invoke(context.Background(), nil, "Is the answer correct?")
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if out != "Yes" {
		t.Errorf("output: got %q, want Yes", out)
	}

	raw, _ := json.Marshal(req["messages"])
	if strings.Contains(string(raw), `"image"`) {
		t.Errorf("text-only call must not carry an image block: %s", raw)
	}
}

func TestAnthropicBackend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"overloaded"}}`))
	}))
	defer srv.Close()

	b := NewAnthropicBackend(AnthropicConfig{BaseURL: srv.URL + "/", APIKey: "test", Model: "claude-sonnet-4-5"})
	_, err := b.Invoke(context.Background(), nil, "q")
	if !IsInference(err) {
		t.Fatalf("expected InferenceError, got %v", err)
	}
}

func TestGeminiBackend_New(t *testing.T) {
	b, err := NewGeminiBackend(context.Background(), GeminiConfig{APIKey: "test", Model: "gemini-1.5-flash"})
	if err != nil {
		t.Fatalf("NewGeminiBackend: %v", err)
	}
	defer b.Close()

	if b.Provider() != "gemini" {
		t.Errorf("Provider: got %q, want %q", b.Provider(), "gemini")
	}
	if b.Model() != "gemini-1.5-flash" {
		t.Errorf("Model: got %q, want %q", b.Model(), "gemini-1.5-flash")
	}
	if b.maxTokens != 1024 {
		t.Errorf("maxTokens: got %d, want 1024", b.maxTokens)
	}
}

func TestGeminiBackend_CallFailureIsInferenceError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	b, err := NewGeminiBackend(context.Background(), GeminiConfig{BaseURL: endpoint, APIKey: "test", Model: "gemini-1.5-flash"})
	if err != nil {
		t.Fatalf("NewGeminiBackend: %v", err)
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Invoke(ctx, nil, "q")
	if !IsInference(err) {
		t.Fatalf("expected InferenceError, got %v", err)
	}
	if !strings.Contains(err.Error(), "gemini API call failed") {
		t.Errorf("error should name the call: %v", err)
	}
}
