package speech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestClient(url string) *GroqClient {
	cfg := DefaultGroqConfig("test-key")
	cfg.BaseURL = url
	return NewGroqClientWithConfig(cfg, zap.NewNop())
}

func TestTranscribeSuccess(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"text":"  move Alice to one pm today "}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	text, err := c.Transcribe(context.Background(), []byte("OggS..."), "voice.ogg")
	if err != nil {
		t.Fatal(err)
	}
	if text != "move Alice to one pm today" {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if !strings.HasPrefix(gotContentType, "multipart/form-data") {
		t.Fatalf("unexpected content type: %q", gotContentType)
	}
	body := string(gotBody)
	if !strings.Contains(body, `filename="voice.ogg"`) {
		t.Fatalf("filename missing from form:\n%s", body)
	}
	if !strings.Contains(body, "whisper-large-v3") {
		t.Fatalf("model missing from form:\n%s", body)
	}
}

func TestTranscribeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"file too large"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Transcribe(context.Background(), []byte("..."), "voice.ogg")
	if err == nil || !strings.Contains(err.Error(), "file too large") {
		t.Fatalf("want API error message, got %v", err)
	}
}

func TestTranscribeMissingKey(t *testing.T) {
	cfg := DefaultGroqConfig("")
	c := NewGroqClientWithConfig(cfg, zap.NewNop())
	if _, err := c.Transcribe(context.Background(), []byte("..."), ""); err == nil {
		t.Fatal("want error for missing API key")
	}
}

func TestTranscribeDefaultFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `filename="voice.ogg"`) {
			t.Errorf("default filename missing:\n%s", body)
		}
		w.Write([]byte(`{"text":"hi"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Transcribe(context.Background(), []byte("..."), ""); err != nil {
		t.Fatal(err)
	}
}
