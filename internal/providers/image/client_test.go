package image

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"adcraft/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestGenerateWithoutKeyReturnsSyntheticAsset(t *testing.T) {
	c := NewClient(Options{Logger: zerolog.Nop()})

	asset, err := c.Generate(context.Background(), GenerateRequest{
		Prompt:      "hero shot of running shoes",
		AspectRatio: "16:9",
		RequestID:   "job-1",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(asset.Data) == 0 {
		t.Fatal("synthetic asset has no data")
	}
	if asset.Format != "image/png" {
		t.Fatalf("Format = %q", asset.Format)
	}
	if asset.Width != 1920 || asset.Height != 1080 {
		t.Fatalf("dimensions = %dx%d, want 1920x1080", asset.Width, asset.Height)
	}

	again, err := c.Generate(context.Background(), GenerateRequest{
		Prompt:      "hero shot of running shoes",
		AspectRatio: "16:9",
		RequestID:   "job-1",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(again.Data) != len(asset.Data) {
		t.Fatal("synthetic generation is not deterministic for identical requests")
	}
}

func TestGenerateDecodesInlineImage(t *testing.T) {
	pixel := base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{
					"inlineData": map[string]any{"mimeType": "image/png", "data": pixel},
				}},
			},
		}},
	})
	c := NewClient(Options{
		APIKey:  "key",
		BaseURL: "https://example.test/v1beta",
		Logger:  zerolog.Nop(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if !strings.Contains(r.URL.Path, ":generateContent") {
				t.Fatalf("unexpected path %q", r.URL.Path)
			}
			return jsonResponse(http.StatusOK, string(body)), nil
		})},
	})

	asset, err := c.Generate(context.Background(), GenerateRequest{Prompt: "p", AspectRatio: "1:1"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if string(asset.Data) != "fake-png-bytes" {
		t.Fatalf("Data = %q", asset.Data)
	}
}

func TestGenerateClassifiesServerErrorsAsTransient(t *testing.T) {
	c := NewClient(Options{
		APIKey:  "key",
		BaseURL: "https://example.test/v1beta",
		Logger:  zerolog.Nop(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusServiceUnavailable, `{"error":{"code":503,"message":"overloaded"}}`), nil
		})},
	})

	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	if !domain.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestGenerateClientErrorIsFatal(t *testing.T) {
	c := NewClient(Options{
		APIKey:  "key",
		BaseURL: "https://example.test/v1beta",
		Logger:  zerolog.Nop(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadRequest, `{"error":{"code":400,"message":"bad prompt"}}`), nil
		})},
	})

	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsTransient(err) {
		t.Fatalf("err = %v, want non-transient", err)
	}
}

func TestGenerateNetworkFailureIsTransient(t *testing.T) {
	c := NewClient(Options{
		APIKey:  "key",
		BaseURL: "https://example.test/v1beta",
		Logger:  zerolog.Nop(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection reset")
		})},
	})

	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	if !domain.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestNormalizeAspect(t *testing.T) {
	tests := []struct {
		aspect string
		w, h   int
	}{
		{"1:1", 1024, 1024},
		{"", 1024, 1024},
		{"16:9", 1920, 1080},
		{"9:16", 1080, 1920},
		{"2:1", 1024, 512},
		{"garbage", 1024, 1024},
	}
	for _, tt := range tests {
		w, h := normalizeAspect(tt.aspect)
		if w != tt.w || h != tt.h {
			t.Errorf("normalizeAspect(%q) = %dx%d, want %dx%d", tt.aspect, w, h, tt.w, tt.h)
		}
	}
}
