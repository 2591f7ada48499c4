package image

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"contentpipe/internal/domain"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *SDGenerator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewSDGenerator(SDOptions{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewSDGenerator: %v", err)
	}
	return g
}

func TestNewSDGeneratorRequiresBaseURL(t *testing.T) {
	if _, err := NewSDGenerator(SDOptions{BaseURL: "  "}); err == nil {
		t.Fatal("expected error for missing base url")
	}
}

func TestGenerateImageDecodesPayload(t *testing.T) {
	raw := []byte("fake png bytes")
	var captured sdTxt2ImgRequest
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sdapi/v1/txt2img" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(sdTxt2ImgResponse{
			Images: []string{base64.StdEncoding.EncodeToString(raw)},
		})
	})

	img, err := g.GenerateImage(context.Background(), GenerateRequest{
		Prompt:         "palace at dawn",
		NegativePrompt: "blurry",
		Kind:           domain.KindPost,
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(img.Data) != string(raw) {
		t.Fatalf("unexpected image bytes %q", img.Data)
	}
	if img.Width != 512 || img.Height != 512 {
		t.Fatalf("unexpected dimensions %dx%d", img.Width, img.Height)
	}
	if captured.SamplerName != "DPM++ 2M" || captured.Steps != 120 {
		t.Fatalf("post profile not applied: %+v", captured)
	}
	if captured.NegativePrompt != "blurry" {
		t.Fatalf("negative prompt not forwarded: %+v", captured)
	}
}

func TestGenerateImageStoryProfile(t *testing.T) {
	var captured sdTxt2ImgRequest
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(sdTxt2ImgResponse{
			Images: []string{base64.StdEncoding.EncodeToString([]byte("x"))},
		})
	})

	img, err := g.GenerateImage(context.Background(), GenerateRequest{Prompt: "p", Kind: domain.KindStory})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if img.Width != 720 || img.Height != 1080 {
		t.Fatalf("unexpected dimensions %dx%d", img.Width, img.Height)
	}
	if captured.SamplerName != "DPM++ 2M Karras" {
		t.Fatalf("story profile not applied: %+v", captured)
	}
}

func TestGenerateImageUnknownKindIsPermanent(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := g.GenerateImage(context.Background(), GenerateRequest{Prompt: "p", Kind: domain.Kind("reel")})
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsPermanent(err) {
		t.Fatalf("unknown kind must be permanent, got: %v", err)
	}
}

func TestGenerateImageServerErrorIsRetryable(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := g.GenerateImage(context.Background(), GenerateRequest{Prompt: "p", Kind: domain.KindPost})
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsPermanent(err) {
		t.Fatalf("502 must be retryable, got: %v", err)
	}
}

func TestGenerateImageEmptyResponseIsRetryable(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sdTxt2ImgResponse{})
	})
	_, err := g.GenerateImage(context.Background(), GenerateRequest{Prompt: "p", Kind: domain.KindPost})
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsPermanent(err) {
		t.Fatalf("empty image list must be retryable, got: %v", err)
	}
}
