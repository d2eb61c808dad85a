package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	promptModel "github.com/zhouzirui/aura/backend/internal/model/prompt"
	chatService "github.com/zhouzirui/aura/backend/internal/service/chat"
	streamService "github.com/zhouzirui/aura/backend/internal/service/stream"
	"github.com/zhouzirui/aura/backend/internal/storage"
	"github.com/zhouzirui/aura/backend/internal/transport"
)

func newTestRouter() http.Handler {
	store := chatService.NewStore(storage.NewMemory(), zerolog.Nop(), chatService.Options{})
	ctrl := streamService.NewController(store, transport.NewHTTPTransport("http://127.0.0.1:0"), zerolog.Nop())
	prompts := promptModel.NewMemoryStore(promptModel.Defaults(), promptModel.SeedPages())
	return NewRouter(zerolog.Nop(), ctrl, store, prompts, nil)
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	r := newTestRouter()

	for _, path := range []string{"/healthz", "/metrics", "/api/aura/conversation", "/api/aura/prompts"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestRouterWithoutResponder(t *testing.T) {
	r := newTestRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/aura/chat", strings.NewReader(`{"message":"hi"}`)))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
