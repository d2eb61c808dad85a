package prompt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	catalog "github.com/zhouzirui/aura/backend/internal/model/prompt"
)

func TestListPromptsForPage(t *testing.T) {
	r := chi.NewRouter()
	New(catalog.NewMemoryStore(catalog.Defaults(), catalog.SeedPages())).RegisterRoutes(r)

	cases := map[string]string{
		"/aura/prompts?page=/slo-agent":          "SLO Management",
		"/aura/prompts?page=/view-central/board": "Dashboard Insights",
		"/aura/prompts":                          "General Insights",
	}
	for path, want := range cases {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
		var got []catalog.Category
		if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
			t.Fatalf("%s: decode err: %v", path, err)
		}
		if len(got) == 0 || got[0].Category != want {
			t.Fatalf("%s: expected %q first, got %+v", path, want, got)
		}
	}
}
