package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSectionEndpoints(t *testing.T) {
	t.Parallel()

	e := setup(t)

	steps := []struct {
		name     string
		req      *http.Request
		wantCode int
	}{
		{"missing content", jsonRequest(t, "PUT", "/api/website-content", map[string]string{"section_name": "about_content"}), http.StatusBadRequest},
		{"bad name", jsonRequest(t, "PUT", "/api/website-content", map[string]string{"section_name": "About Us", "content": "x"}), http.StatusBadRequest},
		{"body form", jsonRequest(t, "PUT", "/api/website-content", map[string]string{"section_name": "about_content", "content": "We cook."}), http.StatusOK},
		{"path form", jsonRequest(t, "PUT", "/api/website-content/home_hero_title", map[string]string{"content": "Eat well"}), http.StatusOK},
		{"empty content is allowed", jsonRequest(t, "PUT", "/api/website-content/contact_content", map[string]string{"content": ""}), http.StatusOK},
		{"unknown section", httptest.NewRequest("GET", "/api/website-content/nothing_here", nil), http.StatusNotFound},
	}

	for _, st := range steps {
		if rec := e.serve(st.req, true); rec.Code != st.wantCode {
			t.Errorf("%s: got %d, want %d: %s", st.name, rec.Code, st.wantCode, rec.Body)
		}
	}

	all := decode[map[string]string](t, e.serve(httptest.NewRequest("GET", "/api/website-content", nil), false).Body)
	want := map[string]string{"about_content": "We cook.", "home_hero_title": "Eat well", "contact_content": ""}
	if len(all) != len(want) {
		t.Fatalf("got %v, want %v", all, want)
	}
	for k, v := range want {
		if got, ok := all[k]; !ok || got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}

	rec := e.serve(httptest.NewRequest("GET", "/api/website-content/about_content", nil), false)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decode[map[string]any](t, rec.Body)["content"]; got != "We cook." {
		t.Errorf("got %v, want %q", got, "We cook.")
	}
}
