package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLiveness(t *testing.T) {
	w := httptest.NewRecorder()
	Liveness()(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Fatalf("body=%q want ok", w.Body.String())
	}
}
