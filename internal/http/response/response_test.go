package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONEnvelope(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/urls", nil)
	r.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()

	JSON(w, r, http.StatusCreated, map[string]string{"shortCode": "abc123"})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
		Meta    struct {
			RequestID string `json:"requestId"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data["shortCode"] != "abc123" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Meta.RequestID != "req-42" {
		t.Fatalf("requestId = %q", body.Meta.RequestID)
	}
}

func TestErrorEnvelope(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "session is not valid")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success {
		t.Fatal("success must be false on errors")
	}
	if body.Error.Code != "UNAUTHORIZED" || body.Error.Message != "session is not valid" {
		t.Fatalf("unexpected error %+v", body.Error)
	}
}
