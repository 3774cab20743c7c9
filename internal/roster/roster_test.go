package roster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chiayulab/linebridge/internal/models"
)

func TestFindByCode_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("code"); got != "00001" {
			t.Errorf("code query = %q, want 00001", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"found": true, "code": "00001", "group": "B", "day": 3, "d14_triggered": false,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	p, err := c.FindByCode(context.Background(), "00001")
	if err != nil {
		t.Fatalf("FindByCode returned error: %v", err)
	}
	if p == nil {
		t.Fatal("expected a participant record")
	}
	if p.Group != models.GroupB || p.Day != 3 {
		t.Errorf("record = %+v, want group B day 3", p)
	}
}

func TestFindByUserID_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_id"); got != "U1" {
			t.Errorf("user_id query = %q, want U1", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"found": false})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	p, err := c.FindByUserID(context.Background(), "U1")
	if err != nil {
		t.Fatalf("FindByUserID returned error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil record for not-found, got %+v", p)
	}
}

func TestFind_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.FindByCode(context.Background(), "00001"); err == nil {
		t.Error("expected error for non-success status")
	}
}

func TestFind_ConnectionFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(srv.URL)
	if _, err := c.FindByUserID(context.Background(), "U1"); err == nil {
		t.Error("expected error for connection failure")
	}
}

func TestApply_BindPatchShape(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode patch body: %v", err)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Apply(context.Background(), models.RosterPatch{
		Code:             "00001",
		UserID:           "U1",
		FirstInteraction: "2024-03-01T10:00:00+08:00",
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	for _, key := range []string{"code", "user_id", "first_interaction"} {
		if _, ok := received[key]; !ok {
			t.Errorf("bind patch missing key %q: %v", key, received)
		}
	}
	// Absent fields must be omitted so the roster can dispatch on key presence.
	for _, key := range []string{"clear_user_id", "last_interaction", "d14_trigger", "emotion"} {
		if _, ok := received[key]; ok {
			t.Errorf("bind patch should omit key %q: %v", key, received)
		}
	}
}

func TestApply_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.Apply(context.Background(), models.RosterPatch{UserID: "U1", ClearUserID: true}); err == nil {
		t.Error("expected error for non-success status")
	}
}
