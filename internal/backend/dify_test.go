package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chiayulab/linebridge/internal/models"
)

func testKeys() map[models.Group]string {
	return map[models.Group]string{
		models.GroupA: "key-a",
		models.GroupB: "key-b",
	}
}

func TestDifySend_Success(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer key-b" {
			t.Errorf("authorization = %q, want group B key", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"answer": "Hi!", "conversation_id": "c1"})
	}))
	defer srv.Close()

	c := NewDifyClientWithURL(srv.URL, testKeys(), nil)
	reply, err := c.Send(context.Background(), Request{Group: models.GroupB, UserID: "U1", Text: "Hello"})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if reply.Text != "Hi!" || reply.ConversationID != "c1" {
		t.Errorf("reply = %+v, want Hi!/c1", reply)
	}

	if received["query"] != "Hello" || received["user"] != "U1" || received["response_mode"] != "blocking" {
		t.Errorf("request body = %v", received)
	}
	if _, ok := received["conversation_id"]; ok {
		t.Error("first call must omit conversation_id")
	}
}

func TestDifySend_ThreadsConversationID(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received) //nolint:errcheck
		json.NewEncoder(w).Encode(map[string]string{"answer": "ok", "conversation_id": "c1"})
	}))
	defer srv.Close()

	c := NewDifyClientWithURL(srv.URL, testKeys(), nil)
	_, err := c.Send(context.Background(), Request{Group: models.GroupA, UserID: "U1", Text: "again", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if received["conversation_id"] != "c1" {
		t.Errorf("conversation_id = %v, want c1", received["conversation_id"])
	}
}

func TestDifySend_UnknownGroup(t *testing.T) {
	c := NewDifyClientWithURL("http://unused.invalid", testKeys(), nil)
	_, err := c.Send(context.Background(), Request{Group: models.GroupD, UserID: "U1", Text: "hi"})
	if err == nil {
		t.Fatal("expected error for group with no API key")
	}
	if !errors.Is(err, models.ErrUnknownGroup) {
		t.Errorf("error = %v, want ErrUnknownGroup", err)
	}
}

func TestDifySend_NonSuccessDegradesToApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewDifyClientWithURL(srv.URL, testKeys(), nil)
	reply, err := c.Send(context.Background(), Request{Group: models.GroupA, UserID: "U1", Text: "hi"})
	if err != nil {
		t.Fatalf("transport failure must not surface as error, got %v", err)
	}
	if reply.Text != DefaultApology {
		t.Errorf("reply = %q, want default apology", reply.Text)
	}
	if reply.ConversationID != "" {
		t.Error("degraded reply must carry no continuation token")
	}
}

func TestDifySend_ConnectionFailureDegradesToApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewDifyClientWithURL(srv.URL, testKeys(), nil)
	reply, err := c.Send(context.Background(), Request{Group: models.GroupA, UserID: "U1", Text: "hi"})
	if err != nil {
		t.Fatalf("connection failure must not surface as error, got %v", err)
	}
	if reply.Text != DefaultApology {
		t.Errorf("reply = %q, want default apology", reply.Text)
	}
}

func TestDifySend_EmptyAnswerDegradesToApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"conversation_id": "c1"})
	}))
	defer srv.Close()

	c := NewDifyClientWithURL(srv.URL, testKeys(), nil)
	reply, err := c.Send(context.Background(), Request{Group: models.GroupA, UserID: "U1", Text: "hi"})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if reply.Text != DefaultApology {
		t.Errorf("reply = %q, want default apology for empty answer", reply.Text)
	}
	if reply.ConversationID != "c1" {
		t.Errorf("token = %q, want c1 (token survives an empty answer)", reply.ConversationID)
	}
}
