package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
	sapx "github.com/tanpawarit/Plant-Conversational-Hub/pkg/sap"
)

func newSAPClient(t *testing.T, handler http.Handler) *sapx.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := sapx.NewClient(sapx.Config{
		BaseURL:  srv.URL,
		Username: "user",
		Password: "secret",
		Timeout:  5 * time.Second,
	}, sapx.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new sap client: %v", err)
	}
	return client
}

func TestAddressWriterCreatesRecord(t *testing.T) {
	t.Parallel()

	client := newSAPClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.Header.Get("X-CSRF-Token") == "Fetch":
			w.Header().Set("X-CSRF-Token", "tok")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"d": map[string]any{"PLANT": "1001", "TELEPHONE": "+1 222 333"}})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))

	h := NewAddressWriter(client, sapx.TelephoneEntitySet)
	result, err := h.Handle(context.Background(), contractx.EntityMap{
		"PLANT":     "1001",
		"TELEPHONE": "+1 222 333",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := result.Data.(sapx.Record)
	if !ok {
		t.Fatalf("unexpected payload type: %T", result.Data)
	}
	if rec["PLANT"] != "1001" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestAddressWriterMapsBackendFaultToHandlerError(t *testing.T) {
	t.Parallel()

	client := newSAPClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	h := NewAddressWriter(client, sapx.TelephoneEntitySet)
	_, err := h.Handle(context.Background(), contractx.EntityMap{"PLANT": "1001", "TELEPHONE": "+1"})
	if !errors.Is(err, contractx.ErrHandler) {
		t.Fatalf("expected ErrHandler, got %v", err)
	}
}

func TestAddressReaderKeyedGet(t *testing.T) {
	t.Parallel()

	client := newSAPClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"d": map[string]any{"PLANT": "2000", "CITY": "Springfield"}})
	}))

	h := NewAddressReader(client, sapx.PostalEntitySet)
	result, err := h.Handle(context.Background(), contractx.EntityMap{"PLANT": "2000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := result.Data.(sapx.Record)
	if !ok || rec["CITY"] != "Springfield" {
		t.Fatalf("unexpected payload: %v", result.Data)
	}
}

func TestBuildCatalogCoversKnownHandlerIDs(t *testing.T) {
	t.Parallel()

	client := newSAPClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	catalog := Build(Deps{SAP: client})

	for _, id := range []string{HandlerTelephoneRead, HandlerTelephoneWrite, HandlerPostalRead, HandlerPostalWrite} {
		if _, err := catalog.Resolve(id); err != nil {
			t.Fatalf("handler id %s missing: %v", id, err)
		}
	}
	// No chat client wired, so the chat handler must be absent.
	if _, err := catalog.Resolve(HandlerGeneralChat); err == nil {
		t.Fatal("expected general_chat to be unresolvable without a chat client")
	}
}

func TestChatQuestionSelection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		entities contractx.EntityMap
		want     string
	}{
		{"raw text wins", contractx.EntityMap{"RAW_TEXT": "what can you do?", "QUESTION": "ignored"}, "what can you do?"},
		{"question fallback", contractx.EntityMap{"QUESTION": "help me"}, "help me"},
		{"default greeting", contractx.EntityMap{}, "Hello"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := chatQuestion(tc.entities); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
