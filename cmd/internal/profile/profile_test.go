package profile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"debtease/cmd/internal/api"
	"debtease/cmd/internal/auth/session"
	"debtease/cmd/internal/auth/session/sessiontest"
	"debtease/cmd/internal/debtcase"
)

type directory struct {
	srv *httptest.Server

	mu      sync.Mutex
	created CreditorInput
	edited  DebtorInput
}

func newDirectory(t *testing.T) *directory {
	t.Helper()

	d := &directory{}
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/admins/{username}", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, map[string]any{"id": 1, "name": "Ada", "surname": "Admin", "user": map[string]any{"username": chi.URLParam(r, "username")}})
		})
		r.Get("/creditor/all", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, []map[string]any{{"id": 9, "name": "Acme"}, {"id": 10, "name": "Globex"}})
		})
		r.Get("/creditor/username/{username}", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, map[string]any{
				"id": 9, "name": "Acme", "accountNumber": "LT00",
				"user":    map[string]any{"username": chi.URLParam(r, "username")},
				"company": map[string]any{"id": 1, "name": "Acme UAB", "industry": "finance"},
			})
		})
		r.Post("/creditor", func(w http.ResponseWriter, r *http.Request) {
			d.mu.Lock()
			_ = json.NewDecoder(r.Body).Decode(&d.created)
			in := d.created
			d.mu.Unlock()
			writeJSON(w, 201, map[string]any{"id": 11, "name": in.Name})
		})
		r.Delete("/creditor/{id}", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "id") == "9" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, "Remove creditor from debtcases!")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/debtor/username/{username}", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, map[string]any{"id": 3, "name": "Jane", "surname": "Doe"})
		})
		r.Put("/debtor/{id}", func(w http.ResponseWriter, r *http.Request) {
			d.mu.Lock()
			_ = json.NewDecoder(r.Body).Decode(&d.edited)
			in := d.edited
			d.mu.Unlock()
			writeJSON(w, 200, map[string]any{"id": 3, "name": in.Name, "surname": in.Surname})
		})
	})

	d.srv = httptest.NewServer(r)
	t.Cleanup(d.srv.Close)
	return d
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newService(t *testing.T, d *directory, user, role string) *Service {
	t.Helper()

	store := session.NewStore()
	if _, err := store.DecodeToken(sessiontest.Token(t, user, role, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := api.NewClient(api.Options{BaseURL: d.srv.URL + "/api/", Session: store, Logger: log})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewService(c, log)
}

func TestService_MineByRole(t *testing.T) {
	t.Parallel()

	d := newDirectory(t)
	ctx := context.Background()

	tests := []struct {
		user, role string
		name       string
	}{
		{"ada", "ADMIN", "Ada Admin"},
		{"ivy", "CREDITOR", "Acme"},
		{"jane", "DEBTOR", "Jane Doe"},
	}
	for _, tt := range tests {
		p, err := newService(t, d, tt.user, tt.role).Mine(ctx)
		if err != nil {
			t.Fatalf("%s: Mine: %v", tt.role, err)
		}
		if p.DisplayName() != tt.name || string(p.Role) != tt.role {
			t.Fatalf("%s: profile=%+v", tt.role, p)
		}
	}

	p, _ := newService(t, d, "ivy", "CREDITOR").Mine(ctx)
	if p.Creditor.Company == nil || p.Creditor.Company.Industry != "finance" || p.Creditor.User.Username != "ivy" {
		t.Fatalf("creditor=%+v", p.Creditor)
	}
}

func TestService_ForSessionUnknownRole(t *testing.T) {
	t.Parallel()

	svc := newService(t, newDirectory(t), "x", "CREDITOR")
	if _, err := svc.ForSession(context.Background(), session.RoleUnknown, "x"); !errors.Is(err, debtcase.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestService_CreditorAdmin(t *testing.T) {
	t.Parallel()

	d := newDirectory(t)
	svc := newService(t, d, "ada", "ADMIN")
	ctx := context.Background()

	all, err := svc.Creditors(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("Creditors: %+v %v", all, err)
	}

	created, err := svc.CreateCreditor(ctx, CreditorInput{
		Name: "Initech", Address: "Main st", AccountNumber: "LT01",
		Account: &Credentials{Username: "initech", Password: "pw"},
	})
	if err != nil || created.ID != 11 || created.Name != "Initech" {
		t.Fatalf("CreateCreditor: %+v %v", created, err)
	}
	d.mu.Lock()
	sent := d.created
	d.mu.Unlock()
	if sent.Account == nil || sent.Account.Username != "initech" {
		t.Fatalf("server saw %+v", sent)
	}

	err = svc.DeleteCreditor(ctx, 9)
	apiErr, ok := api.AsAPIError(err)
	if !ok || apiErr.StatusCode != 400 || apiErr.Description != "Remove creditor from debtcases!" {
		t.Fatalf("DeleteCreditor(9): %v", err)
	}
	if err := svc.DeleteCreditor(ctx, 10); err != nil {
		t.Fatalf("DeleteCreditor(10): %v", err)
	}
}

func TestService_EditDebtor(t *testing.T) {
	t.Parallel()

	d := newDirectory(t)
	svc := newService(t, d, "jane", "DEBTOR")

	out, err := svc.EditDebtor(context.Background(), 3, DebtorInput{Name: "Janet", Surname: "Doe", Email: "janet@example.com"})
	if err != nil {
		t.Fatalf("EditDebtor: %v", err)
	}
	if out.FullName() != "Janet Doe" {
		t.Fatalf("out=%+v", out)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.edited.Email != "janet@example.com" {
		t.Fatalf("server saw %+v", d.edited)
	}
}
