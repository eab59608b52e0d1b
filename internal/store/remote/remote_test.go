package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/studyquest/backend/internal/auth"
	"github.com/studyquest/backend/internal/progress"
	"github.com/studyquest/backend/internal/store"
)

// docServer is a tiny in-memory document service.
type docServer struct {
	mu       sync.Mutex
	docs     map[string][]byte
	lastAuth string
	status   int // forced response status when non-zero
}

func newDocServer(t *testing.T) (*docServer, *Store) {
	t.Helper()
	d := &docServer{docs: make(map[string][]byte)}
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)
	return d, New(srv.URL + "/")
}

func (d *docServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastAuth = r.Header.Get("Authorization")
	if d.status != 0 {
		http.Error(w, "forced", d.status)
		return
	}
	id := r.URL.Path[len("/progress/"):]
	switch r.Method {
	case http.MethodGet:
		doc, ok := d.docs[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(doc)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		d.docs[id] = body
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (d *docServer) auth() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastAuth
}

func TestStore_FetchMissing(t *testing.T) {
	_, s := newDocServer(t)
	if _, err := s.Fetch(context.Background(), "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestStore_PersistAndFetch(t *testing.T) {
	d, s := newDocServer(t)
	ctx := auth.WithToken(context.Background(), "tok-1")

	snap := progress.New()
	snap.Points = 150
	snap.Level = 2
	if err := s.Persist(ctx, "u1", snap); err != nil {
		t.Fatalf("Persist error: %v", err)
	}
	if got := d.auth(); got != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}

	got, err := s.Fetch(ctx, "u1")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if got.SyncKey() != snap.SyncKey() {
		t.Errorf("fetched %+v, want %+v", got.SyncKey(), snap.SyncKey())
	}
}

func TestStore_NoTokenSendsNoHeader(t *testing.T) {
	d, s := newDocServer(t)
	s.Fetch(context.Background(), "u1")
	if got := d.auth(); got != "" {
		t.Errorf("Authorization = %q, want empty", got)
	}
}

func TestStore_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, store.ErrNotFound},
		{http.StatusBadRequest, progress.ErrInvalidSnapshot},
		{http.StatusUnprocessableEntity, progress.ErrInvalidSnapshot},
		{http.StatusInternalServerError, nil},
	}
	for _, tt := range tests {
		d, s := newDocServer(t)
		d.mu.Lock()
		d.status = tt.status
		d.mu.Unlock()
		err := s.Persist(context.Background(), "u1", progress.New())
		if err == nil {
			t.Errorf("status %d: Persist succeeded", tt.status)
			continue
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
		if tt.want == nil && (errors.Is(err, store.ErrNotFound) || errors.Is(err, progress.ErrInvalidSnapshot)) {
			t.Errorf("status %d: err = %v, want a plain error", tt.status, err)
		}
	}
}

func TestStore_FetchRejectsCorruptDocument(t *testing.T) {
	d, s := newDocServer(t)
	d.mu.Lock()
	d.docs["u1"] = []byte(`{"points": "lots"}`)
	d.mu.Unlock()
	if _, err := s.Fetch(context.Background(), "u1"); !errors.Is(err, progress.ErrInvalidSnapshot) {
		t.Errorf("Fetch() error = %v, want ErrInvalidSnapshot", err)
	}
}

func TestStore_PersistValidatesLocally(t *testing.T) {
	d, s := newDocServer(t)
	snap := progress.New()
	snap.Points = -5
	if err := s.Persist(context.Background(), "u1", snap); !errors.Is(err, progress.ErrInvalidSnapshot) {
		t.Errorf("Persist() error = %v, want ErrInvalidSnapshot", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.docs) != 0 {
		t.Error("invalid snapshot reached the server")
	}
}
