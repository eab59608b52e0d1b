package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/studyquest/backend/internal/gamification"
	"github.com/studyquest/backend/internal/progress"
	"github.com/studyquest/backend/internal/session"
	"github.com/studyquest/backend/internal/store"
	"github.com/studyquest/backend/internal/ws"
)

func newTestClient(t *testing.T, token string) (*HTTPClient, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	clock := gamification.NewManualClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	sessions := session.NewManager(mem, clock, gamification.DefaultOptions())
	hub := ws.NewHub(0)
	sessions.OnEvent(hub.Publish)
	srv := httptest.NewServer(ws.NewServer(sessions, hub, nil, "").Handler())
	t.Cleanup(func() {
		srv.Close()
		sessions.CloseAll(context.Background())
	})
	return NewHTTPClient(srv.URL+"/", token), mem
}

func TestHTTPClient_SessionAndPoints(t *testing.T) {
	c, _ := newTestClient(t, "tok")

	info, err := c.OpenSession("u1")
	if err != nil {
		t.Fatalf("OpenSession error: %v", err)
	}
	if info.UserID != "u1" {
		t.Errorf("UserID = %q", info.UserID)
	}
	again, err := c.OpenSession("u1")
	if err != nil || again.ID != info.ID {
		t.Errorf("reopen = %+v, %v; want same session", again, err)
	}

	m, err := c.AddPoints(40)
	if err != nil {
		t.Fatalf("AddPoints error: %v", err)
	}
	if m.Applied != 40 || m.Points != 40 {
		t.Errorf("AddPoints = %+v", m)
	}

	p, err := c.Progress()
	if err != nil {
		t.Fatalf("Progress error: %v", err)
	}
	if p.Progress.Points != 40 || p.Level.Level != 1 {
		t.Errorf("progress = %d points level %d", p.Progress.Points, p.Level.Level)
	}
}

func TestHTTPClient_StudyQuizAndBuy(t *testing.T) {
	c, _ := newTestClient(t, "tok")
	if _, err := c.OpenSession("u1"); err != nil {
		t.Fatal(err)
	}

	m, err := c.StudySession(20, true)
	if err != nil || m.Applied != 100 {
		t.Fatalf("StudySession = %+v, %v; want 100 applied", m, err)
	}
	if _, err := c.StudyTime(15); err != nil {
		t.Fatalf("StudyTime error: %v", err)
	}
	if _, err := c.Quiz(3, 0, 0); err != nil {
		t.Fatalf("Quiz error: %v", err)
	}
	if _, err := c.BuyPowerUp(progress.PowerUpFocusMode); err != nil {
		t.Fatalf("BuyPowerUp error: %v", err)
	}
	if _, err := c.BuyPowerUp("bogus"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("BuyPowerUp(bogus) error = %v, want 404", err)
	}
}

func TestHTTPClient_SyncAndClose(t *testing.T) {
	c, mem := newTestClient(t, "tok")
	if _, err := c.OpenSession("u1"); err != nil {
		t.Fatal(err)
	}
	c.AddPoints(10)

	m, err := c.Push()
	if err != nil || !m.OK {
		t.Fatalf("Push = %+v, %v", m, err)
	}
	if mem.Persists() != 1 {
		t.Errorf("Persists() = %d, want 1", mem.Persists())
	}

	if err := c.CloseSession(); err != nil {
		t.Fatalf("CloseSession error: %v", err)
	}
	if _, err := c.Progress(); err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("Progress after close error = %v, want 401", err)
	}
}

func TestHTTPClient_NoToken(t *testing.T) {
	c, _ := newTestClient(t, "")
	if _, err := c.OpenSession("u1"); err == nil {
		t.Error("OpenSession without token should fail")
	}
}
