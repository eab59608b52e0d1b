package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/backend/internal/gamification"
	"github.com/studyquest/backend/internal/progress"
	"github.com/studyquest/backend/internal/session"
)

// Request bounds for the mutation endpoints.
const (
	maxMinutes     = 24 * 60
	maxQuizAnswers = 10_000
)

// Server serves the progress REST API and the reward WebSocket.
type Server struct {
	sessions       *session.Manager
	hub            *Hub
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	opsToken       string // guards /api/health when set
	startedAt      time.Time
}

// NewServer creates a Server. opsToken, when set, guards /api/health.
func NewServer(sessions *session.Manager, hub *Hub, allowedOrigins []string, opsToken string) *Server {
	s := &Server{
		sessions:       sessions,
		hub:            hub,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		opsToken:       opsToken,
		startedAt:      time.Now(),
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// sessionHandler is an endpoint that needs the caller's open session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// SetupRoutes registers the API and WebSocket routes on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/session", s.handleOpenSession)
	mux.HandleFunc("DELETE /api/session", s.withSession(s.handleCloseSession))
	mux.HandleFunc("GET /api/progress", s.withSession(s.handleProgress))

	mux.HandleFunc("POST /api/points", s.withSession(s.handlePoints))
	mux.HandleFunc("POST /api/study-session", s.withSession(s.handleStudySession))
	mux.HandleFunc("POST /api/quiz", s.withSession(s.handleQuiz))
	mux.HandleFunc("POST /api/study-time", s.withSession(s.handleStudyTime))
	mux.HandleFunc("POST /api/streak", s.withSession(s.handleStreak))

	mux.HandleFunc("POST /api/powerups/{id}/buy", s.withSession(s.handleBuyPowerUp))
	mux.HandleFunc("POST /api/powerups/{id}/activate", s.withSession(s.handleActivatePowerUp))
	mux.HandleFunc("POST /api/quests/{id}/progress", s.withSession(s.handleQuestProgress))
	mux.HandleFunc("POST /api/quests/{id}/complete", s.withSession(s.handleCompleteQuest))
	mux.HandleFunc("POST /api/challenges/{id}/complete", s.withSession(s.handleCompleteChallenge))
	mux.HandleFunc("POST /api/achievements/{id}/unlock", s.withSession(s.handleUnlockAchievement))

	mux.HandleFunc("POST /api/coins/use", s.withSession(s.handleUseCoin))
	mux.HandleFunc("POST /api/coins/reset", s.withSession(s.handleResetCoins))

	mux.HandleFunc("POST /api/sync/push", s.withSession(s.handlePush))
	mux.HandleFunc("POST /api/sync/pull", s.withSession(s.handlePull))
}

// Handler returns the routed API wrapped in the security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// ── Sessions ────────────────────────────────────────────────────────────

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req OpenSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := s.sessions.Open(r.Context(), req.UserID, token)
	switch {
	case errors.Is(err, session.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, session.ErrTokenInUse):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, session.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.hub.CloseSession(sess.ID)
	if err := s.sessions.Close(r.Context(), sess.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	e := sess.Engine
	var active []progress.PowerUp
	for _, p := range e.PowerUps() {
		if p.Active {
			active = append(active, p)
		}
	}
	writeJSON(w, http.StatusOK, ProgressResponse{
		Session:  sess.Info(),
		Progress: e.Snapshot(),
		Level:    e.LevelProgress(),
		PowerUps: active,
		Coins:    e.CoinsLeft(),
		Sync:     e.SyncStatus(),
	})
}

// ── Points and study ────────────────────────────────────────────────────

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req PointsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount < -gamification.MaxPoints || req.Amount > gamification.MaxPoints {
		http.Error(w, fmt.Sprintf("amount must be within ±%d", gamification.MaxPoints), http.StatusBadRequest)
		return
	}
	applied := sess.Engine.AddPoints(req.Amount)
	writeMutation(w, sess, true, applied)
}

func (s *Server) handleStudySession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req StudySessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Minutes < 0 || req.Minutes > maxMinutes {
		http.Error(w, fmt.Sprintf("minutes must be within [0, %d]", maxMinutes), http.StatusBadRequest)
		return
	}
	applied := sess.Engine.AddStudySessionPoints(req.Minutes, req.Completed)
	writeMutation(w, sess, true, applied)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req QuizRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !inRange(req.Correct, maxQuizAnswers) || !inRange(req.Wrong, maxQuizAnswers) || !inRange(req.Revealed, maxQuizAnswers) {
		http.Error(w, fmt.Sprintf("quiz counts must be within [0, %d]", maxQuizAnswers), http.StatusBadRequest)
		return
	}
	applied := sess.Engine.AddQuizPoints(req.Correct, req.Wrong, req.Revealed)
	sess.Engine.ResetCoins()
	writeMutation(w, sess, true, applied)
}

func inRange(n, hi int) bool {
	return n >= 0 && n <= hi
}

func (s *Server) handleStudyTime(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req StudyTimeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Minutes <= 0 || req.Minutes > maxMinutes {
		http.Error(w, fmt.Sprintf("minutes must be within [1, %d]", maxMinutes), http.StatusBadRequest)
		return
	}
	sess.Engine.AddStudyTime(req.Minutes)
	writeMutation(w, sess, true, 0)
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req StreakRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Action {
	case "increment":
		sess.Engine.IncrementStreak()
	case "reset":
		sess.Engine.ResetStreak()
	default:
		http.Error(w, fmt.Sprintf("unknown streak action %q", req.Action), http.StatusBadRequest)
		return
	}
	writeMutation(w, sess, true, 0)
}

// ── Power-ups ───────────────────────────────────────────────────────────

func (s *Server) handleBuyPowerUp(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id := r.PathValue("id")
	if !knownPowerUp(sess.Engine, id) {
		http.Error(w, "unknown power-up", http.StatusNotFound)
		return
	}
	if !sess.Engine.BuyPowerUp(id) {
		http.Error(w, "not enough points", http.StatusConflict)
		return
	}
	writeMutation(w, sess, true, 0)
}

func (s *Server) handleActivatePowerUp(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.Engine.ActivatePowerUp(r.PathValue("id")); err != nil {
		if errors.Is(err, gamification.ErrUnknownPowerUp) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeMutation(w, sess, true, 0)
}

func knownPowerUp(e *gamification.Engine, id string) bool {
	for _, p := range e.PowerUps() {
		if p.ID == id {
			return true
		}
	}
	return false
}

// ── Unlocks ─────────────────────────────────────────────────────────────

func (s *Server) handleQuestProgress(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req QuestProgressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Delta <= 0 || req.Delta > gamification.MaxCount {
		http.Error(w, fmt.Sprintf("delta must be within [1, %d]", gamification.MaxCount), http.StatusBadRequest)
		return
	}
	completed := sess.Engine.CheckQuestProgress(r.PathValue("id"), req.Delta)
	writeMutation(w, sess, completed, 0)
}

func (s *Server) handleCompleteQuest(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeMutation(w, sess, sess.Engine.CompleteQuest(r.PathValue("id")), 0)
}

func (s *Server) handleCompleteChallenge(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeMutation(w, sess, sess.Engine.CompleteChallenge(r.PathValue("id")), 0)
}

func (s *Server) handleUnlockAchievement(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeMutation(w, sess, sess.Engine.UnlockAchievement(r.PathValue("id")), 0)
}

// ── Coins ───────────────────────────────────────────────────────────────

func (s *Server) handleUseCoin(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeMutation(w, sess, sess.Engine.UseCoin(), 0)
}

func (s *Server) handleResetCoins(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	sess.Engine.ResetCoins()
	writeMutation(w, sess, true, 0)
}

// ── Sync ────────────────────────────────────────────────────────────────

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeMutation(w, sess, sess.Engine.SyncToDatabase(r.Context()), 0)
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeMutation(w, sess, sess.Engine.FetchLatestProgress(r.Context()), 0)
}

// ── WebSocket ───────────────────────────────────────────────────────────

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}

	snap := sess.Engine.Snapshot()
	c, err := s.hub.AddClient(conn, sess.Info(), HelloPayload{
		UserID: sess.UserID,
		Points: snap.Points,
		Level:  snap.Level,
	})
	if err != nil {
		log.WithError(err).Warn("ws client rejected")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}

	entry := log.WithFields(log.Fields{"session": sess.ID, "remote": r.RemoteAddr})
	entry.Info("WebSocket client connected")
	go func() {
		defer func() {
			s.hub.RemoveClient(c)
			entry.Info("WebSocket client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ── Plumbing ────────────────────────────────────────────────────────────

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.lookup(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r, sess)
	}
}

// lookup resolves the caller's token to its open session.
func (s *Server) lookup(r *http.Request) (*session.Session, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, false
	}
	return s.sessions.ByToken(token)
}

// bearerToken reads the caller's token from the Authorization header, or
// from the token query parameter for browser websocket clients.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		tok := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		return tok, tok != ""
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok, true
	}
	return "", false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMutation(w http.ResponseWriter, sess *session.Session, ok bool, applied int) {
	snap := sess.Engine.Snapshot()
	writeJSON(w, http.StatusOK, MutationResponse{
		OK:        ok,
		Applied:   applied,
		Points:    snap.Points,
		Level:     snap.Level,
		Streak:    snap.Streak,
		CoinsLeft: sess.Engine.CoinsLeft(),
	})
}

// NewHTTPServer binds h to host:port.
func NewHTTPServer(host string, port int, h http.Handler) *http.Server {
	addr := fmt.Sprintf("%s:%d", host, port)
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
