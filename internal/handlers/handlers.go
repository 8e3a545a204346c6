package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"dietboard/internal/catalog"
	"dietboard/internal/engine"
	applog "dietboard/internal/log"
	"dietboard/internal/targets"
)

const sessionBoardIDKey = "board:id"

var (
	sessionManager *scs.SessionManager
	database       *gorm.DB
	nutrients      *catalog.NutrientCatalog
	foods          *catalog.FoodCatalog
	targetStore    *targets.Store
	searchLimit    int

	boards *boardRegistry
)

type boardEntry struct {
	board    *engine.Board
	lastSeen time.Time
}

// boardRegistry holds the in-memory boards keyed by session board id. An
// expired session can never reach its board again, so boards idle past the
// TTL are swept to keep the map from growing with every visitor.
type boardRegistry struct {
	mu     sync.Mutex
	boards map[string]*boardEntry
	ttl    time.Duration
	stop   chan struct{}
}

func newBoardRegistry(ttl time.Duration) *boardRegistry {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	r := &boardRegistry{
		boards: make(map[string]*boardEntry),
		ttl:    ttl,
		stop:   make(chan struct{}),
	}
	go r.cleanup()
	return r
}

func (r *boardRegistry) get(id string, create func() *engine.Board) *engine.Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.boards[id]; ok {
		entry.lastSeen = time.Now()
		return entry.board
	}
	board := create()
	r.boards[id] = &boardEntry{board: board, lastSeen: time.Now()}
	return board
}

func (r *boardRegistry) evictStale(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.boards {
		if now.Sub(entry.lastSeen) > r.ttl {
			delete(r.boards, id)
		}
	}
}

func (r *boardRegistry) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.evictStale(now)
		}
	}
}

func (r *boardRegistry) close() {
	close(r.stop)
}

// Configure installs the shared dependencies used by the HTTP handlers.
// boardTTL bounds how long an untouched board survives; it should match the
// session lifetime.
func Configure(sm *scs.SessionManager, db *gorm.DB, nc *catalog.NutrientCatalog, fc *catalog.FoodCatalog, ts *targets.Store, limit int, boardTTL time.Duration) {
	sessionManager = sm
	database = db
	nutrients = nc
	foods = fc
	targetStore = ts
	searchLimit = limit
	if boards != nil {
		boards.close()
	}
	boards = newBoardRegistry(boardTTL)
}

func configured() bool {
	return sessionManager != nil && nutrients != nil && foods != nil && targetStore != nil
}

// boardFor returns the board bound to the request's session, creating both
// the board and its session binding on first use.
func boardFor(r *http.Request) *engine.Board {
	boardID := sessionManager.GetString(r.Context(), sessionBoardIDKey)
	if boardID == "" {
		boardID = uuid.NewString()
		sessionManager.Put(r.Context(), sessionBoardIDKey, boardID)
		applog.Debug(r.Context(), "board created for session", "boardID", boardID)
	}

	return boards.get(boardID, func() *engine.Board {
		return engine.NewBoard(nutrients, foods, foods, targetStore)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Error(context.Background(), "failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
