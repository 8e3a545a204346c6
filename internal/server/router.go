package server

import (
	"context"
	"net/http"

	"dietboard/internal/handlers"
	applog "dietboard/internal/log"
)

func newRouter() http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")
	mux.HandleFunc("/healthz", handlers.Health)
	mux.HandleFunc("/api/nutrients", handlers.Nutrients)
	mux.HandleFunc("/api/foods", handlers.FoodSearch)
	mux.HandleFunc("/api/board", handlers.BoardState)
	mux.HandleFunc("/api/board/entries", handlers.BoardEntryResource)
	mux.HandleFunc("/api/board/entries/", handlers.BoardEntryResource)
	mux.HandleFunc("/api/board/columns/toggle", handlers.BoardColumnToggle)
	mux.HandleFunc("/api/targets/", handlers.TargetResource)
	applog.Debug(context.Background(), "routes registered")
	return mux
}
