// Package http wires the REST surface: auth, user, category and
// expense resources, chart endpoints and the datatable endpoints.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"bilancio/internal/auth"
	"bilancio/internal/cache"
	"bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

type Server struct {
	http.Server

	repo     *storage.Repository
	issuer   *auth.TokenIssuer
	expenses *services.ExpenseService
	limiter  *rateLimiter
	logger   *log.Logger

	// chart payloads per user, dropped on expense writes
	chartCache *cache.LRU[any]

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a
// ready-to-run server listening on addr.
func NewServer(addr string, repo *storage.Repository, issuer *auth.TokenIssuer, expenses *services.ExpenseService, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		repo:        repo,
		issuer:      issuer,
		expenses:    expenses,
		limiter:     newRateLimiter(60),
		logger:      logger.WithComponent("http"),
		chartCache:  cache.NewLRU[any](200, 5*time.Minute),
		stopCleanup: make(chan struct{}),
	}
	s.Server.Handler = s.wrap(mux)
	go s.runCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleHealth)

	s.route(mux, "POST", "/api/auth/token", http.HandlerFunc(s.handleLogin))
	s.route(mux, "POST", "/api/auth/token/refresh", http.HandlerFunc(s.handleRefresh))

	// user creation is open; with a token the same endpoint updates
	s.route(mux, "POST", "/api/user", http.HandlerFunc(s.handleUserSave))
	s.route(mux, "GET", "/api/user", s.protected(s.handleUserGetSelf))
	s.route(mux, "GET", "/api/user/{id}", s.protected(s.handleUserGet))
	s.route(mux, "PATCH", "/api/user", s.protected(s.handleUserPatch))
	s.route(mux, "DELETE", "/api/user", s.protected(s.handleUserDeactivate))

	s.route(mux, "GET", "/api/category", s.protected(s.handleCategoryList))
	s.route(mux, "POST", "/api/category", s.protected(s.handleCategorySave))
	s.route(mux, "GET", "/api/category/{id}", s.protected(s.handleCategoryGet))
	s.route(mux, "POST", "/api/category/{id}", s.protected(s.handleCategorySave))
	s.route(mux, "DELETE", "/api/category/{id}", s.protected(s.handleCategoryDisable))

	s.route(mux, "GET", "/api/expense", s.protected(s.handleExpenseList))
	s.route(mux, "POST", "/api/expense", s.protected(s.handleExpenseSave))
	s.route(mux, "GET", "/api/expense/{id}", s.protected(s.handleExpenseGet))
	s.route(mux, "POST", "/api/expense/{id}", s.protected(s.handleExpenseSave))
	s.route(mux, "DELETE", "/api/expense/{id}", s.protected(s.handleExpenseDelete))

	s.route(mux, "GET", "/api/history-chart/{months}", s.protected(s.handleHistoryChart))
	for _, p := range []string{
		"/api/categories-chart",
		"/api/categories-chart/{start}",
		"/api/categories-chart/{start}/{end}",
		"/api/categories-chart/{start}/{end}/{category}",
	} {
		s.route(mux, "GET", p, s.protected(s.handleCategoriesChart))
	}

	for _, p := range []string{
		"/api/expenses-datatable",
		"/api/expenses-datatable/{start}/{end}",
		"/api/expenses-datatable/{start}/{end}/{category}",
	} {
		s.route(mux, "GET", p, s.protected(s.handleExpensesDatatable))
	}
	for _, p := range []string{
		"/api/categories-balance-datatable",
		"/api/categories-balance-datatable/{start}/{end}",
		"/api/categories-balance-datatable/{start}/{end}/{category}",
	} {
		s.route(mux, "GET", p, s.protected(s.handleBalanceDatatable))
	}
	s.route(mux, "GET", "/api/categories-datatable", s.protected(s.handleCategoriesDatatable))
	s.route(mux, "GET", "/api/favorites-datatable", s.protected(s.handleFavoritesDatatable))
	s.route(mux, "GET", "/api/shares-datatable", s.protected(s.handleSharesDatatable))

	return s
}

// route registers a pattern with and without a trailing slash.
func (s *Server) route(mux *http.ServeMux, method, path string, h http.Handler) {
	mux.Handle(method+" "+path, h)
	mux.Handle(method+" "+path+"/{$}", h)
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.issuer.Middleware(h)
}

// runCleanup periodically drops stale rate-limiter entries and expired
// cache entries until Shutdown.
func (s *Server) runCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.limiter.cleanupStale()
			s.chartCache.CleanExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutine and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.stopCleanup) })
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// invalidateCharts drops the cached charts of every user whose data an
// expense write may have touched.
func (s *Server) invalidateCharts(userIDs ...int64) {
	for _, id := range userIDs {
		s.chartCache.DeletePrefix("charts:" + strconv.FormatInt(id, 10) + ":")
	}
}

func chartKey(userID int64, parts ...string) string {
	key := "charts:" + strconv.FormatInt(userID, 10)
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
