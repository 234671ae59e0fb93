// Package api exposes the engine's operation surface as a REST/JSON gateway
// for the CLI, the dashboard, and external agents.
//
// Caller authentication is out of scope: the X-Agent-ID header carries an
// identity already verified by the fronting identity layer.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trustmesh/backend/internal/engine"
	"github.com/trustmesh/backend/internal/events"
	"github.com/trustmesh/backend/internal/metrics"
	"github.com/trustmesh/backend/internal/middleware"
)

// Faucet credits free vault balances. Only wired outside production.
type Faucet interface {
	Credit(account string, amount uint64)
}

// Server is the REST gateway over the engine.
type Server struct {
	engine  *engine.Engine
	bus     *events.Bus
	metrics *metrics.Metrics
	faucet  Faucet
	limiter *middleware.RateLimiter
	env     string
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics attaches Prometheus instruments and enables /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithFaucet enables POST /api/vault/credit. Ignored when env is production.
func WithFaucet(f Faucet) Option {
	return func(s *Server) { s.faucet = f }
}

// WithRateLimit caps each caller at limit requests per minute.
func WithRateLimit(limit int) Option {
	return func(s *Server) { s.limiter = middleware.NewRateLimiter(limit) }
}

// NewServer creates the gateway. env selects production hardening (no faucet).
func NewServer(eng *engine.Engine, bus *events.Bus, env string, opts ...Option) *Server {
	s := &Server{engine: eng, bus: bus, env: env}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	// CORS middleware for the browser dashboard.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Agent-ID")
			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	// Agents
	r.HandleFunc("/api/agents", s.handleRegister).Methods("POST")
	r.HandleFunc("/api/agents", s.handleListAgents).Methods("GET")
	r.HandleFunc("/api/agents/{id}", s.handleGetAgent).Methods("GET")
	r.HandleFunc("/api/agents/{id}/reputation", s.handleReputation).Methods("GET")

	// Staking
	r.HandleFunc("/api/stake", s.handleStake).Methods("POST")
	r.HandleFunc("/api/unstake/request", s.handleRequestUnstake).Methods("POST")
	r.HandleFunc("/api/unstake", s.handleUnstake).Methods("POST")

	// Deals
	r.HandleFunc("/api/deals", s.handleCreateDeal).Methods("POST")
	r.HandleFunc("/api/deals/{id}", s.handleGetDeal).Methods("GET")
	r.HandleFunc("/api/deals/{id}/confirm", s.handleConfirmDeal).Methods("POST")
	r.HandleFunc("/api/deals/{id}/dispute", s.handleDisputeDeal).Methods("POST")
	r.HandleFunc("/api/deals/{id}/cancel", s.handleCancelExpiredDeal).Methods("POST")

	// Dashboard feeds
	r.HandleFunc("/api/leaderboard", s.handleLeaderboard).Methods("GET")
	r.HandleFunc("/api/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/api/events", s.handleEventStream).Methods("GET")
	r.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
	r.HandleFunc("/", s.handleDashboard).Methods("GET")

	// Dev faucet
	if s.faucet != nil && s.env != "production" {
		r.HandleFunc("/api/vault/credit", s.handleFaucet).Methods("POST")
	}

	if s.metrics != nil {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	return r
}

// Start serves the gateway on the given port and blocks.
func (s *Server) Start(port string) error {
	addr := fmt.Sprintf(":%s", port)
	slog.Info("API gateway listening", "addr", addr, "env", s.env)
	return http.ListenAndServe(addr, s.Router())
}
