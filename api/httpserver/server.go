// Package httpserver exposes the order gateway over REST plus a
// WebSocket event feed.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"odin/api/feed"
	"odin/domain/engine"
	"odin/domain/funds"
	"odin/infra/metrics"
	"odin/service"
)

type Server struct {
	svc         *service.OrderService
	hub         *feed.Hub
	log         *zap.Logger
	operatorKey string
	router      *mux.Router
	pairs       map[string]engine.Config

	http *http.Server
}

func New(svc *service.OrderService, hub *feed.Hub, m *metrics.Metrics, log *zap.Logger, listenAddr, operatorKey string) *Server {
	s := &Server{
		svc:         svc,
		hub:         hub,
		log:         log,
		operatorKey: operatorKey,
		router:      mux.NewRouter(),
		pairs:       make(map[string]engine.Config),
	}
	for _, cfg := range svc.Pairs() {
		s.pairs[cfg.ID] = cfg
	}

	s.routes(m)
	s.http = &http.Server{
		Addr:         listenAddr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes(m *metrics.Metrics) {
	v1 := s.router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/orders", s.handleSubmit).Methods("POST")
	v1.HandleFunc("/pairs", s.handlePairs).Methods("GET")
	v1.HandleFunc("/pairs/{pair}/orders/{id}", s.handleGetOrder).Methods("GET")
	v1.HandleFunc("/pairs/{pair}/orders/{id}", s.handleCancel).Methods("DELETE")
	v1.HandleFunc("/pairs/{pair}/orders/{id}/replace", s.handleReplace).Methods("POST")
	v1.HandleFunc("/pairs/{pair}/orders/cancel-batch", s.handleCancelBatch).Methods("POST")
	v1.HandleFunc("/pairs/{pair}/book", s.handleBook).Methods("GET")
	v1.HandleFunc("/pairs/{pair}/book/size", s.handleBookSize).Methods("GET")
	v1.HandleFunc("/pairs/{pair}/top", s.handleTop).Methods("GET")
	v1.HandleFunc("/pairs/{pair}/auction", s.handleAuctionState).Methods("GET")

	admin := v1.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireOperator)
	admin.HandleFunc("/pairs/{pair}/auction/mode", s.handleAuctionMode).Methods("POST")
	admin.HandleFunc("/pairs/{pair}/auction/price", s.handleAuctionPrice).Methods("POST")
	admin.HandleFunc("/pairs/{pair}/auction/match", s.handleAuctionMatch).Methods("POST")
	admin.HandleFunc("/pairs/{pair}/fees", s.handleFeeRates).Methods("POST")

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}
	s.router.Handle("/metrics", m.Handler())
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router is exposed for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.operatorKey == "" || r.Header.Get("X-Operator-Key") != s.operatorKey {
			writeError(w, http.StatusUnauthorized, "operator key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// pairFromRequest resolves the {pair} path segment. URLs spell the pair
// with a hyphen (ALOT-USDC) since the canonical id contains a slash.
func (s *Server) pairFromRequest(r *http.Request) (engine.Config, bool) {
	id := strings.Replace(mux.Vars(r)["pair"], "-", "/", 1)
	cfg, ok := s.pairs[id]
	return cfg, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrAuctionState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, funds.ErrInsufficient):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrUnknownPair):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
