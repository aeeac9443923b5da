// Package server exposes the answer pipeline over HTTP. JSON endpoints cover
// retrieval, answering, cache invalidation, and audit export; a websocket
// endpoint serves interactive clients.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/complyra/ragsafe/internal/models"
	"github.com/complyra/ragsafe/pkg/audit"
	"github.com/complyra/ragsafe/pkg/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the websocket frame for interactive clients.
type Message struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Filters *models.Filters `json:"filters,omitempty"`
	Data    interface{}     `json:"data,omitempty"`
}

type Config struct {
	Port string
}

type Server struct {
	config   Config
	service  *pipeline.Service
	auditLog *audit.Log
	logger   *slog.Logger
}

func New(config Config, service *pipeline.Service, auditLog *audit.Log, logger *slog.Logger) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:   config,
		service:  service,
		auditLog: auditLog,
		logger:   logger,
	}
}

// Handler builds the route table. Exposed separately from ListenAndServe so
// tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /answer", s.handleAnswer)
	mux.HandleFunc("POST /invalidate", s.handleInvalidate)
	mux.HandleFunc("POST /audit/review", s.handleReview)
	mux.HandleFunc("GET /audit/export", s.handleExport)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server listening", "port", s.config.Port)
	return srv.ListenAndServe()
}

type queryRequest struct {
	Query    string         `json:"query"`
	Filters  models.Filters `json:"filters"`
	UseCache *bool          `json:"use_cache,omitempty"`
}

func (r queryRequest) useCache() bool {
	return r.UseCache == nil || *r.UseCache
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	tmpl, err := s.service.Retrieve(r.Context(), req.Query, req.Filters, req.useCache())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tmpl)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	answer, err := s.service.Answer(r.Context(), req.Query, req.Filters, req.useCache())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	removed, err := s.service.InvalidateTenant(req.TenantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Approved bool   `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}

	if err := s.auditLog.MarkReviewed(r.Context(), req.ID, req.Approved); err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	if err := s.auditLog.Export(r.Context(), w); err != nil {
		s.logger.Error("audit export failed", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			break
		}
		s.handleMessage(r, conn, msg)
	}
}

func (s *Server) handleMessage(r *http.Request, conn *websocket.Conn, msg Message) {
	query := strings.TrimSpace(msg.Content)
	if query == "" {
		s.sendMessage(conn, "error", "empty query")
		return
	}

	var filters models.Filters
	if msg.Filters != nil {
		filters = *msg.Filters
	}

	s.sendMessage(conn, "status", "retrieving sources")

	answer, err := s.service.Answer(r.Context(), query, filters, true)
	if err != nil {
		s.sendMessage(conn, "error", err.Error())
		return
	}

	if answer.RequiresReview {
		s.sendMessage(conn, "status", "answer flagged for manual review")
	}
	if err := conn.WriteJSON(Message{
		Type:    "response",
		Content: answer.Response,
		Data:    answer,
	}); err != nil {
		s.logger.Error("websocket write failed", "error", err)
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType, content string) {
	if err := conn.WriteJSON(Message{Type: msgType, Content: content}); err != nil {
		s.logger.Error("websocket write failed", "error", err)
	}
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return req, false
	}
	return req, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if strings.HasPrefix(err.Error(), "invalid filters:") {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}
