// Package devicemock emulates a StreamMagic streamer's control endpoint for
// tests and the mock-device command. It answers the info and user-eq paths
// over the same JSON-envelope protocol the real device speaks.
package devicemock

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"rew2streammagic/internal/eq"
	"rew2streammagic/internal/logger"
)

// Send timing and message size limits.
const (
	writeWait  = 10 * time.Second
	maxMsgSize = 1 << 14 // 16 KB
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type deviceRequest struct {
	Path   string          `json:"path"`
	Params json.RawMessage `json:"params,omitempty"`
}

type deviceResponse struct {
	Path    string `json:"path"`
	Result  int    `json:"result"`
	Message string `json:"message,omitempty"`
	Params  *struct {
		Data any `json:"data,omitempty"`
	} `json:"params,omitempty"`
}

// Server is a scriptable mock device. The zero values answer every request
// with success; tests flip the Apply* fields to script failures.
type Server struct {
	log *logger.Logger

	APIVersion string
	Model      string
	Name       string

	// ApplyResult is the result code returned for the user-eq path; 0
	// means success. ApplyMessage rides along on non-success results.
	ApplyResult  int
	ApplyMessage string
	// DropOnApply closes the connection instead of answering the user-eq
	// request, simulating a mid-transfer disconnect.
	DropOnApply bool

	unitID string

	mu     sync.Mutex
	lastEQ *eq.UserEQ

	httpServer *http.Server
}

// New returns a mock device reporting apiVersion.
func New(apiVersion string, log *logger.Logger) *Server {
	return &Server{
		log:        log,
		APIVersion: apiVersion,
		Model:      "CXN100",
		Name:       "Mock CXN100",
		unitID:     uuid.NewString(),
	}
}

// LastApplied returns the band list from the most recent user-eq request,
// or nil when none arrived.
func (s *Server) LastApplied() *eq.UserEQ {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEQ
}

// Routes builds the Gin router exposing the control endpoint.
func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/smoip", s.wsConnect)
	return router
}

// Run serves the control endpoint on the given port until Shutdown.
func (s *Server) Run(port string) error {
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	s.httpServer = &http.Server{
		Addr:              port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP listener, allowing in-flight upgrades to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) wsConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxMsgSize)

	connID := uuid.NewString()
	s.log.Debugw("ws_client_connected", "conn", connID)

	for {
		var req deviceRequest
		if err := conn.ReadJSON(&req); err != nil {
			s.log.Debugw("ws_client_closed", "conn", connID, "err", err)
			return
		}
		if !s.handle(conn, req) {
			return
		}
	}
}

// handle answers one request; a false return closes the connection.
func (s *Server) handle(conn *websocket.Conn, req deviceRequest) bool {
	switch req.Path {
	case "/system/info":
		return s.write(conn, okResponse(req.Path, map[string]any{
			"name":        s.Name,
			"model":       s.Model,
			"unit_id":     s.unitID,
			"api_version": s.APIVersion,
		}))
	case "/zone/user_eq":
		if s.DropOnApply {
			return false
		}
		if s.ApplyResult != 0 && s.ApplyResult != http.StatusOK {
			return s.write(conn, deviceResponse{
				Path:    req.Path,
				Result:  s.ApplyResult,
				Message: s.ApplyMessage,
			})
		}
		var userEQ eq.UserEQ
		if err := json.Unmarshal(req.Params, &userEQ); err != nil {
			return s.write(conn, deviceResponse{
				Path:    req.Path,
				Result:  http.StatusBadRequest,
				Message: "malformed user_eq payload",
			})
		}
		s.mu.Lock()
		s.lastEQ = &userEQ
		s.mu.Unlock()
		return s.write(conn, okResponse(req.Path, nil))
	default:
		return s.write(conn, deviceResponse{
			Path:    req.Path,
			Result:  http.StatusNotFound,
			Message: "unknown path",
		})
	}
}

func (s *Server) write(conn *websocket.Conn, resp deviceResponse) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(resp); err != nil {
		s.log.Debugw("ws_write_failed", "err", err)
		return false
	}
	return true
}

func okResponse(path string, data any) deviceResponse {
	resp := deviceResponse{Path: path, Result: http.StatusOK}
	if data != nil {
		resp.Params = &struct {
			Data any `json:"data,omitempty"`
		}{Data: data}
	}
	return resp
}
