// Package statusapi exposes the read-only status/readiness/preflight
// surface named in the runner's external interface contract: three
// JSON endpoints sharing one response shape (go, reasons, warnings,
// checks), plus a websocket that pushes sanitised READINESS_SNAPSHOT
// events on every update. The HTTP/WS lifecycle is grounded on the
// teacher's internal/api.Server (gorilla/mux router, rs/cors wrapped
// handler, gorilla/websocket upgrader, zap logging, Start/Stop(ctx));
// this package carries none of that server's write paths since its
// whole surface is read-only.
package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

// sanitizedKeys lists the fields the downstream mirror must never see;
// Sanitize strips them (case-insensitively, recursively) before any
// payload crosses the websocket.
var sanitizedKeys = map[string]bool{
	"account_id":   true,
	"access_token": true,
	"api_key":      true,
	"secret":       true,
	"credentials":  true,
	"token":        true,
}

// Sanitize returns a copy of payload with every sanitizedKeys entry
// removed, recursing into nested maps so a credentials blob buried a
// level down is still stripped.
func Sanitize(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if sanitizedKeys[strings.ToLower(k)] {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			v = Sanitize(nested)
		}
		out[k] = v
	}
	return out
}

// Snapshot is the shared response shape for status, readiness, and
// preflight: a single go/no-go boolean, the ordered reasons a no-go
// fired, non-blocking warnings, and a per-check detail map.
type Snapshot struct {
	Go        bool           `json:"go"`
	Reasons   []string       `json:"reasons"`
	Warnings  []string       `json:"warnings"`
	Checks    map[string]any `json:"checks"`
	Timestamp time.Time      `json:"timestamp"`
}

// Inputs bundles everything the readiness evaluation reads. The
// runner refreshes this once per bar via Server.Update.
type Inputs struct {
	Market          types.MarketContext
	Risk            types.RiskState
	DVS             float64
	EQS             float64
	MinDataQuality  float64
	MinDVS          float64
	MinEQS          float64
	HeartbeatAge    time.Duration
	MaxHeartbeatAge time.Duration
}

// Evaluate turns Inputs into a Snapshot. Connectivity, heartbeat,
// data-quality and kill-switch failures are hard reasons (go=false);
// low DVS/EQS and a closed session are warnings. Mirrors the runner's own
// heartbeat-gates-decisioning rule: a stale or disconnected feed forces
// NO_TRADE, which this surface reports as not-go rather than silently
// guessing.
func Evaluate(in Inputs) Snapshot {
	var reasons, warnings []string
	checks := map[string]any{
		"market_context": map[string]any{
			"connected":    in.Market.Connected,
			"data_quality": in.Market.DataQuality,
			"session_open": in.Market.SessionOpen,
		},
		"gate": map[string]any{
			"dvs":               in.DVS,
			"eqs":               in.EQS,
			"kill_switch_active": in.Risk.KillSwitchActive,
		},
		"status": map[string]any{
			"trades_today":       in.Risk.TradesToday,
			"consecutive_losses": in.Risk.ConsecutiveLosses,
			"daily_pnl":          in.Risk.DailyPnL.String(),
		},
	}

	if !in.Market.Connected {
		reasons = append(reasons, "CONNECTION_DOWN")
	}
	if in.HeartbeatAge > in.MaxHeartbeatAge && in.MaxHeartbeatAge > 0 {
		reasons = append(reasons, "HEARTBEAT_STALE")
	}
	if in.Market.DataQuality < in.MinDataQuality {
		reasons = append(reasons, "DATA_QUALITY_BELOW_MIN")
	}
	if in.Risk.KillSwitchActive {
		reasons = append(reasons, "KILL_SWITCH_ACTIVE")
	}
	if in.DVS < in.MinDVS {
		warnings = append(warnings, "DVS_BELOW_MIN")
	}
	if in.EQS < in.MinEQS {
		warnings = append(warnings, "EQS_BELOW_MIN")
	}
	if !in.Market.SessionOpen {
		warnings = append(warnings, "SESSION_CLOSED")
	}

	sort.Strings(reasons)
	sort.Strings(warnings)

	return Snapshot{
		Go:        len(reasons) == 0,
		Reasons:   reasons,
		Warnings:  warnings,
		Checks:    checks,
		Timestamp: time.Now(),
	}
}

// Client is a subscribed websocket connection.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// Server is the read-only HTTP/WS surface. It holds the last computed
// Snapshot under a mutex and re-broadcasts it to subscribed clients
// whenever Update is called.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	addr       string
	wsPath     string
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	clients    map[string]*Client
	last       Snapshot
}

// NewServer wires the router the same way the teacher's API server
// does: one mux.Router, cors applied at Start, a permissive upgrader
// since this is a localhost operator surface.
func NewServer(logger *zap.Logger, addr, wsPath string) *Server {
	s := &Server{
		logger:  logger,
		addr:    addr,
		wsPath:  wsPath,
		router:  mux.NewRouter(),
		clients: make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		last: Snapshot{Checks: map[string]any{}},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/readiness", s.handleReadiness).Methods("GET")
	s.router.HandleFunc("/preflight", s.handlePreflight).Methods("GET")
	s.router.HandleFunc(s.wsPath, s.handleWebSocket)
}

// Start begins serving; blocks until Stop shuts the listener down.
func (s *Server) Start() error {
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	s.logger.Info("starting status api", zap.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Stop closes every websocket client then shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Update recomputes the snapshot and pushes a sanitised
// READINESS_SNAPSHOT event to every connected client.
func (s *Server) Update(in Inputs) Snapshot {
	snap := Evaluate(in)

	s.mu.Lock()
	s.last = snap
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	payload := Sanitize(map[string]any{
		"go":       snap.Go,
		"reasons":  snap.Reasons,
		"warnings": snap.Warnings,
		"checks":   snap.Checks,
	})
	msg, err := json.Marshal(map[string]any{
		"type":      string(types.EventReadinessSnapshot),
		"payload":   payload,
		"timestamp": snap.Timestamp.UnixMilli(),
	})
	if err != nil {
		s.logger.Error("marshal readiness snapshot", zap.Error(err))
		return snap
	}

	for _, c := range clients {
		select {
		case c.Send <- msg:
		default:
			s.logger.Warn("dropping slow status client", zap.String("client", c.ID))
		}
	}
	return snap
}

func (s *Server) current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Server) writeSnapshot(w http.ResponseWriter, snap Snapshot) {
	w.Header().Set("Content-Type", "application/json")
	if !snap.Go {
		w.WriteHeader(http.StatusOK) // permit=false is still exit/status 0, never an HTTP error
	}
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, s.current())
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, s.current())
}

// handlePreflight serves the same snapshot as status and readiness; the
// snapshot carries no config_hash check.
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	s.writeSnapshot(w, snap)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", zap.Error(err))
		return
	}

	client := &Client{ID: fmt.Sprintf("%p", conn), Conn: conn, Send: make(chan []byte, 16)}
	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()

	go s.writePump(client)
	go s.readPump(client)
}

// readPump only drains and discards; this surface takes no client
// input beyond keeping the connection alive for pings.
func (s *Server) readPump(c *Client) {
	defer s.dropClient(c)
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *Client) {
	defer s.dropClient(c)
	for msg := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *Server) dropClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; ok {
		delete(s.clients, c.ID)
		c.Conn.Close()
	}
}
