// Package server exposes the agent over HTTP: a REST API for compile,
// upload, discovery and monitor control, plus a WebSocket stream that
// pushes build and device events to every connected client.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/builder"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/monitor"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/registry"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/transcript"
)

// Server coordinates builds and the serial monitor and broadcasts their
// events to WebSocket clients.
type Server struct {
	cfg      *Config
	builder  *builder.Builder
	registry *registry.Registry
	session  *monitor.Session
	recorder *transcript.Recorder

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure pushed to all WebSocket clients. Event
// names the category; the other fields are filled per category.
type Frame struct {
	Event   string    `json:"event"`
	Port    string    `json:"port,omitempty"`
	Line    string    `json:"line,omitempty"`
	Chunk   []byte    `json:"chunk,omitempty"` // base64 in JSON
	Values  []float64 `json:"values,omitempty"`
	Message string    `json:"message,omitempty"`
	Stamp   int64     `json:"stamp"` // Unix ms
}

// wsCommand is the inbound WebSocket message shape.
type wsCommand struct {
	Action string `json:"action"`
	Data   string `json:"data"`
}

// New creates a new Server and wires build and monitor events into the
// broadcast stream.
func New(cfg *Config, b *builder.Builder, reg *registry.Registry, session *monitor.Session) *Server {
	s := &Server{
		cfg:      cfg,
		builder:  b,
		registry: reg,
		session:  session,
		recorder: transcript.New(cfg.Transcript),
		clients:  make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.wireEvents()
	return s
}

// wireEvents registers the single listener each event category carries
// and fans the events out to every WebSocket client.
func (s *Server) wireEvents() {
	s.builder.OnProgress(func(stage string) {
		s.broadcast(Frame{Event: "progress", Message: stage, Stamp: stampNow()})
	})
	s.builder.OnOutput(func(chunk string) {
		s.broadcast(Frame{Event: "output", Message: chunk, Stamp: stampNow()})
	})

	s.session.OnConnected(func(addr string) {
		s.broadcast(Frame{Event: "connected", Port: addr, Stamp: stampNow()})
	})
	s.session.OnDisconnected(func(addr string) {
		s.broadcast(Frame{Event: "disconnected", Port: addr, Stamp: stampNow()})
	})
	s.session.OnData(func(line string) {
		s.recorder.Received(line)
		s.broadcast(Frame{Event: "data", Line: line, Stamp: stampNow()})
	})
	s.session.OnRawData(func(chunk []byte) {
		s.broadcast(Frame{Event: "rawData", Chunk: chunk, Stamp: stampNow()})
	})
	s.session.OnPlotData(func(values []float64, line string) {
		s.broadcast(Frame{Event: "plotData", Values: values, Line: line, Stamp: stampNow()})
	})
	s.session.OnError(func(err error) {
		s.broadcast(Frame{Event: "error", Message: err.Error(), Stamp: stampNow()})
	})
	s.session.OnSent(func(data string) {
		s.recorder.Sent(data)
		s.broadcast(Frame{Event: "sent", Line: data, Stamp: stampNow()})
	})
}

func stampNow() int64 {
	return time.Now().UnixMilli()
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	// WebSocket event stream
	mux.HandleFunc("/ws", s.handleWS)

	// Build API
	mux.HandleFunc("/api/compile", s.handleCompile)
	mux.HandleFunc("/api/upload", s.handleUpload)

	// Discovery API
	mux.HandleFunc("/api/boards", s.handleBoards)
	mux.HandleFunc("/api/ports", s.handlePorts)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/libraries/search", s.handleLibrarySearch)
	mux.HandleFunc("/api/libraries/install", s.handleLibraryInstall)

	// Monitor API
	mux.HandleFunc("/api/monitor/connect", s.handleMonitorConnect)
	mux.HandleFunc("/api/monitor/disconnect", s.handleMonitorDisconnect)
	mux.HandleFunc("/api/monitor/send", s.handleMonitorSend)
	mux.HandleFunc("/api/monitor/reset", s.handleMonitorReset)
	mux.HandleFunc("/api/monitor/control", s.handleMonitorControl)
	mux.HandleFunc("/api/monitor/status", s.handleMonitorStatus)

	// Config API
	mux.HandleFunc("/api/config", s.handleConfig)

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		s.session.Disconnect()
		s.recorder.Close()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	return srv.ListenAndServe()
}

// ============================================================
// WebSocket
// ============================================================

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()

	log.Printf("[ws] client connected (%d total)", total)

	// Send an initial snapshot so a client joining mid-session knows the
	// monitor state.
	snapshot := Frame{
		Event:   "status",
		Port:    s.session.Address(),
		Message: s.session.State().String(),
		Stamp:   stampNow(),
	}
	if data, err := json.Marshal(snapshot); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine, handles incoming commands until the client drops
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			remaining := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", remaining)
		}()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var cmd wsCommand
			if err := json.Unmarshal(msg, &cmd); err != nil {
				continue
			}
			switch cmd.Action {
			case "send":
				if err := s.session.Write(cmd.Data); err != nil {
					s.broadcast(Frame{Event: "error", Message: err.Error(), Stamp: stampNow()})
				}
			case "reset":
				if err := s.session.ResetDevice(); err != nil {
					s.broadcast(Frame{Event: "error", Message: err.Error(), Stamp: stampNow()})
				}
			}
		}
	}()
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

// ============================================================
// Build API
// ============================================================

type buildRequest struct {
	Sketch string `json:"sketch"`
	FQBN   string `json:"fqbn"`
	Port   string `json:"port"`
}

// fqbnOrDefault falls back to the configured default board.
func (s *Server) fqbnOrDefault(fqbn string) string {
	if fqbn != "" {
		return fqbn
	}
	return s.cfg.Toolchain.FQBN
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req buildRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Sketch == "" {
		http.Error(w, "sketch is required", 400)
		return
	}

	// Compile failures are results, not HTTP errors; the outcome rides in
	// the body either way.
	result := s.builder.Compile(r.Context(), req.Sketch, s.fqbnOrDefault(req.FQBN))
	writeJSON(w, result)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req buildRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Sketch == "" {
		http.Error(w, "sketch is required", 400)
		return
	}
	port := req.Port
	if port == "" {
		port = s.cfg.Serial.PortPath
	}
	if port == "" {
		http.Error(w, "port is required", 400)
		return
	}

	result := s.builder.Upload(r.Context(), req.Sketch, s.fqbnOrDefault(req.FQBN), port)
	writeJSON(w, result)
}

// ============================================================
// Discovery API
// ============================================================

func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.registry.Boards(r.Context()))
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.registry.Ports(r.Context()))
}

// handleSnapshot serves the combined boards and ports view hosts fetch on
// startup. Both listings are fail-open, so the response is always 200.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.registry.Snapshot(r.Context()))
}

func (s *Server) handleLibrarySearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "q is required", 400)
		return
	}
	writeJSON(w, s.registry.SearchLibraries(r.Context(), query))
}

func (s *Server) handleLibraryInstall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}
	if err := s.registry.InstallLibrary(r.Context(), req.Name); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// ============================================================
// Monitor API
// ============================================================

type connectRequest struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baudRate"`
	DataBits int    `json:"dataBits"`
	StopBits int    `json:"stopBits"`
	Parity   string `json:"parity"`
}

func (s *Server) handleMonitorConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req connectRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	// Unset fields fall back to the configured serial defaults.
	def := s.cfg.Serial
	if req.Port == "" {
		req.Port = def.PortPath
	}
	if req.Port == "" {
		http.Error(w, "port is required", 400)
		return
	}
	cfg := monitor.Config{
		BaudRate: req.BaudRate,
		DataBits: req.DataBits,
		StopBits: req.StopBits,
		Parity:   req.Parity,
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = def.BaudRate
	}

	if err := s.session.Connect(req.Port, cfg); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "port": req.Port})
}

func (s *Server) handleMonitorDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	if err := s.session.Disconnect(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

type sendRequest struct {
	Data string `json:"data"`
	Raw  bool   `json:"raw"`
}

func (s *Server) handleMonitorSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	var err error
	if req.Raw {
		err = s.session.WriteRaw([]byte(req.Data))
	} else {
		err = s.session.Write(req.Data)
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleMonitorReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	if err := s.session.ResetDevice(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// controlRequest carries the desired control line levels. Nil means leave
// that line alone.
type controlRequest struct {
	DTR *bool `json:"dtr"`
	RTS *bool `json:"rts"`
}

func (s *Server) handleMonitorControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req controlRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.DTR == nil && req.RTS == nil {
		http.Error(w, "dtr or rts is required", 400)
		return
	}

	if req.DTR != nil {
		if err := s.session.SetDTR(*req.DTR); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
	}
	if req.RTS != nil {
		if err := s.session.SetRTS(*req.RTS); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	status := struct {
		State  string         `json:"state"`
		Port   string         `json:"port,omitempty"`
		Config monitor.Config `json:"config"`
	}{
		State:  s.session.State().String(),
		Port:   s.session.Address(),
		Config: s.session.Config(),
	}
	writeJSON(w, status)
}

// ============================================================
// Config API
// ============================================================

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := s.cfg.Save(); err != nil {
			log.Printf("[config] save failed: %v", err)
		}
		// Recording can be toggled through the config API
		s.recorder.SetEnabled(s.cfg.Transcript.Enabled)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", 405)
	}
}

// ============================================================
// Helpers
// ============================================================

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] encode response: %v", err)
	}
}
