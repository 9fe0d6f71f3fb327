// Package web provides the live results server for vapixprobe.
package web

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/vapixprobe/vapixprobe/internal/runner"
	"github.com/vapixprobe/vapixprobe/pkg/types"
)

const maxRetainedOutcomes = 200

// BatchStatus holds the state of the current (or last) batch run.
type BatchStatus struct {
	Running   bool      `json:"running"`
	BatchName string    `json:"batchName"`
	TargetIP  string    `json:"targetIp"`
	StartTime time.Time `json:"startTime"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	OKCount   int       `json:"okCount"`
	WarnCount int       `json:"warnCount"`
	ErrCount  int       `json:"errCount"`
	Skipped   int       `json:"skipped"`
	Cancelled bool      `json:"cancelled"`
	Elapsed   string    `json:"elapsed"`
}

// OutcomeLog is one dispatched request as exposed to the browser.
type OutcomeLog struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Preset     string    `json:"preset"`
	Tag        types.Tag `json:"tag"`
	StatusCode int       `json:"statusCode"`
	Duration   int64     `json:"duration"` // milliseconds
	Skipped    bool      `json:"skipped"`
	Note       string    `json:"note,omitempty"`
}

// PresetLister exposes the preset catalog to the server.
type PresetLister interface {
	Filter(mode types.TestMode, search string) []types.Preset
}

// Server serves batch status, recent outcomes, and a live websocket
// feed over HTTP.
type Server struct {
	app     *fiber.App
	presets PresetLister

	mu       sync.RWMutex
	status   BatchStatus
	outcomes []OutcomeLog

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan []byte
}

// NewServer creates a results server over the given preset catalog.
func NewServer(presets PresetLister) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	server := &Server{
		app:       app,
		presets:   presets,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 100),
	}

	server.setupRoutes()
	go server.handleBroadcast()

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.app.Use(cors.New())

	api := s.app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/outcomes", s.handleOutcomes)
	api.Get("/presets", s.handlePresets)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.handleWebSocket))

	s.app.Get("/", s.handlePage)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(s.status)
}

func (s *Server) handleOutcomes(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.outcomes == nil {
		return c.JSON([]OutcomeLog{})
	}
	return c.JSON(s.outcomes)
}

func (s *Server) handlePresets(c *fiber.Ctx) error {
	mode := types.TestMode(c.Query("mode", string(types.ModeAll)))
	search := c.Query("search")
	presets := s.presets.Filter(mode, search)
	if presets == nil {
		presets = []types.Preset{}
	}
	return c.JSON(presets)
}

// handleWebSocket registers a client for the live outcome feed.
func (s *Server) handleWebSocket(c *websocket.Conn) {
	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
		c.Close()
	}()

	s.mu.RLock()
	data, _ := json.Marshal(map[string]interface{}{
		"type": "status",
		"data": s.status,
	})
	s.mu.RUnlock()
	c.WriteMessage(websocket.TextMessage, data)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

// handleBroadcast fans queued messages out to connected clients.
func (s *Server) handleBroadcast() {
	for msg := range s.broadcast {
		s.clientsMu.Lock()
		for client := range s.clients {
			if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
				client.Close()
				delete(s.clients, client)
			}
		}
		s.clientsMu.Unlock()
	}
}

func (s *Server) send(kind string, payload interface{}) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": kind,
		"data": payload,
	})
	select {
	case s.broadcast <- data:
	default:
		// Channel full, skip this update
	}
}

// StartBatch resets the status for a new batch run.
func (s *Server) StartBatch(batchName, targetIP string, total int) {
	s.mu.Lock()
	s.status = BatchStatus{
		Running:   true,
		BatchName: batchName,
		TargetIP:  targetIP,
		StartTime: time.Now(),
		Total:     total,
	}
	s.outcomes = nil
	s.mu.Unlock()

	s.broadcastStatus()
}

// RecordProgress folds one sequencer step into the server state and
// pushes it to connected clients. It matches the sequencer's progress
// callback signature.
func (s *Server) RecordProgress(p runner.Progress) {
	entry := OutcomeLog{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Preset:    p.PresetName,
		Skipped:   p.Skipped,
		Note:      p.Note,
	}

	s.mu.Lock()
	s.status.Completed = p.Completed
	if p.Total > 0 {
		s.status.Total = p.Total
	}
	if p.Skipped {
		s.status.Skipped++
	} else if p.Outcome != nil {
		entry.Tag = p.Outcome.Tag
		entry.StatusCode = p.Outcome.StatusCode
		entry.Duration = p.Outcome.Duration.Milliseconds()
		switch p.Outcome.Tag {
		case types.TagOK:
			s.status.OKCount++
		case types.TagWarn:
			s.status.WarnCount++
		case types.TagErr:
			s.status.ErrCount++
		}
	}
	s.status.Elapsed = time.Since(s.status.StartTime).Round(time.Second).String()

	s.outcomes = append(s.outcomes, entry)
	if len(s.outcomes) > maxRetainedOutcomes {
		s.outcomes = s.outcomes[len(s.outcomes)-maxRetainedOutcomes:]
	}
	s.mu.Unlock()

	s.send("outcome", entry)
	s.broadcastStatus()
}

// FinishBatch marks the batch as done.
func (s *Server) FinishBatch(result *runner.Result) {
	s.mu.Lock()
	s.status.Running = false
	if result != nil {
		s.status.Cancelled = result.Cancelled
		s.status.Elapsed = result.Duration.Round(time.Second).String()
	}
	s.mu.Unlock()

	s.broadcastStatus()
}

func (s *Server) broadcastStatus() {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()
	s.send("status", status)
}

// Start starts the web server.
func (s *Server) Start(addr string) error {
	return s.app.Listen(addr)
}

// Stop stops the web server.
func (s *Server) Stop() error {
	return s.app.Shutdown()
}
