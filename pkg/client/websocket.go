package client

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/eva/internal/observability"
	"github.com/harun/eva/pkg/schema"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Frame types exchanged with the device.
const (
	FrameInput  = "input"
	FrameSpeech = "speech"
	FrameOver   = "over"
	FrameMP3    = "mp3"
	FrameHTML   = "html"
)

const validationPrefix = "validation-"

// Frame is the JSON envelope of every websocket message.
type Frame struct {
	SessionID   string `json:"session_id,omitempty"`
	Type        string `json:"type"`
	Content     string `json:"content,omitempty"`
	Language    string `json:"language,omitempty"`
	Wait        bool   `json:"wait,omitempty"`
	UserMessage string `json:"user_message,omitempty"`
	Observation string `json:"observation,omitempty"`
}

// GatewayConfig holds gateway configuration
type GatewayConfig struct {
	// Addr is the listen address. Empty means the caller serves Handler.
	Addr     string
	Language string
	Logger   zerolog.Logger
}

// Gateway is a Client backed by a mobile device connected over websocket.
// One device is active at a time; a new connection replaces the old one.
type Gateway struct {
	addr     string
	language string
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	inbox chan *schema.Sense
	done  chan struct{}

	mu        sync.Mutex
	server    *http.Server
	listener  net.Listener
	conn      *websocket.Conn
	connID    string
	sessionID string
	closed    bool

	writeMu sync.Mutex
}

// NewGateway creates a gateway. It does not listen until Start.
func NewGateway(cfg GatewayConfig) *Gateway {
	observability.EnsureRegistered()
	return &Gateway{
		addr:     cfg.Addr,
		language: cfg.Language,
		logger:   cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		inbox: make(chan *schema.Sense, 16),
		done:  make(chan struct{}),
	}
}

// Handler serves /ws, /metrics and /healthz.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWebSocket)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Addr returns the bound listen address once Start has run.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return g.addr
	}
	return g.listener.Addr().String()
}

// Start listens (when an address is configured) and waits for the device's
// first input frame.
func (g *Gateway) Start(ctx context.Context) (*schema.Sense, error) {
	if err := g.listen(); err != nil {
		return nil, err
	}
	return g.Receive(ctx)
}

func (g *Gateway) listen() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.addr == "" || g.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", g.addr, err)
	}
	srv := &http.Server{Handler: g.Handler(), ReadHeaderTimeout: 10 * time.Second}
	g.listener = ln
	g.server = srv

	g.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting device gateway")
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.logger.Error().Err(err).Msg("Device gateway error")
		}
	}()
	return nil
}

func (g *Gateway) Send(_ context.Context, p Payload) error {
	return g.write(Frame{Type: FrameSpeech, Content: p.Speech, Language: p.Language, Wait: p.Wait})
}

// SendOver hands the turn back to the device with a fresh token.
func (g *Gateway) SendOver(_ context.Context) error {
	token, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("generate over token: %w", err)
	}
	return g.write(Frame{Type: FrameOver, Content: token})
}

func (g *Gateway) Receive(ctx context.Context) (*schema.Sense, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.done:
		return nil, ErrClientClosed
	case s := <-g.inbox:
		return s, nil
	}
}

func (g *Gateway) Speak(_ context.Context, text string, wait bool) error {
	return g.write(Frame{Type: FrameSpeech, Content: text, Language: g.language, Wait: wait})
}

// Deactivate closes the device connection and stops the listener.
func (g *Gateway) Deactivate() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	close(g.done)
	conn := g.conn
	g.conn = nil
	srv := g.server
	g.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	observability.SetGatewayConnections(0)

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown gateway: %w", err)
	}
	g.logger.Info().Msg("Device gateway stopped")
	return nil
}

var musicPage = template.Must(template.New("music").Parse(
	`<html><body><img src="{{.CoverURL}}" alt="cover"/><h2>{{.Title}}</h2></body></html>`))

// StreamMusic sends the audio url followed by a player page.
func (g *Gateway) StreamMusic(_ context.Context, t Track) (string, error) {
	var page strings.Builder
	if err := musicPage.Execute(&page, t); err != nil {
		return "", fmt.Errorf("render music page: %w", err)
	}
	if err := g.write(Frame{Type: FrameMP3, Content: t.URL}); err != nil {
		return "", err
	}
	if err := g.write(Frame{Type: FrameHTML, Content: page.String()}); err != nil {
		return "", err
	}
	return musicNotice(t.Title), nil
}

func (g *Gateway) ShowPage(_ context.Context, title, html string) (string, error) {
	if err := g.write(Frame{Type: FrameHTML, Content: html}); err != nil {
		return "", err
	}
	return pageNotice(title), nil
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		http.Error(w, "Gateway is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	id, _ := gonanoid.New()
	g.mu.Lock()
	prev := g.conn
	g.conn = conn
	g.connID = id
	g.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	observability.SetGatewayConnections(1)

	g.logger.Info().Str("conn_id", id).Str("ip", r.RemoteAddr).Msg("Device connected")
	g.readLoop(id, conn)
}

func (g *Gateway) readLoop(id string, conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
		g.mu.Lock()
		if g.connID == id {
			g.conn = nil
			observability.SetGatewayConnections(0)
		}
		g.mu.Unlock()
		g.logger.Info().Str("conn_id", id).Msg("Device disconnected")
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.logger.Error().Err(err).Str("conn_id", id).Msg("WebSocket error")
			}
			return
		}
		g.handleFrame(id, message)
	}
}

func (g *Gateway) handleFrame(id string, message []byte) {
	var f Frame
	if err := json.Unmarshal(message, &f); err != nil {
		g.logger.Warn().Err(err).Str("conn_id", id).Msg("Malformed frame")
		return
	}
	observability.RecordGatewayFrame("in", f.Type)

	if f.SessionID != "" {
		g.mu.Lock()
		g.sessionID = f.SessionID
		g.mu.Unlock()
	}
	if err := g.write(Frame{SessionID: f.SessionID, Type: validationPrefix + f.Type, Content: "success"}); err != nil {
		g.logger.Warn().Err(err).Str("conn_id", id).Msg("Failed to acknowledge frame")
	}
	if f.Type != FrameInput {
		return
	}

	lang := f.Language
	if lang == "" {
		lang = g.language
	}
	sense := &schema.Sense{UserMessage: f.UserMessage, Observation: f.Observation, Language: lang}
	select {
	case g.inbox <- sense:
	case <-g.done:
	}
}

// write sends f to the active device. Without a device the frame is dropped.
func (g *Gateway) write(f Frame) error {
	g.mu.Lock()
	conn := g.conn
	if f.SessionID == "" {
		f.SessionID = g.sessionID
	}
	g.mu.Unlock()

	if conn == nil {
		g.logger.Warn().Str("type", f.Type).Msg("No device connected, frame dropped")
		return nil
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("send %s frame: %w", f.Type, err)
	}
	observability.RecordGatewayFrame("out", f.Type)
	return nil
}
