package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/eva/pkg/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGateway(t *testing.T) (*Gateway, *websocket.Conn) {
	t.Helper()

	g := NewGateway(GatewayConfig{Language: "en", Logger: zerolog.Nop()})
	srv := httptest.NewServer(g.Handler())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		_ = g.Deactivate()
		srv.Close()
	})
	return g, conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	var f Frame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestGatewayInput(t *testing.T) {
	g, conn := setupGateway(t)

	require.NoError(t, conn.WriteJSON(Frame{
		SessionID:   "s-1",
		Type:        FrameInput,
		UserMessage: "Alice:: hello",
		Observation: "a person waving",
	}))

	ack := readFrame(t, conn)
	assert.Equal(t, "validation-input", ack.Type)
	assert.Equal(t, "success", ack.Content)
	assert.Equal(t, "s-1", ack.SessionID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := g.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice:: hello", s.UserMessage)
	assert.Equal(t, "a person waving", s.Observation)
	assert.Equal(t, "en", s.Language)
}

func TestGatewayOutbound(t *testing.T) {
	g, conn := setupGateway(t)
	ctx := context.Background()

	require.NoError(t, conn.WriteJSON(Frame{SessionID: "s-1", Type: FrameInput, Language: "fr"}))
	readFrame(t, conn)
	s, err := g.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fr", s.Language)

	t.Run("should send speech with language and wait", func(t *testing.T) {
		require.NoError(t, g.Send(ctx, Payload{Speech: "Bonjour", Language: "fr", Wait: true}))
		f := readFrame(t, conn)
		assert.Equal(t, FrameSpeech, f.Type)
		assert.Equal(t, "Bonjour", f.Content)
		assert.Equal(t, "fr", f.Language)
		assert.True(t, f.Wait)
		assert.Equal(t, "s-1", f.SessionID)
	})

	t.Run("should send a fresh token on over", func(t *testing.T) {
		require.NoError(t, g.SendOver(ctx))
		first := readFrame(t, conn)
		require.NoError(t, g.SendOver(ctx))
		second := readFrame(t, conn)
		assert.Equal(t, FrameOver, first.Type)
		assert.NotEmpty(t, first.Content)
		assert.NotEqual(t, first.Content, second.Content)
	})

	t.Run("should stream music as mp3 then html", func(t *testing.T) {
		msg, err := g.StreamMusic(ctx, Track{URL: "http://cdn/a.mp3", CoverURL: "http://cdn/a.jpg", Title: "Rain"})
		require.NoError(t, err)
		assert.Equal(t, "Media Player:: The song 'Rain' is playing.", msg)

		mp3 := readFrame(t, conn)
		assert.Equal(t, FrameMP3, mp3.Type)
		assert.Equal(t, "http://cdn/a.mp3", mp3.Content)

		page := readFrame(t, conn)
		assert.Equal(t, FrameHTML, page.Type)
		assert.Contains(t, page.Content, "http://cdn/a.jpg")
		assert.Contains(t, page.Content, "Rain")
	})
}

func TestGatewayDeactivate(t *testing.T) {
	g, conn := setupGateway(t)

	require.NoError(t, g.Deactivate())

	_, err := g.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestGatewayWithoutDeviceDropsFrames(t *testing.T) {
	g := NewGateway(GatewayConfig{Logger: zerolog.Nop()})
	defer g.Deactivate()

	assert.NoError(t, g.Speak(context.Background(), "anyone there?", true))
}

func TestGatewayHealthz(t *testing.T) {
	g := NewGateway(GatewayConfig{Logger: zerolog.Nop()})
	defer g.Deactivate()
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestGatewayListen(t *testing.T) {
	g := NewGateway(GatewayConfig{Addr: "127.0.0.1:0", Language: "en", Logger: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type started struct {
		sense *schema.Sense
		err   error
	}
	done := make(chan started, 1)
	go func() {
		s, err := g.Start(ctx)
		done <- started{s, err}
	}()

	// Addr is read while Start binds the listener.
	require.Eventually(t, func() bool {
		return g.Addr() != "127.0.0.1:0"
	}, 2*time.Second, 5*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+g.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameInput, UserMessage: "hello"}))
	assert.Equal(t, "validation-input", readFrame(t, conn).Type)

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, "hello", got.sense.UserMessage)

	require.NoError(t, g.Deactivate())
}
