package client

import (
	"context"
	"errors"

	"github.com/harun/eva/pkg/schema"
)

// ErrClientClosed is returned by Receive once the device has gone away.
var ErrClientClosed = errors.New("client closed")

// Payload is one reply delivered to the device.
type Payload struct {
	Speech   string `json:"speech"`
	Language string `json:"language,omitempty"`
	// Wait asks the device to finish playback before sensing again.
	Wait bool `json:"wait"`
}

// Client is the device a session talks to.
type Client interface {
	// Start blocks until the device produces its first sense.
	Start(ctx context.Context) (*schema.Sense, error)
	Send(ctx context.Context, p Payload) error
	// SendOver signals the end of the agent's turn.
	SendOver(ctx context.Context) error
	Receive(ctx context.Context) (*schema.Sense, error)
	Speak(ctx context.Context, text string, wait bool) error
	Deactivate() error
}

// Track is a piece of generated media.
type Track struct {
	URL      string
	CoverURL string
	Title    string
}

// Surface is implemented by clients able to present tool output. The
// returned string describes what the device did.
type Surface interface {
	StreamMusic(ctx context.Context, t Track) (string, error)
	ShowPage(ctx context.Context, title, html string) (string, error)
}

// SurfaceOf returns c as a Surface when it implements one.
func SurfaceOf(c Client) Surface {
	s, _ := c.(Surface)
	return s
}

func musicNotice(title string) string {
	return "Media Player:: The song '" + title + "' is playing."
}

func pageNotice(title string) string {
	return "Page Viewer:: The page '" + title + "' is displayed."
}
