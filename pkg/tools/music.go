package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/harun/eva/pkg/actions"
	"github.com/harun/eva/pkg/client"
	"github.com/rs/zerolog"
)

// MusicMakerName is the tool name exposed to the reasoning model.
const MusicMakerName = "music_maker"

const streamingStatus = "streaming"

// MusicConfig configures the song generator.
type MusicConfig struct {
	// BaseURL points at a Suno-compatible API.
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

type clip struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Title    string `json:"title"`
	Tags     string `json:"tags"`
	AudioURL string `json:"audio_url"`
	ImageURL string `json:"image_url"`
}

type musicMaker struct {
	cfg MusicConfig
}

// MusicMaker returns a tool that composes a song and streams it to the device.
func MusicMaker(cfg MusicConfig) actions.Tool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:3000"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 120
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	m := &musicMaker{cfg: cfg}

	return actions.Tool{
		Name:        MusicMakerName,
		Description: "Tool for creating music. Input should include the genre, theme, vibe and lyric direction of a song.",
		Client:      actions.ClientAll,
		Parameters: []actions.Parameter{
			{Name: "query", Type: "string", Description: "prompt for the song, within 20 words", Required: true},
			{Name: "instrumental", Type: "boolean", Description: "whether the song is instrumental", Default: false},
		},
		Handler:  m.run,
		OnClient: m.stream,
	}
}

// run reports generation failures inside the result so the model can tell
// the user; only a cancelled context is returned as an error.
func (m *musicMaker) run(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	instrumental, _ := args["instrumental"].(bool)
	logger := m.cfg.Logger.With().Str("tool", MusicMakerName).Logger()

	id, err := m.generate(ctx, query, instrumental)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to generate music")
		return map[string]any{"error": fmt.Sprintf("Failed to create music: %v. DO NOT try again.", err)}, nil
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for i := 0; i < m.cfg.MaxPolls; i++ {
		c, err := m.info(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", i).Msg("Failed to get music info")
		} else if c.Status == streamingStatus {
			return map[string]any{
				"action":    fmt.Sprintf("I have created a song called '%s'. The style is %s.", c.Title, c.Tags),
				"url":       c.AudioURL,
				"cover_url": c.ImageURL,
				"title":     c.Title,
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return map[string]any{"error": "Failed to create music: Timeout for the response."}, nil
}

func (m *musicMaker) stream(ctx context.Context, surface client.Surface, result map[string]any) (any, error) {
	audio, _ := result["url"].(string)
	if audio == "" {
		return nil, nil
	}
	cover, _ := result["cover_url"].(string)
	title, _ := result["title"].(string)
	return surface.StreamMusic(ctx, client.Track{URL: audio, CoverURL: cover, Title: title})
}

func (m *musicMaker) generate(ctx context.Context, prompt string, instrumental bool) (string, error) {
	body, err := json.Marshal(map[string]any{
		"prompt":            prompt,
		"make_instrumental": instrumental,
		"wait_audio":        false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var clips []clip
	if err := m.do(req, &clips); err != nil {
		return "", err
	}
	if len(clips) == 0 || clips[0].ID == "" {
		return "", errors.New("generator returned no clips")
	}
	return clips[0].ID, nil
}

func (m *musicMaker) info(ctx context.Context, id string) (clip, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.BaseURL+"/api/get?ids="+url.QueryEscape(id), nil)
	if err != nil {
		return clip{}, err
	}

	var clips []clip
	if err := m.do(req, &clips); err != nil {
		return clip{}, err
	}
	if len(clips) == 0 {
		return clip{}, fmt.Errorf("no clip with id %s", id)
	}
	return clips[0], nil
}

func (m *musicMaker) do(req *http.Request, out any) error {
	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
