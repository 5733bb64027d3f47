package tools

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/harun/eva/pkg/actions"
	"github.com/harun/eva/pkg/client"
	"github.com/rs/zerolog"
)

// PageReaderName is the tool name exposed to the reasoning model.
const PageReaderName = "page_reader"

const readerUserAgent = "Mozilla/5.0 (compatible; EVA/1.0)"

// maxPageBytes bounds the download of one page.
const maxPageBytes = 5 << 20

// ReaderConfig configures the page reader.
type ReaderConfig struct {
	MaxChars   int
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type pageReader struct {
	cfg ReaderConfig
}

// PageReader returns a tool that fetches a web page and extracts its
// readable text.
func PageReader(cfg ReaderConfig) actions.Tool {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 4000
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	r := &pageReader{cfg: cfg}

	return actions.Tool{
		Name:        PageReaderName,
		Description: "Tool for reading a web page. Input should be the full http(s) URL of the page.",
		Client:      actions.ClientAll,
		Parameters: []actions.Parameter{
			{Name: "url", Type: "string", Description: "page URL", Required: true},
		},
		Handler:  r.run,
		OnClient: r.show,
	}
}

func (r *pageReader) run(ctx context.Context, args map[string]any) (map[string]any, error) {
	raw, _ := args["url"].(string)
	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return map[string]any{"error": fmt.Sprintf("Invalid URL %q: only http and https are supported.", raw)}, nil
	}

	body, err := r.fetch(ctx, target)
	if err != nil {
		r.cfg.Logger.Warn().Err(err).Str("tool", PageReaderName).Str("url", raw).Msg("Failed to fetch page")
		return map[string]any{"error": fmt.Sprintf("Failed to read the page: %v", err)}, nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), target)
	if err != nil {
		return map[string]any{"error": fmt.Sprintf("Failed to extract the page: %v", err)}, nil
	}

	text := strings.TrimSpace(article.TextContent)
	truncated := false
	if runes := []rune(text); len(runes) > r.cfg.MaxChars {
		text = string(runes[:r.cfg.MaxChars])
		truncated = true
	}

	title := article.Title
	if title == "" {
		title = target.Host
	}
	return map[string]any{
		"action":    fmt.Sprintf("I have read the page '%s'.", title),
		"title":     title,
		"excerpt":   article.Excerpt,
		"text":      text,
		"truncated": truncated,
		"url":       raw,
	}, nil
}

func (r *pageReader) fetch(ctx context.Context, target *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", readerUserAgent)

	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

var pageCard = template.Must(template.New("page").Parse(
	`<html><body><h2>{{.Title}}</h2><p>{{.Excerpt}}</p><a href="{{.URL}}">{{.URL}}</a></body></html>`))

func (r *pageReader) show(ctx context.Context, surface client.Surface, result map[string]any) (any, error) {
	title, _ := result["title"].(string)
	if title == "" {
		return nil, nil
	}
	excerpt, _ := result["excerpt"].(string)
	link, _ := result["url"].(string)

	var page strings.Builder
	if err := pageCard.Execute(&page, struct{ Title, Excerpt, URL string }{title, excerpt, link}); err != nil {
		return nil, err
	}
	return surface.ShowPage(ctx, title, page.String())
}
