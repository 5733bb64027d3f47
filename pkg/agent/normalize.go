package agent

import (
	"errors"
	"strings"

	"github.com/harun/eva/pkg/schema"
	"github.com/tidwall/gjson"
)

// ErrNoJSON is returned when a model answer holds no JSON object.
var ErrNoJSON = errors.New("no JSON object in model output")

// extractJSON strips code fences and surrounding prose from raw model text.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	text = text[start : end+1]
	if !gjson.Valid(text) {
		return "", ErrNoJSON
	}
	return text, nil
}

// root unwraps answers that echo the schema and nest fields under
// "properties".
func root(text string) gjson.Result {
	r := gjson.Parse(text)
	if props := r.Get("properties"); props.IsObject() && !r.Get("response").Exists() {
		return props
	}
	return r
}

// Normalize converts raw model text into the canonical response. A missing
// or malformed action list becomes empty.
func Normalize(text string) (schema.Response, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return schema.Response{}, err
	}
	r := root(raw)

	return schema.Response{
		Analysis:      r.Get("analysis").String(),
		Strategy:      r.Get("strategy").String(),
		Response:      r.Get("response").String(),
		Premeditation: r.Get("premeditation").String(),
		Action:        parseActions(r.Get("action")),
	}, nil
}

// NormalizeSetup converts raw model text into a setup response.
func NormalizeSetup(text string) (schema.SetupResponse, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return schema.SetupResponse{}, err
	}
	r := root(raw)

	return schema.SetupResponse{
		Analysis:   r.Get("analysis").String(),
		Strategy:   r.Get("strategy").String(),
		Response:   r.Get("response").String(),
		Name:       strings.TrimSpace(r.Get("name").String()),
		Desire:     strings.TrimSpace(r.Get("desire").String()),
		Confidence: r.Get("confidence").Float(),
	}, nil
}

func parseActions(v gjson.Result) []schema.ActionRequest {
	if v.Type == gjson.String {
		if !gjson.Valid(v.String()) {
			return []schema.ActionRequest{}
		}
		v = gjson.Parse(v.String())
	}
	if !v.IsArray() {
		return []schema.ActionRequest{}
	}

	actions := []schema.ActionRequest{}
	for _, item := range v.Array() {
		name := item.Get("name").String()
		if !item.IsObject() || name == "" {
			continue
		}
		args := map[string]any{}
		if a, ok := item.Get("args").Value().(map[string]any); ok {
			args = a
		}
		actions = append(actions, schema.ActionRequest{Name: name, Args: args})
	}
	return actions
}
