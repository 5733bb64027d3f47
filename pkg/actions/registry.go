package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/harun/eva/pkg/client"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// ErrToolNotFound is reported for requests naming an unregistered tool.
var ErrToolNotFound = errors.New("tool not found")

// Device filters for Tool.Client.
const (
	ClientAll     = "all"
	ClientDesktop = "desktop"
	ClientMobile  = "mobile"
)

// Parameter defines one argument of a tool
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Handler executes a tool with validated arguments.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// ClientHook runs after a successful Handler to surface the result on the
// client device. A non-nil return value is attached to the result as
// "additional".
type ClientHook func(ctx context.Context, surface client.Surface, result map[string]any) (any, error)

// Tool is a tool's metadata and behavior.
type Tool struct {
	Name        string
	Description string
	Parameters  []Parameter
	// Client restricts the tool to one device; empty means all.
	Client   string
	Handler  Handler
	OnClient ClientHook
}

// Info is the description of a tool handed to the reasoning model.
type Info struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ArgsSchema  map[string]any `json:"args_schema"`
}

type entry struct {
	tool   Tool
	schema *gojsonschema.Schema
	raw    map[string]any
	seq    int
}

// Registry holds the registered tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
	seq   int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*entry)}
}

// Register validates t and adds it, replacing a tool of the same name.
func (r *Registry) Register(t Tool) error {
	if err := validateTool(t); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	raw := argsSchema(t)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to generate schema for %s: %w", t.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.seq
	if prev, ok := r.tools[t.Name]; ok {
		seq = prev.seq
	} else {
		r.seq++
	}
	r.tools[t.Name] = &entry{tool: t, schema: schema, raw: raw, seq: seq}

	log.Debug().Str("tool", t.Name).Msg("Tool registered")
	return nil
}

// RegisterFor registers the tools available on device and, when enabled is
// non-empty, named in enabled. It returns the names registered.
func (r *Registry) RegisterFor(device string, enabled []string, tools ...Tool) ([]string, error) {
	allow := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		allow[name] = true
	}

	var names []string
	for _, t := range tools {
		if t.Client != "" && t.Client != ClientAll && t.Client != device {
			continue
		}
		if len(allow) > 0 && !allow[t.Name] {
			continue
		}
		if err := r.Register(t); err != nil {
			return names, err
		}
		names = append(names, t.Name)
	}
	return names, nil
}

// Get returns a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return Tool{}, false
	}
	return e.tool, true
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	entries := r.sorted()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.tool.Name
	}
	return names
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Catalog describes every tool, in registration order.
func (r *Registry) Catalog() []Info {
	entries := r.sorted()
	infos := make([]Info, len(entries))
	for i, e := range entries {
		infos[i] = Info{Name: e.tool.Name, Description: e.tool.Description, ArgsSchema: e.raw}
	}
	return infos
}

// CatalogJSON is Catalog encoded for a prompt.
func (r *Registry) CatalogJSON() (string, error) {
	data, err := json.Marshal(r.Catalog())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *Registry) sorted() []*entry {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.tools))
	for _, e := range r.tools {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}

// Execute validates args and runs the named tool under timeout. A panic in
// the handler is returned as an error.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, timeout time.Duration) (map[string]any, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := validateArgs(e.schema, args); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result map[string]any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				log.Error().Str("tool", name).Interface("panic", p).Bytes("stack", debug.Stack()).Msg("Tool panicked")
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", name, p)}
			}
		}()
		res, err := e.tool.Handler(tctx, args)
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("tool execution timeout after %v", timeout)
		}
		return nil, fmt.Errorf("tool execution cancelled: %w", tctx.Err())
	}
}

var validTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

func validateTool(t Tool) error {
	if t.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if t.Description == "" {
		return errors.New("tool description cannot be empty")
	}
	if t.Handler == nil {
		return errors.New("tool handler cannot be nil")
	}
	switch t.Client {
	case "", ClientAll, ClientDesktop, ClientMobile:
	default:
		return fmt.Errorf("invalid client %s for %s", t.Client, t.Name)
	}
	for _, p := range t.Parameters {
		if p.Name == "" {
			return errors.New("parameter name cannot be empty")
		}
		if p.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", p.Name)
		}
		if !validTypes[p.Type] {
			return fmt.Errorf("invalid parameter type %q for %s", p.Type, p.Name)
		}
	}
	return nil
}

func argsSchema(t Tool) map[string]any {
	properties := make(map[string]any, len(t.Parameters))
	required := []string{}

	for _, p := range t.Parameters {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func validateArgs(schema *gojsonschema.Schema, args map[string]any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%v", msgs)
}
