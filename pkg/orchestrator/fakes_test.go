package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harun/eva/pkg/agent"
	"github.com/harun/eva/pkg/client"
	"github.com/harun/eva/pkg/memory"
	"github.com/harun/eva/pkg/schema"
)

type fakeAgent struct {
	mu       sync.Mutex
	replies  []schema.Response
	setups   []schema.SetupResponse
	err      error
	requests []agent.RespondRequest
	steps    []int
	tools    []bool
}

func (a *fakeAgent) Respond(_ context.Context, req agent.RespondRequest) (schema.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.err != nil {
		return schema.Response{}, a.err
	}
	if len(a.replies) == 0 {
		return schema.Response{Response: "...", Action: []schema.ActionRequest{}}, nil
	}
	r := a.replies[0]
	a.replies = a.replies[1:]
	return r, nil
}

func (a *fakeAgent) RespondSetup(_ context.Context, step int, req agent.RespondRequest) (schema.SetupResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	a.steps = append(a.steps, step)
	if a.err != nil {
		return schema.SetupResponse{}, a.err
	}
	if len(a.setups) == 0 {
		return schema.SetupResponse{Response: "Tell me more."}, nil
	}
	r := a.setups[0]
	a.setups = a.setups[1:]
	return r, nil
}

func (a *fakeAgent) SetToolsEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tools = append(a.tools, enabled)
}

type fakeMemory struct {
	turns  []schema.Response
	senses []*schema.Sense
	closed bool
}

func (m *fakeMemory) RecordTurn(_ context.Context, ts time.Time, sense *schema.Sense, resp schema.Response) memory.Entry {
	m.turns = append(m.turns, resp)
	m.senses = append(m.senses, sense)
	return memory.NewEntry(ts, sense, resp)
}

func (m *fakeMemory) Recall() []schema.ConversationTurn {
	if len(m.turns) == 0 {
		return nil
	}
	out := make([]schema.ConversationTurn, len(m.turns))
	for i, t := range m.turns {
		out[i] = schema.ConversationTurn{AgentMessage: t.Response}
	}
	return out
}

func (m *fakeMemory) Close() error {
	m.closed = true
	return nil
}

type fakeDispatcher struct {
	results [][]schema.ActionResult
	calls   [][]schema.ActionRequest
	surface client.Surface
}

func (d *fakeDispatcher) Dispatch(_ context.Context, surface client.Surface, reqs []schema.ActionRequest) []schema.ActionResult {
	d.calls = append(d.calls, reqs)
	d.surface = surface
	if len(d.results) == 0 {
		return make([]schema.ActionResult, len(reqs))
	}
	r := d.results[0]
	d.results = d.results[1:]
	return r
}

// fakeClient replays scripted inputs; once they run out Receive reports the
// client closed.
type fakeClient struct {
	start    *schema.Sense
	startErr error
	inputs   []*schema.Sense
	// block makes Receive wait for ctx once inputs run out.
	block   bool
	sendErr error

	sent        []client.Payload
	overs       int
	spoken      []string
	deactivated int
}

func (c *fakeClient) Start(context.Context) (*schema.Sense, error) {
	if c.startErr != nil {
		return nil, c.startErr
	}
	if c.start == nil {
		return &schema.Sense{}, nil
	}
	return c.start, nil
}

func (c *fakeClient) Send(_ context.Context, p client.Payload) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, p)
	return nil
}

func (c *fakeClient) SendOver(context.Context) error {
	c.overs++
	return nil
}

func (c *fakeClient) Receive(ctx context.Context) (*schema.Sense, error) {
	if len(c.inputs) == 0 {
		if c.block {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, client.ErrClientClosed
	}
	s := c.inputs[0]
	c.inputs = c.inputs[1:]
	return s, nil
}

func (c *fakeClient) Speak(_ context.Context, text string, _ bool) error {
	c.spoken = append(c.spoken, text)
	return nil
}

func (c *fakeClient) Deactivate() error {
	c.deactivated++
	return nil
}

func (c *fakeClient) speeches() []string {
	out := make([]string, len(c.sent))
	for i, p := range c.sent {
		out[i] = p.Speech
	}
	return out
}

// surfaceClient is a fakeClient that can present tool output.
type surfaceClient struct {
	fakeClient
	tracks []client.Track
}

func (c *surfaceClient) StreamMusic(_ context.Context, t client.Track) (string, error) {
	c.tracks = append(c.tracks, t)
	return "Media Player:: The song '" + t.Title + "' is playing.", nil
}

func (c *surfaceClient) ShowPage(context.Context, string, string) (string, error) {
	return "", nil
}

type fakeUsers struct {
	names []string
	err   error
}

func (u *fakeUsers) IsEmpty() bool { return len(u.names) == 0 }

func (u *fakeUsers) AddUser(_ context.Context, name, voiceID, pictureID string) error {
	if u.err != nil {
		return u.err
	}
	if voiceID != FirstVoiceID || pictureID != FirstPictureID {
		return errors.New("unexpected ids")
	}
	u.names = append(u.names, name)
	return nil
}

type fakePersona struct {
	lines []string
}

func (p *fakePersona) AppendPersona(line string) error {
	p.lines = append(p.lines, line)
	return nil
}
