package agent

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harun/eva/pkg/schema"
	"github.com/tidwall/sjson"
)

const timeLayout = "2006-01-02 15:04:05 Monday"

type outputField struct {
	name string
	typ  string
	desc string
}

func converseFields(language string) []outputField {
	return []outputField{
		{"analysis", "string", "My reflection and analysis"},
		{"strategy", "string", "My response strategy"},
		{"response", "string", strings.TrimSpace("My verbal response " + verbalHint(language))},
		{"premeditation", "string", "My predetermined information"},
		{"action", "array", "The name of the tools I choose and the args for input."},
	}
}

func setupFields(step int, language string) []outputField {
	fields := []outputField{
		{"analysis", "string", "My reflection and analysis"},
		{"strategy", "string", "My response strategy"},
		{"response", "string", strings.TrimSpace("My verbal response " + verbalHint(language))},
	}
	if step == 0 {
		fields = append(fields,
			outputField{"name", "string", "The user's name or alias"},
			outputField{"confidence", "number", "My confidence level in the retrieved name, from 0 to 1"})
	} else {
		fields = append(fields,
			outputField{"desire", "string", "The most important thing the user desire in life within two words."},
			outputField{"confidence", "number", "My confidence level in the retrieved desire, from 0 to 1"})
	}
	return fields
}

// formatInstructions renders fields as a JSON schema, keeping field order.
func formatInstructions(fields []outputField) string {
	doc := `{"type":"object","properties":{},"required":[]}`
	for _, f := range fields {
		base := "properties." + f.name
		doc, _ = sjson.Set(doc, base+".type", f.typ)
		doc, _ = sjson.Set(doc, base+".description", f.desc)
		if f.typ == "array" {
			doc, _ = sjson.SetRaw(doc, base+".items",
				`{"type":"object","properties":{"name":{"type":"string"},"args":{"type":"object"}},"required":["name","args"]}`)
		}
		doc, _ = sjson.Set(doc, "required.-1", f.name)
	}

	return "The output must be a single JSON object that conforms to the JSON schema below. " +
		"Return the object itself, not the schema, and nothing else.\n" + doc
}

type promptParts struct {
	persona      string
	tools        string
	instructions string
	format       string
	time         time.Time
	sense        *schema.Sense
	history      []schema.ConversationTurn
	results      []schema.ActionResult
}

func buildPrompt(p promptParts) string {
	var b strings.Builder

	section(&b, "PERSONA", p.persona)
	section(&b, "TOOLS", "I have the access to the following tools for action:\n"+p.tools)
	if h := formatHistory(p.history); h != "" {
		b.WriteString(h)
		b.WriteString("\n\n")
	}

	ctxLines := []string{"<current_time>" + p.time.Format(timeLayout) + "</current_time>"}
	if p.sense != nil && strings.TrimSpace(p.sense.Observation) != "" {
		ctxLines = append(ctxLines, "<observation>I see "+p.sense.Observation+" </observation>")
	}
	if p.sense.HasMessage() {
		ctxLines = append(ctxLines, "<human_reply>I hear "+p.sense.UserMessage+" </human_reply>")
	}
	if r := formatResults(p.results); r != "" {
		ctxLines = append(ctxLines, r)
	}
	section(&b, "CONTEXT", strings.Join(ctxLines, "\n"))

	section(&b, "INSTRUCTIONS", p.instructions)
	b.WriteString("Based on the above context and instructions, craft appropriate response with the following JSON format.\n\n")
	section(&b, "FORMATTING", p.format)
	return strings.TrimSpace(b.String())
}

func section(b *strings.Builder, tag, body string) {
	fmt.Fprintf(b, "<%s>\n%s\n</%s>\n\n", tag, strings.TrimSpace(body), tag)
}

func formatHistory(history []schema.ConversationTurn) string {
	if len(history) == 0 {
		return ""
	}

	lines := []string{"<CONVERSATION_HISTORY>"}
	for _, turn := range history {
		if turn.UserMessage != "" {
			msg := turn.UserMessage
			if turn.SpeakerName != "" {
				msg = turn.SpeakerName + ": " + msg
			}
			lines = append(lines, "<user>"+msg+"</user>")
		}
		if turn.AgentMessage != "" {
			lines = append(lines, "<assistant>"+turn.AgentMessage+"</assistant>")
		}
		if turn.Premeditation != "" {
			lines = append(lines, "<assistant>I remember "+turn.Premeditation+" </assistant>")
		}
	}
	lines = append(lines, "</CONVERSATION_HISTORY>")
	return strings.Join(lines, "\n")
}

// formatResults renders action results, hiding url-like keys so they are
// not read aloud.
func formatResults(results []schema.ActionResult) string {
	if len(results) == 0 {
		return ""
	}

	lines := []string{"<action_results>I received the following results from my previous actions:"}
	for _, r := range results {
		switch v := r.Result.(type) {
		case nil:
		case map[string]any:
			if s := formatFields(v); s != "" {
				lines = append(lines, s)
			}
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					lines = append(lines, formatFields(m))
				} else {
					lines = append(lines, fmt.Sprint(item))
				}
			}
		default:
			lines = append(lines, fmt.Sprint(v))
		}
		if r.Error != "" {
			lines = append(lines, "error: "+r.Error)
		}
		if r.Additional != nil {
			lines = append(lines, fmt.Sprint(r.Additional))
		}
	}
	lines = append(lines, "</action_results>")
	return strings.Join(lines, "\n")
}

func formatFields(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.Contains(strings.ToLower(k), "url") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, m[k])
	}
	return strings.Join(parts, "\n")
}
