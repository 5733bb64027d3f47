package schema

import "encoding/json"

// ActionRequest names a tool and its arguments.
type ActionRequest struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ActionResult is the outcome of one ActionRequest, at the same position.
type ActionResult struct {
	Result     any    `json:"result,omitempty"`
	Additional any    `json:"additional,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Empty reports whether the result carries nothing worth reasoning about.
func (r ActionResult) Empty() bool {
	if r.Error != "" || r.Additional != nil {
		return false
	}
	switch v := r.Result.(type) {
	case nil:
		return true
	case map[string]any:
		return len(v) == 0
	case string:
		return v == ""
	case json.RawMessage:
		return len(v) == 0 || string(v) == "null" || string(v) == "{}"
	}
	return false
}

// AnyNonEmpty reports whether at least one result is not Empty.
func AnyNonEmpty(results []ActionResult) bool {
	for _, r := range results {
		if !r.Empty() {
			return true
		}
	}
	return false
}
