package claim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

func isContentKey(k string) bool {
	for _, ck := range contentKeys {
		if ck == k {
			return true
		}
	}
	return false
}

func contentFields(c Content) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// mergeContent replaces the top-level keys of base named in updates and
// returns the result together with the sorted keys whose value changed.
// Nested objects are replaced whole, not merged.
func mergeContent(base Content, updates map[string]json.RawMessage) (Content, []string, error) {
	before, err := contentFields(base)
	if err != nil {
		return Content{}, nil, fmt.Errorf("encode content: %w", err)
	}

	merged := make(map[string]json.RawMessage, len(before))
	for k, v := range before {
		merged[k] = v
	}
	for k, v := range updates {
		if !isContentKey(k) {
			return Content{}, nil, fmt.Errorf("unknown key %q: %w", k, ErrInvalidInput)
		}
		if v = bytes.TrimSpace(v); len(v) == 0 || bytes.Equal(v, []byte("null")) {
			return Content{}, nil, fmt.Errorf("key %q must not be null: %w", k, ErrInvalidInput)
		}
		merged[k] = v
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return Content{}, nil, fmt.Errorf("encode merged content: %v: %w", err, ErrInvalidInput)
	}
	var out Content
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return Content{}, nil, fmt.Errorf("decode updates: %v: %w", err, ErrInvalidInput)
	}
	if out.ServiceLines == nil {
		out.ServiceLines = []ServiceLine{}
	}
	for i := range out.ServiceLines {
		line := &out.ServiceLines[i]
		if line.Units == 0 {
			line.Units = 1
		}
		if line.Units < 0 || line.Charge < 0 {
			return Content{}, nil, fmt.Errorf("serviceLines[%d]: units and charge must not be negative: %w", i, ErrInvalidInput)
		}
	}

	after, err := contentFields(out)
	if err != nil {
		return Content{}, nil, fmt.Errorf("encode content: %w", err)
	}
	changed := []string{}
	for k := range updates {
		if !bytes.Equal(before[k], after[k]) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return out, changed, nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
