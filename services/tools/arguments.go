package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var errArgumentsNotObject = errors.New("arguments must be a JSON object")

// parseArguments turns raw model arguments into an object.
// A JSON string is unwrapped and parsed again; empty and null mean no arguments.
func parseArguments(raw json.RawMessage) (map[string]any, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return map[string]any{}, nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("malformed arguments string: %w", err)
		}
		data = bytes.TrimSpace([]byte(s))
		if len(data) == 0 {
			return map[string]any{}, nil
		}
	}

	if data[0] != '{' {
		return nil, errArgumentsNotObject
	}

	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("malformed arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// Arguments are tool arguments keyed by canonical parameter name
type Arguments struct {
	Values  map[string]any
	Ignored []string
}

// canonicalizeArguments renames argument keys through params.
// Keys that do not resolve are returned in Ignored, sorted.
func canonicalizeArguments(args map[string]any, params *FieldResolver) Arguments {
	out := Arguments{Values: make(map[string]any, len(args))}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		canonical, ok := params.Lookup(k)
		if !ok {
			out.Ignored = append(out.Ignored, k)
			continue
		}
		if _, dup := out.Values[canonical]; dup {
			continue
		}
		out.Values[canonical] = args[k]
	}
	return out
}

// String returns the named argument as a trimmed string
func (a Arguments) String(name string) (string, bool) {
	v, ok := a.Values[name]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// StringList returns the named argument as a list of names.
// Accepted forms: a JSON array, a string holding a JSON array, or a comma-separated string.
// Non-string array items are returned in rejected.
func (a Arguments) StringList(name string) (names, rejected []string, ok bool) {
	v, present := a.Values[name]
	if !present || v == nil {
		return nil, nil, false
	}
	return stringList(v)
}

func stringList(v any) (names, rejected []string, ok bool) {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			s, isString := item.(string)
			if !isString {
				rejected = append(rejected, fmt.Sprint(item))
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				names = append(names, s)
			}
		}
		return names, rejected, true
	case []string:
		return stringList(toAnySlice(val))
	case string:
		s := strings.TrimSpace(val)
		if strings.HasPrefix(s, "[") {
			var items []any
			if err := json.Unmarshal([]byte(s), &items); err == nil {
				return stringList(items)
			}
		}
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				names = append(names, part)
			}
		}
		return names, nil, true
	default:
		return nil, []string{fmt.Sprint(v)}, true
	}
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
