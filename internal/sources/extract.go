package sources

import (
	"bytes"
	"encoding/json"
)

// maxWalkDepth stops the structural search before pathological payloads can
// exhaust the stack.
const maxWalkDepth = 48

// extractJSON returns the balanced JSON object starting at the first '{' in
// data. String and escape state is tracked so braces inside values do not
// close the object early.
func extractJSON(data []byte) []byte {
	start := bytes.IndexByte(data, '{')
	if start < 0 {
		return nil
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(data); i++ {
		ch := data[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return data[start : i+1]
				}
			}
		}
	}
	return nil
}

// extractMarkedJSON returns the JSON object assigned right after marker,
// e.g. the payload of "ytInitialPlayerResponse = {...}".
func extractMarkedJSON(page []byte, marker string) []byte {
	idx := bytes.Index(page, []byte(marker))
	if idx < 0 {
		return nil
	}
	return extractJSON(page[idx+len(marker):])
}

// walkJSON runs a bounded depth-first search over arbitrary JSON. visit
// returns true when it consumed the object, in which case its subtree is not
// descended further. The walk ends after limit objects were consumed.
func walkJSON(data []byte, limit int, visit func(obj map[string]json.RawMessage) bool) {
	if limit <= 0 {
		return
	}
	matches := 0
	var walk func(raw json.RawMessage, depth int)
	walk = func(raw json.RawMessage, depth int) {
		if matches >= limit || depth > maxWalkDepth {
			return
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err == nil {
			if visit(obj) {
				matches++
				return
			}
			for _, child := range obj {
				if matches >= limit {
					return
				}
				walk(child, depth+1)
			}
			return
		}
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err == nil {
			for _, item := range arr {
				if matches >= limit {
					return
				}
				walk(item, depth+1)
			}
		}
	}
	walk(data, 0)
}
