package sources

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONBalancesBraces(t *testing.T) {
	t.Parallel()

	page := []byte(`var x = {"a": {"b": 1}, "c": [2, 3]}; more`)
	got := extractJSON(page)
	require.JSONEq(t, `{"a": {"b": 1}, "c": [2, 3]}`, string(got))
}

func TestExtractJSONIgnoresBracesInStrings(t *testing.T) {
	t.Parallel()

	page := []byte(`{"title": "curly } inside", "esc": "quote \" and } brace"}`)
	got := extractJSON(page)
	require.NotNil(t, got)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(got, &decoded))
	require.Equal(t, "curly } inside", decoded["title"])
}

func TestExtractJSONUnterminated(t *testing.T) {
	t.Parallel()

	require.Nil(t, extractJSON([]byte(`{"open": {"never": "closed"`)))
	require.Nil(t, extractJSON([]byte(`no object here`)))
}

func TestExtractMarkedJSON(t *testing.T) {
	t.Parallel()

	page := []byte(`<script>var ytInitialPlayerResponse = {"videoDetails":{"title":"T"}};</script>`)
	got := extractMarkedJSON(page, playerResponseMarker)
	require.JSONEq(t, `{"videoDetails":{"title":"T"}}`, string(got))

	require.Nil(t, extractMarkedJSON(page, initialDataMarker))
}

func TestWalkJSONStopsAtLimit(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"items": [
		{"target": {"n": 1}},
		{"target": {"n": 2}},
		{"target": {"n": 3}}
	]}`)

	var seen int
	walkJSON(payload, 2, func(obj map[string]json.RawMessage) bool {
		if _, ok := obj["target"]; ok {
			seen++
			return true
		}
		return false
	})
	require.Equal(t, 2, seen)
}

func TestWalkJSONSkipsConsumedSubtrees(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"outer": {"target": {"inner": {"target": {}}}}}`)

	var seen int
	walkJSON(payload, 10, func(obj map[string]json.RawMessage) bool {
		if _, ok := obj["target"]; ok {
			seen++
			return true
		}
		return false
	})
	// The nested target sits inside the consumed subtree.
	require.Equal(t, 1, seen)
}

func TestWalkJSONToleratesScalarsAndMalformedInput(t *testing.T) {
	t.Parallel()

	walkJSON([]byte(`"just a string"`), 5, func(map[string]json.RawMessage) bool {
		t.Fatal("no object to visit")
		return false
	})
	walkJSON([]byte(`{"broken":`), 5, func(map[string]json.RawMessage) bool {
		t.Fatal("malformed input should not produce visits")
		return false
	})
}
