package stream

// Frame payloads are single data lines of JSON; consumers branch on shape
// rather than named event types, so every frame type wraps its payload in a
// distinguishing top-level key.

// Progress step labels in pipeline order. Source steps are derived per
// source name and are unordered among themselves.
const (
	StepValidating = "validating"
	StepCache      = "cache"
	StepGathering  = "gathering"
	StepPrompt     = "prompt"
	StepGenerating = "generating"
	StepSaving     = "saving"
)

// SourceStep labels the completion notice for one signal source.
func SourceStep(source string) string {
	return "source:" + source
}

type progressPayload struct {
	Step      string `json:"step"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type progressFrame struct {
	Progress progressPayload `json:"progress"`
}

type heartbeatPayload struct {
	ElapsedMs int64 `json:"elapsedMs"`
}

type heartbeatFrame struct {
	Heartbeat heartbeatPayload `json:"heartbeat"`
}

type deltaPayload struct {
	Text string `json:"text"`
}

type deltaFrame struct {
	Delta deltaPayload `json:"delta"`
}

type errorFrame struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// FinalPayload is the single success frame that precedes the terminal
// sentinel. Summary is present only when a text producer ran.
type FinalPayload struct {
	VideoURL string   `json:"videoUrl"`
	Sources  []string `json:"sources"`
	Prompt   string   `json:"prompt"`
	Summary  string   `json:"summary,omitempty"`
}
