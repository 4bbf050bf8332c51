// Package stream incrementally reassembles structured tool calls and plain
// text out of token-by-token model response deltas.
package stream

// Delta is one incremental fragment of a streamed model response. Either
// field may be empty; adapters in pkg/model produce these from vendor
// chunks.
type Delta struct {
	Text      string
	Fragments []Fragment
}

// Fragment is a partial tool call keyed by the provider's call index.
// ID and Name arrive once; Args arrives as a JSON string split across
// arbitrarily many deltas.
type Fragment struct {
	Index int
	ID    string
	Name  string
	Args  string
}

// RawCall preserves the wire-level fields a call was assembled from.
type RawCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	ArgsJSON string `json:"args_json"`
}

// ToolCall is a fully reconstructed, syntactically valid tool invocation.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Raw       RawCall        `json:"raw"`
}

// Turn is the final reconstruction of one assistant response.
type Turn struct {
	Text      string
	ToolCalls []ToolCall
}

// Event is one reconstruction result delivered to the handler. Exactly one
// of the three shapes is populated: Token for text, ToolCall for a finished
// call, Done for the end-of-stream summary.
type Event struct {
	Token    string
	ToolCall *ToolCall
	Done     *Turn
}

// Handler consumes reconstruction events in emission order. Returning an
// error aborts the stream.
type Handler func(Event) error
