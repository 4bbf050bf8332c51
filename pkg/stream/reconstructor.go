package stream

import (
	"encoding/json"
	"log"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Reconstructor assembles tool calls and text from a delta sequence. It is
// single-stream state: create one per model response, feed deltas in
// arrival order, then call Finish (or Fail on a broken stream).
type Reconstructor struct {
	handler Handler
	text    strings.Builder
	calls   map[int]*callAccumulator
}

type callAccumulator struct {
	id      string
	name    string
	args    strings.Builder
	parsed  *ToolCall
	emitted bool
}

// NewReconstructor returns a reconstructor that forwards events to handler.
func NewReconstructor(handler Handler) *Reconstructor {
	return &Reconstructor{
		handler: handler,
		calls:   make(map[int]*callAccumulator),
	}
}

// Text returns the plain text accumulated so far.
func (r *Reconstructor) Text() string { return r.text.String() }

// Feed processes one delta. Text is forwarded immediately as a Token event;
// tool-call fragments are merged into their per-index accumulator and a
// ToolCall event fires as soon as the call's arguments form complete JSON.
// Empty text never produces a Token event.
func (r *Reconstructor) Feed(d Delta) error {
	if d.Text != "" {
		r.text.WriteString(d.Text)
		if err := r.emit(Event{Token: d.Text}); err != nil {
			return err
		}
	}

	for _, frag := range d.Fragments {
		acc, ok := r.calls[frag.Index]
		if !ok {
			acc = &callAccumulator{}
			r.calls[frag.Index] = acc
		}
		if frag.ID != "" {
			acc.id = frag.ID
		}
		if frag.Name != "" {
			acc.name = frag.Name
		}
		acc.args.WriteString(frag.Args)

		if acc.ready() {
			call, ok := acc.finalize(frag.Index)
			if !ok {
				continue
			}
			acc.emitted = true
			if err := r.emit(Event{ToolCall: call}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Finish flushes any calls still pending, emits the Done event, and
// returns the reconstructed turn. Calls that never became syntactically
// valid are dropped, never surfaced.
func (r *Reconstructor) Finish() (*Turn, error) {
	indices := make([]int, 0, len(r.calls))
	for idx := range r.calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var calls []ToolCall
	for _, idx := range indices {
		acc := r.calls[idx]
		call, ok := acc.finalize(idx)
		if !ok {
			log.Printf("[stream] dropping malformed tool call at index %d", idx)
			continue
		}
		if !acc.emitted {
			acc.emitted = true
			if err := r.emit(Event{ToolCall: call}); err != nil {
				return nil, err
			}
		}
		calls = append(calls, *call)
	}

	turn := &Turn{Text: r.text.String(), ToolCalls: calls}
	if err := r.emit(Event{Done: turn}); err != nil {
		return nil, err
	}
	return turn, nil
}

// Fail wraps a stream failure without losing the text received so far.
func (r *Reconstructor) Fail(err error) *StreamError {
	return &StreamError{Partial: r.text.String(), Err: err}
}

func (r *Reconstructor) emit(ev Event) error {
	if r.handler == nil {
		return nil
	}
	return r.handler(ev)
}

// ready reports whether the accumulator can be finalized early: identity is
// known and the argument buffer already forms a complete JSON document.
func (a *callAccumulator) ready() bool {
	if a.emitted || a.id == "" || a.name == "" {
		return false
	}
	raw := strings.TrimSpace(a.args.String())
	return raw != "" && gjson.Valid(raw)
}

// finalize decodes the arguments exactly once. A call without identity or
// with arguments that are not a JSON object is rejected.
func (a *callAccumulator) finalize(index int) (*ToolCall, bool) {
	if a.parsed != nil {
		return a.parsed, true
	}
	if a.id == "" || a.name == "" {
		return nil, false
	}

	raw := strings.TrimSpace(a.args.String())
	args := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, false
		}
	}

	a.parsed = &ToolCall{
		ID:        a.id,
		Name:      a.name,
		Arguments: args,
		Raw:       RawCall{Index: index, ID: a.id, Name: a.name, ArgsJSON: raw},
	}
	return a.parsed, true
}
