package provider

import (
	"encoding/json"
	"sort"
	"strings"
)

// pendingCall holds the name and argument fragments of one in-flight tool
// call while its stream segment is still open. Arguments are never parsed
// from a pendingCall; only Finalize parses, once accumulation is done.
type pendingCall struct {
	id   string
	name strings.Builder
	args strings.Builder
}

// CallAccumulator reassembles tool calls from stream deltas keyed by the
// provider-assigned index. Fragments for one index arrive in order; indices
// may interleave arbitrarily.
type CallAccumulator struct {
	calls map[int]*pendingCall
}

// NewCallAccumulator creates an empty accumulator.
func NewCallAccumulator() *CallAccumulator {
	return &CallAccumulator{calls: make(map[int]*pendingCall)}
}

// Add merges one delta into the call at its index.
func (a *CallAccumulator) Add(d ToolCallDelta) {
	call, ok := a.calls[d.Index]
	if !ok {
		call = &pendingCall{}
		a.calls[d.Index] = call
	}
	if d.ID != "" {
		call.id = d.ID
	}
	if d.Name != "" {
		call.name.WriteString(d.Name)
	}
	if d.Args != "" {
		call.args.WriteString(d.Args)
	}
}

// Len returns the number of calls accumulated so far.
func (a *CallAccumulator) Len() int {
	return len(a.calls)
}

// Finalize parses every accumulated call and returns them ordered by index.
// A call whose argument JSON does not parse keeps its raw string with nil
// Arguments so the caller can report a tool-argument failure instead of
// aborting the turn.
func (a *CallAccumulator) Finalize() []ToolCall {
	indices := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	out := make([]ToolCall, 0, len(indices))
	for _, i := range indices {
		call := a.calls[i]
		tc := ToolCall{
			ID:           call.id,
			Name:         call.name.String(),
			RawArguments: call.args.String(),
		}
		if tc.RawArguments == "" {
			tc.Arguments = map[string]any{}
		} else if err := json.Unmarshal([]byte(tc.RawArguments), &tc.Arguments); err != nil {
			tc.Arguments = nil
		}
		out = append(out, tc)
	}
	return out
}
