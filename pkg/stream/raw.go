package stream

// FragmentFromRaw canonicalizes a dict-shaped tool-call fragment into a
// Fragment. Two wire shapes are recognized: the chat-completions shape
// (id/name/args or arguments) and the responses-API alias (call_id/
// arguments). Anything else is skipped rather than guessed.
func FragmentFromRaw(raw map[string]any) (Fragment, bool) {
	if raw == nil {
		return Fragment{}, false
	}

	frag := Fragment{Index: intField(raw, "index")}

	if id, ok := raw["id"].(string); ok {
		frag.ID = id
	} else if id, ok := raw["call_id"].(string); ok {
		frag.ID = id
	}
	if name, ok := raw["name"].(string); ok {
		frag.Name = name
	}
	if args, ok := raw["args"].(string); ok {
		frag.Args = args
	} else if args, ok := raw["arguments"].(string); ok {
		frag.Args = args
	}

	if frag.ID == "" && frag.Name == "" && frag.Args == "" {
		return Fragment{}, false
	}
	return frag, true
}

func intField(raw map[string]any, key string) int {
	switch v := raw[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
