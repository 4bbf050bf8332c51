package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Interactive blocks on a human prompt. Two session-scoped caches remember
// tools the user opted to always approve or always deny; they are consulted
// before prompting.
type Interactive struct {
	in  *bufio.Scanner
	out io.Writer

	mu            sync.Mutex
	alwaysApprove map[string]struct{}
	neverApprove  map[string]struct{}
}

// NewInteractive builds a provider reading answers from in and writing
// prompts to out.
func NewInteractive(in io.Reader, out io.Writer) *Interactive {
	return &Interactive{
		in:            bufio.NewScanner(in),
		out:           out,
		alwaysApprove: make(map[string]struct{}),
		neverApprove:  make(map[string]struct{}),
	}
}

// RequestApproval prompts until it receives a recognizable answer.
// "always" and "never" record the tool name for the rest of the session.
func (p *Interactive) RequestApproval(ctx context.Context, req *Request) (*Response, error) {
	p.mu.Lock()
	if _, ok := p.neverApprove[req.ToolName]; ok {
		p.mu.Unlock()
		return Denied("tool denied for this session"), nil
	}
	if _, ok := p.alwaysApprove[req.ToolName]; ok {
		p.mu.Unlock()
		return Approved("tool approved for this session"), nil
	}
	p.mu.Unlock()

	fmt.Fprintf(p.out, "\nTool call requires approval:\n")
	fmt.Fprintf(p.out, "  tool: %s (risk: %s)\n", req.ToolName, req.RiskLevel)
	if req.Description != "" {
		fmt.Fprintf(p.out, "  %s\n", req.Description)
	}
	if summary := summarizeArgs(req.Arguments); summary != "" {
		fmt.Fprintf(p.out, "  args: %s\n", summary)
	}

	for {
		if err := ctx.Err(); err != nil {
			return Denied("approval cancelled: " + err.Error()), nil
		}
		fmt.Fprintf(p.out, "Approve? [y/n/always/never]: ")
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return Denied("approval input failed: " + err.Error()), nil
			}
			return Denied("approval input closed"), nil
		}

		switch strings.ToLower(strings.TrimSpace(p.in.Text())) {
		case "y", "yes":
			return Approved("approved by user"), nil
		case "n", "no":
			return Denied("denied by user"), nil
		case "a", "always":
			p.mu.Lock()
			p.alwaysApprove[req.ToolName] = struct{}{}
			p.mu.Unlock()
			return Approved("approved by user (remembered)"), nil
		case "never":
			p.mu.Lock()
			p.neverApprove[req.ToolName] = struct{}{}
			p.mu.Unlock()
			return Denied("denied by user (remembered)"), nil
		}
	}
}

func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprintf("%v", args[k])
		if len(v) > 80 {
			v = v[:77] + "..."
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}
