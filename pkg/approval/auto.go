package approval

import (
	"context"
	"log"

	"github.com/lockstep-ai/gatekit/pkg/risk"
)

// AutoMode selects how the Auto provider decides.
type AutoMode string

const (
	// AutoAll approves every request.
	AutoAll AutoMode = "auto"
	// AutoSafeOnly approves only Safe-risk requests.
	AutoSafeOnly AutoMode = "safe_only"
	// AutoNone denies every request.
	AutoNone AutoMode = "none"
)

// Notifier is told about a request before Auto decides. It is best-effort:
// the decision never depends on the notification succeeding.
type Notifier func(ctx context.Context, req *Request) error

// Auto decides without human input. It serves one-way channels such as
// SSE streams that cannot solicit interactive answers.
type Auto struct {
	Mode     AutoMode
	Notifier Notifier
}

// NewAuto builds an auto provider. Unknown modes behave as AutoNone.
func NewAuto(mode AutoMode, notifier Notifier) *Auto {
	return &Auto{Mode: mode, Notifier: notifier}
}

// RequestApproval applies the configured mode.
func (p *Auto) RequestApproval(ctx context.Context, req *Request) (*Response, error) {
	if p.Notifier != nil {
		if err := p.Notifier(ctx, req); err != nil {
			log.Printf("[approval/auto] notify failed for %s: %v", req.ToolName, err)
		}
	}

	switch p.Mode {
	case AutoAll:
		return Approved("auto-approved"), nil
	case AutoSafeOnly:
		if req.RiskLevel == risk.Safe {
			return Approved("auto-approved (safe)"), nil
		}
		return Denied("auto-approval limited to safe operations"), nil
	default:
		return Denied("auto-approval disabled"), nil
	}
}
