package approval

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockstep-ai/gatekit/pkg/risk"
)

func sampleRequest() *Request {
	return &Request{
		ToolCallID: "call_1",
		ToolName:   "bash",
		Arguments:  map[string]any{"command": "npm install"},
		RiskLevel:  risk.Caution,
	}
}

func TestInteractive_Answers(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		approved bool
	}{
		{"yes", "y\n", true},
		{"yes long", "YES\n", true},
		{"no", "n\n", false},
		{"no long", "no\n", false},
		{"garbage then yes", "maybe\nok\ny\n", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out strings.Builder
			p := NewInteractive(strings.NewReader(tc.input), &out)
			resp, err := p.RequestApproval(context.Background(), sampleRequest())
			require.NoError(t, err)
			require.Equal(t, tc.approved, resp.Approved)
			require.Contains(t, out.String(), "bash")
			require.Contains(t, out.String(), "caution")
		})
	}
}

func TestInteractive_AlwaysRemembered(t *testing.T) {
	var out strings.Builder
	p := NewInteractive(strings.NewReader("always\n"), &out)

	resp, err := p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.True(t, resp.Approved)

	// Second request is served from the session cache without input.
	resp, err = p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.True(t, resp.Approved)
}

func TestInteractive_NeverRemembered(t *testing.T) {
	var out strings.Builder
	p := NewInteractive(strings.NewReader("never\n"), &out)

	resp, err := p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.False(t, resp.Approved)

	resp, err = p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.False(t, resp.Approved)
}

func TestInteractive_ClosedInputDenies(t *testing.T) {
	var out strings.Builder
	p := NewInteractive(strings.NewReader(""), &out)
	resp, err := p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.False(t, resp.Approved)
}

func TestInteractive_CancelledContextDenies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out strings.Builder
	p := NewInteractive(strings.NewReader("y\n"), &out)
	resp, err := p.RequestApproval(ctx, sampleRequest())
	require.NoError(t, err)
	require.False(t, resp.Approved)
}

func TestWebhook_Approves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		w.Write([]byte(`{"approved":true,"reason":"looks fine"}`))
	}))
	defer srv.Close()

	p := NewWebhook(srv.URL, "sekrit", time.Second)
	resp, err := p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.True(t, resp.Approved)
	require.Equal(t, "looks fine", resp.Reason)
}

func TestWebhook_FailuresDeny(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"bad body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			p := NewWebhook(srv.URL, "", time.Second)
			resp, err := p.RequestApproval(context.Background(), sampleRequest())
			require.NoError(t, err)
			require.False(t, resp.Approved)
			require.NotEmpty(t, resp.Reason)
		})
	}
}

func TestWebhook_UnreachableDenies(t *testing.T) {
	p := NewWebhook("http://127.0.0.1:1", "", 200*time.Millisecond)
	resp, err := p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.False(t, resp.Approved)
}

func TestWebhook_TimeoutDenies(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p := NewWebhook(srv.URL, "", 50*time.Millisecond)
	resp, err := p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.False(t, resp.Approved)
}

func TestAuto_Modes(t *testing.T) {
	cases := []struct {
		name     string
		mode     AutoMode
		level    risk.Level
		approved bool
	}{
		{"all approves caution", AutoAll, risk.Caution, true},
		{"all approves dangerous", AutoAll, risk.Dangerous, true},
		{"safe_only approves safe", AutoSafeOnly, risk.Safe, true},
		{"safe_only denies caution", AutoSafeOnly, risk.Caution, false},
		{"none denies safe", AutoNone, risk.Safe, false},
		{"unknown mode denies", AutoMode("whatever"), risk.Safe, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewAuto(tc.mode, nil)
			req := sampleRequest()
			req.RiskLevel = tc.level
			resp, err := p.RequestApproval(context.Background(), req)
			require.NoError(t, err)
			require.Equal(t, tc.approved, resp.Approved)
		})
	}
}

func TestAuto_NotifierFailureIsBestEffort(t *testing.T) {
	notified := false
	p := NewAuto(AutoAll, func(ctx context.Context, req *Request) error {
		notified = true
		return errors.New("telegram down")
	})
	resp, err := p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.True(t, notified)
	require.True(t, resp.Approved)
}

func TestSummarizeArgs(t *testing.T) {
	require.Equal(t, "", summarizeArgs(nil))

	got := summarizeArgs(map[string]any{
		"b": "two", "a": 1,
		"long": strings.Repeat("x", 200),
	})
	require.True(t, strings.HasPrefix(got, "a=1 b=two long=x"))
	require.Contains(t, got, "...")
}
