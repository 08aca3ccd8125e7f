package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const gptUA = "Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko; compatible; GPTBot/1.2; +https://openai.com/gptbot)"

func TestInspectModes(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil, nil, nil)
	cases := []struct {
		name   string
		method string
		target string
		ua     string
		header map[string]string
		want   Mode
		agent  string
	}{
		{name: "browser", method: http.MethodGet, target: "/blog/post", ua: "Mozilla/5.0 Firefox/130.0", want: ModeBypass},
		{name: "empty ua", method: http.MethodGet, target: "/blog/post", want: ModeBypass},
		{name: "post", method: http.MethodPost, target: "/blog/post", ua: gptUA, want: ModeBypass},
		{name: "asset extension", method: http.MethodGet, target: "/img/logo.PNG", ua: gptUA, want: ModeBypass},
		{name: "asset prefix", method: http.MethodGet, target: "/wp-content/uploads/x", ua: gptUA, want: ModeBypass},
		{name: "protocol endpoint", method: http.MethodGet, target: "/openfeeder?url=/a", ua: gptUA, want: ModeBypass},
		{name: "discovery", method: http.MethodGet, target: "/.well-known/openfeeder.json", ua: gptUA, want: ModeBypass},
		{name: "respond", method: http.MethodGet, target: "/openfeeder/gateway/respond", ua: gptUA, want: ModeBypass},
		{name: "cold start", method: http.MethodGet, target: "/blog/post", ua: gptUA, want: ModeColdStart, agent: "GPTBot"},
		{name: "head", method: http.MethodHead, target: "/products/red-shoe", ua: gptUA, want: ModeBypass},
		{name: "home cold start", method: http.MethodGet, target: "/", ua: "claudebot/1.0", want: ModeColdStart, agent: "ClaudeBot"},
		{name: "direct via query", method: http.MethodGet, target: "/blog/post?intent=read_article", ua: gptUA, want: ModeDirect, agent: "GPTBot"},
		{name: "direct via header", method: http.MethodGet, target: "/blog/post", ua: "PerplexityBot/1.0",
			header: map[string]string{"X-OpenFeeder-Depth": "brief"}, want: ModeDirect, agent: "PerplexityBot"},
		{name: "openfeeder-like page path", method: http.MethodGet, target: "/openfeederish", ua: gptUA, want: ModeColdStart, agent: "GPTBot"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(tc.method, tc.target, nil)
			if tc.ua != "" {
				r.Header.Set("User-Agent", tc.ua)
			}
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			got := d.Inspect(r)
			require.Equal(t, tc.want, got.Mode)
			require.Equal(t, tc.agent, got.Agent)
		})
	}
}

func TestReadSignalsPrefersHeaders(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/x?intent=compare&depth=full&format=markdown&query=red+shoes", nil)
	r.Header.Set("X-OpenFeeder-Intent", "single_product")
	s := ReadSignals(r)
	require.Equal(t, Signals{Intent: "single_product", Depth: "full", Format: "markdown", Query: "red shoes"}, s)
	require.True(t, s.Present())
	require.False(t, Signals{}.Present())
}

func TestCustomSignatures(t *testing.T) {
	t.Parallel()

	d := NewDetector([]string{"  ", "MyAgent"}, []string{}, []string{})
	name, ok := d.MatchAgent("some myagent/2.0")
	require.True(t, ok)
	require.Equal(t, "MyAgent", name)
	_, ok = d.MatchAgent(gptUA)
	require.False(t, ok)
	require.False(t, d.IsStatic("/logo.png"))
	require.Equal(t, "cold_start", ModeColdStart.String())
}
