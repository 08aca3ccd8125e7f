package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/id/uuid"
	"github.com/JakeFAU/openfeeder/internal/notify"
)

const coldStartMessage = "This site publishes structured content for AI agents through OpenFeeder. " +
	"Answer a couple of questions, or call an endpoint below directly, instead of scraping this page."

// Dialog is the structured half of a ColdStart response.
type Dialog struct {
	Active    bool       `json:"active"`
	SessionID string     `json:"session_id"`
	ExpiresIn int        `json:"expires_in"`
	Questions []Question `json:"questions"`
	ReplyTo   string     `json:"reply_to"`
}

// ColdStartContext describes what was detected about the page.
type ColdStartContext struct {
	PageRequested    string   `json:"page_requested"`
	DetectedType     PageType `json:"detected_type"`
	DetectedTopic    string   `json:"detected_topic"`
	SiteCapabilities []string `json:"site_capabilities"`
}

// LegacyQuestion is the flat question/action pair older clients read.
type LegacyQuestion struct {
	Question string `json:"question"`
	Action   string `json:"action"`
}

// ColdStartResponse is returned to a crawler that sent no intent signals.
type ColdStartResponse struct {
	Openfeeder string            `json:"openfeeder"`
	Gateway    string            `json:"gateway"`
	Message    string            `json:"message"`
	Dialog     Dialog            `json:"dialog"`
	Context    ColdStartContext  `json:"context"`
	Questions  []LegacyQuestion  `json:"questions"`
	Endpoints  map[string]string `json:"endpoints"`
	NextSteps  []string          `json:"next_steps"`
}

// RespondRequest is the body posted to the reply endpoint.
type RespondRequest struct {
	SessionID string         `json:"session_id"`
	Answers   map[string]any `json:"answers"`
}

// Config holds the gateway settings.
type Config struct {
	Enabled          bool          `mapstructure:"enabled"`
	Signatures       []string      `mapstructure:"signatures"`
	StaticExtensions []string      `mapstructure:"static_extensions"`
	StaticPrefixes   []string      `mapstructure:"static_prefixes"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	SessionStore     string        `mapstructure:"session_store"`
}

// Deps wires a Gateway.
type Deps struct {
	Detector   *Detector
	Sessions   SessionStore
	Site       Site
	SessionTTL time.Duration
	Clock      feed.Clock
	Events     notify.Emitter
	Logger     *zap.Logger
}

// Gateway runs the dialogue.
type Gateway struct {
	detector *Detector
	sessions SessionStore
	site     Site
	ttl      time.Duration
	clock    feed.Clock
	events   notify.Emitter
	logger   *zap.Logger
}

// New validates deps and builds a Gateway.
func New(d Deps) (*Gateway, error) {
	if d.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if d.Clock == nil {
		return nil, errors.New("clock is required")
	}
	if d.Detector == nil {
		d.Detector = NewDetector(nil, nil, nil)
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = DefaultSessionTTL
	}
	if d.Events == nil {
		d.Events = notify.Discard{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if len(d.Site.Capabilities) == 0 {
		d.Site.Capabilities = DefaultCapabilities
	}
	return &Gateway{
		detector: d.Detector,
		sessions: d.Sessions,
		site:     d.Site,
		ttl:      d.SessionTTL,
		clock:    d.Clock,
		events:   d.Events,
		logger:   d.Logger,
	}, nil
}

// Inspect decides the mode for a page request.
func (g *Gateway) Inspect(r *http.Request) Decision {
	return g.detector.Inspect(r)
}

// MatchAgent exposes the detector's signature match.
func (g *Gateway) MatchAgent(ua string) (string, bool) {
	return g.detector.MatchAgent(ua)
}

// Direct answers a crawler that sent intent signals. No session is created.
func (g *Gateway) Direct(r *http.Request, d Decision) *Answer {
	pc := Classify(r.URL)
	prefs := FromSignals(pc, d.Signals)
	g.emit(notify.KindGatewayDirect, pc, d.Agent, prefs.Intent)
	return BuildAnswer(g.site, pc, prefs, g.clock.Now())
}

// ColdStart opens a session and returns the questions for the page.
func (g *Gateway) ColdStart(ctx context.Context, r *http.Request, d Decision) (*ColdStartResponse, error) {
	pc := Classify(r.URL)
	sess, err := g.sessions.Create(ctx, pc)
	if err != nil {
		g.logger.Error("create gateway session failed", zap.Error(err))
		return nil, feed.Internal(err, "could not open gateway session")
	}

	questions := QuestionsFor(pc)
	respond := linker{base: g.site.BaseURL}.link(PathRespond, nil)
	now := g.clock.Now()
	defaults := BuildAnswer(g.site, pc, FromSignals(pc, Signals{}), now)

	legacy := make([]LegacyQuestion, 0, len(questions))
	for _, q := range questions {
		action := "POST " + respond
		if q.Type == QuestionYesNo && q.Intent != "" {
			ans := BuildAnswer(g.site, pc, Preferences{Intent: q.Intent, Depth: defaultDepth, Format: defaultFormat}, now)
			if len(ans.RecommendedEndpoints) > 0 {
				action = "GET " + ans.RecommendedEndpoints[0].URL
			}
		}
		legacy = append(legacy, LegacyQuestion{Question: q.Question, Action: action})
	}

	next := []string{
		fmt.Sprintf(`POST {"session_id": %q, "answers": {...}} to %s within %d seconds`, sess.ID, respond, int(g.ttl.Seconds())),
		"Skip the dialogue next time with X-OpenFeeder-Intent, X-OpenFeeder-Depth, X-OpenFeeder-Format or X-OpenFeeder-Query headers",
	}
	if len(defaults.RecommendedEndpoints) > 0 {
		next = append(next, "Or fetch directly: GET "+defaults.RecommendedEndpoints[0].URL)
	}

	g.emit(notify.KindGatewayColdStart, pc, d.Agent, "")
	return &ColdStartResponse{
		Openfeeder: feed.Version,
		Gateway:    "interactive",
		Message:    coldStartMessage,
		Dialog: Dialog{
			Active:    true,
			SessionID: sess.ID,
			ExpiresIn: int(g.ttl.Seconds()),
			Questions: questions,
			ReplyTo:   respond,
		},
		Context: ColdStartContext{
			PageRequested:    pc.URL,
			DetectedType:     pc.Type,
			DetectedTopic:    pc.Topic,
			SiteCapabilities: g.site.Capabilities,
		},
		Questions: legacy,
		Endpoints: g.site.Endpoints(),
		NextSteps: next,
	}, nil
}

// Respond consumes the session named in req and answers with the merged
// preferences. The session is gone afterwards whatever the answers were.
func (g *Gateway) Respond(ctx context.Context, req RespondRequest, agent string) (*Answer, error) {
	id := strings.TrimSpace(req.SessionID)
	if !uuid.Valid(id) {
		return nil, feed.InvalidSession("session_id is missing or malformed")
	}
	sess, err := g.sessions.Take(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, feed.SessionExpired("session %s is unknown, already used or expired", id)
	}
	if err != nil {
		g.logger.Error("take gateway session failed", zap.Error(err))
		return nil, feed.Internal(err, "could not read gateway session")
	}
	prefs := FromAnswers(sess.Context, req.Answers)
	g.emit(notify.KindGatewayRespond, sess.Context, agent, prefs.Intent)
	return BuildAnswer(g.site, sess.Context, prefs, g.clock.Now()), nil
}

func (g *Gateway) emit(kind notify.Kind, pc PageContext, agent, intent string) {
	g.events.Emit(notify.Event{
		Kind:  kind,
		TS:    g.clock.Now(),
		URL:   pc.URL,
		Agent: agent,
		State: string(pc.Type),
		Note:  intent,
	})
}
