package gateway

import (
	"fmt"
	"strings"
)

// Question types.
const (
	QuestionYesNo  = "yes_no"
	QuestionChoice = "choice"
)

// Intents a crawler can settle on.
const (
	IntentSingleProduct = "single_product"
	IntentCompare       = "compare"
	IntentBrowse        = "browse_category"
	IntentSearch        = "search"
	IntentRead          = "read_article"
	IntentRelated       = "related_content"
	IntentOverview      = "site_overview"
	IntentLatest        = "latest_content"
)

// Depth and format values.
var (
	Depths  = []string{"brief", "standard", "full"}
	Formats = []string{"json", "markdown"}
)

const (
	defaultDepth  = "standard"
	defaultFormat = "json"
)

// Question is one dialogue question. A yes/no question carrying an Intent
// selects that intent when answered yes.
type Question struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Options  []string `json:"options,omitempty"`
	Intent   string   `json:"intent,omitempty"`
}

var goalIntents = map[string]string{
	"overview": IntentOverview,
	"latest":   IntentLatest,
	"search":   IntentSearch,
}

func depthQuestion() Question {
	return Question{ID: "depth", Question: "How much detail do you need?", Type: QuestionChoice, Options: Depths}
}

func formatQuestion() Question {
	return Question{ID: "format", Question: "Which response format do you prefer?", Type: QuestionChoice, Options: Formats}
}

// QuestionsFor returns the fixed question set for a page.
func QuestionsFor(pc PageContext) []Question {
	topic := pc.Topic
	if topic == "" {
		topic = "this page"
	}
	switch pc.Type {
	case PageProduct:
		return []Question{
			{ID: "single_product", Question: fmt.Sprintf("Do you want the details of %q only?", topic), Type: QuestionYesNo, Intent: IntentSingleProduct},
			{ID: "compare", Question: "Do you want to compare it with similar products?", Type: QuestionYesNo, Intent: IntentCompare},
			depthQuestion(),
		}
	case PageCategory:
		return []Question{
			{ID: "browse", Question: fmt.Sprintf("Do you want an overview of everything in %q?", topic), Type: QuestionYesNo, Intent: IntentBrowse},
			{ID: "find_specific", Question: "Are you looking for one specific item in this category?", Type: QuestionYesNo, Intent: IntentSearch},
			depthQuestion(),
		}
	case PageSearch:
		return []Question{
			{ID: "run_search", Question: fmt.Sprintf("Should we run the search for %q against structured content?", topic), Type: QuestionYesNo, Intent: IntentSearch},
			depthQuestion(),
		}
	case PageHome:
		return []Question{
			{ID: "goal", Question: "What are you here for?", Type: QuestionChoice, Options: []string{"overview", "latest", "search"}},
			formatQuestion(),
		}
	default:
		return []Question{
			{ID: "read_article", Question: fmt.Sprintf("Do you want the full text of %q?", topic), Type: QuestionYesNo, Intent: IntentRead},
			{ID: "related", Question: "Are you researching the topic more broadly?", Type: QuestionYesNo, Intent: IntentRelated},
			formatQuestion(),
		}
	}
}

// DefaultIntent is used when neither signals nor answers settle the intent.
func DefaultIntent(t PageType) string {
	switch t {
	case PageProduct:
		return IntentSingleProduct
	case PageCategory:
		return IntentBrowse
	case PageSearch:
		return IntentSearch
	case PageHome:
		return IntentOverview
	default:
		return IntentRead
	}
}

// Preferences is the resolved outcome of a negotiation.
type Preferences struct {
	Intent string
	Depth  string
	Format string
	Query  string
}

// FromSignals resolves preferences for Direct mode. Unknown values fall back
// to the page defaults.
func FromSignals(pc PageContext, s Signals) Preferences {
	p := Preferences{Intent: DefaultIntent(pc.Type), Depth: defaultDepth, Format: defaultFormat}
	if knownIntent(s.Intent) {
		p.Intent = strings.ToLower(s.Intent)
	}
	if v, ok := oneOf(s.Depth, Depths); ok {
		p.Depth = v
	}
	if v, ok := oneOf(s.Format, Formats); ok {
		p.Format = v
	}
	p.Query = s.Query
	return p
}

// FromAnswers resolves preferences from a Respond payload. Answers may be
// booleans or strings; anything unrecognized is ignored so malformed input
// degrades to the defaults instead of failing.
func FromAnswers(pc PageContext, answers map[string]any) Preferences {
	p := Preferences{Intent: DefaultIntent(pc.Type), Depth: defaultDepth, Format: defaultFormat}
	intentSet := false
	for _, q := range QuestionsFor(pc) {
		a, ok := answerString(answers[q.ID])
		if !ok {
			continue
		}
		switch {
		case q.Type == QuestionYesNo && q.Intent != "":
			if !intentSet && isYes(a) {
				p.Intent = q.Intent
				intentSet = true
			}
		case q.ID == "depth":
			if v, ok := oneOf(a, Depths); ok {
				p.Depth = v
			}
		case q.ID == "format":
			if v, ok := oneOf(a, Formats); ok {
				p.Format = v
			}
		case q.ID == "goal":
			if intent, ok := goalIntents[strings.ToLower(a)]; ok && !intentSet {
				p.Intent = intent
				intentSet = true
			}
		}
	}
	// Explicit overrides, same vocabulary as the Direct signals.
	if a, ok := answerString(answers["intent"]); ok && knownIntent(a) {
		p.Intent = strings.ToLower(a)
	}
	if a, ok := answerString(answers["depth"]); ok {
		if v, ok := oneOf(a, Depths); ok {
			p.Depth = v
		}
	}
	if a, ok := answerString(answers["format"]); ok {
		if v, ok := oneOf(a, Formats); ok {
			p.Format = v
		}
	}
	if a, ok := answerString(answers["query"]); ok {
		p.Query = strings.TrimSpace(a)
	}
	return p
}

func answerString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case bool:
		if t {
			return "yes", true
		}
		return "no", true
	default:
		return "", false
	}
}

func isYes(a string) bool {
	switch strings.ToLower(a) {
	case "yes", "y", "true", "1":
		return true
	default:
		return false
	}
}

func oneOf(v string, allowed []string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v, true
		}
	}
	return "", false
}

func knownIntent(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case IntentSingleProduct, IntentCompare, IntentBrowse, IntentSearch,
		IntentRead, IntentRelated, IntentOverview, IntentLatest:
		return true
	default:
		return false
	}
}
