package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuestionSetsAreSmallAndFixed(t *testing.T) {
	t.Parallel()

	for _, pt := range []PageType{PageHome, PageSearch, PageProduct, PageCategory, PageArticle} {
		qs := QuestionsFor(PageContext{URL: "/x", Type: pt, Topic: "x"})
		require.GreaterOrEqual(t, len(qs), 2, pt)
		require.LessOrEqual(t, len(qs), 3, pt)
		for _, q := range qs {
			require.Contains(t, []string{QuestionYesNo, QuestionChoice}, q.Type)
			if q.Type == QuestionChoice {
				require.NotEmpty(t, q.Options)
			}
		}
		require.Equal(t, qs, QuestionsFor(PageContext{URL: "/x", Type: pt, Topic: "x"}))
	}
}

func TestProductQuestionsIncludeSingleProduct(t *testing.T) {
	t.Parallel()

	found := false
	for _, q := range QuestionsFor(PageContext{Type: PageProduct, Topic: "boots"}) {
		if q.Intent == IntentSingleProduct {
			found = true
		}
	}
	require.True(t, found)
}

func TestFromAnswers(t *testing.T) {
	t.Parallel()

	product := PageContext{URL: "/product/boots", Type: PageProduct, Topic: "boots"}

	p := FromAnswers(product, map[string]any{"single_product": "no", "compare": true, "depth": "full"})
	require.Equal(t, Preferences{Intent: IntentCompare, Depth: "full", Format: "json"}, p)

	p = FromAnswers(product, map[string]any{"compare": 42, "depth": "enormous", "format": []string{"x"}})
	require.Equal(t, Preferences{Intent: IntentSingleProduct, Depth: "standard", Format: "json"}, p)

	p = FromAnswers(product, nil)
	require.Equal(t, IntentSingleProduct, p.Intent)

	home := PageContext{URL: "/", Type: PageHome}
	p = FromAnswers(home, map[string]any{"goal": "Latest", "format": "markdown", "query": " boots "})
	require.Equal(t, Preferences{Intent: IntentLatest, Depth: "standard", Format: "markdown", Query: "boots"}, p)

	p = FromAnswers(home, map[string]any{"intent": "search"})
	require.Equal(t, IntentSearch, p.Intent)
}

func TestFromSignals(t *testing.T) {
	t.Parallel()

	pc := PageContext{URL: "/a", Type: PageArticle, Topic: "a"}
	p := FromSignals(pc, Signals{Intent: "RELATED_CONTENT", Depth: "brief", Format: "pdf", Query: "go"})
	require.Equal(t, Preferences{Intent: IntentRelated, Depth: "brief", Format: "json", Query: "go"}, p)

	p = FromSignals(pc, Signals{Intent: "world_domination"})
	require.Equal(t, IntentRead, p.Intent)
}
