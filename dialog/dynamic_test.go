package dialog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convograph/convograph/config"
	"github.com/convograph/convograph/faq"
	"github.com/convograph/convograph/nlu"
)

func surveyBank() *stubBank {
	return &stubBank{
		questions: []faq.BankQuestion{
			{
				ID:        "q1",
				Content:   "请问您对本次服务满意吗？",
				IntentIDs: []string{"i_unhappy"},
				ChildIDs:  []string{"q2"},
				Slots: []faq.BankSlot{
					{Key: "satisfied", Name: "满意度", EntityKey: nlu.AbilityRecentUserSays},
				},
			},
			{
				ID:             "q2",
				Content:        "请问哪里让您不满意？",
				ParentIntentID: "i_unhappy",
				Slots: []faq.BankSlot{
					{Key: "complaint", Name: "不满原因", EntityKey: nlu.AbilityRecentUserSays},
				},
			},
		},
		intents: map[string]faq.BankIntent{
			"i_unhappy": {
				ID: "i_unhappy", Name: "不满意",
				Rules: []nlu.IntentRule{{Pattern: "不满意"}},
			},
		},
	}
}

func surveyGraph() GraphConfig {
	return GraphConfig{
		ID: "g_survey", Name: "回访调查", Version: "1.0",
		Nodes: []NodeConfig{
			{
				ID: "n0", Name: "开场", Type: KindStart,
				ConditionGroups: []ConditionGroup{
					{{Type: CondParams, Name: "scene", Operator: "==", Value: "survey"}},
				},
			},
			{
				ID: "n1", Name: "问卷", Type: KindDynamic,
				RandomMode: RandomModeFixed, QuestionID: "q1",
			},
			{ID: "n2", Name: "致谢", Type: KindSay, Content: []string{"感谢您的配合，再见"}},
		},
		Connections: []Connection{
			{SourceID: "n0", TargetID: "n1", LineID: "l1"},
			{SourceID: "n1", TargetID: "n2", LineID: "l2"},
		},
	}
}

func TestDynamicFollowUpRecursion(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{surveyGraph()}, func(c *Collaborators, cfg *config.Config) {
		c.Bank = surveyBank()
	})
	ctx := context.Background()
	params := map[string]any{"scene": "survey", "global_question_id": "lib1"}

	pack, err := a.Connect(ctx, "s1", params)
	require.NoError(t, err)
	require.Equal(t, "请问您对本次服务满意吗？", pack.Says)
	require.Equal(t, KindDynamic, pack.Dialog.NodeType)

	// The rule-matched follow-up intent recurses into its sub-question.
	pack, err = a.HandleMessage(ctx, "s1", "不满意", nil, "")
	require.NoError(t, err)
	require.Equal(t, "请问哪里让您不满意？", pack.Says)

	tr := a.getSession("s1", nil).tracker
	require.Equal(t, "不满意", tr.slots["satisfied"])

	// The leaf question routes out of the node through the default edge.
	pack, err = a.HandleMessage(ctx, "s1", "等待时间太长", nil, "")
	require.NoError(t, err)
	require.Equal(t, "感谢您的配合，再见", pack.Says)
	require.True(t, pack.Dialog.IsEnd)
	require.Equal(t, "等待时间太长", tr.slots["complaint"])
}

func TestDynamicNeedsQuestionLibParam(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{surveyGraph()}, func(c *Collaborators, cfg *config.Config) {
		c.Bank = surveyBank()
	})
	_, err := a.Connect(context.Background(), "s1", map[string]any{"scene": "survey"})
	require.Error(t, err)
}

func TestDynamicEditDistanceRescue(t *testing.T) {
	bank := surveyBank()
	bank.intents["i_unhappy"] = faq.BankIntent{
		ID: "i_unhappy", Name: "不满意",
		Examples: []string{"我很不满意"},
	}
	a := newTestAgent(t, []GraphConfig{surveyGraph()}, func(c *Collaborators, cfg *config.Config) {
		c.Bank = bank
	})
	ctx := context.Background()
	params := map[string]any{"scene": "survey", "global_question_id": "lib1"}

	_, err := a.Connect(ctx, "s1", params)
	require.NoError(t, err)

	// Same rune length, one slip away from the example.
	pack, err := a.HandleMessage(ctx, "s1", "我狠不满意", nil, "")
	require.NoError(t, err)
	require.Equal(t, "请问哪里让您不满意？", pack.Says)
}

func TestMatchIntentRulesAnchorsPatterns(t *testing.T) {
	a := newTestAgent(t, nil)
	tr := a.getSession("s1", nil).tracker

	intents := []faq.BankIntent{
		{ID: "i1", Name: "查询", Rules: []nlu.IntentRule{{Pattern: "查询|查一下"}}},
	}
	require.NotNil(t, matchIntentRules(intents, "查询余额", tr))
	// The alternation is wrapped in a group before anchoring, so the second
	// alternative cannot match mid-string.
	require.Nil(t, matchIntentRules(intents, "帮我查一下", tr))

	// Broken patterns are skipped, not fatal.
	broken := []faq.BankIntent{
		{ID: "i2", Name: "坏规则", Rules: []nlu.IntentRule{{Pattern: "("}}},
	}
	require.Nil(t, matchIntentRules(broken, "随便", tr))
}
