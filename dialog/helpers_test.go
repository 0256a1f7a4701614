package dialog

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/convograph/convograph/config"
	"github.com/convograph/convograph/faq"
	"github.com/convograph/convograph/nlu"
	"github.com/convograph/convograph/types"
)

// ---

type stubKB struct {
	answers map[string]*types.Answer
	chit    string
	asks    int
}

func (s *stubKB) Ask(ctx context.Context, params faq.AskParams) (*types.Answer, error) {
	s.asks++
	if a, ok := s.answers[params.Question]; ok {
		return a, nil
	}
	return &types.Answer{}, nil
}

func (s *stubKB) ChitchatAsk(ctx context.Context, robotCode, question string) (*types.Answer, error) {
	return &types.Answer{Answer: s.chit}, nil
}

type stubBank struct {
	questions []faq.BankQuestion
	intents   map[string]faq.BankIntent
}

func (s *stubBank) Search(ctx context.Context, req faq.SearchRequest) ([]faq.BankQuestion, error) {
	var out []faq.BankQuestion
	for _, q := range s.questions {
		if len(req.IDs) > 0 {
			for _, id := range req.IDs {
				if q.ID == id {
					out = append(out, q)
				}
			}
			continue
		}
		for _, cat := range req.Categories {
			if q.Category == cat {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

func (s *stubBank) Intents(ctx context.Context, ids []string) ([]faq.BankIntent, error) {
	var out []faq.BankIntent
	for _, id := range ids {
		if intent, ok := s.intents[id]; ok {
			out = append(out, intent)
		}
	}
	return out, nil
}

// ---

func newTestAgent(t *testing.T, graphs []GraphConfig, opts ...func(*Collaborators, *config.Config)) *Agent {
	t.Helper()
	cfg := config.DefaultConfig()
	collab := Collaborators{
		NLU:  nlu.EmptyInterpreter("test_bot", zap.NewNop()),
		KB:   &stubKB{answers: map[string]*types.Answer{}, chit: "我们聊点别的吧"},
		Bank: &stubBank{intents: map[string]faq.BankIntent{}},
	}
	for _, opt := range opts {
		opt(&collab, cfg)
	}
	return NewAgent("test_bot", cfg, collab, graphs, zap.NewNop(), nil)
}

// moveCarGraph is the canonical scenario: trigger on a scene param, collect
// the plate number, confirm and hang up.
func moveCarGraph() GraphConfig {
	return GraphConfig{
		ID:          "g_move",
		Name:        "挪车流程",
		Version:     "1.0",
		GlobalSlots: map[string]string{"plate_number": nlu.AbilityPlates},
		Nodes: []NodeConfig{
			{
				ID: "n0", Name: "开场", Type: KindStart,
				ConditionGroups: []ConditionGroup{
					{{Type: CondParams, Name: "scene", Operator: "==", Value: "move_car"}},
				},
			},
			{
				ID: "n1", Name: "收集车牌", Type: KindFillSlots,
				Slots: []SlotSpec{{
					Name: "plate_number", Alias: "车牌号", Rounds: 2, Required: true,
					ReaskWords: []string{"请提供您的车牌号"},
				}},
			},
			{
				ID: "n2", Name: "结束语", Type: KindSay,
				Content: []string{"已通知车主尽快挪车，车牌${slot.plate_number}"},
			},
		},
		Connections: []Connection{
			{SourceID: "n0", TargetID: "n1", LineID: "l1"},
			{SourceID: "n1", TargetID: "n2", LineID: "l2"},
		},
	}
}
