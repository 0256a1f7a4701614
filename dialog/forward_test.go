package dialog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convograph/convograph/types"
)

func optionGraph(labels [2]string) GraphConfig {
	return GraphConfig{
		ID: "g_opt", Name: "选项流程", Version: "1.0",
		Nodes: []NodeConfig{
			{
				ID: "n0", Name: "开场", Type: KindStart,
				ConditionGroups: []ConditionGroup{
					{{Type: CondParams, Name: "scene", Operator: "==", Value: "opt"}},
				},
			},
			{
				ID: "n1", Name: "提问", Type: KindSay,
				Content: []string{"请选择"}, Options: labels[:],
				LifeCycle: 1, CallbackWords: []string{"请在选项中选择"},
			},
			{ID: "n2", Name: "甲", Type: KindSay, Content: []string{"已选" + labels[0]}},
			{ID: "n3", Name: "乙", Type: KindSay, Content: []string{"已选" + labels[1]}},
		},
		Connections: []Connection{
			{SourceID: "n0", TargetID: "n1", LineID: "l1"},
			{SourceID: "n1", TargetID: "n2", LineID: "l2", OptionID: labels[0]},
			{SourceID: "n1", TargetID: "n3", LineID: "l3", OptionID: labels[1]},
		},
	}
}

func TestOptionExactMatch(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{optionGraph([2]string{"同意", "拒绝"})})
	ctx := context.Background()

	pack, err := a.Connect(ctx, "s1", map[string]any{"scene": "opt"})
	require.NoError(t, err)
	require.Equal(t, "请选择", pack.Says)

	pack, err = a.HandleMessage(ctx, "s1", "同意", nil, "")
	require.NoError(t, err)
	require.Equal(t, "已选同意", pack.Says)
}

func TestOptionFuzzyMatchWithinRatio(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{optionGraph([2]string{"广州市", "深圳市"})})
	ctx := context.Background()

	_, err := a.Connect(ctx, "s1", map[string]any{"scene": "opt"})
	require.NoError(t, err)

	// Distance 1 over a 3-rune label is below the 0.5 bound.
	pack, err := a.HandleMessage(ctx, "s1", "广州", nil, "")
	require.NoError(t, err)
	require.Equal(t, "已选广州市", pack.Says)
}

func TestOptionRatioBoundaryIsExclusive(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{optionGraph([2]string{"同意", "拒绝"})})
	ctx := context.Background()

	_, err := a.Connect(ctx, "s1", map[string]any{"scene": "opt"})
	require.NoError(t, err)

	// "同意啦" is distance 1 from the 2-rune label "同意": ratio exactly 0.5,
	// which must not match. The node detours to the knowledge base and
	// re-presents its options.
	pack, err := a.HandleMessage(ctx, "s1", "同意啦", nil, "")
	require.NoError(t, err)
	require.Equal(t, types.ReplyTypeFAQ, pack.Type)
	require.Contains(t, pack.Says, "请在选项中选择")
	require.Equal(t, []string{"同意", "拒绝"}, pack.Options)

	// The flow position survives the detour.
	pack, err = a.HandleMessage(ctx, "s1", "同意", nil, "")
	require.NoError(t, err)
	require.Equal(t, "已选同意", pack.Says)
}

func TestOptionExhaustionEndsQuietly(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{optionGraph([2]string{"同意", "拒绝"})})
	ctx := context.Background()

	_, err := a.Connect(ctx, "s1", map[string]any{"scene": "opt"})
	require.NoError(t, err)

	// First unmatched answer burns the single repeat.
	pack, err := a.HandleMessage(ctx, "s1", "不知道", nil, "")
	require.NoError(t, err)
	require.Equal(t, types.ReplyTypeFAQ, pack.Type)

	// Second unmatched answer exhausts the iterator: the node ends quietly
	// and the turn loop re-triggers the graph from its start.
	pack, err = a.HandleMessage(ctx, "s1", "还是不知道", nil, "")
	require.NoError(t, err)
	require.Equal(t, types.ReplyTypeFlow, pack.Type)
	require.Equal(t, "请选择", pack.Says)
	require.True(t, pack.Dialog.IsStart)
}

func TestClosestOptionPicksNearestLabel(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{optionGraph([2]string{"广州市", "深圳市"})})
	tr := a.getSession("s1", nil).tracker
	node, err := tr.lookupNode("n1")
	require.NoError(t, err)
	it := newOptionIterator(node, tr, 1)

	label, ok := it.closestOption("广州")
	require.True(t, ok)
	require.Equal(t, "广州市", label)

	_, ok = it.closestOption("北京")
	require.False(t, ok)
}

func TestForwardStrictNeverTakesDefault(t *testing.T) {
	g := moveCarGraph()
	// Strict routing on the start node refuses the default jump.
	g.Nodes[0].Strict = true
	g.Nodes[0].CallbackWords = []string{"请说明来意"}
	a := newTestAgent(t, []GraphConfig{g})

	pack, err := a.Connect(context.Background(), "s1", map[string]any{"scene": "move_car"})
	require.NoError(t, err)
	require.Equal(t, types.ReplyTypeFAQ, pack.Type)
	require.Contains(t, pack.Says, "请说明来意")
}
