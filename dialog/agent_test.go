package dialog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/convograph/convograph/config"
	"github.com/convograph/convograph/types"
)

func TestNewAgentSkipsBrokenGraphs(t *testing.T) {
	broken := GraphConfig{
		ID: "g_broken", Name: "残图", Version: "1.0",
		Nodes: []NodeConfig{
			{ID: "n1", Name: "孤节点", Type: KindSay, Content: []string{"你好"}},
		},
	}
	a := newTestAgent(t, []GraphConfig{broken, moveCarGraph()})
	require.Len(t, a.graphs, 1)
	require.NotNil(t, a.graphByID("g_move"))

	// The healthy graph still serves.
	pack, err := a.Connect(context.Background(), "s1", map[string]any{"scene": "move_car"})
	require.NoError(t, err)
	require.Equal(t, "请提供您的车牌号", pack.Says)
}

func TestNewSessionCreationCompletes(t *testing.T) {
	// Tracker construction reads the graph table while getSession manages
	// the session table; creating a session must never wedge on the
	// agent's own mutex.
	a := newTestAgent(t, []GraphConfig{moveCarGraph()})

	done := make(chan error, 1)
	go func() {
		_, err := a.Connect(context.Background(), "s_fresh", map[string]any{"scene": "move_car"})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session creation blocked on the agent mutex")
	}

	a.mu.RLock()
	_, ok := a.sessions["s_fresh"]
	a.mu.RUnlock()
	require.True(t, ok)
}

func TestSessionEvictionSweep(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{moveCarGraph()}, func(c *Collaborators, cfg *config.Config) {
		cfg.SessionTTL = time.Minute
	})
	a.getSession("old", nil)
	a.mu.Lock()
	a.sessions["old"].lastActive = time.Now().Add(-time.Hour)
	a.mu.Unlock()

	a.getSession("fresh", nil)
	a.mu.RLock()
	defer a.mu.RUnlock()
	require.NotContains(t, a.sessions, "old")
	require.Contains(t, a.sessions, "fresh")
}

func TestGraphTriggerOrder(t *testing.T) {
	mk := func(id, reply string) GraphConfig {
		return GraphConfig{
			ID: id, Name: id, Version: "1.0",
			Nodes: []NodeConfig{
				{
					ID: id + "_start", Name: "开场", Type: KindStart,
					ConditionGroups: []ConditionGroup{
						{{Type: CondParams, Name: "scene", Operator: "==", Value: "x"}},
					},
				},
				{ID: id + "_say", Name: "播报", Type: KindSay, Content: []string{reply}},
			},
			Connections: []Connection{
				{SourceID: id + "_start", TargetID: id + "_say", LineID: "l1"},
			},
		}
	}
	a := newTestAgent(t, []GraphConfig{mk("g_first", "第一"), mk("g_second", "第二")})
	ctx := context.Background()

	// Both predicates hold; declaration order decides.
	pack, err := a.Connect(ctx, "s1", map[string]any{"scene": "x"})
	require.NoError(t, err)
	require.Equal(t, "第一", pack.Says)

	// An explicit flow hint overrides the trigger scan, once.
	pack, err = a.HandleMessage(ctx, "s2", "你好", map[string]any{"scene": "x"}, "g_second")
	require.NoError(t, err)
	require.Equal(t, "第二", pack.Says)
	require.Equal(t, "g_second", pack.Dialog.GraphID)
}

func TestFlowHintUnknownGraphFails(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{moveCarGraph()})
	_, err := a.HandleMessage(context.Background(), "s1", "你好", nil, "g_missing")
	require.Error(t, err)
	require.True(t, types.IsFlowRuntime(err))
}

func TestUpdateGraphReplacesAndDropsSessions(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{moveCarGraph()})
	ctx := context.Background()
	_, err := a.Connect(ctx, "s1", map[string]any{"scene": "move_car"})
	require.NoError(t, err)

	updated := moveCarGraph()
	updated.Version = "2.0"
	updated.Nodes[2].Content = []string{"新版结束语，车牌${slot.plate_number}"}
	require.NoError(t, a.UpdateGraph(updated))

	a.mu.RLock()
	require.Empty(t, a.sessions)
	require.Equal(t, "2.0", a.graphs["g_move"].Version)
	a.mu.RUnlock()

	// The replaced graph serves new sessions from scratch.
	pack, err := a.Connect(ctx, "s2", map[string]any{"scene": "move_car"})
	require.NoError(t, err)
	require.Equal(t, "请提供您的车牌号", pack.Says)
}

func TestUpdateGraphRejectsInvalidConfig(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{moveCarGraph()})
	bad := moveCarGraph()
	bad.Nodes = bad.Nodes[1:]
	err := a.UpdateGraph(bad)
	require.Error(t, err)
	require.True(t, types.IsStaticCheck(err))
	// The previous version stays installed.
	require.Equal(t, "1.0", a.graphByID("g_move").Version)
}

func TestRemoveGraph(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{moveCarGraph()})
	a.RemoveGraph("g_move")
	require.Nil(t, a.graphByID("g_move"))
	require.Empty(t, a.graphOrder)

	// Without graphs every turn goes to the knowledge base.
	pack, err := a.HandleMessage(context.Background(), "s1", "你好", map[string]any{"scene": "move_car"}, "")
	require.NoError(t, err)
	require.Equal(t, types.ReplyTypeFAQ, pack.Type)
}

func TestGeneratedSessionID(t *testing.T) {
	a := newTestAgent(t, nil)
	pack, err := a.HandleMessage(context.Background(), "", "你好", nil, "")
	require.NoError(t, err)
	require.NotEmpty(t, pack.SessionID)
}
