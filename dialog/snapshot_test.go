package dialog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTripResumesFlow(t *testing.T) {
	ctx := context.Background()
	a1 := newTestAgent(t, []GraphConfig{moveCarGraph()})

	pack, err := a1.Connect(ctx, "s1", map[string]any{"scene": "move_car"})
	require.NoError(t, err)
	require.Equal(t, "请提供您的车牌号", pack.Says)

	snap := a1.SnapshotSession("s1")
	require.NotNil(t, snap)
	require.Equal(t, "g_move", snap.CurrentGraphID)
	require.NotNil(t, snap.Iterator)
	require.Equal(t, iterKindFillSlots, snap.Iterator.Kind)
	require.Equal(t, "n1", snap.Iterator.NodeID)

	// Through JSON, as the external store would carry it.
	payload, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(payload, &decoded))

	a2 := newTestAgent(t, []GraphConfig{moveCarGraph()})
	require.NoError(t, a2.RestoreSession(&decoded))

	pack, err = a2.HandleMessage(ctx, "s1", "粤A12345", nil, "")
	require.NoError(t, err)
	require.Equal(t, "已通知车主尽快挪车，车牌粤A12345", pack.Says)
	require.True(t, pack.Dialog.IsEnd)
}

func TestSnapshotDetachesFromLiveSession(t *testing.T) {
	// A snapshot is marshaled after the session lock is gone; later turns
	// must not reach into it.
	ctx := context.Background()
	a := newTestAgent(t, []GraphConfig{moveCarGraph()})

	_, err := a.Connect(ctx, "s1", map[string]any{"scene": "move_car"})
	require.NoError(t, err)

	snap := a.SnapshotSession("s1")
	require.NotNil(t, snap)
	require.Equal(t, "", snap.Slots["plate_number"])
	turnID := snap.TurnID
	replies := len(snap.Replies)

	// The next turn fills the slot and ends the flow.
	pack, err := a.HandleMessage(ctx, "s1", "粤A12345", nil, "")
	require.NoError(t, err)
	require.True(t, pack.Dialog.IsEnd)

	require.Equal(t, "", snap.Slots["plate_number"])
	require.Equal(t, turnID, snap.TurnID)
	require.Len(t, snap.Replies, replies)
	require.False(t, snap.IsEnd)
}

func TestSnapshotPreservesSlotsAndParams(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{moveCarGraph()})
	tr := a.getSession("s1", map[string]any{"city": "广州"}).tracker
	tr.fillSlot("plate_number", "粤A12345", "车牌号", true)

	snap := tr.Snapshot()
	payload, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(payload, &decoded))

	a2 := newTestAgent(t, []GraphConfig{moveCarGraph()})
	require.NoError(t, a2.RestoreSession(&decoded))
	restored := a2.getSession("s1", nil).tracker
	require.Equal(t, "粤A12345", restored.slots["plate_number"])
	require.True(t, restored.slotWarning["plate_number"])
	require.Equal(t, "广州", restored.params["city"])
}

func TestRestoreFailsWhenNodeIsGone(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{moveCarGraph()})
	snap := &Snapshot{
		RobotCode:      "test_bot",
		SessionID:      "s1",
		CurrentGraphID: "g_move",
		Iterator:       &iterSnapshot{Kind: iterKindFillSlots, NodeID: "no_such_node"},
	}
	require.Error(t, a.RestoreSession(snap))
}

func TestRestoreRejectsKindMismatch(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{moveCarGraph()})
	snap := &Snapshot{
		RobotCode:      "test_bot",
		SessionID:      "s1",
		CurrentGraphID: "g_move",
		// n2 is a say node, not a fill_slots node.
		Iterator: &iterSnapshot{Kind: iterKindFillSlots, NodeID: "n2"},
	}
	require.Error(t, a.RestoreSession(snap))
}

func TestSnapshotCapturesNestedChild(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{moveCarGraph()})
	tr := a.getSession("s1", nil).tracker
	node, err := tr.lookupNode("n1")
	require.NoError(t, err)

	parent := newFillSlotsIterator(node.(*fillSlotsNode), tr)
	parent.state = 1
	parent.child = newForwardIterator(node, tr, false, 2)

	snap := parent.capture()
	require.NotNil(t, snap.Child)
	require.Equal(t, iterKindForward, snap.Child.Kind)

	restored, err := restoreIterator(tr, snap)
	require.NoError(t, err)
	fs, ok := restored.(*fillSlotsIterator)
	require.True(t, ok)
	require.Equal(t, 1, fs.state)
	fwd, ok := fs.child.(*forwardIterator)
	require.True(t, ok)
	require.Equal(t, 2, fwd.lifeCycle)
}
