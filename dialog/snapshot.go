package dialog

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/convograph/convograph/types"
)

// Iterator kind tags used in snapshots.
const (
	iterKindForward   = "forward"
	iterKindOption    = "option"
	iterKindFillSlots = "fill_slots"
	iterKindJudge     = "judge"
	iterKindRPC       = "rpc"
	iterKindSay       = "say"
	iterKindSwitch    = "switch"
	iterKindDynamic   = "dynamic"
)

// iterSnapshot is the serializable form of a suspended iterator: the kind
// tag, the owning node, the integer cursor, and whatever small scalars the
// concrete iterator needs to resume. Nested child computations serialize
// recursively.
type iterSnapshot struct {
	Kind       string              `json:"kind"`
	NodeID     string              `json:"node_id"`
	State      int                 `json:"state"`
	Ended      bool                `json:"ended,omitempty"`
	NextNodeID string              `json:"next_node_id,omitempty"`
	Ints       map[string]int      `json:"ints,omitempty"`
	Strs       map[string]string   `json:"strs,omitempty"`
	Lists      map[string][]string `json:"lists,omitempty"`
	Child      *iterSnapshot       `json:"child,omitempty"`
}

// restoreIterator rebuilds a suspended iterator against the current graph
// set. The owning node must still exist; a hot-swapped graph that dropped it
// fails the restore.
func restoreIterator(t *StateTracker, snap *iterSnapshot) (iterator, error) {
	if snap == nil {
		return nil, nil
	}
	node, err := t.lookupNode(snap.NodeID)
	if err != nil {
		return nil, err
	}

	var it iterator
	switch snap.Kind {
	case iterKindForward:
		it = newForwardIterator(node, t, false, 0)
	case iterKindOption:
		it = newOptionIterator(node, t, 0)
	case iterKindFillSlots:
		n, ok := node.(*fillSlotsNode)
		if !ok {
			return nil, kindMismatch(t, snap, node)
		}
		it = newFillSlotsIterator(n, t)
	case iterKindJudge:
		n, ok := node.(*judgeNode)
		if !ok {
			return nil, kindMismatch(t, snap, node)
		}
		it = newJudgeIterator(n, t)
	case iterKindRPC:
		n, ok := node.(*rpcNode)
		if !ok {
			return nil, kindMismatch(t, snap, node)
		}
		it = newRPCIterator(n, t)
	case iterKindSay:
		n, ok := node.(*sayNode)
		if !ok {
			return nil, kindMismatch(t, snap, node)
		}
		it = newSayIterator(n, t)
	case iterKindSwitch:
		n, ok := node.(*switchNode)
		if !ok {
			return nil, kindMismatch(t, snap, node)
		}
		it = newSwitchIterator(n, t)
	case iterKindDynamic:
		n, ok := node.(*dynamicNode)
		if !ok {
			return nil, kindMismatch(t, snap, node)
		}
		it = newDynamicIterator(n, t)
	default:
		return nil, types.NewFlowError(t.robotCode, snap.NodeID,
			fmt.Sprintf("snapshot has unknown iterator kind %q", snap.Kind))
	}
	if err := it.restore(t, snap); err != nil {
		return nil, err
	}
	return it, nil
}

func kindMismatch(t *StateTracker, snap *iterSnapshot, node Node) error {
	return types.NewFlowError(t.robotCode, node.Name(),
		fmt.Sprintf("snapshot kind %q does not match node type %q", snap.Kind, node.Kind()))
}

// Snapshot is one session frozen for external storage. Message history is
// deliberately left out: resuming starts a fresh transcript while keeping
// slots, params and the suspended flow position.
type Snapshot struct {
	RobotCode      string    `json:"robot_code"`
	SessionID      string    `json:"session_id"`
	TurnID         int       `json:"turn_id"`
	StartedAt      time.Time `json:"started_at"`
	CurrentGraphID string    `json:"current_graph_id"`
	Status         string    `json:"status"`
	IsEnd          bool      `json:"is_end"`

	Slots       map[string]string `json:"slots"`
	SlotAlias   map[string]string `json:"slot_alias,omitempty"`
	SlotWarning map[string]bool   `json:"slot_warning,omitempty"`
	SlotTurns   map[string]int    `json:"slot_turns,omitempty"`
	Params      map[string]any    `json:"params,omitempty"`

	Replies   []string `json:"replies,omitempty"`
	NodeIDs   []string `json:"node_ids,omitempty"`
	NodeTypes []string `json:"node_types,omitempty"`

	Iterator *iterSnapshot `json:"iterator,omitempty"`
}

// Snapshot freezes the session's resumable state. Maps and slices are
// copied: the caller typically marshals after the session lock is released,
// while the next turn may already be mutating the live tracker.
func (t *StateTracker) Snapshot() *Snapshot {
	snap := &Snapshot{
		RobotCode:      t.robotCode,
		SessionID:      t.sessionID,
		TurnID:         t.turnID,
		StartedAt:      t.startTime,
		CurrentGraphID: t.currentGraphID,
		Status:         t.status,
		IsEnd:          t.isEnd,
		Slots:          maps.Clone(t.slots),
		SlotAlias:      maps.Clone(t.slotAlias),
		SlotWarning:    maps.Clone(t.slotWarning),
		SlotTurns:      maps.Clone(t.slotTurns),
		Params:         maps.Clone(t.params),
		Replies:        slices.Clone(t.replies),
		NodeIDs:        slices.Clone(t.nodeIDs),
		NodeTypes:      slices.Clone(t.nodeTypes),
	}
	if t.current != nil {
		snap.Iterator = t.current.capture()
	}
	return snap
}

// applySnapshot rehydrates a freshly built tracker from a stored snapshot.
func (t *StateTracker) applySnapshot(snap *Snapshot) error {
	t.turnID = snap.TurnID
	if !snap.StartedAt.IsZero() {
		t.startTime = snap.StartedAt
	}
	t.currentGraphID = snap.CurrentGraphID
	if snap.Status != "" {
		t.status = snap.Status
	}
	t.isEnd = snap.IsEnd
	for name, value := range snap.Slots {
		t.slots[name] = value
	}
	for name, alias := range snap.SlotAlias {
		t.slotAlias[name] = alias
	}
	for name, warning := range snap.SlotWarning {
		t.slotWarning[name] = warning
	}
	for name, turn := range snap.SlotTurns {
		t.slotTurns[name] = turn
	}
	for key, value := range snap.Params {
		t.params[key] = value
	}
	t.replies = append(t.replies, snap.Replies...)
	t.nodeIDs = append(t.nodeIDs, snap.NodeIDs...)
	t.nodeTypes = append(t.nodeTypes, snap.NodeTypes...)

	current, err := restoreIterator(t, snap.Iterator)
	if err != nil {
		return err
	}
	t.current = current
	return nil
}
