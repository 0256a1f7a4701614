package dialog

import (
	"context"
	"fmt"

	"github.com/convograph/convograph/types"
)

// Switch jump modes.
const (
	JumpToGraph = "1"
	JumpToHuman = "2"
	JumpHangup  = "3"
)

// switchNode transfers control without conversing: to another graph's start
// node, to a human agent, or to hangup. An optional one-shot reply is
// emitted before switching.
type switchNode struct {
	baseNode
}

func (n *switchNode) call(t *StateTracker) iterator {
	t.addTrace(types.TraceRecord{
		"type":       "jump",
		"node_name":  n.Name(),
		"jump_type":  n.cfg.JumpType,
		"graph_name": "",
		"reply":      "",
	})
	return newSwitchIterator(n, t)
}

func (n *switchNode) validate() error {
	if err := n.validateBase(); err != nil {
		return err
	}
	switch n.cfg.JumpType {
	case JumpToGraph:
		if n.cfg.TargetGraph == "" {
			return types.NewStaticCheckError("graph_id",
				"switch node with jump_type 1 needs a graph_id field", n.Name())
		}
	case JumpToHuman, JumpHangup:
	default:
		return types.NewStaticCheckError("jump_type",
			fmt.Sprintf("jump_type must be 1, 2 or 3, got %q", n.cfg.JumpType), n.Name())
	}
	return nil
}

type switchIterator struct {
	baseIterator
	node *switchNode
}

func newSwitchIterator(n *switchNode, t *StateTracker) *switchIterator {
	return &switchIterator{baseIterator: baseIterator{tracker: t}, node: n}
}

func (it *switchIterator) next(ctx context.Context) (string, error) {
	return it.run(ctx, []stateFunc{it.stateMark, it.stateJump})
}

func (it *switchIterator) stateMark(ctx context.Context) (string, error) {
	t := it.tracker
	n := it.node
	switch n.cfg.JumpType {
	case JumpHangup:
		t.isEnd = true
		t.status = types.StatusHangup
	case JumpToHuman:
		t.isEnd = true
		// A transfer reached through understood intent routing is the
		// user's own request; anything else is the system giving up.
		if t.latestMsg().Understanding == types.UnderstandingOK {
			t.status = types.StatusUserTransfer
		} else {
			t.status = types.StatusSystemTransfer
		}
	}

	it.state = 1
	if n.cfg.JumpReply != "" {
		t.updateTrace("reply", n.cfg.JumpReply)
		return n.cfg.JumpReply, nil
	}
	return "", nil
}

func (it *switchIterator) stateJump(ctx context.Context) (string, error) {
	t := it.tracker
	n := it.node

	graphName := "hangup"
	switch n.cfg.JumpType {
	case JumpToHuman:
		graphName = "transfer"
	case JumpToGraph:
		graphName, _ = t.graphMeta(n.cfg.TargetGraph)
		start, err := t.switchGraph(n.cfg.TargetGraph, n.Name())
		if err != nil {
			return "", err
		}
		it.nextNode = start
	}
	t.updateTrace("graph_name", graphName)
	it.end()
	return "", nil
}

func (it *switchIterator) capture() *iterSnapshot {
	snap := it.captureBase(iterKindSwitch)
	snap.NodeID = it.node.ID()
	return snap
}

func (it *switchIterator) restore(t *StateTracker, snap *iterSnapshot) error {
	return it.restoreBase(t, snap)
}
