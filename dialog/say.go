package dialog

import (
	"context"

	"github.com/convograph/convograph/types"
)

// sayNode emits a scripted reply, chosen either from the first satisfied
// conditional branch or from a literal content list, then routes onward.
// Declared options delegate routing to an option-matching sub-iterator;
// otherwise intent forwarding applies. A node with no outgoing edges ends
// the session with a hangup.
type sayNode struct {
	baseNode
}

func (n *sayNode) call(t *StateTracker) iterator {
	t.addTrace(types.TraceRecord{"type": "robotSay", "node_name": n.Name(), "is_end": false})
	if !n.hasChildren() {
		t.isEnd = true
		// A transfer already marked upstream keeps its status.
		if t.status == types.StatusNormal {
			t.status = types.StatusHangup
		}
		t.updateTrace("is_end", true)
	}
	return newSayIterator(n, t)
}

func (n *sayNode) validate() error {
	if err := n.validateBase(); err != nil {
		return err
	}
	if len(n.cfg.Branches) == 0 && len(n.cfg.Content) == 0 {
		return types.NewStaticCheckError("content",
			"say node needs a branches or content field", n.Name())
	}
	for _, branch := range n.cfg.Branches {
		if len(branch.Content) == 0 {
			return types.NewStaticCheckError("branches",
				"every say branch needs a non-empty content list", n.Name())
		}
	}
	if n.cfg.LifeCycle > 0 && len(n.cfg.CallbackWords) == 0 {
		return types.NewStaticCheckError("callback_words",
			"life_cycle and callback_words must be configured together", n.Name())
	}
	return n.checkBranches(false)
}

type sayIterator struct {
	baseIterator
	node *sayNode
}

func newSayIterator(n *sayNode, t *StateTracker) *sayIterator {
	return &sayIterator{baseIterator: baseIterator{tracker: t}, node: n}
}

func (it *sayIterator) next(ctx context.Context) (string, error) {
	return it.run(ctx, []stateFunc{it.stateSpeak, it.stateRoute, it.stateDone})
}

func (it *sayIterator) stateSpeak(ctx context.Context) (string, error) {
	t := it.tracker
	n := it.node
	msg := t.latestMsg()
	msg.Options = n.cfg.Options

	for _, branch := range n.cfg.Branches {
		hit, err := t.judgeBranch(n.Name(), branch.Conditions)
		if err != nil {
			return "", err
		}
		if hit {
			it.state = 1
			return randChoice(branch.Content), nil
		}
	}
	if len(n.cfg.Content) > 0 {
		it.state = 1
		return randChoice(n.cfg.Content), nil
	}
	return "", types.NewFlowError(t.robotCode, n.Name(),
		"no branch matched and no fixed content is configured")
}

func (it *sayIterator) stateRoute(ctx context.Context) (string, error) {
	n := it.node
	if !n.hasChildren() {
		it.end()
		return "", nil
	}
	if len(n.optionChild) > 0 {
		it.child = newOptionIterator(n, it.tracker, n.cfg.LifeCycle)
	} else {
		it.child = newForwardIterator(n, it.tracker, true, n.cfg.LifeCycle)
	}
	it.state = 2
	return "", nil
}

func (it *sayIterator) stateDone(ctx context.Context) (string, error) {
	it.end()
	return "", nil
}

func (it *sayIterator) capture() *iterSnapshot {
	snap := it.captureBase(iterKindSay)
	snap.NodeID = it.node.ID()
	return snap
}

func (it *sayIterator) restore(t *StateTracker, snap *iterSnapshot) error {
	return it.restoreBase(t, snap)
}
