package dialog

import (
	"context"
	"fmt"

	"github.com/convograph/convograph/types"
)

// judgeNode routes on its branches in declared order, without replying.
type judgeNode struct {
	baseNode
}

func (n *judgeNode) call(t *StateTracker) iterator {
	t.addTrace(types.TraceRecord{
		"type":            "if",
		"node_name":       n.Name(),
		"branch_name":     "",
		"condition_group": nil,
	})
	return newJudgeIterator(n, t)
}

func (n *judgeNode) validate() error {
	if err := n.validateBase(); err != nil {
		return err
	}
	if len(n.cfg.Branches) == 0 {
		return types.NewStaticCheckError("branches",
			"judge node needs a non-empty branches list", n.Name())
	}
	return n.checkBranches(true)
}

// wiredCheck runs after connections are attached: every branch must have a
// connected child.
func (n *judgeNode) wiredCheck() error {
	for _, branch := range n.cfg.Branches {
		if _, ok := n.branchChild[branch.ID]; !ok {
			return types.NewStaticCheckError("branches",
				fmt.Sprintf("branch %s has no connected child", branch.ID), n.Name())
		}
	}
	return nil
}

type judgeIterator struct {
	baseIterator
	node *judgeNode
}

func newJudgeIterator(n *judgeNode, t *StateTracker) *judgeIterator {
	return &judgeIterator{baseIterator: baseIterator{tracker: t}, node: n}
}

func (it *judgeIterator) next(ctx context.Context) (string, error) {
	return it.run(ctx, []stateFunc{it.stateJudge})
}

// stateJudge selects the first branch whose condition groups hold; no match
// falls through to the default child, which may be absent (flow ends, the
// turn loop re-triggers).
func (it *judgeIterator) stateJudge(ctx context.Context) (string, error) {
	t := it.tracker
	n := it.node
	for _, branch := range n.cfg.Branches {
		hit, err := t.judgeBranch(n.Name(), branch.Conditions)
		if err != nil {
			return "", err
		}
		if !hit {
			continue
		}
		child, ok := n.branchChild[branch.ID]
		if !ok {
			return "", types.NewFlowError(t.robotCode, n.Name(),
				fmt.Sprintf("branch %s has no connected child", branch.ID))
		}
		t.updateTrace("branch_name", branch.Name)
		t.updateTrace("condition_group", branch.Conditions)
		trace := n.connTrace(child, "branch")
		trace["branch_name"] = branch.Name
		t.addTrace(trace)
		it.nextNode = child
		it.end()
		return "", nil
	}

	if n.defaultChild != nil {
		t.addTrace(n.connTrace(n.defaultChild, "default"))
	}
	it.nextNode = n.defaultChild
	it.end()
	return "", nil
}

func (it *judgeIterator) capture() *iterSnapshot {
	snap := it.captureBase(iterKindJudge)
	snap.NodeID = it.node.ID()
	return snap
}

func (it *judgeIterator) restore(t *StateTracker, snap *iterSnapshot) error {
	return it.restoreBase(t, snap)
}
