package dialog

import (
	"github.com/convograph/convograph/types"
)

// startNode is the entry predicate of a graph. Its trigger evaluates the
// configured condition groups; activation records flow metadata into the
// trace and routes forward immediately.
type startNode struct {
	baseNode
}

// trigger reports whether this graph should take the current utterance.
func (n *startNode) trigger(t *StateTracker) (bool, error) {
	return t.judgeBranch(n.Name(), n.cfg.ConditionGroups)
}

func (n *startNode) call(t *StateTracker) iterator {
	name, version := t.graphMeta(t.currentGraphID)
	t.addTrace(types.TraceRecord{
		"type":            "start",
		"node_name":       n.Name(),
		"graph_name":      name,
		"version":         version,
		"global":          t.params,
		"trigger_method":  "condition",
		"condition_group": n.cfg.ConditionGroups,
	})
	t.setIsStart()
	return newForwardIterator(n, t, true, 0)
}

func (n *startNode) validate() error {
	if err := n.validateBase(); err != nil {
		return err
	}
	if len(n.cfg.ConditionGroups) == 0 {
		return types.NewStaticCheckError("condition_group",
			"start node needs at least one trigger condition group", n.Name())
	}
	for _, group := range n.cfg.ConditionGroups {
		for _, cond := range group {
			if err := checkCondition(n.Name(), cond); err != nil {
				return err
			}
		}
	}
	return nil
}
