package dialog

import (
	"github.com/convograph/convograph/types"
)

// userInputNode is a pure intent router over the user's next utterance.
type userInputNode struct {
	baseNode
}

func (n *userInputNode) call(t *StateTracker) iterator {
	t.addTrace(types.TraceRecord{"type": "userSay", "node_name": n.Name()})
	return newForwardIterator(n, t, true, n.cfg.LifeCycle)
}

func (n *userInputNode) validate() error {
	if err := n.validateBase(); err != nil {
		return err
	}
	// A re-ask loop needs both the bound and the phrases to ask with.
	if n.cfg.LifeCycle > 0 && len(n.cfg.CallbackWords) == 0 {
		return types.NewStaticCheckError("callback_words",
			"life_cycle and callback_words must be configured together", n.Name())
	}
	return nil
}
