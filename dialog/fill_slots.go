package dialog

import (
	"context"

	"github.com/convograph/convograph/nlu"
	"github.com/convograph/convograph/types"
)

// fillSlotsNode collects its ordered slot list from the user, one slot at a
// time, re-asking up to each slot's configured rounds.
type fillSlotsNode struct {
	baseNode
}

func (n *fillSlotsNode) call(t *StateTracker) iterator {
	t.addTrace(types.TraceRecord{"type": "fillSlot", "node_name": n.Name(), "info": []any{}})
	return newFillSlotsIterator(n, t)
}

func (n *fillSlotsNode) validate() error {
	if err := n.validateBase(); err != nil {
		return err
	}
	if len(n.cfg.Slots) == 0 {
		return types.NewStaticCheckError("slots",
			"fill_slots node needs a non-empty slots list", n.Name())
	}
	for _, slot := range n.cfg.Slots {
		if slot.Name == "" {
			return types.NewStaticCheckError("slots",
				"every slot needs a slot_name field", n.Name())
		}
		if slot.Rounds < 0 {
			return types.NewStaticCheckError("slots",
				"slot rounds must not be negative", n.Name())
		}
		if len(slot.ReaskWords) == 0 {
			return types.NewStaticCheckError("slots",
				"every slot needs at least one reask_words phrase", n.Name())
		}
	}
	return nil
}

// fillSlotsIterator walks the slot list with a monotonic cursor. Each round
// first lets a forced intent check run, so the user can jump out of slot
// filling, then attempts extraction from the message's abilities.
type fillSlotsIterator struct {
	baseIterator
	node    *fillSlotsNode
	cursor  int
	retries int
}

func newFillSlotsIterator(n *fillSlotsNode, t *StateTracker) *fillSlotsIterator {
	return &fillSlotsIterator{
		baseIterator: baseIterator{tracker: t},
		node:         n,
	}
}

func (it *fillSlotsIterator) next(ctx context.Context) (string, error) {
	return it.run(ctx, []stateFunc{it.stateAdvance, it.stateExtract})
}

// stateAdvance either prepares extraction of the current slot or, with all
// slots filled, hands control to the default child.
func (it *fillSlotsIterator) stateAdvance(ctx context.Context) (string, error) {
	t := it.tracker
	if it.cursor < len(it.node.cfg.Slots) {
		slot := it.node.cfg.Slots[it.cursor]
		ability, err := t.abilityForSlot(it.node.Name(), slot.Name)
		if err != nil {
			return "", err
		}
		msg := t.latestMsg()
		if nlu.IsBuiltinAbility(ability) {
			msg.AddEntity(ability, nlu.ExtractBuiltin(msg, ability)...)
		}

		// Forced intent check before extraction, so a configured intent
		// edge can pull the user out of slot filling.
		it.child = newForwardIterator(it.node, t, false, 0)
		it.state = 1
		return "", nil
	}

	if it.node.defaultChild != nil {
		t.addTrace(it.node.connTrace(it.node.defaultChild, "default"))
	}
	it.nextNode = it.node.defaultChild
	it.end()
	return "", nil
}

func (it *fillSlotsIterator) stateExtract(ctx context.Context) (string, error) {
	t := it.tracker
	msg := t.latestMsg()
	slot := it.node.cfg.Slots[it.cursor]
	ability, err := t.abilityForSlot(it.node.Name(), slot.Name)
	if err != nil {
		return "", err
	}
	alias := slot.Alias
	if alias == "" {
		alias = slot.Name
	}

	switch values := msg.Entities[ability]; {
	case len(values) > 0:
		t.fillSlot(slot.Name, values[0], alias, slot.Warning)
		t.updateTrace("info", types.TraceRecord{"name": slot.Name, "value": values[0], "ability": ability})
		it.cursor++
		it.retries = 0
	case it.retries >= slot.Rounds && !slot.Required:
		t.fillSlot(slot.Name, types.UnknownSlotValue, alias, slot.Warning)
		t.updateTrace("info", types.TraceRecord{"name": slot.Name, "value": types.UnknownSlotValue, "ability": "autofilled after re-ask rounds"})
		it.cursor++
		it.retries = 0
	default:
		msg.Understanding = types.UnderstandingNoSlot
		it.state = 0
		it.retries++
		return randChoice(slot.ReaskWords), nil
	}

	it.state = 0
	return "", nil
}

func (it *fillSlotsIterator) capture() *iterSnapshot {
	snap := it.captureBase(iterKindFillSlots)
	snap.NodeID = it.node.ID()
	snap.Ints = map[string]int{"cursor": it.cursor, "retries": it.retries}
	return snap
}

func (it *fillSlotsIterator) restore(t *StateTracker, snap *iterSnapshot) error {
	it.cursor = snap.Ints["cursor"]
	it.retries = snap.Ints["retries"]
	return it.restoreBase(t, snap)
}
