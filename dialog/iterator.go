package dialog

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/convograph/convograph/types"
)

// FAQFlag is the sentinel reply value a node yields to request an in-flow
// knowledge-base detour. The turn loop answers from the knowledge base and
// leaves the iterator parked at its current state.
const FAQFlag = "flag_faq"

// iterator is one suspended node computation. next advances it: a non-empty
// return value suspends the iterator with a reply for the user; an empty
// value with done() true ends it, optionally handing control to successor().
type iterator interface {
	next(ctx context.Context) (string, error)
	done() bool
	successor() Node
	capture() *iterSnapshot
	restore(t *StateTracker, snap *iterSnapshot) error
}

// stateFunc is one per-state handler. It yields a reply, ends the iterator,
// attaches a child, or advances the state cursor.
type stateFunc func(ctx context.Context) (string, error)

// baseIterator holds the resumable cursor shared by every node iterator:
// the integer state, an optional child sub-computation, the successor node,
// and the ended flag. Everything here is small and serializable.
type baseIterator struct {
	tracker  *StateTracker
	state    int
	child    iterator
	nextNode Node
	ended    bool
}

func (it *baseIterator) done() bool      { return it.ended }
func (it *baseIterator) successor() Node { return it.nextNode }
func (it *baseIterator) end()            { it.ended = true }

// run drives the handlers until one suspends with a reply or the iterator
// ends. A child sub-iterator is drained first: its reply propagates up, its
// successor is adopted as this iterator's successor, and a quiet end
// resumes this iterator's own current state.
func (it *baseIterator) run(ctx context.Context, states []stateFunc) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if it.child != nil {
			reply, err := it.child.next(ctx)
			if err != nil {
				return "", err
			}
			if reply != "" {
				return reply, nil
			}
			if !it.child.done() {
				continue
			}
			succ := it.child.successor()
			it.child = nil
			if succ != nil {
				it.nextNode = succ
				it.ended = true
				return "", nil
			}
			continue
		}
		if it.ended {
			return "", nil
		}
		if it.state < 0 || it.state >= len(states) {
			return "", types.NewFlowError(it.tracker.robotCode, "",
				fmt.Sprintf("iterator has no state %d", it.state))
		}
		reply, err := states[it.state](ctx)
		if err != nil {
			return "", err
		}
		if reply != "" {
			return reply, nil
		}
	}
}

// captureBase snapshots the shared cursor fields.
func (it *baseIterator) captureBase(kind string) *iterSnapshot {
	snap := &iterSnapshot{Kind: kind, State: it.state, Ended: it.ended}
	if it.nextNode != nil {
		snap.NextNodeID = it.nextNode.ID()
	}
	if it.child != nil {
		snap.Child = it.child.capture()
	}
	return snap
}

// restoreBase reapplies the shared cursor fields, rebuilding any suspended
// child sub-computation recursively.
func (it *baseIterator) restoreBase(t *StateTracker, snap *iterSnapshot) error {
	it.state = snap.State
	it.ended = snap.Ended
	if snap.NextNodeID != "" {
		node, err := t.lookupNode(snap.NextNodeID)
		if err != nil {
			return err
		}
		it.nextNode = node
	}
	if snap.Child != nil {
		child, err := restoreIterator(t, snap.Child)
		if err != nil {
			return err
		}
		it.child = child
	}
	return nil
}

// randChoice picks one phrase from a configured list.
func randChoice(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[rand.Intn(len(options))]
}
