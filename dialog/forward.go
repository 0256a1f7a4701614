package dialog

import (
	"context"

	"github.com/agext/levenshtein"

	"github.com/convograph/convograph/nlu"
	"github.com/convograph/convograph/types"
)

const defaultCallback = "我没有理解您的意思，请您在选项中进行选择，或者接着询问其他问题。"

// forwardIterator routes by intent: it re-classifies the utterance against
// the node's declared candidate intents and hands control to the matching
// child. With no match it falls back to the default child, or re-asks via a
// knowledge-base detour while its life cycle lasts. With useDefault false
// it ends quietly instead, so a parent computation can resume.
type forwardIterator struct {
	baseIterator
	node       Node
	useDefault bool
	lifeCycle  int
}

func newForwardIterator(node Node, t *StateTracker, useDefault bool, lifeCycle int) *forwardIterator {
	return &forwardIterator{
		baseIterator: baseIterator{tracker: t},
		node:         node,
		useDefault:   useDefault,
		lifeCycle:    lifeCycle,
	}
}

func (it *forwardIterator) next(ctx context.Context) (string, error) {
	return it.run(ctx, []stateFunc{it.stateRoute})
}

func (it *forwardIterator) stateRoute(ctx context.Context) (string, error) {
	t := it.tracker
	base := it.node.base()
	msg := t.latestMsg()

	for intentID := range base.intentChild {
		nlu.ProcessBuiltinIntent(msg, intentID)
	}

	originalIntent := msg.Intent
	candidates := make([]string, 0, len(base.intentChild))
	for intentID := range base.intentChild {
		candidates = append(candidates, intentID)
	}
	if err := nlu.UpdateIntentByCandidate(ctx, t.collab.Classifier, msg, candidates, t.cfg.IntentThreshold); err != nil {
		return "", types.NewCollaboratorError("intent classifier", err)
	}

	if child, ok := base.intentChild[msg.Intent]; ok && msg.Intent != "" {
		trace := base.connTrace(child, "intent")
		trace["intent_name"] = msg.IntentNameByID(msg.Intent)
		t.addTrace(trace)
		it.nextNode = child
		it.end()
		return "", nil
	}

	msg.Understanding = types.UnderstandingNoIntent
	if !it.useDefault {
		msg.Intent = originalIntent
		it.end()
		return "", nil
	}

	next := base.defaultChild
	if next == nil && len(base.intentChild) == 1 {
		for _, child := range base.intentChild {
			next = child
		}
	}

	// Keep asking while the life cycle lasts, or forever when there is no
	// default to fall through to.
	if it.lifeCycle > 0 || next == nil || base.cfg.Strict {
		callback := randChoice(base.cfg.CallbackWords)
		if callback == "" {
			callback = defaultCallback
		}
		msg.SetCallbackWords(callback)
		it.lifeCycle--
		return FAQFlag, nil
	}

	t.addTrace(base.connTrace(next, "default"))
	if base.defaultIntentID != "" {
		msg.Intent = base.defaultIntentID
	} else {
		msg.Intent = originalIntent
	}
	it.nextNode = next
	it.end()
	return "", nil
}

func (it *forwardIterator) capture() *iterSnapshot {
	snap := it.captureBase(iterKindForward)
	snap.NodeID = it.node.ID()
	snap.Ints = map[string]int{"life_cycle": it.lifeCycle}
	if it.useDefault {
		snap.Ints["use_default"] = 1
	}
	return snap
}

func (it *forwardIterator) restore(t *StateTracker, snap *iterSnapshot) error {
	it.useDefault = snap.Ints["use_default"] == 1
	it.lifeCycle = snap.Ints["life_cycle"]
	return it.restoreBase(t, snap)
}

// optionIterator resolves the user's answer against literal option labels.
// Exact match wins; otherwise the closest label by normalized edit distance
// is accepted when strictly below the configured ratio. Unmatched input is
// answered via a knowledge-base detour with the options re-presented, a
// bounded number of times; exhaustion ends the iterator quietly so the turn
// loop can re-trigger another graph.
type optionIterator struct {
	baseIterator
	node    Node
	repeats int
}

func newOptionIterator(node Node, t *StateTracker, repeats int) *optionIterator {
	return &optionIterator{
		baseIterator: baseIterator{tracker: t},
		node:         node,
		repeats:      repeats,
	}
}

func (it *optionIterator) next(ctx context.Context) (string, error) {
	return it.run(ctx, []stateFunc{it.stateMatch})
}

func (it *optionIterator) stateMatch(ctx context.Context) (string, error) {
	t := it.tracker
	base := it.node.base()
	msg := t.latestMsg()

	option := msg.Text
	if _, ok := base.optionChild[option]; !ok {
		if label, ok := it.closestOption(msg.Text); ok {
			option = label
		}
	}

	if child, ok := base.optionChild[option]; ok {
		trace := base.connTrace(child, "option")
		trace["option_name"] = msg.Text
		trace["option_list"] = base.optionOrder
		t.addTrace(trace)
		it.nextNode = child
		it.end()
		return "", nil
	}

	if it.repeats <= 0 {
		it.end()
		return "", nil
	}

	callback := randChoice(base.cfg.CallbackWords)
	if callback == "" {
		callback = defaultCallback
	}
	msg.SetCallbackWords(callback)
	msg.Options = it.optionLabels()
	it.repeats--
	return FAQFlag, nil
}

// closestOption finds the label with the smallest edit distance to text,
// accepting it only when distance normalized by the label's rune length is
// strictly below the configured ratio.
func (it *optionIterator) closestOption(text string) (string, bool) {
	base := it.node.base()
	params := levenshtein.NewParams()
	best, bestRatio := "", it.tracker.cfg.OptionMatchRatio
	for _, label := range base.optionOrder {
		distance := levenshtein.Distance(text, label, params)
		ratio := float64(distance) / float64(len([]rune(label)))
		if ratio < bestRatio {
			best, bestRatio = label, ratio
		}
	}
	return best, best != ""
}

func (it *optionIterator) optionLabels() []string {
	if len(it.node.base().cfg.Options) > 0 {
		return it.node.base().cfg.Options
	}
	return it.node.base().optionOrder
}

func (it *optionIterator) capture() *iterSnapshot {
	snap := it.captureBase(iterKindOption)
	snap.NodeID = it.node.ID()
	snap.Ints = map[string]int{"repeats": it.repeats}
	return snap
}

func (it *optionIterator) restore(t *StateTracker, snap *iterSnapshot) error {
	it.repeats = snap.Ints["repeats"]
	return it.restoreBase(t, snap)
}
