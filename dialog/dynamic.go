package dialog

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"slices"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/convograph/convograph/faq"
	"github.com/convograph/convograph/nlu"
	"github.com/convograph/convograph/types"
)

// Dynamic node selection modes.
const (
	// RandomModeFixed asks the single configured question.
	RandomModeFixed = 1
	// RandomModeCategory samples questions from the configured categories.
	RandomModeCategory = 2
)

// dynamicNode presents questions fetched from the external question bank.
// After each question it detects a follow-up intent via ordered fallback
// (regex rule, semantic classification, edit-distance correction) and
// recurses into the matching sub-questions.
type dynamicNode struct {
	baseNode
}

func (n *dynamicNode) call(t *StateTracker) iterator {
	t.addTrace(types.TraceRecord{
		"type":       "dynamic",
		"node_name":  n.Name(),
		"robot_says": "",
		"user_says":  "",
		"intent":     "",
		"slots":      "",
	})
	return newDynamicIterator(n, t)
}

func (n *dynamicNode) validate() error {
	if err := n.validateBase(); err != nil {
		return err
	}
	switch n.cfg.RandomMode {
	case RandomModeFixed:
		if n.cfg.QuestionID == "" {
			return types.NewStaticCheckError("question_id",
				"dynamic node with random_mode 1 needs a question_id field", n.Name())
		}
	case RandomModeCategory:
		if n.cfg.Choice <= 0 {
			return types.NewStaticCheckError("choice",
				"dynamic node with random_mode 2 needs a positive choice field", n.Name())
		}
		if n.cfg.Rule != "" && n.cfg.Rule != "polling" && n.cfg.Rule != "no_repeat" {
			return types.NewStaticCheckError("rule",
				fmt.Sprintf("dynamic rule must be polling or no_repeat, got %q", n.cfg.Rule), n.Name())
		}
	default:
		return types.NewStaticCheckError("random_mode",
			fmt.Sprintf("random_mode must be 1 or 2, got %d", n.cfg.RandomMode), n.Name())
	}
	return nil
}

type dynamicIterator struct {
	baseIterator
	node *dynamicNode

	nextQIDs         []string
	selectedIntentID string
	asked            *faq.BankQuestion
	askedID          string
	queue            []faq.BankQuestion
}

func newDynamicIterator(n *dynamicNode, t *StateTracker) *dynamicIterator {
	return &dynamicIterator{baseIterator: baseIterator{tracker: t}, node: n}
}

func (it *dynamicIterator) next(ctx context.Context) (string, error) {
	return it.run(ctx, []stateFunc{it.statePresent, it.stateFollowUp, it.stateDone})
}

// statePresent fetches candidate questions from the bank and asks the first
// one, parking at the follow-up state.
func (it *dynamicIterator) statePresent(ctx context.Context) (string, error) {
	t := it.tracker
	n := it.node

	libID := anyToString(t.params["global_question_id"])
	if libID == "" {
		return "", types.NewFlowError(t.robotCode, n.Name(),
			"dynamic node needs the global_question_id session param")
	}

	req := faq.SearchRequest{RobotCode: faq.QuestionBankRobot, LibID: libID}
	switch {
	case len(it.nextQIDs) > 0:
		req.Perspective = faq.SubQuestionPerspective
		req.IDs = it.nextQIDs
	case n.cfg.RandomMode == RandomModeCategory:
		req.Perspective = faq.MainQuestionPerspective
		req.Categories = n.cfg.Categories
	default:
		req.Perspective = faq.MainQuestionPerspective
		req.IDs = []string{n.cfg.QuestionID}
	}

	items, err := t.collab.Bank.Search(ctx, req)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", types.NewFlowError(t.robotCode, n.Name(),
			fmt.Sprintf("question bank %s returned no questions for %v%v", libID, req.IDs, req.Categories))
	}

	if it.selectedIntentID != "" {
		filtered := items[:0]
		for _, item := range items {
			if item.ParentIntentID == it.selectedIntentID {
				filtered = append(filtered, item)
			}
		}
		items = filtered
		if len(items) == 0 {
			// The matched intent has no sub-questions; route onward.
			it.asked = nil
			it.queue = nil
			it.state = 1
			return "", nil
		}
	}

	if n.cfg.RandomMode == RandomModeCategory && len(it.nextQIDs) == 0 {
		rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		if len(items) > n.cfg.Choice {
			items = items[:n.cfg.Choice]
		}
	}

	it.nextQIDs = nil
	it.queue = items[1:]
	it.ask(&items[0])
	it.state = 1
	return it.asked.Content, nil
}

// stateFollowUp consumes the user's reply to the last asked question:
// detect a follow-up intent, recurse into sub-questions, continue polling
// the queue, or forward out of the node.
func (it *dynamicIterator) stateFollowUp(ctx context.Context) (string, error) {
	t := it.tracker
	if it.asked == nil && it.askedID != "" {
		if err := it.refetchAsked(ctx); err != nil {
			return "", err
		}
	}

	if it.asked != nil {
		msg := t.latestMsg()
		childIDs, intentID, err := it.detectFollowUp(ctx, *it.asked)
		if err != nil {
			return "", err
		}
		t.updateTrace("user_says", msg.Text)
		t.updateTrace("intent", intentID)
		it.asked = nil
		it.askedID = ""
		if len(childIDs) > 0 {
			it.nextQIDs = childIDs
			it.selectedIntentID = intentID
			it.state = 0
			return "", nil
		}
	}

	if len(it.queue) > 0 {
		it.ask(&it.queue[0])
		it.queue = it.queue[1:]
		return it.asked.Content, nil
	}
	if len(it.nextQIDs) > 0 {
		it.state = 0
		return "", nil
	}

	it.child = newForwardIterator(it.node, t, true, 0)
	it.state = 2
	return "", nil
}

func (it *dynamicIterator) stateDone(ctx context.Context) (string, error) {
	it.end()
	return "", nil
}

func (it *dynamicIterator) ask(q *faq.BankQuestion) {
	it.asked = q
	it.askedID = q.ID
	it.tracker.updateTrace("robot_says", q.Content)
}

// refetchAsked rebuilds the pending question after a snapshot restore.
func (it *dynamicIterator) refetchAsked(ctx context.Context) error {
	items, err := it.tracker.collab.Bank.Search(ctx, faq.SearchRequest{
		RobotCode: faq.QuestionBankRobot,
		IDs:       []string{it.askedID},
	})
	if err != nil {
		return err
	}
	if len(items) > 0 {
		it.asked = &items[0]
	} else {
		it.askedID = ""
	}
	return nil
}

// detectFollowUp resolves the user's reply against the asked question's
// intent list: regex rules first, then semantic classification, then an
// edit-distance rescue for utterances one speech slip away from an example.
// Recent-turn slots declared on the question are filled as a side effect.
func (it *dynamicIterator) detectFollowUp(ctx context.Context, q faq.BankQuestion) ([]string, string, error) {
	t := it.tracker
	msg := t.latestMsg()

	var selected *faq.BankIntent
	if len(q.IntentIDs) > 0 {
		intents, err := t.collab.Bank.Intents(ctx, q.IntentIDs)
		if err != nil {
			return nil, "", err
		}

		selected = matchIntentRules(intents, msg.Text, t)
		if selected == nil {
			selected, err = it.classifyIntent(ctx, intents, msg.Text)
			if err != nil {
				return nil, "", err
			}
		}
		if selected == nil {
			selected = rescueByEditDistance(intents, msg.Text)
		}
	}

	for _, slot := range q.Slots {
		switch slot.EntityKey {
		case nlu.AbilityRecentUserSays:
			t.fillSlot(slot.Key, msg.Text, slot.Name, slot.Warning)
		case nlu.AbilityRecentIntent:
			if selected != nil {
				t.fillSlot(slot.Key, selected.Name, slot.Name, slot.Warning)
			}
		case nlu.AbilityRecentIntentOrSays:
			if selected != nil {
				t.fillSlot(slot.Key, selected.Name, slot.Name, slot.Warning)
			} else {
				t.fillSlot(slot.Key, msg.Text, slot.Name, slot.Warning)
			}
		}
	}

	if selected != nil && len(q.ChildIDs) > 0 {
		return q.ChildIDs, selected.ID, nil
	}
	if len(q.ChildIDs) > 0 {
		return q.ChildIDs, "", nil
	}
	return nil, "", nil
}

func matchIntentRules(intents []faq.BankIntent, text string, t *StateTracker) *faq.BankIntent {
	for i := range intents {
		for _, rule := range intents[i].Rules {
			re, err := regexp.Compile("^(?:" + rule.Pattern + ")")
			if err != nil {
				t.logger.Warn("skipping invalid intent rule",
					zap.String("intent_id", intents[i].ID), zap.String("pattern", rule.Pattern))
				continue
			}
			if re.MatchString(text) {
				return &intents[i]
			}
		}
	}
	return nil
}

func (it *dynamicIterator) classifyIntent(ctx context.Context, intents []faq.BankIntent, text string) (*faq.BankIntent, error) {
	t := it.tracker
	if t.collab.Classifier == nil {
		return nil, nil
	}
	group := make(map[string][]string, len(intents))
	for _, intent := range intents {
		if len(intent.Examples) > 0 {
			group[intent.ID] = intent.Examples
		}
	}
	if len(group) == 0 {
		return nil, nil
	}
	topn, err := t.collab.Classifier.Classify(ctx, text, group)
	if err != nil {
		return nil, types.NewCollaboratorError("intent classifier", err)
	}
	var best *faq.BankIntent
	bestScore := 0.0
	for i := range intents {
		for _, score := range topn[intents[i].ID] {
			if score > bestScore {
				best, bestScore = &intents[i], score
			}
		}
	}
	if bestScore >= 0.5 {
		return best, nil
	}
	return nil, nil
}

func rescueByEditDistance(intents []faq.BankIntent, text string) *faq.BankIntent {
	params := levenshtein.NewParams()
	textLen := len([]rune(text))
	for i := range intents {
		for _, example := range intents[i].Examples {
			if len([]rune(example)) != textLen {
				continue
			}
			if levenshtein.Similarity(text, example, params) > 0.75 {
				return &intents[i]
			}
		}
	}
	return nil
}

func (it *dynamicIterator) capture() *iterSnapshot {
	snap := it.captureBase(iterKindDynamic)
	snap.NodeID = it.node.ID()
	snap.Strs = map[string]string{
		"selected_intent": it.selectedIntentID,
		"asked_id":        it.askedID,
	}
	queueIDs := make([]string, 0, len(it.queue))
	for _, q := range it.queue {
		queueIDs = append(queueIDs, q.ID)
	}
	snap.Lists = map[string][]string{
		"next_qids": slices.Clone(it.nextQIDs),
		"queue_ids": queueIDs,
	}
	return snap
}

func (it *dynamicIterator) restore(t *StateTracker, snap *iterSnapshot) error {
	it.selectedIntentID = snap.Strs["selected_intent"]
	it.askedID = snap.Strs["asked_id"]
	it.nextQIDs = snap.Lists["next_qids"]
	// The queued questions are refetched lazily; resuming with their ids
	// as pending sub-questions keeps polling order without storing bodies.
	if queued := snap.Lists["queue_ids"]; len(queued) > 0 {
		it.nextQIDs = append(it.nextQIDs, queued...)
	}
	return it.restoreBase(t, snap)
}
