package dialog

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/convograph/convograph/config"
	"github.com/convograph/convograph/faq"
	"github.com/convograph/convograph/nlu"
	"github.com/convograph/convograph/types"
)

// Collaborators are the external services the engine consumes. They are
// opaque here: the engine only drives their interfaces.
type Collaborators struct {
	NLU        nlu.Interpreter
	Classifier nlu.IntentClassifier
	KB         faq.KnowledgeBase
	Bank       faq.QuestionBank
	HTTP       *http.Client
}

// StateTracker is the per-session mutable state: slots, params, message and
// reply history, node-visit recorders, and the current suspended iterator.
type StateTracker struct {
	agent     *Agent
	robotCode string
	sessionID string

	cfg    *config.Config
	collab Collaborators
	logger *zap.Logger

	slots       map[string]string
	slotAlias   map[string]string
	slotWarning map[string]bool
	slotTurns   map[string]int
	params      map[string]any

	history   []*types.Message
	replies   []string
	nodeIDs   []string
	nodeTypes []string

	turnID    int
	startTime time.Time
	turnTimes [][2]time.Time

	isEnd          bool
	status         string
	currentGraphID string
	current        iterator

	emptyMsg *types.Message
}

func newStateTracker(agent *Agent, sessionID string, params map[string]any) *StateTracker {
	t := &StateTracker{
		agent:       agent,
		robotCode:   agent.robotCode,
		sessionID:   sessionID,
		cfg:         agent.cfg,
		collab:      agent.collab,
		logger:      agent.logger.With(zap.String("session_id", sessionID)),
		slots:       make(map[string]string),
		slotAlias:   make(map[string]string),
		slotWarning: make(map[string]bool),
		slotTurns:   make(map[string]int),
		params:      make(map[string]any),
		startTime:   time.Now(),
		status:      types.StatusNormal,
		emptyMsg:    agent.collab.NLU.EmptyMessage(""),
	}
	for _, g := range agent.orderedGraphs() {
		for slot := range g.GlobalSlots {
			t.slots[slot] = ""
		}
		for key, value := range g.GlobalParams {
			t.params[key] = value
		}
	}
	for key, value := range params {
		t.params[key] = value
	}
	return t
}

// latestMsg returns the current turn's message, or a shared empty message
// before the first utterance.
func (t *StateTracker) latestMsg() *types.Message {
	if len(t.history) == 0 {
		return t.emptyMsg
	}
	return t.history[len(t.history)-1]
}

// updateParams merges per-request globals into the session.
func (t *StateTracker) updateParams(params map[string]any) {
	for key, value := range params {
		t.params[key] = value
	}
}

// fillSlot stores a slot value and records the turn that set it.
func (t *StateTracker) fillSlot(name, value, alias string, warning bool) {
	t.slots[name] = value
	t.slotTurns[name] = t.turnID
	t.slotAlias[name] = alias
	t.slotWarning[name] = warning
}

// abilityForSlot resolves the extraction ability bound to a global slot.
func (t *StateTracker) abilityForSlot(nodeName, slotName string) (string, error) {
	for _, g := range t.agent.orderedGraphs() {
		if ability, ok := g.GlobalSlots[slotName]; ok {
			return ability, nil
		}
	}
	return "", types.NewFlowError(t.robotCode, nodeName,
		fmt.Sprintf("slot %s has no extraction ability configured", slotName))
}

func (t *StateTracker) setIsStart() {
	t.latestMsg().IsStart = true
}

// addTrace appends a trace record to the current message.
func (t *StateTracker) addTrace(record types.TraceRecord) {
	t.latestMsg().AddTrace(record)
}

// updateTrace sets a key on the latest trace record. Trace bookkeeping must
// never fail a turn, so problems are only logged.
func (t *StateTracker) updateTrace(key string, value any) {
	if err := t.latestMsg().UpdateTrace(key, value); err != nil {
		t.logger.Warn("trace update failed", zap.String("key", key), zap.Error(err))
	}
}

// graphMeta returns a graph's display name and version.
func (t *StateTracker) graphMeta(graphID string) (name, version string) {
	if g := t.agent.graphByID(graphID); g != nil {
		return g.Name, g.Version
	}
	return "", ""
}

// lookupNode finds a node by id across all graphs, preferring the current
// one.
func (t *StateTracker) lookupNode(nodeID string) (Node, error) {
	if g := t.agent.graphByID(t.currentGraphID); g != nil {
		if node, ok := g.Nodes[nodeID]; ok {
			return node, nil
		}
	}
	for _, g := range t.agent.orderedGraphs() {
		if node, ok := g.Nodes[nodeID]; ok {
			return node, nil
		}
	}
	return nil, types.NewFlowError(t.robotCode, "", fmt.Sprintf("unknown node id %s", nodeID))
}

// switchGraph jumps into another graph, returning its start node.
func (t *StateTracker) switchGraph(graphID, nodeName string) (Node, error) {
	g := t.agent.graphByID(graphID)
	if g == nil {
		return nil, types.NewFlowError(t.robotCode, nodeName,
			fmt.Sprintf("switch target graph %s does not exist", graphID))
	}
	t.currentGraphID = graphID
	return g.Start, nil
}

func (t *StateTracker) resetStatus() {
	t.isEnd = false
	t.status = types.StatusNormal
}

// trigger tries to activate a graph: the hinted flow unconditionally, or
// the first graph in declaration order whose start predicate holds.
func (t *StateTracker) trigger(flowID string) (bool, error) {
	var g *Graph
	if flowID != "" {
		g = t.agent.graphByID(flowID)
		if g == nil {
			return false, types.NewFlowError(t.robotCode, "",
				fmt.Sprintf("flow hint %s does not match any graph", flowID))
		}
	} else {
		for _, candidate := range t.agent.orderedGraphs() {
			hit, err := candidate.Start.trigger(t)
			if err != nil {
				return false, err
			}
			if hit {
				g = candidate
				break
			}
		}
	}
	if g == nil {
		return false, nil
	}
	// The graph id must be set before entering: the start node's trace
	// reads it.
	t.currentGraphID = g.ID
	t.resetStatus()
	t.enter(g.Start)
	return true, nil
}

// enter instantiates a node's iterator and records the visit.
func (t *StateTracker) enter(n Node) {
	t.nodeIDs = append(t.nodeIDs, n.ID())
	t.nodeTypes = append(t.nodeTypes, n.Kind())
	t.current = n.call(t)
}

func chitchatRobot(robotCode string) string {
	return robotCode + "_chitchat"
}

// performFAQ answers the current utterance from the knowledge base,
// falling through to chit-chat on a miss. The FAQ result is fetched at
// most once per message.
func (t *StateTracker) performFAQ(ctx context.Context) (string, error) {
	msg := t.latestMsg()
	if msg.FAQResult == nil {
		answer, err := t.collab.KB.Ask(ctx, faq.AskParams{
			RobotCode: t.robotCode,
			Question:  msg.Text,
		})
		if err != nil {
			t.agent.metrics.CollaboratorError(t.robotCode, "knowledge_base")
			return "", err
		}
		if answer == nil {
			answer = &types.Answer{}
		}
		msg.FAQResult = answer
	}

	if !msg.TriggerFAQ(t.cfg.FAQThreshold) {
		msg.FAQResult.ID = ""
	}
	source := "faq"
	if msg.FAQID() == "" {
		source = "chitchat"
		msg.Understanding = types.UnderstandingNoFAQ
		chit, err := t.collab.KB.ChitchatAsk(ctx, chitchatRobot(t.robotCode), msg.Text)
		if err != nil {
			t.agent.metrics.CollaboratorError(t.robotCode, "chitchat")
			t.logger.Warn("chitchat fallback failed", zap.Error(err))
		} else if chit != nil {
			msg.ChitchatWords = chit.Answer
		}
	}

	t.nodeIDs = append(t.nodeIDs, "faq")
	t.nodeTypes = append(t.nodeTypes, "faq")
	t.replies = append(t.replies, FAQFlag)
	t.addTrace(types.TraceRecord{
		"type":       "faq",
		"hit":        msg.FAQResult.Title,
		"category":   msg.FAQResult.Category,
		"confidence": msg.FAQResult.Confidence,
		"recall":     msg.FAQResult.RecommendQuestions,
	})
	t.agent.metrics.ReplyProduced(t.robotCode, source)
	return msg.FAQAnswer(), nil
}

// handleMessage runs one turn: append the message, then drive the active
// iterator (or trigger a graph) until a reply is produced. An iterator that
// ends with a successor continues immediately; one that ends without a
// successor clears the flow and re-triggers. The FAQ sentinel detours to
// the knowledge base without losing flow position.
func (t *StateTracker) handleMessage(ctx context.Context, msg *types.Message, flowID string) (string, error) {
	t.turnID++
	turnStart := time.Now()

	// Carry the previous turn's last trace record forward as seed context.
	if prev := t.latestMsg().LatestTrace(); prev != nil {
		msg.AddTrace(prev)
	}
	t.history = append(t.history, msg)

	reply := ""
	for hops := 0; reply == ""; hops++ {
		if hops > t.cfg.MaxTrampolineHops {
			return "", types.NewFlowError(t.robotCode, "",
				fmt.Sprintf("turn exceeded %d node hops", t.cfg.MaxTrampolineHops))
		}

		if t.current == nil {
			triggered, err := t.trigger(flowID)
			if err != nil {
				return "", err
			}
			flowID = ""
			if !triggered {
				faqReply, err := t.performFAQ(ctx)
				if err != nil {
					return "", err
				}
				reply = faqReply
				break
			}
		}

		out, err := t.current.next(ctx)
		if err != nil {
			return "", err
		}
		if out == FAQFlag {
			faqReply, err := t.performFAQ(ctx)
			if err != nil {
				return "", err
			}
			reply = faqReply
			break
		}
		if out != "" {
			reply = t.decodeReply(out)
			t.replies = append(t.replies, reply)
			t.agent.metrics.ReplyProduced(t.robotCode, "flow")
			break
		}
		if t.current.done() {
			if succ := t.current.successor(); succ != nil {
				t.enter(succ)
				continue
			}
			t.current = nil
		}
	}

	t.turnTimes = append(t.turnTimes, [2]time.Time{turnStart, time.Now()})
	t.agent.metrics.TurnObserved(t.robotCode, time.Since(turnStart))
	return reply, nil
}

var (
	slotPlaceholder   = regexp.MustCompile(`\$\{slot\.(.*?)\}`)
	paramsPlaceholder = regexp.MustCompile(`\$\{params\.(.*?)\}`)
	userSaysMarker    = regexp.MustCompile(`\$\{_user_says\}`)
	robotCodeMarker   = regexp.MustCompile(`\$\{_robot_code\}`)
)

// decodeReply substitutes ${slot.x}, ${params.y}, ${_user_says} and
// ${_robot_code} placeholders from session state.
func (t *StateTracker) decodeReply(content string) string {
	content = slotPlaceholder.ReplaceAllStringFunc(content, func(m string) string {
		name := slotPlaceholder.FindStringSubmatch(m)[1]
		if value, ok := t.slots[name]; ok && value != "" {
			return value
		}
		return types.UnknownSlotValue
	})
	content = paramsPlaceholder.ReplaceAllStringFunc(content, func(m string) string {
		name := paramsPlaceholder.FindStringSubmatch(m)[1]
		if value, ok := t.params[name]; ok {
			return anyToString(value)
		}
		return types.UnknownSlotValue
	})
	content = userSaysMarker.ReplaceAllString(content, t.latestMsg().Text)
	content = robotCodeMarker.ReplaceAllString(content, t.robotCode)
	return content
}

func lastOf(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[len(list)-1]
}

// LatestPack packages the most recent turn for the hosting layer.
func (t *StateTracker) LatestPack(includeTrace bool) *types.ReplyPacket {
	msg := t.latestMsg()
	pack := &types.ReplyPacket{
		SessionID:    t.sessionID,
		Type:         types.ReplyTypeFlow,
		UserSays:     msg.Text,
		DialogStatus: t.status,
		ResponseTime: time.Now().Format("2006-01-02 15:04:05"),
		Dialog: &types.DialogInfo{
			GraphID:  t.currentGraphID,
			NodeID:   lastOf(t.nodeIDs),
			NodeType: lastOf(t.nodeTypes),
			IsStart:  msg.IsStart,
			IsEnd:    t.isEnd,
		},
		RecommendQuestions: []string{},
		RelatedQuestions:   []string{},
		HotQuestions:       []string{},
		Options:            msg.Options,
		Understanding:      msg.Understanding,
		Slots:              []types.SlotInfo{},
		Entities:           []types.SlotInfo{},
	}

	if lastOf(t.replies) == FAQFlag && msg.FAQResult != nil {
		result := msg.FAQResult
		pack.Type = types.ReplyTypeFAQ
		pack.Says = msg.FAQAnswer()
		pack.FAQID = msg.FAQID()
		pack.Hit = result.Title
		pack.Confidence = result.Confidence
		pack.Category = result.Category
		pack.RecommendQuestions = result.RecommendQuestions
		pack.RelatedQuestions = result.RelatedQuestions
		pack.HotQuestions = result.HotQuestions
		if result.ReplyMode != "" && result.ReplyMode != "1" {
			pack.SMSContent = result.SMSContent
		}
	} else {
		pack.Says = lastOf(t.replies)
		// The connect turn carries no utterance; intent and slot fields
		// stay empty for it.
		if len(t.history) > 1 {
			pack.Intent = &types.IntentInfo{
				Understanding:   msg.Understanding,
				Intent:          msg.Intent,
				CandidateIntent: []string{},
			}
			for name, value := range t.slots {
				if value == "" || t.slotTurns[name] != t.turnID {
					continue
				}
				info := types.SlotInfo{
					Key:     name,
					Name:    t.slotAlias[name],
					Value:   value,
					Warning: t.slotWarning[name],
				}
				pack.Slots = append(pack.Slots, info)
				pack.Entities = append(pack.Entities, info)
			}
		}
	}

	if includeTrace {
		pack.Trace = msg.Trace()
	}
	return pack
}
