package types

import (
	"fmt"
	"regexp"
	"sort"
)

// Understanding flags carried on a Message. The hosting layer reports these
// back to the operator console.
const (
	// UnderstandingOK means the turn was fully understood.
	UnderstandingOK = "0"
	// UnderstandingNoIntent means no candidate intent matched.
	UnderstandingNoIntent = "1"
	// UnderstandingNoSlot means a required slot could not be extracted.
	UnderstandingNoSlot = "2"
	// UnderstandingNoFAQ means the knowledge base had no confident answer.
	UnderstandingNoFAQ = "3"
)

// UnknownSlotValue fills a non-required slot once its re-ask rounds are
// exhausted.
const UnknownSlotValue = "unknown"

// TraceRecord is one structured debug entry describing a node visit,
// connection choice, or condition outcome. Shapes vary per node kind, so it
// stays a free-form map like the wire format the operator console consumes.
type TraceRecord map[string]any

// Message is one parsed user utterance plus everything the engine learned
// about it during the turn. It is appended to the session history and never
// mutated by later turns, except to attach trace records produced while it
// was the active message.
type Message struct {
	RobotCode string
	Text      string

	// IntentRanking maps candidate intent ids to confidence scores.
	IntentRanking map[string]float64
	// Intent is the resolved intent id, "" when nothing matched.
	Intent           string
	IntentConfidence float64

	// Entities maps ability names to extracted values.
	Entities map[string][]string

	Understanding string
	CallbackWords string
	ChitchatWords string

	// Options holds the literal options last presented to the user, echoed
	// back so the client can render them again.
	Options []string

	// FAQResult is fetched lazily, at most once per message.
	FAQResult *Answer

	// IsStart records whether this turn passed through a start node.
	IsStart bool

	// IntentID2Name, IntentID2Code and IntentExamples come from the NLU
	// training data and travel with the message so nodes can re-classify
	// against restricted candidate sets.
	IntentID2Name  map[string]string
	IntentID2Code  map[string]string
	IntentExamples map[string][]string

	trace []TraceRecord
}

// NewMessage creates an empty message for the given utterance.
func NewMessage(robotCode, text string) *Message {
	return &Message{
		RobotCode:     robotCode,
		Text:          text,
		IntentRanking: make(map[string]float64),
		Entities:      make(map[string][]string),
		Understanding: UnderstandingOK,
	}
}

// AddEntity records values extracted by the named ability.
func (m *Message) AddEntity(ability string, values ...string) {
	if len(values) == 0 {
		return
	}
	m.Entities[ability] = append(m.Entities[ability], values...)
}

// Abilities returns all extracted entities keyed by ability name.
func (m *Message) Abilities() map[string][]string {
	return m.Entities
}

// AddIntentRanking inserts or raises a candidate intent score.
func (m *Message) AddIntentRanking(intent string, confidence float64) {
	m.IntentRanking[intent] = confidence
}

// UpdateIntent resolves Intent from the current ranking. Ties break on
// intent id so resolution is deterministic.
func (m *Message) UpdateIntent() {
	if len(m.IntentRanking) == 0 {
		m.Intent = ""
		m.IntentConfidence = 0
		return
	}
	ids := make([]string, 0, len(m.IntentRanking))
	total := 0.0
	for id, score := range m.IntentRanking {
		ids = append(ids, id)
		total += score
	}
	sort.Strings(ids)
	best := ids[0]
	for _, id := range ids[1:] {
		if m.IntentRanking[id] > m.IntentRanking[best] {
			best = id
		}
	}
	m.Intent = best
	if total > 0 {
		m.IntentConfidence = m.IntentRanking[best] / total
	}
}

// IntentNameByID maps an intent id to its display name, falling back to the
// id itself.
func (m *Message) IntentNameByID(id string) string {
	if name, ok := m.IntentID2Name[id]; ok {
		return name
	}
	return id
}

// IntentCodeByID maps an intent id to its external code, falling back to the
// id itself.
func (m *Message) IntentCodeByID(id string) string {
	if code, ok := m.IntentID2Code[id]; ok {
		return code
	}
	return id
}

// SetCallbackWords sets the pull-back phrase appended after fallback answers.
func (m *Message) SetCallbackWords(words string) {
	m.CallbackWords = words
}

// TriggerFAQ reports whether the fetched FAQ answer clears the confidence
// threshold.
func (m *Message) TriggerFAQ(threshold float64) bool {
	return m.FAQResult != nil && m.FAQResult.Confidence > threshold
}

// FAQID returns the matched knowledge-base entry id, "" when nothing hit.
func (m *Message) FAQID() string {
	if m.FAQResult == nil {
		return ""
	}
	return m.FAQResult.ID
}

// FAQAnswer assembles the outgoing fallback text: the knowledge-base answer
// when one hit, otherwise the chit-chat reply, each followed by any
// configured callback phrase.
func (m *Message) FAQAnswer() string {
	body := m.ChitchatWords
	if m.FAQResult != nil && m.FAQResult.ID != "" {
		body = m.FAQResult.Answer
	}
	if m.CallbackWords == "" {
		return body
	}
	if body == "" {
		return m.CallbackWords
	}
	return body + "\n" + m.CallbackWords
}

// AddTrace appends a trace record for this message.
func (m *Message) AddTrace(record TraceRecord) {
	m.trace = append(m.trace, record)
}

// UpdateTrace sets a key of the most recent trace record. List-valued keys
// accumulate instead of being replaced. Writing to an empty trace or an
// undeclared key is a programming error and is reported as such.
func (m *Message) UpdateTrace(key string, value any) error {
	if len(m.trace) == 0 {
		return fmt.Errorf("no trace record to update for key %q", key)
	}
	last := m.trace[len(m.trace)-1]
	cur, ok := last[key]
	if !ok {
		return fmt.Errorf("trace record type %v has no key %q", last["type"], key)
	}
	if list, isList := cur.([]any); isList {
		last[key] = append(list, value)
		return nil
	}
	last[key] = value
	return nil
}

// LatestTrace returns the most recent trace record, nil when empty.
func (m *Message) LatestTrace() TraceRecord {
	if len(m.trace) == 0 {
		return nil
	}
	return m.trace[len(m.trace)-1]
}

// Trace returns all trace records attached to this message.
func (m *Message) Trace() []TraceRecord {
	return m.trace
}

// TraceEmpty reports whether no trace record has been attached yet.
func (m *Message) TraceEmpty() bool {
	return len(m.trace) == 0
}

var modalRunes = regexp.MustCompile("[哪罢吧么嘛啊了啦吗呢呀哇]")

// TextWithoutModal strips Chinese modal particles, used by rule matchers
// that should ignore ASR filler.
func (m *Message) TextWithoutModal() string {
	return modalRunes.ReplaceAllString(m.Text, "")
}
