package types

// Dialog status codes reported to the hosting layer.
const (
	// StatusNormal is the ordinary in-flow state.
	StatusNormal = "0"
	// StatusUserTransfer means the user asked for a human agent.
	StatusUserTransfer = "10"
	// StatusSystemTransfer means the engine gave up and escalated.
	StatusSystemTransfer = "11"
	// StatusHangup means the robot ended the call.
	StatusHangup = "20"
)

// Reply type tags: "1" for knowledge-base answers, "2" for flow replies.
const (
	ReplyTypeFAQ  = "1"
	ReplyTypeFlow = "2"
)

// Answer is one knowledge-base (or chit-chat) result.
type Answer struct {
	ID                 string   `json:"faq_id"`
	Title              string   `json:"title"`
	Answer             string   `json:"answer"`
	Confidence         float64  `json:"confidence"`
	Category           string   `json:"category,omitempty"`
	RecommendQuestions []string `json:"recommendQuestions,omitempty"`
	RecommendScores    []float64 `json:"recommendScores,omitempty"`
	RelatedQuestions   []string `json:"related_questions,omitempty"`
	HotQuestions       []string `json:"hotQuestions,omitempty"`
	ReplyMode          string   `json:"reply_mode,omitempty"`
	SMSContent         string   `json:"sms_content,omitempty"`
	Understanding      string   `json:"understanding,omitempty"`
}

// DialogInfo locates the reply inside the graph for the client.
type DialogInfo struct {
	GraphID  string `json:"code"`
	NodeID   string `json:"nodeId"`
	NodeType string `json:"nodeType"`
	IsStart  bool   `json:"is_start"`
	IsEnd    bool   `json:"is_end"`
}

// IntentInfo summarizes intent resolution for one turn.
type IntentInfo struct {
	Understanding   string   `json:"understanding"`
	Intent          string   `json:"intent"`
	CandidateIntent []string `json:"candidateIntent"`
}

// SlotInfo reports one slot touched during the current turn.
type SlotInfo struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Value   string `json:"value"`
	Warning bool   `json:"warning"`
}

// ReplyPacket is the full per-turn result handed to the hosting layer.
type ReplyPacket struct {
	SessionID    string      `json:"sessionId"`
	Type         string      `json:"type"`
	Says         string      `json:"says"`
	UserSays     string      `json:"userSays"`
	DialogStatus string      `json:"dialog_status"`
	FAQID        string      `json:"faq_id"`
	ResponseTime string      `json:"responseTime"`
	Dialog       *DialogInfo `json:"dialog,omitempty"`

	RecommendQuestions []string `json:"recommendQuestions"`
	RelatedQuestions   []string `json:"relatedQuest"`
	HotQuestions       []string `json:"hotQuestions"`
	Options            []string `json:"optional"`

	Hit           string  `json:"hit"`
	Confidence    float64 `json:"confidence"`
	Category      string  `json:"category"`
	Understanding string  `json:"understanding"`
	SMSContent    string  `json:"sms_content,omitempty"`

	Intent   *IntentInfo   `json:"intent,omitempty"`
	Slots    []SlotInfo    `json:"slots"`
	Entities []SlotInfo    `json:"entities"`
	Mood     float64       `json:"mood"`
	Trace    []TraceRecord `json:"traceback,omitempty"`
}
