// Package faq holds the knowledge-base and question-bank collaborators the
// engine falls back to when no flow consumes an utterance.
package faq

import (
	"context"

	"github.com/convograph/convograph/nlu"
	"github.com/convograph/convograph/types"
)

// Question-bank robot codes and perspectives for dynamic question flows.
const (
	// QuestionBankRobot addresses the dynamic question store.
	QuestionBankRobot = "dynamic_db"
	// IntentBankRobot addresses the dynamic intent store.
	IntentBankRobot = "dynamic_intent_db"
	// FixedQuestionCategory marks entries asked verbatim in order.
	FixedQuestionCategory = "fix_questions"

	// MainQuestionPerspective selects top-level questions.
	MainQuestionPerspective = "main_question"
	// SubQuestionPerspective selects follow-ups under a main question.
	SubQuestionPerspective = "sub_question"
)

// AskParams carries one knowledge-base query.
type AskParams struct {
	RobotCode    string   `json:"robot_code"`
	Question     string   `json:"question"`
	FAQIDs       []string `json:"faq_ids,omitempty"`
	Perspective  string   `json:"perspective,omitempty"`
	RecommendNum int      `json:"recommend_num,omitempty"`
	HotNum       int      `json:"ans_threshold,omitempty"`
}

// KnowledgeBase answers user questions outside any flow.
type KnowledgeBase interface {
	// Ask queries the FAQ store. A miss returns an Answer with empty ID,
	// not an error.
	Ask(ctx context.Context, params AskParams) (*types.Answer, error)
	// ChitchatAsk queries the small-talk store.
	ChitchatAsk(ctx context.Context, robotCode, question string) (*types.Answer, error)
}

// SearchRequest asks the question bank for candidate questions.
type SearchRequest struct {
	RobotCode   string   `json:"robot_code"`
	LibID       string   `json:"lib_id,omitempty"`
	Perspective string   `json:"perspective,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	IDs         []string `json:"ids,omitempty"`
}

// BankSlot is a slot-filling directive attached to a bank question.
type BankSlot struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	EntityKey string `json:"entity_key"`
	Warning   bool   `json:"warning,omitempty"`
}

// BankQuestion is one entry of the dynamic question bank.
type BankQuestion struct {
	ID             string     `json:"qid"`
	Content        string     `json:"content"`
	Category       string     `json:"category_path,omitempty"`
	ParentID       string     `json:"parent_id,omitempty"`
	ParentIntentID string     `json:"parent_intent_id,omitempty"`
	IntentIDs      []string   `json:"intent_ids,omitempty"`
	ChildIDs       []string   `json:"child_ids,omitempty"`
	CallbackWords  []string   `json:"callback_words,omitempty"`
	Slots          []BankSlot `json:"slots,omitempty"`
}

// BankIntent is one entry of the dynamic intent bank.
type BankIntent struct {
	ID       string           `json:"intent_id"`
	Code     string           `json:"intent_code,omitempty"`
	Name     string           `json:"intent_name"`
	Examples []string         `json:"examples,omitempty"`
	Rules    []nlu.IntentRule `json:"intent_rules,omitempty"`
}

// QuestionBank serves dynamic question flows.
type QuestionBank interface {
	// Search lists bank entries matching the request.
	Search(ctx context.Context, req SearchRequest) ([]BankQuestion, error)
	// Intents fetches intent-bank entries by id.
	Intents(ctx context.Context, ids []string) ([]BankIntent, error)
}
