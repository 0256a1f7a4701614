package faq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convograph/convograph/types"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(ClientConfig{
		KnowledgeBaseURL: srv.URL,
		QuestionBankURL:  srv.URL,
	}, srv.Client(), nil)
	return client, srv
}

func TestClientAsk(t *testing.T) {
	var gotPath string
	var gotParams AskParams
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotParams)
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"faq_id": "faq_1", "title": "退款政策", "answer": "七天无理由", "confidence": 0.92,
			},
		})
	}))

	answer, err := client.Ask(context.Background(), AskParams{RobotCode: "bot", Question: "怎么退款"})
	require.NoError(t, err)
	require.Equal(t, "/robot_manager/single/ask", gotPath)
	require.Equal(t, "bot", gotParams.RobotCode)
	require.Equal(t, "怎么退款", gotParams.Question)
	require.Equal(t, "faq_1", answer.ID)
	require.Equal(t, "七天无理由", answer.Answer)
	require.InDelta(t, 0.92, answer.Confidence, 1e-9)
}

func TestClientChitchatAsk(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"answer": "哈哈，聊点别的吧"},
		})
	}))

	answer, err := client.ChitchatAsk(context.Background(), "bot_chitchat", "讲个笑话")
	require.NoError(t, err)
	require.Equal(t, "/robot_manager/single/chitchat", gotPath)
	require.Equal(t, "哈哈，聊点别的吧", answer.Answer)
}

func TestClientSearchAndIntents(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robot_manager/question_bank/search":
			var req SearchRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": []map[string]any{
					{"qid": "q1", "content": "请问您满意吗？", "intent_ids": []string{"i1"}},
				},
			})
		case "/robot_manager/question_bank/intents":
			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": []map[string]any{
					{"intent_id": "i1", "intent_name": "不满意", "examples": []string{"很不满意"}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	questions, err := client.Search(ctx, SearchRequest{RobotCode: QuestionBankRobot, IDs: []string{"q1"}})
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, "q1", questions[0].ID)
	require.Equal(t, []string{"i1"}, questions[0].IntentIDs)

	intents, err := client.Intents(ctx, []string{"i1"})
	require.NoError(t, err)
	require.Len(t, intents, 1)
	require.Equal(t, "不满意", intents[0].Name)
}

func TestClientServiceErrorCode(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 42, "msg": "robot not found"})
	}))

	_, err := client.Ask(context.Background(), AskParams{RobotCode: "ghost", Question: "hi"})
	require.Error(t, err)
	require.Equal(t, types.ErrCollaborator, types.CodeOf(err))
	require.Contains(t, err.Error(), "robot not found")
}

func TestClientHTTPError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	_, err := client.Search(context.Background(), SearchRequest{RobotCode: QuestionBankRobot})
	require.Error(t, err)
	require.Equal(t, types.ErrCollaborator, types.CodeOf(err))
}
