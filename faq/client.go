package faq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/convograph/convograph/types"
)

// ClientConfig configures the HTTP collaborator client.
type ClientConfig struct {
	KnowledgeBaseURL string
	QuestionBankURL  string
	Timeout          time.Duration
}

// Client talks to the FAQ and question-bank services over HTTP. It
// implements both KnowledgeBase and QuestionBank.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a collaborator client. A nil httpClient gets a default
// one with the configured timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger.With(zap.String("component", "faq_client")),
	}
}

type askResponse struct {
	Code int          `json:"code"`
	Msg  string       `json:"msg"`
	Data types.Answer `json:"data"`
}

// Ask implements KnowledgeBase.
func (c *Client) Ask(ctx context.Context, params AskParams) (*types.Answer, error) {
	var resp askResponse
	if err := c.postJSON(ctx, c.cfg.KnowledgeBaseURL+"/robot_manager/single/ask", params, &resp); err != nil {
		return nil, types.NewCollaboratorError("knowledge base", err)
	}
	if resp.Code != 0 {
		return nil, types.NewCollaboratorError("knowledge base",
			fmt.Errorf("service code %d: %s", resp.Code, resp.Msg))
	}
	return &resp.Data, nil
}

// ChitchatAsk implements KnowledgeBase.
func (c *Client) ChitchatAsk(ctx context.Context, robotCode, question string) (*types.Answer, error) {
	params := AskParams{RobotCode: robotCode, Question: question}
	var resp askResponse
	if err := c.postJSON(ctx, c.cfg.KnowledgeBaseURL+"/robot_manager/single/chitchat", params, &resp); err != nil {
		return nil, types.NewCollaboratorError("chitchat", err)
	}
	if resp.Code != 0 {
		return nil, types.NewCollaboratorError("chitchat",
			fmt.Errorf("service code %d: %s", resp.Code, resp.Msg))
	}
	return &resp.Data, nil
}

type searchResponse struct {
	Code int            `json:"code"`
	Msg  string         `json:"msg"`
	Data []BankQuestion `json:"data"`
}

// Search implements QuestionBank.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]BankQuestion, error) {
	var resp searchResponse
	if err := c.postJSON(ctx, c.cfg.QuestionBankURL+"/robot_manager/question_bank/search", req, &resp); err != nil {
		return nil, types.NewCollaboratorError("question bank", err)
	}
	if resp.Code != 0 {
		return nil, types.NewCollaboratorError("question bank",
			fmt.Errorf("service code %d: %s", resp.Code, resp.Msg))
	}
	return resp.Data, nil
}

type intentsResponse struct {
	Code int          `json:"code"`
	Msg  string       `json:"msg"`
	Data []BankIntent `json:"data"`
}

// Intents implements QuestionBank.
func (c *Client) Intents(ctx context.Context, ids []string) ([]BankIntent, error) {
	req := map[string]any{
		"robot_code": IntentBankRobot,
		"ids":        ids,
	}
	var resp intentsResponse
	if err := c.postJSON(ctx, c.cfg.QuestionBankURL+"/robot_manager/question_bank/intents", req, &resp); err != nil {
		return nil, types.NewCollaboratorError("intent bank", err)
	}
	if resp.Code != 0 {
		return nil, types.NewCollaboratorError("intent bank",
			fmt.Errorf("service code %d: %s", resp.Code, resp.Msg))
	}
	return resp.Data, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("collaborator call",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
