package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chiayulab/linebridge/internal/models"
)

// DefaultDifyURL is the Dify chat-messages endpoint.
const DefaultDifyURL = "https://api.dify.ai/v1/chat-messages"

// DifyTimeout bounds one blocking chat-message call.
const DifyTimeout = 30 * time.Second

// difyRequest is the chat-messages request body.
type difyRequest struct {
	Inputs         map[string]string `json:"inputs"`
	Query          string            `json:"query"`
	User           string            `json:"user"`
	ResponseMode   string            `json:"response_mode"`
	ConversationID string            `json:"conversation_id,omitempty"`
}

// difyResponse carries the fields the relay consumes from a chat-messages reply.
type difyResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
}

// DifyClient implements Client against group-specific Dify applications.
// Each group has its own API key, selecting the group's Dify app.
type DifyClient struct {
	apiURL     string
	apiKeys    map[models.Group]string
	httpClient *http.Client
}

// NewDifyClient creates a Dify client with per-group API keys.
func NewDifyClient(apiKeys map[models.Group]string) *DifyClient {
	return &DifyClient{
		apiURL:     DefaultDifyURL,
		apiKeys:    apiKeys,
		httpClient: &http.Client{Timeout: DifyTimeout},
	}
}

// NewDifyClientWithURL creates a Dify client against a custom endpoint.
// Intended for tests and self-hosted Dify deployments.
func NewDifyClientWithURL(apiURL string, apiKeys map[models.Group]string, httpClient *http.Client) *DifyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DifyTimeout}
	}
	return &DifyClient{apiURL: apiURL, apiKeys: apiKeys, httpClient: httpClient}
}

// Send forwards one turn to the group's Dify app in blocking mode. The
// conversation ID is omitted on the first turn; on success the backend-issued
// ID is returned for the caller to store. Transport failures and empty
// answers degrade to DefaultApology with no continuation token.
func (c *DifyClient) Send(ctx context.Context, req Request) (Reply, error) {
	apiKey, ok := c.apiKeys[req.Group]
	if !ok || apiKey == "" {
		slog.Error("DifyClient.Send: no API key configured for group", "group", req.Group)
		return Reply{}, fmt.Errorf("%w: %q", models.ErrUnknownGroup, req.Group)
	}

	body, err := json.Marshal(difyRequest{
		Inputs:         map[string]string{},
		Query:          req.Text,
		User:           req.UserID,
		ResponseMode:   "blocking",
		ConversationID: req.ConversationID,
	})
	if err != nil {
		slog.Error("DifyClient.Send: failed to marshal request", "error", err)
		return Reply{Text: DefaultApology}, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		slog.Error("DifyClient.Send: failed to build request", "error", err)
		return Reply{Text: DefaultApology}, nil
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Warn("DifyClient.Send: request failed", "error", err, "group", req.Group)
		return Reply{Text: DefaultApology}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("DifyClient.Send: non-success status", "status", resp.StatusCode, "group", req.Group)
		return Reply{Text: DefaultApology}, nil
	}

	var dr difyResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		slog.Warn("DifyClient.Send: failed to decode response", "error", err, "group", req.Group)
		return Reply{Text: DefaultApology}, nil
	}

	answer := dr.Answer
	if answer == "" {
		slog.Warn("DifyClient.Send: response carried no answer", "group", req.Group)
		answer = DefaultApology
	}

	slog.Debug("DifyClient.Send: reply received", "group", req.Group, "has_conversation_id", dr.ConversationID != "", "answer_length", len(answer))
	return Reply{Text: answer, ConversationID: dr.ConversationID}, nil
}
