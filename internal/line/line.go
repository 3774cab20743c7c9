// Package line provides the outbound client for the LINE Messaging API's
// reply endpoint.
//
// Each webhook delivery carries a one-shot reply token; the relay answers a
// message by POSTing the token plus a single text message within the
// platform's reply window.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chiayulab/linebridge/internal/models"
)

// DefaultReplyURL is the LINE Messaging API reply endpoint.
const DefaultReplyURL = "https://api.line.me/v2/bot/message/reply"

// ReplyTimeout bounds one outbound reply call.
const ReplyTimeout = 10 * time.Second

// replyRequest is the reply endpoint's request body.
type replyRequest struct {
	ReplyToken string         `json:"replyToken"`
	Messages   []replyMessage `json:"messages"`
}

type replyMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Client sends replies through the LINE Messaging API.
type Client struct {
	replyURL     string
	channelToken string
	httpClient   *http.Client
}

// NewClient creates a LINE client with the given channel access token.
func NewClient(channelToken string) *Client {
	return &Client{
		replyURL:     DefaultReplyURL,
		channelToken: channelToken,
		httpClient:   &http.Client{Timeout: ReplyTimeout},
	}
}

// NewClientWithURL creates a LINE client against a custom reply endpoint.
// Intended for tests.
func NewClientWithURL(replyURL, channelToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: ReplyTimeout}
	}
	return &Client{replyURL: replyURL, channelToken: channelToken, httpClient: httpClient}
}

// ValidateUserID checks that an identifier has the shape of a LINE user ID.
// LINE user IDs are opaque strings with a "U" prefix.
func ValidateUserID(userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	if !strings.HasPrefix(userID, "U") {
		return fmt.Errorf("%w: %q", models.ErrInvalidUserID, userID)
	}
	return nil
}

// Reply sends a single text message for the given reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	body, err := json.Marshal(replyRequest{
		ReplyToken: replyToken,
		Messages:   []replyMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.replyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("line.Reply: request failed", "error", err)
		return fmt.Errorf("reply request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("line.Reply: non-success status", "status", resp.StatusCode)
		return fmt.Errorf("reply returned status %d", resp.StatusCode)
	}

	slog.Debug("line.Reply: reply delivered", "text_length", len(text))
	return nil
}
