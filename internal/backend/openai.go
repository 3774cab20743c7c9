package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/chiayulab/linebridge/internal/models"
)

// defaultSystemPrompt frames the pilot companion persona when a group runs on
// the OpenAI provider instead of a provisioned Dify app.
const defaultSystemPrompt = "你是一位溫暖、有耐心的聊天夥伴，正在陪伴一位研究參與者日常聊天。請用自然的繁體中文回覆，回覆保持簡短。"

// chatService is the minimal chat-completions surface used by OpenAIClient.
// Narrowed for testability.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIClient implements Client on the OpenAI chat-completions API. It is
// the pilot provider for groups that do not yet have a Dify app. OpenAI
// issues no server-side continuation token, so the request's token is echoed
// back unchanged.
type OpenAIClient struct {
	chat         chatService
	model        openai.ChatModel
	systemPrompt string
	groups       map[models.Group]bool
}

// NewOpenAIClient creates an OpenAI-backed client serving the given groups.
func NewOpenAIClient(apiKey string, groups []models.Group) *OpenAIClient {
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	enabled := make(map[models.Group]bool, len(groups))
	for _, g := range groups {
		enabled[g] = true
	}
	return &OpenAIClient{
		chat:         &cli.Chat.Completions,
		model:        openai.ChatModelGPT4oMini,
		systemPrompt: defaultSystemPrompt,
		groups:       enabled,
	}
}

// Send forwards one turn to the chat-completions API. Failures degrade to
// DefaultApology; the caller's continuation token passes through untouched.
func (c *OpenAIClient) Send(ctx context.Context, req Request) (Reply, error) {
	if !c.groups[req.Group] {
		slog.Error("OpenAIClient.Send: group not enabled for this provider", "group", req.Group)
		return Reply{}, fmt.Errorf("%w: %q", models.ErrUnknownGroup, req.Group)
	}

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(req.Text),
		},
		User: openai.String(req.UserID),
	})
	if err != nil {
		slog.Warn("OpenAIClient.Send: request failed", "error", err, "group", req.Group)
		return Reply{Text: DefaultApology, ConversationID: req.ConversationID}, nil
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		slog.Warn("OpenAIClient.Send: response carried no answer", "group", req.Group)
		return Reply{Text: DefaultApology, ConversationID: req.ConversationID}, nil
	}

	slog.Debug("OpenAIClient.Send: reply received", "group", req.Group, "answer_length", len(resp.Choices[0].Message.Content))
	return Reply{Text: resp.Choices[0].Message.Content, ConversationID: req.ConversationID}, nil
}
