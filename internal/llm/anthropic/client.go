package anthropic

import (
	"context"
	"encoding/json"

	"quill/internal/llm"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 4096

type Client struct {
	client         *anthropic.Client
	model          string
	thinkingBudget int
}

type Option func(*Client)

// WithThinkingBudget enables extended thinking with the given token budget.
// Thinking blocks and their signatures are replayed on subsequent requests.
func WithThinkingBudget(tokens int) Option {
	return func(c *Client) {
		c.thinkingBudget = tokens
	}
}

// NewClient creates a new Anthropic client. baseURL may be empty for the
// default endpoint.
func NewClient(apiKey, model, baseURL string, opts ...Option) *Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	client := anthropic.NewClient(reqOpts...)

	c := &Client{
		client: &client,
		model:  model,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := c.client.Messages.New(ctx, c.convertRequest(req))
	if err != nil {
		return nil, err
	}

	return convertResponse(resp), nil
}

// CountTokens uses the native counting endpoint. The system prompt is folded
// in as a leading user message so its tokens are included without depending
// on the endpoint's system-field shape.
func (c *Client) CountTokens(ctx context.Context, req *llm.ChatRequest) (int, error) {
	messages, systemPrompt := convertMessages(req.Messages)
	if systemPrompt != "" {
		messages = append([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(systemPrompt)),
		}, messages...)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	resp, err := c.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(c.model),
		Messages: messages,
	})
	if err != nil {
		return 0, err
	}

	return int(resp.InputTokens), nil
}

func (c *Client) Provider() string {
	return "anthropic"
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) convertRequest(req *llm.ChatRequest) anthropic.MessageNewParams {
	messages, systemPrompt := convertMessages(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	switch req.ToolChoice {
	case "auto":
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	case "required":
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case "none":
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	}

	if c.thinkingBudget > 0 {
		// Thinking requires the default temperature, so it is left unset.
		params.Thinking = anthropic.ThinkingConfigParamUnion{
			OfEnabled: &anthropic.ThinkingConfigEnabledParam{
				BudgetTokens: int64(c.thinkingBudget),
			},
		}
	} else if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	return params
}

// convertMessages converts our internal message format to Anthropic's format.
// System messages become the system prompt (the last one wins).
func convertMessages(messages []*llm.Message) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			systemPrompt = msg.Content

		case llm.RoleUser:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))

		case llm.RoleAssistant:
			var contentItems []anthropic.ContentBlockParamUnion

			// Thinking blocks must be replayed with their signature before
			// any other content.
			if msg.Reason != "" && msg.ThinkingSignature != "" {
				contentItems = append(contentItems, anthropic.ContentBlockParamUnion{
					OfThinking: &anthropic.ThinkingBlockParam{
						Thinking:  msg.Reason,
						Signature: msg.ThinkingSignature,
					},
				})
			}

			if msg.Content != "" {
				contentItems = append(contentItems, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{
						Text: msg.Content,
					},
				})
			}

			for _, tc := range msg.ToolCalls {
				args := tc.Function.Arguments
				if args == "" {
					args = "{}"
				}
				contentItems = append(contentItems, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						Type:  "tool_use",
						ID:    tc.ID,
						Name:  tc.Function.Name,
						Input: json.RawMessage(args),
					},
				})
			}

			if len(contentItems) == 0 {
				continue
			}

			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: contentItems,
			})

		case llm.RoleTool:
			// Tool results travel as user-role tool_result blocks.
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: msg.ToolCallID,
						Content: []anthropic.ToolResultBlockParamContentUnion{{
							OfText: &anthropic.TextBlockParam{
								Text: msg.Content,
							},
						}},
					},
				}},
			})
		}
	}

	return anthropicMessages, systemPrompt
}

func convertTools(tools []*llm.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		properties := any(map[string]any{})
		if props, ok := t.Function.Parameters["properties"]; ok {
			properties = props
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Function.Name,
				Description: anthropic.String(t.Function.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
				},
			},
		})
	}
	return out
}

// convertResponse converts an Anthropic API response into our internal format.
func convertResponse(resp *anthropic.Message) *llm.ChatResponse {
	out := &llm.ChatResponse{
		Message: llm.Message{Role: llm.RoleAssistant},
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		StopReason: convertStopReason(resp.StopReason),
	}

	for _, content := range resp.Content {
		switch c := content.AsAny().(type) {
		case anthropic.TextBlock:
			out.Message.Content += c.Text
		case anthropic.ThinkingBlock:
			out.Message.Reason += c.Thinking
			out.Message.ThinkingSignature = c.Signature
		case anthropic.ToolUseBlock:
			out.Message.ToolCalls = append(out.Message.ToolCalls, &llm.ToolCall{
				ID:   c.ID,
				Type: "function",
				Function: &llm.FunctionCall{
					Name:      c.Name,
					Arguments: string(c.Input),
				},
			})
		}
	}

	return out
}

func convertStopReason(reason anthropic.StopReason) llm.StopReason {
	switch reason {
	case anthropic.StopReasonToolUse:
		return llm.StopReasonToolCalls
	case anthropic.StopReasonMaxTokens:
		return llm.StopReasonLength
	default:
		return llm.StopReasonStop
	}
}
