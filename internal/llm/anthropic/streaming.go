package anthropic

import (
	"context"

	"quill/internal/llm"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

type StreamReader struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]

	// toolBlocks tracks which content-block indexes are tool_use blocks so
	// that only their stop events are reported as closed calls.
	toolBlocks map[int]bool
}

func (c *Client) ChatStream(ctx context.Context, req *llm.ChatRequest) (llm.StreamReader, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.convertRequest(req))

	return &StreamReader{
		stream:     stream,
		toolBlocks: make(map[int]bool),
	}, nil
}

// Recv maps the provider's event stream onto normalized deltas:
// message_start carries input tokens, content_block_start registers tool
// calls, content_block_delta carries text/thinking/signature/argument
// fragments, content_block_stop closes a call, message_delta carries the
// stop reason and output tokens.
func (s *StreamReader) Recv() (*llm.Delta, error) {
	for {
		if !s.stream.Next() {
			if err := s.stream.Err(); err != nil {
				return nil, err
			}
			return &llm.Delta{Done: true}, nil
		}

		event := s.stream.Current()

		switch ev := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			return &llm.Delta{
				Role: llm.RoleAssistant,
				Usage: &llm.Usage{
					PromptTokens: int(ev.Message.Usage.InputTokens),
				},
			}, nil

		case anthropic.ContentBlockStartEvent:
			index := int(ev.Index)
			switch block := ev.ContentBlock.AsAny().(type) {
			case anthropic.ToolUseBlock:
				s.toolBlocks[index] = true
				return &llm.Delta{
					ToolCalls: []*llm.ToolCallDelta{{
						Index: index,
						ID:    block.ID,
						Type:  "function",
						Name:  block.Name,
					}},
				}, nil
			default:
				continue
			}

		case anthropic.ContentBlockDeltaEvent:
			index := int(ev.Index)
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				return &llm.Delta{Content: delta.Text}, nil
			case anthropic.ThinkingDelta:
				return &llm.Delta{Reason: delta.Thinking}, nil
			case anthropic.SignatureDelta:
				return &llm.Delta{Signature: delta.Signature}, nil
			case anthropic.InputJSONDelta:
				return &llm.Delta{
					ToolCalls: []*llm.ToolCallDelta{{
						Index:     index,
						Arguments: delta.PartialJSON,
					}},
				}, nil
			default:
				continue
			}

		case anthropic.ContentBlockStopEvent:
			index := int(ev.Index)
			if !s.toolBlocks[index] {
				continue
			}
			return &llm.Delta{ClosedCalls: []int{index}}, nil

		case anthropic.MessageDeltaEvent:
			return &llm.Delta{
				FinishReason: convertStopReason(anthropic.StopReason(ev.Delta.StopReason)),
				Usage: &llm.Usage{
					CompletionTokens: int(ev.Usage.OutputTokens),
				},
			}, nil

		case anthropic.MessageStopEvent:
			return &llm.Delta{Done: true}, nil

		default:
			continue
		}
	}
}

func (s *StreamReader) Close() error {
	return s.stream.Close()
}
