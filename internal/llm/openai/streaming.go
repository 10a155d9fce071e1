package openai

import (
	"context"
	"fmt"
	"io"

	"quill/internal/llm"

	openai "github.com/sashabaranov/go-openai"
)

type StreamReader struct {
	stream *openai.ChatCompletionStream
}

func (c *Client) ChatStream(ctx context.Context, req *llm.ChatRequest) (llm.StreamReader, error) {
	ocReq := c.convertRequest(req)
	ocReq.Stream = true
	ocReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := c.client.CreateChatCompletionStream(ctx, ocReq)
	if err != nil {
		return nil, err
	}

	return &StreamReader{stream: stream}, nil
}

func (s *StreamReader) Recv() (*llm.Delta, error) {
	resp, err := s.stream.Recv()
	if err == io.EOF {
		return &llm.Delta{Done: true}, nil
	}
	if err != nil {
		return nil, err
	}

	// With IncludeUsage set, the final chunk carries usage and no choices.
	if len(resp.Choices) == 0 {
		if resp.Usage == nil {
			return nil, fmt.Errorf("no choices in stream response")
		}
		return &llm.Delta{
			Usage: &llm.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}, nil
	}

	choice := resp.Choices[0]
	delta := choice.Delta

	result := &llm.Delta{
		Role:    llm.Role(delta.Role),
		Reason:  delta.ReasoningContent,
		Content: delta.Content,
	}

	// Tool calls arrive as fragments keyed by index; pass them through and
	// let the accumulator stitch them together.
	for _, tc := range delta.ToolCalls {
		index := 0
		if tc.Index != nil {
			index = *tc.Index
		}
		result.ToolCalls = append(result.ToolCalls, &llm.ToolCallDelta{
			Index:     index,
			ID:        tc.ID,
			Type:      string(tc.Type),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	if choice.FinishReason != "" {
		result.FinishReason = convertFinishReason(choice.FinishReason)
	}

	if resp.Usage != nil {
		result.Usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return result, nil
}

func (s *StreamReader) Close() error {
	s.stream.Close()
	return nil
}
