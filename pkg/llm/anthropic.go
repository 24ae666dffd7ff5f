package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 4096

// AnthropicClient implements Client over the Anthropic Messages API. The SDK
// only streams; responses are accumulated into a single Response.
type AnthropicClient struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropicClient creates a client for the given API key. defaultModel is
// used when a request does not name a model.
func NewAnthropicClient(apiKey, defaultModel string) *AnthropicClient {
	return &AnthropicClient{
		client:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: defaultModel,
	}
}

// Generate sends the conversation and returns the accumulated response.
func (c *AnthropicClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	messages, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	return c.accumulateStream(ctx, params)
}

// accumulateStream consumes the SSE stream and assembles the full response.
// Tool calls arrive as a content_block_start (id, name) followed by
// input_json_delta fragments, finalized on content_block_stop.
func (c *AnthropicClient) accumulateStream(ctx context.Context, params anthropic.MessageNewParams) (*Response, error) {
	type pendingTool struct {
		id   string
		name string
		args strings.Builder
	}

	var text strings.Builder
	var toolCalls []ToolCall
	pending := make(map[int64]*pendingTool)

	stream := c.client.Messages.NewStreaming(ctx, params)
	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			start := event.AsContentBlockStart()
			if start.ContentBlock.Type == "tool_use" {
				pending[start.Index] = &pendingTool{
					id:   start.ContentBlock.ID,
					name: start.ContentBlock.Name,
				}
			}

		case "content_block_delta":
			deltaEvent := event.AsContentBlockDelta()
			switch deltaEvent.Delta.Type {
			case "text_delta":
				text.WriteString(deltaEvent.Delta.Text)
			case "input_json_delta":
				if p := pending[deltaEvent.Index]; p != nil {
					p.args.WriteString(deltaEvent.Delta.PartialJSON)
				}
			}

		case "content_block_stop":
			stop := event.AsContentBlockStop()
			if p := pending[stop.Index]; p != nil {
				args := p.args.String()
				if args == "" {
					args = "{}"
				}
				toolCalls = append(toolCalls, ToolCall{ID: p.id, Name: p.name, Arguments: args})
				delete(pending, stop.Index)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("message stream failed: %w", err)
	}

	return &Response{Content: text.String(), ToolCalls: toolCalls}, nil
}

func toAnthropicMessages(messages []Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case RoleTool:
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError)))

		case RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input map[string]interface{}
				if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
					return nil, fmt.Errorf("invalid tool call arguments for %s: %w", tc.Name, err)
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			result = append(result, anthropic.NewAssistantMessage(content...))

		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return result, nil
}

func toAnthropicTools(tools []ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, def := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(def.ParametersSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", def.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, def.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", def.Name)
		}
		toolParam.OfTool.Description = anthropic.String(def.Description)
		result = append(result, toolParam)
	}
	return result, nil
}
