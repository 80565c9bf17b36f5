package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/kubesage/kubesage/internal/llm"
	"github.com/kubesage/kubesage/internal/log"
)

// maxToolRounds bounds the tool-calling loop so a model that keeps
// requesting tools cannot spin forever.
const maxToolRounds = 5

// ErrToolLoopExceeded indicates the model kept requesting tools past the
// round budget.
var ErrToolLoopExceeded = errors.New("tool call loop exceeded round budget")

// Source provides tool definitions and invocations. *Manager satisfies
// it.
type Source interface {
	Definitions(ctx context.Context) []llm.ToolDefinition
	Call(ctx context.Context, name, arguments string) (string, error)
}

// ToolResponse is the outcome of one tool invocation.
type ToolResponse struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Result is a completed tool-calling conversation.
type Result struct {
	// Reply is the model's final text answer.
	Reply string `json:"reply"`

	// ToolsUsed lists the tool names invoked, in call order with
	// duplicates removed.
	ToolsUsed []string `json:"toolsUsed,omitempty"`

	// Responses holds the raw tool outputs that fed the final answer.
	Responses []ToolResponse `json:"responses,omitempty"`
}

// Processor runs conversations through the model, satisfying its tool
// calls from the connected MCP servers until it produces a text answer.
type Processor struct {
	provider llm.Provider
	source   Source
	logger   log.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(provider llm.Provider, source Source, logger log.Logger) (*Processor, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Processor{provider: provider, source: source, logger: logger}, nil
}

// AvailableTools returns the tools currently offered to the model.
func (p *Processor) AvailableTools(ctx context.Context) []llm.ToolDefinition {
	if p.source == nil {
		return nil
	}
	return p.source.Definitions(ctx)
}

// ProcessQuery runs the conversation to completion. A failing tool call
// does not abort the loop: its error text is fed back to the model as the
// tool result so it can answer around the failure.
func (p *Processor) ProcessQuery(ctx context.Context, messages []llm.Message) (*Result, error) {
	var defs []llm.ToolDefinition
	if p.source != nil {
		defs = p.source.Definitions(ctx)
	}

	conversation := append([]llm.Message(nil), messages...)
	result := &Result{}
	seen := make(map[string]bool)

	for round := 0; round <= maxToolRounds; round++ {
		resp, err := p.provider.SendMessage(ctx, conversation, defs)
		if err != nil {
			return nil, fmt.Errorf("sending message: %w", err)
		}
		if len(resp.ToolCalls) == 0 {
			result.Reply = resp.Content
			return result, nil
		}

		conversation = append(conversation, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			if !seen[call.Name] {
				seen[call.Name] = true
				result.ToolsUsed = append(result.ToolsUsed, call.Name)
			}

			output, err := p.source.Call(ctx, call.Name, call.Arguments)
			if err != nil {
				p.logger.Warn("tool call failed", "tool", call.Name, "error", err)
				output = fmt.Sprintf("tool error: %v", err)
			}
			result.Responses = append(result.Responses, ToolResponse{Name: call.Name, Content: output})
			conversation = append(conversation, llm.Message{
				Role:       llm.RoleTool,
				Content:    output,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
		p.logger.Debug("tool round complete", "round", round, "calls", len(resp.ToolCalls))
	}
	return nil, ErrToolLoopExceeded
}
