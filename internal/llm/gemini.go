package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kubesage/kubesage/internal/log"
)

// GeminiProvider talks to the Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      log.Logger
}

// NewGemini creates a Gemini chat provider.
func NewGemini(ctx context.Context, apiKey, model string, temperature float32, maxTokens int, logger log.Logger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}, nil
}

// SendMessage implements Provider. System messages are merged into the
// system instruction; the rest become the content history.
func (p *GeminiProvider) SendMessage(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if p.temperature > 0 {
		temp := p.temperature
		cfg.Temperature = &temp
	}
	if p.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.maxTokens)
	}

	system, contents := geminiContents(messages)
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(tools))
		for i, tool := range tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 tool.Name,
				Description:          tool.Description,
				ParametersJsonSchema: tool.Parameters,
			}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generation: %w", err)
	}

	result := &Response{Content: resp.Text()}
	for i, fc := range resp.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, fmt.Errorf("encoding tool arguments for %q: %w", fc.Name, err)
		}
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", fc.Name, i)
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        id,
			Name:      fc.Name,
			Arguments: string(args),
		})
	}
	if result.Content == "" && len(result.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}

	p.logger.Debug("gemini completion", "model", p.model, "tool_calls", len(result.ToolCalls))
	return result, nil
}

// geminiContents converts the provider-neutral history into genai
// contents. System messages are merged into the returned instruction
// string instead of the content list.
func geminiContents(messages []Message) (string, []*genai.Content) {
	var systemParts []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			systemParts = append(systemParts, m.Content)
		case RoleAssistant:
			contents = append(contents, assistantContent(m))
		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					Name:     m.ToolName,
					Response: map[string]any{"output": m.Content},
				}}},
			})
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(systemParts, "\n\n"), contents
}

// assistantContent rebuilds one model turn. Requested tool calls must be
// replayed as FunctionCall parts or the API rejects the FunctionResponse
// that follows them.
func assistantContent(m Message) *genai.Content {
	if len(m.ToolCalls) == 0 {
		return genai.NewContentFromText(m.Content, genai.RoleModel)
	}

	var parts []*genai.Part
	if m.Content != "" {
		parts = append(parts, genai.NewPartFromText(m.Content))
	}
	for _, tc := range m.ToolCalls {
		args := map[string]any{}
		if tc.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
				args = map[string]any{}
			}
		}
		parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
			Name: tc.Name,
			Args: args,
		}})
	}
	return &genai.Content{Role: genai.RoleModel, Parts: parts}
}

// Model implements Provider.
func (p *GeminiProvider) Model() string { return p.model }
