package assist

import (
	"context"
	"fmt"

	"github.com/kubesage/kubesage/internal/knowledge"
	"github.com/kubesage/kubesage/internal/llm"
	"github.com/kubesage/kubesage/internal/log"
	"github.com/kubesage/kubesage/internal/tools"
)

// ChatRequest is one general chat turn.
type ChatRequest struct {
	Messages    []llm.Message `json:"messages"`
	EnableRAG   bool          `json:"enableRAG"`
	EnableTools bool          `json:"enableTools"`
	TopK        int           `json:"topK,omitempty"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Role          string               `json:"role"`
	Content       string               `json:"content"`
	ToolsUsed     []string             `json:"toolsUsed,omitempty"`
	ToolResponses []tools.ToolResponse `json:"toolResponses,omitempty"`
	RAGContext    []string             `json:"ragContext,omitempty"`
}

// ChatService answers general Kubernetes questions, optionally grounded
// in retrieved documentation and live cluster tools.
type ChatService struct {
	provider  llm.Provider
	retriever Retriever
	processor QueryProcessor
	logger    log.Logger
}

// NewChatService creates the chat service. retriever and processor may be
// nil; the corresponding features then silently stay off.
func NewChatService(provider llm.Provider, retriever Retriever, processor QueryProcessor, logger log.Logger) (*ChatService, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &ChatService{provider: provider, retriever: retriever, processor: processor, logger: logger}, nil
}

// SendChatMessage runs one chat turn. Retrieval failures degrade to a
// plain chat turn; they never fail the request.
func (s *ChatService) SendChatMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := validateQuery(req.Messages); err != nil {
		return nil, err
	}
	s.logger.Info("processing chat message",
		"enableTools", req.EnableTools, "enableRAG", req.EnableRAG, "messageCount", len(req.Messages))

	// Context injected on earlier turns is stripped from the history and
	// folded back into the system prompt; a fresh retrieval supersedes it.
	history, priorContext := splitRAGContext(req.Messages)

	systemPrompt := generalChatPrompt
	retrieved := s.retrieveContext(ctx, req)
	switch {
	case len(retrieved) > 0:
		systemPrompt = ragContextBlock(formatRetrieved(retrieved)) + sectionSeparator + generalChatPrompt
	case priorContext != "":
		systemPrompt = priorContext + sectionSeparator + generalChatPrompt
	}

	conversation := make([]llm.Message, 0, len(history)+1)
	conversation = append(conversation, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	conversation = append(conversation, history...)

	resp := &ChatResponse{Role: llm.RoleAssistant, RAGContext: contents(retrieved)}

	if req.EnableTools && s.processor != nil {
		s.logger.Info("processing chat with tools", "available", len(s.processor.AvailableTools(ctx)))
		result, err := s.processor.ProcessQuery(ctx, conversation)
		if err != nil {
			return nil, fmt.Errorf("failed to process chat message: %w", err)
		}
		resp.Content = fuseToolReply(result.Reply, result.ToolsUsed)
		resp.ToolsUsed = result.ToolsUsed
		resp.ToolResponses = result.Responses
		return resp, nil
	}

	reply, err := s.provider.SendMessage(ctx, conversation, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to process chat message: %w", err)
	}
	resp.Content = reply.Content
	return resp, nil
}

// retrieveContext searches the knowledge base for the latest user query.
func (s *ChatService) retrieveContext(ctx context.Context, req ChatRequest) []knowledge.RetrievedDocument {
	if !req.EnableRAG || s.retriever == nil {
		return nil
	}
	query := lastUserQuery(req.Messages)
	if query == "" {
		return nil
	}

	opts := []knowledge.SearchOption{}
	if req.TopK > 0 {
		opts = append(opts, knowledge.WithTopK(req.TopK))
	}
	docs, err := s.retriever.Search(ctx, query, opts...)
	if err != nil {
		s.logger.Warn("rag context retrieval failed", "error", err)
		return nil
	}
	if len(docs) > 0 {
		s.logger.Info("retrieved rag context", "chunks", len(docs))
	}
	return docs
}
