package assist

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kubesage/kubesage/internal/knowledge"
	"github.com/kubesage/kubesage/internal/llm"
	"github.com/kubesage/kubesage/internal/log"
)

// yamlBlockPattern matches fenced yaml/yml code blocks in a reply.
var yamlBlockPattern = regexp.MustCompile("(?s)```(?:yaml|yml)\n(.*?)```")

// YAMLRequest asks for Kubernetes manifests.
type YAMLRequest struct {
	Messages  []llm.Message `json:"messages"`
	EnableRAG bool          `json:"enableRAG"`
	TopK      int           `json:"topK,omitempty"`
}

// YAMLResponse is the generation reply. YAMLBlocks holds every fenced
// yaml block extracted from Content.
type YAMLResponse struct {
	Role       string   `json:"role"`
	Content    string   `json:"content"`
	YAMLBlocks []string `json:"yamlBlocks"`
	RAGContext []string `json:"ragContext"`
}

// YAMLService generates Kubernetes manifests, optionally seeded with
// example manifests from the knowledge base.
type YAMLService struct {
	provider  llm.Provider
	retriever Retriever
	logger    log.Logger
}

// NewYAMLService creates the YAML generation service. retriever may be
// nil.
func NewYAMLService(provider llm.Provider, retriever Retriever, logger log.Logger) (*YAMLService, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &YAMLService{provider: provider, retriever: retriever, logger: logger}, nil
}

// GenerateYAML runs one generation turn. Example retrieval happens only
// on the initial turn; follow-ups replay the conversation, which already
// carries the system context.
func (s *YAMLService) GenerateYAML(ctx context.Context, req YAMLRequest) (*YAMLResponse, error) {
	if err := validateQuery(req.Messages); err != nil {
		return nil, err
	}

	initial := isInitialTurn(req.Messages)
	s.logger.Info("generating yaml", "enableRAG", req.EnableRAG, "initial", initial, "messageCount", len(req.Messages))

	var conversation []llm.Message
	var examples []knowledge.RetrievedDocument
	if initial {
		systemPrompt := yamlGenerationPrompt
		examples = s.retrieveExamples(ctx, req)
		if len(examples) > 0 {
			systemPrompt = examplesPrompt(examples)
		}
		conversation = append([]llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}, req.Messages...)
	} else {
		conversation = req.Messages
	}

	reply, err := s.provider.SendMessage(ctx, conversation, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate yaml: %w", err)
	}

	return &YAMLResponse{
		Role:       llm.RoleAssistant,
		Content:    reply.Content,
		YAMLBlocks: extractYAMLBlocks(reply.Content),
		RAGContext: contents(examples),
	}, nil
}

// retrieveExamples searches for manifest examples. The store filters by
// format, and the result is filtered again in case a backend treats the
// filter as advisory.
func (s *YAMLService) retrieveExamples(ctx context.Context, req YAMLRequest) []knowledge.RetrievedDocument {
	if !req.EnableRAG || s.retriever == nil {
		return nil
	}
	query := lastUserQuery(req.Messages)
	if query == "" {
		return nil
	}

	opts := []knowledge.SearchOption{knowledge.WithFilter(map[string]string{"format": "yaml"})}
	if req.TopK > 0 {
		opts = append(opts, knowledge.WithTopK(req.TopK))
	}
	docs, err := s.retriever.Search(ctx, query, opts...)
	if err != nil {
		s.logger.Warn("yaml example retrieval failed", "error", err)
		return nil
	}

	yamlDocs := docs[:0:0]
	for _, doc := range docs {
		if doc.Metadata["format"] == "yaml" {
			yamlDocs = append(yamlDocs, doc)
		}
	}
	if len(yamlDocs) > 0 {
		s.logger.Info("retrieved yaml examples", "count", len(yamlDocs))
	}
	return yamlDocs
}

// examplesPrompt enhances the generation prompt with retrieved manifests.
func examplesPrompt(examples []knowledge.RetrievedDocument) string {
	sections := make([]string, len(examples))
	for i, doc := range examples {
		fileName := doc.Metadata["fileName"]
		if fileName == "" {
			fileName = "Unknown"
		}
		kind := doc.Metadata["kind"]
		if kind == "" {
			kind = "Resource"
		}
		sections[i] = fmt.Sprintf("Example %d - %s:\nKind: %s\nApiVersion: %s\n\n%s",
			i+1, fileName, kind, doc.Metadata["apiVersion"], doc.Content)
	}

	return fmt.Sprintf(`%s

IMPORTANT - Reference Examples:
You have access to the following YAML examples from the user's knowledge base. Use these as reference patterns when generating new manifests:

%s

Use these examples to:
- Match the style and structure
- Apply similar best practices
- Maintain consistent naming conventions
- Follow the same patterns for labels, annotations, and configurations

Generate new YAML that follows these patterns while adapting to the user's specific requirements.`,
		yamlGenerationPrompt, strings.Join(sections, sectionSeparator))
}

// extractYAMLBlocks pulls the contents of fenced yaml blocks, trimmed.
func extractYAMLBlocks(content string) []string {
	matches := yamlBlockPattern.FindAllStringSubmatch(content, -1)
	blocks := make([]string, 0, len(matches))
	for _, match := range matches {
		blocks = append(blocks, strings.TrimSpace(match[1]))
	}
	return blocks
}
