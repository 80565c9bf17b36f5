package assist

import (
	"context"
	"fmt"

	"github.com/kubesage/kubesage/internal/llm"
	"github.com/kubesage/kubesage/internal/log"
	"github.com/kubesage/kubesage/internal/tools"
)

// LogRequest asks for an explanation of a workload's logs. Messages holds
// the conversation so far; on the initial turn its single user message
// (if any) refines the analysis instruction.
type LogRequest struct {
	Messages     []llm.Message `json:"messages"`
	ResourceType string        `json:"resourceType"`
	ResourceName string        `json:"resourceName"`
	Namespace    string        `json:"namespace"`
	LogType      string        `json:"logType"` // "stdout" or "stderr"
}

// LogResponse is the analysis reply.
type LogResponse struct {
	Role          string               `json:"role"`
	Content       string               `json:"content"`
	ToolsUsed     []string             `json:"toolsUsed"`
	ToolResponses []tools.ToolResponse `json:"toolResponses"`
}

// LogService explains workload logs. It never receives logs directly: the
// model fetches them itself through the cluster tools.
type LogService struct {
	processor QueryProcessor
	logger    log.Logger
}

// NewLogService creates the log analysis service.
func NewLogService(processor QueryProcessor, logger log.Logger) (*LogService, error) {
	if processor == nil {
		return nil, fmt.Errorf("query processor is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &LogService{processor: processor, logger: logger}, nil
}

// IsConnected reports whether any cluster tools are available.
func (s *LogService) IsConnected(ctx context.Context) bool {
	return len(s.processor.AvailableTools(ctx)) > 0
}

// AnalyzeLogs runs one log analysis turn. The initial turn synthesizes
// the system context and fetch instruction from the request fields;
// follow-up turns replay the conversation as-is.
func (s *LogService) AnalyzeLogs(ctx context.Context, req LogRequest) (*LogResponse, error) {
	if req.ResourceName == "" {
		return nil, fmt.Errorf("%w: resource name is required", ErrNoQuery)
	}

	var conversation []llm.Message
	initial := len(req.Messages) == 0 || isInitialTurn(req.Messages)
	if initial {
		conversation = s.initialMessages(req)
	} else {
		conversation = req.Messages
	}

	s.logger.Info("processing log analysis",
		"resource", req.ResourceType+"/"+req.ResourceName,
		"namespace", req.Namespace,
		"initial", initial)

	result, err := s.processor.ProcessQuery(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze logs: %w", err)
	}
	return &LogResponse{
		Role:          llm.RoleAssistant,
		Content:       result.Reply,
		ToolsUsed:     result.ToolsUsed,
		ToolResponses: result.Responses,
	}, nil
}

func (s *LogService) initialMessages(req LogRequest) []llm.Message {
	system := fmt.Sprintf(`%s

You have access to Kubernetes tools. Use the 'pods_log' tool to fetch logs for the requested resource and then analyze them.

Context:
- Resource: %s/%s
- Namespace: %s
- Log Type: %s`, logAnalysisPrompt, req.ResourceType, req.ResourceName, req.Namespace, req.LogType)

	instruction := "Identify any errors, warnings, or issues and provide troubleshooting guidance."
	if q := lastUserQuery(req.Messages); q != "" {
		instruction = q
	}
	stderrNote := ""
	if req.LogType == "stderr" {
		stderrNote = " (previous/stderr logs)"
	}
	user := fmt.Sprintf("Please fetch the logs for pod %q in namespace %q%s and analyze them. %s",
		req.ResourceName, req.Namespace, stderrNote, instruction)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user, Provenance: llm.ProvenanceUser},
	}
}
