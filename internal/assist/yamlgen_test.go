package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kubesage/kubesage/internal/knowledge"
	"github.com/kubesage/kubesage/internal/llm"
	"github.com/kubesage/kubesage/internal/log"
)

func TestGenerateYAML(t *testing.T) {
	provider := &fakeProvider{reply: "```yaml\napiVersion: v1\nkind: Service\n```"}
	svc, err := NewYAMLService(provider, nil, log.NewNop())
	if err != nil {
		t.Fatalf("NewYAMLService() error: %v", err)
	}

	resp, err := svc.GenerateYAML(context.Background(), YAMLRequest{
		Messages: []llm.Message{user("a service for the web deployment")},
	})
	if err != nil {
		t.Fatalf("GenerateYAML() error: %v", err)
	}
	if len(resp.YAMLBlocks) != 1 || resp.YAMLBlocks[0] != "apiVersion: v1\nkind: Service" {
		t.Errorf("YAMLBlocks = %v", resp.YAMLBlocks)
	}

	sent := provider.conversations[0]
	if sent[0].Role != llm.RoleSystem || !strings.Contains(sent[0].Content, "YAML generation assistant") {
		t.Errorf("system prompt missing: %+v", sent[0])
	}
}

func TestGenerateYAMLEmptyQuery(t *testing.T) {
	svc, _ := NewYAMLService(&fakeProvider{}, nil, log.NewNop())
	if _, err := svc.GenerateYAML(context.Background(), YAMLRequest{}); !errors.Is(err, ErrNoQuery) {
		t.Fatalf("error = %v, want ErrNoQuery", err)
	}
}

func TestGenerateYAMLWithExamples(t *testing.T) {
	provider := &fakeProvider{reply: "```yaml\nkind: Deployment\n```"}
	retriever := &fakeRetriever{docs: []knowledge.RetrievedDocument{
		{
			Content: "apiVersion: apps/v1\nkind: Deployment",
			Score:   0.9,
			Metadata: map[string]string{
				"fileName":   "web.yaml",
				"format":     "yaml",
				"kind":       "Deployment",
				"apiVersion": "apps/v1",
			},
		},
		// A non-yaml hit that slipped through the store filter.
		{Content: "some markdown", Score: 0.8, Metadata: map[string]string{"format": "markdown"}},
	}}
	svc, _ := NewYAMLService(provider, retriever, log.NewNop())

	resp, err := svc.GenerateYAML(context.Background(), YAMLRequest{
		Messages:  []llm.Message{user("deployment like my existing one")},
		EnableRAG: true,
	})
	if err != nil {
		t.Fatalf("GenerateYAML() error: %v", err)
	}

	if len(resp.RAGContext) != 1 || resp.RAGContext[0] != "apiVersion: apps/v1\nkind: Deployment" {
		t.Errorf("RAGContext = %v, want non-yaml hit filtered out", resp.RAGContext)
	}

	system := provider.conversations[0][0].Content
	if !strings.Contains(system, "Example 1 - web.yaml:") {
		t.Errorf("example header missing: %q", system)
	}
	if !strings.Contains(system, "Kind: Deployment") || !strings.Contains(system, "ApiVersion: apps/v1") {
		t.Errorf("example metadata missing: %q", system)
	}
	if strings.Contains(system, "some markdown") {
		t.Error("non-yaml document leaked into the prompt")
	}
}

func TestGenerateYAMLFollowUpSkipsRetrieval(t *testing.T) {
	provider := &fakeProvider{reply: "updated"}
	retriever := &fakeRetriever{}
	svc, _ := NewYAMLService(provider, retriever, log.NewNop())

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "generation context"},
		user("a deployment"),
		{Role: llm.RoleAssistant, Content: "```yaml\nkind: Deployment\n```"},
		user("add a liveness probe"),
	}
	if _, err := svc.GenerateYAML(context.Background(), YAMLRequest{Messages: messages, EnableRAG: true}); err != nil {
		t.Fatalf("GenerateYAML() error: %v", err)
	}
	if retriever.gotCalled {
		t.Error("retrieval ran on a follow-up turn")
	}
	// Conversation replayed unchanged, no second system prompt.
	if len(provider.conversations[0]) != 4 {
		t.Errorf("conversation = %+v", provider.conversations[0])
	}
}

func TestGenerateYAMLRetrievalDegrades(t *testing.T) {
	provider := &fakeProvider{reply: "```yaml\nkind: Pod\n```"}
	retriever := &fakeRetriever{err: errors.New("store down")}
	svc, _ := NewYAMLService(provider, retriever, log.NewNop())

	resp, err := svc.GenerateYAML(context.Background(), YAMLRequest{
		Messages:  []llm.Message{user("a pod")},
		EnableRAG: true,
	})
	if err != nil {
		t.Fatalf("GenerateYAML() error: %v", err)
	}
	if len(resp.YAMLBlocks) != 1 {
		t.Errorf("YAMLBlocks = %v", resp.YAMLBlocks)
	}
}

func TestGenerateYAMLProviderFailure(t *testing.T) {
	svc, _ := NewYAMLService(&fakeProvider{err: errors.New("bad key")}, nil, log.NewNop())
	_, err := svc.GenerateYAML(context.Background(), YAMLRequest{Messages: []llm.Message{user("q")}})
	if err == nil || !strings.Contains(err.Error(), "failed to generate yaml") {
		t.Fatalf("error = %v", err)
	}
}

func TestExtractYAMLBlocks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			"single yaml block",
			"here:\n```yaml\nkind: Pod\n```\ndone",
			[]string{"kind: Pod"},
		},
		{
			"yml fence",
			"```yml\nkind: Service\n```",
			[]string{"kind: Service"},
		},
		{
			"multiple blocks",
			"```yaml\na: 1\n```\ntext\n```yaml\nb: 2\n```",
			[]string{"a: 1", "b: 2"},
		},
		{
			"other languages ignored",
			"```json\n{}\n```",
			nil,
		},
		{
			"no blocks",
			"plain text",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractYAMLBlocks(tt.content)
			if len(got) != len(tt.want) {
				t.Fatalf("extractYAMLBlocks() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("blocks[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
