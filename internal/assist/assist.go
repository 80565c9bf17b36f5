// Package assist implements the assistant features on top of the
// retrieval, chat and tool layers: general chat, log analysis and YAML
// generation.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kubesage/kubesage/internal/knowledge"
	"github.com/kubesage/kubesage/internal/llm"
	"github.com/kubesage/kubesage/internal/tools"
)

// ErrNoQuery indicates a request without a usable user query.
var ErrNoQuery = errors.New("no query provided")

// sectionSeparator joins independent blocks of prompt or reply text.
const sectionSeparator = "\n\n---\n\n"

// Retriever is the slice of the knowledge service the assistant needs.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.RetrievedDocument, error)
}

// QueryProcessor runs tool-calling conversations. *tools.Processor
// satisfies it.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, messages []llm.Message) (*tools.Result, error)
	AvailableTools(ctx context.Context) []llm.ToolDefinition
}

// TagInjectedContext marks a leading untagged system message as injected
// retrieval context. Wire clients that predate provenance tagging send
// the context block back as a bare system message at the head of the
// history; already-tagged histories pass through unchanged.
func TagInjectedContext(messages []llm.Message) []llm.Message {
	if len(messages) == 0 || messages[0].Role != llm.RoleSystem || messages[0].Provenance != "" {
		return messages
	}
	out := append([]llm.Message(nil), messages...)
	out[0].Provenance = llm.ProvenanceRAGContext
	return out
}

// splitRAGContext separates previously injected context messages from the
// turns the user and assistant actually exchanged. The stripped context is
// returned as one block so callers can fold it back into the system
// prompt.
func splitRAGContext(messages []llm.Message) ([]llm.Message, string) {
	history := make([]llm.Message, 0, len(messages))
	var blocks []string
	for _, m := range messages {
		if m.Provenance == llm.ProvenanceRAGContext {
			if m.Content != "" {
				blocks = append(blocks, m.Content)
			}
			continue
		}
		history = append(history, m)
	}
	return history, strings.Join(blocks, sectionSeparator)
}

// validateQuery rejects conversations that carry no user query before any
// provider is called.
func validateQuery(messages []llm.Message) error {
	if len(messages) == 0 {
		return ErrNoQuery
	}
	if strings.TrimSpace(messages[len(messages)-1].Content) == "" {
		return ErrNoQuery
	}
	return nil
}

// lastUserQuery returns the content of the most recent message the user
// actually typed, or "" if there is none.
func lastUserQuery(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role == llm.RoleUser && m.Provenance != llm.ProvenanceRAGContext {
			return m.Content
		}
	}
	return ""
}

// isInitialTurn reports whether the conversation is on its first exchange:
// exactly one typed user message and no assistant reply yet.
func isInitialTurn(messages []llm.Message) bool {
	if llm.CountUserMessages(messages) != 1 {
		return false
	}
	for _, m := range messages {
		if m.Role == llm.RoleAssistant {
			return false
		}
	}
	return true
}

// formatRetrieved renders retrieved documents for prompt injection, most
// relevant first.
func formatRetrieved(docs []knowledge.RetrievedDocument) string {
	sections := make([]string, len(docs))
	for i, doc := range docs {
		var b strings.Builder
		fmt.Fprintf(&b, "[Document %d (relevance: %.1f%%)]\n", i+1, doc.Score*100)

		fileName := doc.Metadata["fileName"]
		if fileName == "" {
			fileName = "Unknown"
		}
		fmt.Fprintf(&b, "Source: %s\n", fileName)
		if format := doc.Metadata["format"]; format != "" {
			fmt.Fprintf(&b, "Format: %s\n", format)
		}
		if idx, err := strconv.Atoi(doc.Metadata["chunkIndex"]); err == nil {
			fmt.Fprintf(&b, "Chunk: %d/%s\n", idx+1, doc.Metadata["totalChunks"])
		}
		fmt.Fprintf(&b, "\nContent:\n%s", doc.Content)
		sections[i] = b.String()
	}
	return strings.Join(sections, sectionSeparator)
}

// ragContextBlock wraps formatted documents with retrieval instructions.
func ragContextBlock(formatted string) string {
	return fmt.Sprintf(`Relevant documentation context retrieved from vector store:

%s

Instructions:
- Use this context to provide accurate and detailed answers
- Cite specific documents when appropriate
- If the context doesn't fully answer the question, combine it with your general knowledge`, formatted)
}

// fuseToolReply prefixes a reply with the names of the tools that
// produced it.
func fuseToolReply(reply string, toolsUsed []string) string {
	if len(toolsUsed) == 0 {
		return reply
	}
	return "**Tools used:** " + strings.Join(toolsUsed, ", ") + sectionSeparator + reply
}

// contents extracts the raw text of retrieved documents, preserving
// order.
func contents(docs []knowledge.RetrievedDocument) []string {
	if len(docs) == 0 {
		return nil
	}
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc.Content
	}
	return out
}
