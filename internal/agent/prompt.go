package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clinvoy/secretary/internal/tools"
)

// toolDescriptions maps tool names to the one-line description shown to the
// model. Keep these short; the model only needs to pick, not to learn.
var toolDescriptions = map[tools.ToolType]string{
	tools.ToolWebSearch:  `Search the web. Params: {"query": "search terms"}`,
	tools.ToolBrainTumor: `Classify a brain scan image (notumor, meningioma, ...). Params: {"image_path": "path to the image"}`,
}

// SystemPrompt returns the agent's system prompt advertising the registered
// tools and the calling convention.
func SystemPrompt(registered []tools.ToolType) string {
	names := make([]string, 0, len(registered))
	for _, t := range registered {
		names = append(names, string(t))
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("You are a medical research assistant working on behalf of a doctor.\n")
	sb.WriteString("You can call tools. To call a tool, reply with exactly:\n")
	sb.WriteString("<tool>tool_name</tool><params>{\"key\": \"value\"}</params>\n")
	sb.WriteString("Call at most one tool per reply. When you have enough information, reply with your final answer as plain text and no tool call.\n\n")
	sb.WriteString("Available tools:\n")
	for _, name := range names {
		if desc, ok := toolDescriptions[tools.ToolType(name)]; ok {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", name, desc))
		} else {
			sb.WriteString(fmt.Sprintf("- %s\n", name))
		}
	}
	sb.WriteString("\nIf you used web search, your final answer MUST list the source URLs you relied on.\n")
	return sb.String()
}
