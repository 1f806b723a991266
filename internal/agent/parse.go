package agent

import (
	"encoding/json"
	"strings"
)

// ToolCall represents a request to execute a tool.
type ToolCall struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

// ParseToolCalls extracts tool calls from LLM response text.
// Looks for the canonical pattern: <tool>tool_name</tool><params>{"key": "value"}</params>
// Returns the calls and the response text with the call markup removed.
func ParseToolCalls(response string) ([]*ToolCall, string) {
	var calls []*ToolCall
	cleanedResponse := response

	for {
		toolStart := strings.Index(cleanedResponse, "<tool>")
		if toolStart == -1 {
			break
		}

		toolEnd := strings.Index(cleanedResponse[toolStart:], "</tool>")
		if toolEnd == -1 {
			break
		}
		toolEnd += toolStart

		paramsStart := strings.Index(cleanedResponse[toolEnd:], "<params>")
		if paramsStart == -1 {
			break
		}
		paramsStart += toolEnd

		paramsEnd := strings.Index(cleanedResponse[paramsStart:], "</params>")
		if paramsEnd == -1 {
			break
		}
		paramsEnd += paramsStart

		toolName := cleanedResponse[toolStart+len("<tool>") : toolEnd]
		paramsJSON := cleanedResponse[paramsStart+len("<params>") : paramsEnd]

		// Clean up common model output slips around the params object.
		paramsJSON = strings.TrimSpace(paramsJSON)
		paramsJSON = strings.TrimSuffix(paramsJSON, ">")
		paramsJSON = strings.TrimPrefix(paramsJSON, "<")

		var params map[string]string
		if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
			// Salvage the inner JSON object if the model wrapped it in prose.
			if start := strings.Index(paramsJSON, "{"); start >= 0 {
				if end := strings.LastIndex(paramsJSON, "}"); end > start {
					if err2 := json.Unmarshal([]byte(paramsJSON[start:end+1]), &params); err2 != nil {
						params = make(map[string]string)
					}
				}
			}
			if params == nil {
				params = make(map[string]string)
			}
		}

		calls = append(calls, &ToolCall{
			Name:   strings.TrimSpace(toolName),
			Params: params,
		})

		cleanedResponse = cleanedResponse[:toolStart] + cleanedResponse[paramsEnd+len("</params>"):]
	}

	return calls, strings.TrimSpace(cleanedResponse)
}
