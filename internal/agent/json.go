package agent

import (
	"encoding/json"
	"strings"
)

// cleanJSONResponse strips markdown fences and surrounding prose from an LLM
// reply, leaving the outermost JSON object.
func cleanJSONResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		response = response[start : end+1]
	}

	return strings.TrimSpace(response)
}

// parseJSONResponse parses a potentially messy AI JSON response.
func parseJSONResponse(response string, target interface{}) error {
	return json.Unmarshal([]byte(cleanJSONResponse(response)), target)
}
