package utils

import (
	"encoding/json"
	"html"
	"net/http"
	"strings"
)

func HandleError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// CleanCaption decodes the HTML entities left in caption text once the XML
// layer has been parsed, and collapses runs of whitespace, including line
// breaks, into single spaces.
func CleanCaption(text string) string {
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

// Truncate shortens text to at most max runes, appending an ellipsis when cut.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
