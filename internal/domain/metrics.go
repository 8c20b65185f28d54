package domain

import "strings"

// MetricFunc derives an integer metric from document content. The editor
// layer may supply its own; WordCount is the default.
type MetricFunc func(content string) int

// WordCount counts whitespace-separated words in content.
func WordCount(content string) int {
	return len(strings.Fields(content))
}
