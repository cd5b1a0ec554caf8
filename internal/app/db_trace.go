package app

import (
	"regexp"
	"strings"
)

const maxTracedQueryLength = 512

// Profile ids are user ids; literals are masked before a query lands in a span.
var queryStringLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)

func formatDBQueryForTrace(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	normalized = queryStringLiteral.ReplaceAllString(normalized, "'?'")
	if len(normalized) <= maxTracedQueryLength {
		return normalized
	}
	return normalized[:maxTracedQueryLength] + "..."
}
