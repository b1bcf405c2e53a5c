package link

import "strings"

const hookMaxWords = 7

// DeriveHook produces a short teaser for a link: the first few words of
// the summary, falling back to the first key point. Returns "" when
// neither is available.
func DeriveHook(summary string, keyPoints []string) string {
	if w := firstWords(summary, hookMaxWords); w != "" {
		return w
	}
	if len(keyPoints) > 0 {
		return firstWords(keyPoints[0], hookMaxWords)
	}
	return ""
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
