package skill

import (
	"fmt"
	"strings"
)

const summaryMaxLen = 140

// SummarizeOffer produces the deterministic short form of an offer used in
// center rounds 2+: agent id, capability list, and the offer's first sentence
// truncated to a fixed length. No model call is involved.
func SummarizeOffer(agentID string, capabilities []string, content string) string {
	sentence := firstSentence(content)
	if len(sentence) > summaryMaxLen {
		sentence = sentence[:summaryMaxLen-3] + "..."
	}
	if len(capabilities) > 0 {
		return fmt.Sprintf("%s [%s]: %s", agentID, strings.Join(capabilities, ", "), sentence)
	}
	return fmt.Sprintf("%s: %s", agentID, sentence)
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "\n"); i != -1 {
		text = text[:i]
	}
	if i := strings.Index(text, ". "); i != -1 {
		return text[:i+1]
	}
	return text
}
