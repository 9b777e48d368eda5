package usecase

import "strings"

var envelopeEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// FormatEnvelope wraps message in the SMS webhook reply document. An empty
// message yields an empty response so nothing is sent.
func FormatEnvelope(message string) string {
	if message == "" {
		return "<Response></Response>"
	}
	return "<Response><Message>" + envelopeEscaper.Replace(message) + "</Message></Response>"
}

// NormalizeSender reduces phone-number-like ids to their digits so
// "+1 (555) 010-2000" and "15550102000" share a context. Other ids are
// only trimmed.
func NormalizeSender(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	var digits strings.Builder
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.' || r == ' ':
		default:
			return id
		}
	}
	if digits.Len() == 0 {
		return id
	}
	return digits.String()
}
