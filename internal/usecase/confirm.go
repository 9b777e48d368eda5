package usecase

import "strings"

var affirmativeWords = []string{
	"yes", "y", "yeah", "yep", "yup", "ok", "okay", "sure", "confirm",
	"go ahead", "do it", "proceed", "affirmative",
}

var negativeWords = []string{
	"no", "n", "nope", "nah", "cancel", "stop", "abort",
	"never mind", "nevermind", "forget it", "don't", "dont",
}

func isAffirmative(text string) bool { return matchesWord(text, affirmativeWords) }

func isNegative(text string) bool { return matchesWord(text, negativeWords) }

// matchesWord reports whether text is one of words or starts with one
// followed by a space ("yes please", "no thanks").
func matchesWord(text string, words []string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	lower = strings.TrimRight(lower, ".!?, ")
	if lower == "" {
		return false
	}
	for _, w := range words {
		if lower == w || strings.HasPrefix(lower, w+" ") || strings.HasPrefix(lower, w+",") {
			return true
		}
	}
	return false
}
