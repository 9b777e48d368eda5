// Package resolver maps pronouns and list ordinals onto books remembered in
// the sender's conversation context. It never mutates the context.
package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"book-sms-agent/internal/domain"
)

// Resolution is the book a reference points at.
type Resolution struct {
	BookID int
	Title  string
}

// LastPosition is returned by ListPosition for "last".
const LastPosition = -1

const (
	ReasonNoContext    = "no_context"
	ReasonNoLastBook   = "no_last_book"
	ReasonNoResults    = "no_results"
	ReasonOutOfRange   = "out_of_range"
	ReasonNotReference = "not_a_reference"
)

var pronouns = map[string]struct{}{
	"it":        {},
	"that":      {},
	"this book": {},
	"that book": {},
	"this one":  {},
	"that one":  {},
}

var trimSet = " \t\r\n\"'“”‘’.,!?;:"

func normalize(text string) string {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(text), trimSet))
	return strings.Join(strings.Fields(s), " ")
}

// IsPronoun reports whether text is one of the pronoun phrases.
func IsPronoun(text string) bool {
	_, ok := pronouns[normalize(text)]
	return ok
}

// ResolvePronoun resolves a pronoun against conv. Text that is not a pronoun
// returns (nil, nil). A nil conv means the sender has no live context.
func ResolvePronoun(text string, conv *domain.ConversationContext) (*Resolution, error) {
	if !IsPronoun(text) {
		return nil, nil
	}
	if conv == nil {
		return nil, domain.NewError(domain.ErrorAmbiguousReference, ReasonNoContext,
			"I'm not sure which book you mean. Please include the title.", nil)
	}
	if !conv.HasLastBook() {
		return nil, domain.NewError(domain.ErrorAmbiguousReference, ReasonNoLastBook,
			"Which book do you mean? Please specify the title.", nil)
	}
	return &Resolution{BookID: conv.LastBookID, Title: conv.LastBookTitle}, nil
}

var ordinalWords = map[string]int{
	"first":  1,
	"second": 2,
	"third":  3,
	"fourth": 4,
	"fifth":  5,
	"last":   LastPosition,
}

var (
	ordinalWordRe = regexp.MustCompile(`\b(first|second|third|fourth|fifth|last)\b`)
	nthRe         = regexp.MustCompile(`\b([1-5])(?:st|nd|rd|th)\b`)
	hashRe        = regexp.MustCompile(`#\s*(\d{1,2})\b`)
	numberRe      = regexp.MustCompile(`\b(?:number|no\.?|num)\s*(\d{1,2})\b`)
	bareRe        = regexp.MustCompile(`^(?:the\s+)?(\d{1,2})(?:\s+(?:one|book))?$`)
	wholeRefRe    = regexp.MustCompile(`^(?:the\s+)?(?:first|second|third|fourth|fifth|last|[1-5](?:st|nd|rd|th)|#\s*\d{1,2}|(?:number|no\.?)\s*\d{1,2}|\d{1,2})(?:\s+(?:one|book|result))?$`)
)

// IsListReference reports whether the whole of text is an ordinal phrase
// such as "the second one" or "#3". Titles that merely contain an ordinal
// word do not count.
func IsListReference(text string) bool {
	return wholeRefRe.MatchString(normalize(text))
}

// ListPosition extracts a 1-based list position from text. "last" yields
// LastPosition.
func ListPosition(text string) (int, bool) {
	s := normalize(text)
	if s == "" {
		return 0, false
	}
	if m := nthRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if m := hashRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, n > 0
	}
	if m := numberRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, n > 0
	}
	if m := bareRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, n > 0
	}
	if m := ordinalWordRe.FindStringSubmatch(s); m != nil {
		return ordinalWords[m[1]], true
	}
	return 0, false
}

// ResolveListReference picks an entry of conv.LastSearchResults by ordinal.
func ResolveListReference(text string, conv *domain.ConversationContext) (*Resolution, error) {
	pos, ok := ListPosition(text)
	if !ok {
		return nil, domain.NewError(domain.ErrorAmbiguousReference, ReasonNotReference,
			"Which result do you mean? Reply with a number like \"2\".", nil)
	}
	if conv == nil || len(conv.LastSearchResults) == 0 {
		return nil, domain.NewError(domain.ErrorAmbiguousReference, ReasonNoResults,
			"There's no list to pick from. Try a search first, like \"unread fantasy\".", nil)
	}
	results := conv.LastSearchResults
	if pos == LastPosition {
		pos = len(results)
	}
	if pos < 1 || pos > len(results) {
		return nil, domain.NewError(domain.ErrorAmbiguousReference, ReasonOutOfRange,
			fmt.Sprintf("Only %d %s available.", len(results), plural(len(results), "result", "results")), nil)
	}
	r := results[pos-1]
	return &Resolution{BookID: r.ID, Title: r.Title}, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
