package intent

import (
	"regexp"
	"strings"

	"book-sms-agent/internal/domain"
)

// RequestFor captures single-book params so the action can be finished by
// the next message. Other params report false.
func RequestFor(p Params) (domain.PendingRequest, bool) {
	r := domain.PendingRequest{}
	var ref BookRef
	switch v := p.(type) {
	case *UpdateProgressParams:
		ref = v.Book
		r.PageNumber = cloneInt(v.PageNumber)
		r.Percentage = cloneInt(v.Percentage)
	case *FinishBookParams:
		ref = v.Book
		r.Rating = cloneInt(v.Rating)
	case *StartBookParams:
		ref = v.Book
	case *RateBookParams:
		ref = v.Book
		r.Rating = cloneInt(v.Rating)
	case *BookDetailsParams:
		ref = v.Book
	case *DeleteBookParams:
		ref = v.Book
	default:
		return domain.PendingRequest{}, false
	}
	r.Intent = p.Intent()
	r.BookID, r.BookTitle = ref.ID, ref.Title
	return r, true
}

// ParamsForRequest rebuilds the params a held request stands for.
func ParamsForRequest(r domain.PendingRequest) Params {
	ref := BookRef{ID: r.BookID, Title: r.BookTitle}
	switch r.Intent {
	case domain.IntentUpdateProgress:
		return &UpdateProgressParams{Book: ref, PageNumber: cloneInt(r.PageNumber), Percentage: cloneInt(r.Percentage)}
	case domain.IntentFinishBook:
		return &FinishBookParams{Book: ref, Rating: cloneInt(r.Rating)}
	case domain.IntentStartBook:
		return &StartBookParams{Book: ref}
	case domain.IntentRateBook:
		return &RateBookParams{Book: ref, Rating: cloneInt(r.Rating)}
	case domain.IntentBookDetails:
		return &BookDetailsParams{Book: ref}
	case domain.IntentDeleteBook:
		return &DeleteBookParams{Book: ref}
	default:
		return &UnknownParams{}
	}
}

var (
	bareRatingRe  = regexp.MustCompile(`^(?:give\s+it\s+|rate\s+it\s+)?(?:a\s+)?(\d{1,2})\s*(?:stars?|/\s*5|out\s+of\s+5)?$`)
	barePageRe    = regexp.MustCompile(`^(?:(?:i'?m\s+|im\s+)?(?:on|at)\s+)?(?:page|pg|p\.?)?\s*(\d{1,6})$`)
	barePercentRe = regexp.MustCompile(`^(?:(?:i'?m\s+|im\s+)?(?:at\s+)?)?(\d{1,3})\s*(?:%|percent)$`)
)

// FillRequest completes r from a reply that carries only the missing value:
// a star rating for rate_book or a page or percentage for update_progress.
// Out of range ratings are kept so the handler can reject them.
func FillRequest(r domain.PendingRequest, text string) (Params, bool) {
	lower := strings.ToLower(strings.TrimSpace(strings.TrimRight(strings.TrimSpace(text), ".!")))
	switch r.Intent {
	case domain.IntentRateBook:
		if !r.HasBook() || r.Rating != nil {
			return nil, false
		}
		sm := bareRatingRe.FindStringSubmatch(lower)
		if sm == nil {
			return nil, false
		}
		n := positiveInt(sm[1])
		if n == nil {
			return nil, false
		}
		r.Rating = n
	case domain.IntentUpdateProgress:
		if r.PageNumber != nil || r.Percentage != nil {
			return nil, false
		}
		if sm := barePercentRe.FindStringSubmatch(lower); sm != nil {
			r.Percentage = percentInt(sm[1])
		} else if sm := barePageRe.FindStringSubmatch(lower); sm != nil {
			r.PageNumber = positiveInt(sm[1])
		}
		if r.PageNumber == nil && r.Percentage == nil {
			return nil, false
		}
	default:
		return nil, false
	}
	return ParamsForRequest(r), true
}

// NameBook completes r with a reply taken as the book title. It applies
// only while r still lacks a book.
func NameBook(r domain.PendingRequest, text string) (Params, bool) {
	if r.HasBook() {
		return nil, false
	}
	title := cleanTitle(text)
	if title == "" {
		return nil, false
	}
	r.BookTitle = title
	return ParamsForRequest(r), true
}

// ResultFor wraps params built outside the classifiers, such as a completed
// request, with the follow-up question for any slot still empty.
func ResultFor(raw string, p Params) ClassificationResult {
	return newResult(raw, confidenceCommand, p)
}

// MissingSlotQuestion returns the follow-up for the first empty required
// slot of p, or "".
func MissingSlotQuestion(p Params) string {
	return missingSlotQuestion(p)
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	n := *p
	return &n
}
