package intent

import (
	"strings"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/query"
)

// Params is the intent-specific payload of a classification. Each intent has
// exactly one concrete pointer type.
type Params interface {
	Intent() domain.Intent
}

// BookReferrer is implemented by params that point at books. The titles may
// be pronouns or ordinal phrases until the orchestrator resolves them.
type BookReferrer interface {
	BookRefs() []*BookRef
}

// BookRef identifies a book by id once resolved, or by free-text title.
type BookRef struct {
	ID    int
	Title string
}

func (r BookRef) IsEmpty() bool {
	return r.ID == 0 && strings.TrimSpace(r.Title) == ""
}

// Timeframe is a relative period for time queries.
type Timeframe string

const (
	TimeframeThisYear  Timeframe = "this_year"
	TimeframeLastYear  Timeframe = "last_year"
	TimeframeThisMonth Timeframe = "this_month"
	TimeframeLastMonth Timeframe = "last_month"
)

func ParseTimeframe(s string) (Timeframe, bool) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case TimeframeThisYear, TimeframeLastYear, TimeframeThisMonth, TimeframeLastMonth:
		return tf, true
	default:
		return "", false
	}
}

type UpdateProgressParams struct {
	Book       BookRef
	PageNumber *int
	Percentage *int
}

type FinishBookParams struct {
	Book   BookRef
	Rating *int
}

type StartBookParams struct {
	Book BookRef
}

type RateBookParams struct {
	Book   BookRef
	Rating *int
}

type BookDetailsParams struct {
	Book BookRef
}

type DeleteBookParams struct {
	Book BookRef
}

type SearchBooksParams struct {
	Query   string
	Filters query.ParsedFilters
	Page    int
}

type RecommendBooksParams struct {
	Genre string
}

type CompareBooksParams struct {
	Books []BookRef
}

type TimeQueryParams struct {
	Year      *int
	Month     *int
	Timeframe Timeframe
}

type CurrentReadingParams struct{}

type AddBookParams struct {
	Title  string
	Author string
	Genre  string
	Pages  *int
}

type ListReferenceParams struct {
	Reference string
}

type PaginationParams struct {
	Next bool
}

type HelpParams struct{}

type UnknownParams struct{}

func (*UpdateProgressParams) Intent() domain.Intent { return domain.IntentUpdateProgress }
func (*FinishBookParams) Intent() domain.Intent     { return domain.IntentFinishBook }
func (*StartBookParams) Intent() domain.Intent      { return domain.IntentStartBook }
func (*RateBookParams) Intent() domain.Intent       { return domain.IntentRateBook }
func (*BookDetailsParams) Intent() domain.Intent    { return domain.IntentBookDetails }
func (*DeleteBookParams) Intent() domain.Intent     { return domain.IntentDeleteBook }
func (*SearchBooksParams) Intent() domain.Intent    { return domain.IntentSearchBooks }
func (*RecommendBooksParams) Intent() domain.Intent { return domain.IntentRecommendBooks }
func (*CompareBooksParams) Intent() domain.Intent   { return domain.IntentCompareBooks }
func (*TimeQueryParams) Intent() domain.Intent      { return domain.IntentTimeQuery }
func (*CurrentReadingParams) Intent() domain.Intent { return domain.IntentCurrentReading }
func (*AddBookParams) Intent() domain.Intent        { return domain.IntentAddBook }
func (*ListReferenceParams) Intent() domain.Intent  { return domain.IntentListReference }
func (*HelpParams) Intent() domain.Intent           { return domain.IntentHelp }
func (*UnknownParams) Intent() domain.Intent        { return domain.IntentUnknown }

func (p *PaginationParams) Intent() domain.Intent {
	if p.Next {
		return domain.IntentPaginationNext
	}
	return domain.IntentPaginationPrevious
}

func (p *UpdateProgressParams) BookRefs() []*BookRef { return []*BookRef{&p.Book} }
func (p *FinishBookParams) BookRefs() []*BookRef     { return []*BookRef{&p.Book} }
func (p *StartBookParams) BookRefs() []*BookRef      { return []*BookRef{&p.Book} }
func (p *RateBookParams) BookRefs() []*BookRef       { return []*BookRef{&p.Book} }
func (p *BookDetailsParams) BookRefs() []*BookRef    { return []*BookRef{&p.Book} }
func (p *DeleteBookParams) BookRefs() []*BookRef     { return []*BookRef{&p.Book} }

func (p *CompareBooksParams) BookRefs() []*BookRef {
	out := make([]*BookRef, len(p.Books))
	for i := range p.Books {
		out[i] = &p.Books[i]
	}
	return out
}

// ParamsFor returns empty params for in.
func ParamsFor(in domain.Intent) Params {
	switch in {
	case domain.IntentUpdateProgress:
		return &UpdateProgressParams{}
	case domain.IntentFinishBook:
		return &FinishBookParams{}
	case domain.IntentStartBook:
		return &StartBookParams{}
	case domain.IntentRateBook:
		return &RateBookParams{}
	case domain.IntentBookDetails:
		return &BookDetailsParams{}
	case domain.IntentDeleteBook:
		return &DeleteBookParams{}
	case domain.IntentSearchBooks:
		return &SearchBooksParams{}
	case domain.IntentRecommendBooks:
		return &RecommendBooksParams{}
	case domain.IntentCompareBooks:
		return &CompareBooksParams{}
	case domain.IntentTimeQuery:
		return &TimeQueryParams{}
	case domain.IntentCurrentReading:
		return &CurrentReadingParams{}
	case domain.IntentAddBook:
		return &AddBookParams{}
	case domain.IntentListReference:
		return &ListReferenceParams{}
	case domain.IntentPaginationNext:
		return &PaginationParams{Next: true}
	case domain.IntentPaginationPrevious:
		return &PaginationParams{}
	case domain.IntentHelp:
		return &HelpParams{}
	default:
		return &UnknownParams{}
	}
}

// ClassificationResult is the outcome of classifying one message.
type ClassificationResult struct {
	Intent           domain.Intent
	Confidence       float64
	Params           Params
	RawMessage       string
	NeedsMoreInfo    bool
	FollowUpQuestion string
}

func newResult(raw string, confidence float64, p Params) ClassificationResult {
	r := ClassificationResult{
		Intent:     p.Intent(),
		Confidence: confidence,
		Params:     p,
		RawMessage: raw,
	}
	if q := missingSlotQuestion(p); q != "" {
		r.NeedsMoreInfo = true
		r.FollowUpQuestion = q
	}
	return r
}

// missingSlotQuestion returns the follow-up for the first empty required
// slot of p, or "".
func missingSlotQuestion(p Params) string {
	switch v := p.(type) {
	case *UpdateProgressParams:
		if v.PageNumber == nil && v.Percentage == nil {
			return "What page are you on? You can also send a percentage, like \"40%\"."
		}
	case *FinishBookParams:
		if v.Book.IsEmpty() {
			return "Which book did you finish?"
		}
	case *StartBookParams:
		if v.Book.IsEmpty() {
			return "Which book are you starting?"
		}
	case *RateBookParams:
		if v.Book.IsEmpty() {
			return "Which book would you like to rate?"
		}
		if v.Rating == nil {
			return "What rating would you give it, from 1 to 5 stars?"
		}
	case *BookDetailsParams:
		if v.Book.IsEmpty() {
			return "Which book would you like details on?"
		}
	case *DeleteBookParams:
		if v.Book.IsEmpty() {
			return "Which book should I remove?"
		}
	case *CompareBooksParams:
		n := 0
		for _, b := range v.Books {
			if !b.IsEmpty() {
				n++
			}
		}
		if n < 2 {
			return "Which two books should I compare? Try \"compare Dune and Emma\"."
		}
	case *TimeQueryParams:
		if v.Year == nil && v.Month == nil && v.Timeframe == "" {
			return "For which period? Try \"how many books did I read in 2024\" or \"this month\"."
		}
	case *AddBookParams:
		if strings.TrimSpace(v.Title) == "" {
			return "What's the title of the book to add?"
		}
	}
	return ""
}
