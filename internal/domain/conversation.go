package domain

import (
	"strings"
	"time"

	"book-sms-agent/internal/query"
)

// ConfirmationType names the sensitive action awaiting a yes/no reply.
type ConfirmationType string

const (
	ConfirmationNone       ConfirmationType = ""
	ConfirmationDeleteBook ConfirmationType = "delete_book"
	ConfirmationFinishBook ConfirmationType = "finish_book"
)

// SearchResult is one entry of a result page kept for list references.
type SearchResult struct {
	ID    int
	Title string
}

// PendingAction is what a "yes" executes while a confirmation is open.
type PendingAction struct {
	Intent    Intent
	BookID    int
	BookTitle string
	Rating    int
}

// PendingRequest is a single-book action held over to the next message
// because it still needs a book choice or a missing value.
type PendingRequest struct {
	Intent     Intent
	BookID     int
	BookTitle  string
	Rating     *int
	PageNumber *int
	Percentage *int
}

// HasBook reports whether the request already names a book.
func (r PendingRequest) HasBook() bool {
	return r.BookID > 0 || strings.TrimSpace(r.BookTitle) != ""
}

func (r PendingRequest) clone() *PendingRequest {
	out := r
	out.Rating = cloneInt(r.Rating)
	out.PageNumber = cloneInt(r.PageNumber)
	out.Percentage = cloneInt(r.Percentage)
	return &out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	n := *p
	return &n
}

// ConversationContext is the per-sender state carried across turns.
type ConversationContext struct {
	LastIntent           Intent
	LastBookID           int
	LastBookTitle        string
	LastSearchResults    []SearchResult
	LastResultsPage      int
	TotalResultsCount    int
	LastFilters          *query.ParsedFilters
	AwaitingConfirmation bool
	ConfirmationType     ConfirmationType
	PendingAction        *PendingAction
	PendingRequest       *PendingRequest
	Timestamp            time.Time
	ExpiresAt            time.Time
}

// HasLastBook reports whether a book was referenced in an earlier turn.
func (c ConversationContext) HasLastBook() bool {
	return c.LastBookID > 0
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (c ConversationContext) Clone() ConversationContext {
	out := c
	if c.LastSearchResults != nil {
		out.LastSearchResults = append([]SearchResult(nil), c.LastSearchResults...)
	}
	if c.LastFilters != nil {
		f := c.LastFilters.Clone()
		out.LastFilters = &f
	}
	if c.PendingAction != nil {
		p := *c.PendingAction
		out.PendingAction = &p
	}
	if c.PendingRequest != nil {
		out.PendingRequest = c.PendingRequest.clone()
	}
	return out
}

// ContextUpdate is a partial context. Nil fields are left as they are; a
// non-nil empty LastSearchResults clears the list. The Clear flags run
// before the matching field is set.
type ContextUpdate struct {
	LastIntent           *Intent
	LastBookID           *int
	LastBookTitle        *string
	LastSearchResults    []SearchResult
	LastResultsPage      *int
	TotalResultsCount    *int
	LastFilters          *query.ParsedFilters
	ClearLastFilters     bool
	AwaitingConfirmation *bool
	ConfirmationType     *ConfirmationType
	PendingAction        *PendingAction
	ClearPendingAction   bool
	PendingRequest       *PendingRequest
	ClearPendingRequest  bool
}

// Apply merges u into c field by field.
func (u ContextUpdate) Apply(c *ConversationContext) {
	if u.LastIntent != nil {
		c.LastIntent = *u.LastIntent
	}
	if u.LastBookID != nil {
		c.LastBookID = *u.LastBookID
	}
	if u.LastBookTitle != nil {
		c.LastBookTitle = *u.LastBookTitle
	}
	if u.LastSearchResults != nil {
		c.LastSearchResults = append([]SearchResult(nil), u.LastSearchResults...)
	}
	if u.LastResultsPage != nil {
		c.LastResultsPage = *u.LastResultsPage
	}
	if u.TotalResultsCount != nil {
		c.TotalResultsCount = *u.TotalResultsCount
	}
	if u.ClearLastFilters {
		c.LastFilters = nil
	}
	if u.LastFilters != nil {
		f := u.LastFilters.Clone()
		c.LastFilters = &f
	}
	if u.AwaitingConfirmation != nil {
		c.AwaitingConfirmation = *u.AwaitingConfirmation
	}
	if u.ConfirmationType != nil {
		c.ConfirmationType = *u.ConfirmationType
	}
	if u.ClearPendingAction {
		c.PendingAction = nil
	}
	if u.PendingAction != nil {
		p := *u.PendingAction
		c.PendingAction = &p
	}
	if u.ClearPendingRequest {
		c.PendingRequest = nil
	}
	if u.PendingRequest != nil {
		c.PendingRequest = u.PendingRequest.clone()
	}
}

// Merge overlays other on u; fields set in other win.
func (u ContextUpdate) Merge(other ContextUpdate) ContextUpdate {
	out := u
	if other.LastIntent != nil {
		out.LastIntent = other.LastIntent
	}
	if other.LastBookID != nil {
		out.LastBookID = other.LastBookID
	}
	if other.LastBookTitle != nil {
		out.LastBookTitle = other.LastBookTitle
	}
	if other.LastSearchResults != nil {
		out.LastSearchResults = other.LastSearchResults
	}
	if other.LastResultsPage != nil {
		out.LastResultsPage = other.LastResultsPage
	}
	if other.TotalResultsCount != nil {
		out.TotalResultsCount = other.TotalResultsCount
	}
	if other.ClearLastFilters {
		out.ClearLastFilters = true
		out.LastFilters = nil
	}
	if other.LastFilters != nil {
		out.LastFilters = other.LastFilters
	}
	if other.AwaitingConfirmation != nil {
		out.AwaitingConfirmation = other.AwaitingConfirmation
	}
	if other.ConfirmationType != nil {
		out.ConfirmationType = other.ConfirmationType
	}
	if other.ClearPendingAction {
		out.ClearPendingAction = true
		out.PendingAction = nil
	}
	if other.PendingAction != nil {
		out.PendingAction = other.PendingAction
	}
	if other.ClearPendingRequest {
		out.ClearPendingRequest = true
		out.PendingRequest = nil
	}
	if other.PendingRequest != nil {
		out.PendingRequest = other.PendingRequest
	}
	return out
}

// LastBookUpdate records id/title as the last referenced book.
func LastBookUpdate(id int, title string) ContextUpdate {
	return ContextUpdate{LastBookID: Ptr(id), LastBookTitle: Ptr(title)}
}

// ResultsUpdate stores one page of results for later list references.
func ResultsUpdate(results []SearchResult, page, total int) ContextUpdate {
	if results == nil {
		results = []SearchResult{}
	}
	return ContextUpdate{
		LastSearchResults: results,
		LastResultsPage:   Ptr(page),
		TotalResultsCount: Ptr(total),
	}
}

// ListUpdate stores a list that is not a paged search. Any earlier search
// filters are dropped so pagination has nothing to continue.
func ListUpdate(results []SearchResult, total int) ContextUpdate {
	u := ResultsUpdate(results, 0, total)
	u.ClearLastFilters = true
	return u
}

// ConfirmationRequest opens a confirmation for pending.
func ConfirmationRequest(kind ConfirmationType, pending PendingAction) ContextUpdate {
	return ContextUpdate{
		AwaitingConfirmation: Ptr(true),
		ConfirmationType:     Ptr(kind),
		PendingAction:        &pending,
	}
}

// ConfirmationResolved closes any open confirmation.
func ConfirmationResolved() ContextUpdate {
	return ContextUpdate{
		AwaitingConfirmation: Ptr(false),
		ConfirmationType:     Ptr(ConfirmationNone),
		ClearPendingAction:   true,
	}
}
