// Package handlers executes classified intents against the book store and
// phrases the SMS reply.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/intent"
	"book-sms-agent/internal/query"
)

const (
	DefaultPageSize = 5
	MaxPageSize     = 5

	genericFailureMessage = "Sorry, something went wrong. Please try again in a moment."
)

// BookStore is the storage collaborator. GetBook returns (nil, nil) when the
// book does not exist. UpsertBook matches on title and reports whether it
// created a new book.
type BookStore interface {
	FindBooks(ctx context.Context, q query.StorageQuery) ([]domain.Book, error)
	CountBooks(ctx context.Context, where query.Clause) (int, error)
	GetBook(ctx context.Context, id int) (*domain.Book, error)
	CreateBook(ctx context.Context, b domain.Book) (domain.Book, error)
	UpdateBook(ctx context.Context, id int, u domain.BookUpdate) (domain.Book, error)
	UpsertBook(ctx context.Context, b domain.Book) (domain.Book, bool, error)
	DeleteBook(ctx context.Context, id int) error
}

// Response is a handler outcome. Handlers never return errors; failures are
// Success=false with a message safe to show the user.
type Response struct {
	Success        bool
	Message        string
	Data           any
	UpdatedContext *domain.ContextUpdate
}

type Handler interface {
	Handle(ctx context.Context, params intent.Params, conv *domain.ConversationContext) Response
}

// Confirmer is implemented by handlers whose action can wait for a yes/no.
type Confirmer interface {
	Confirm(ctx context.Context, pending domain.PendingAction) Response
}

type Deps struct {
	Books    BookStore
	Logger   *slog.Logger
	Now      func() time.Time
	PageSize int
}

// Registry maps each intent onto its handler.
type Registry struct {
	handlers map[domain.Intent]Handler
	fallback Handler
}

func NewRegistry(deps Deps) (*Registry, error) {
	if deps.Books == nil {
		return nil, errors.New("handlers: book store must not be nil")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.PageSize <= 0 || deps.PageSize > MaxPageSize {
		deps.PageSize = DefaultPageSize
	}
	b := base{deps: deps}
	unknown := unknownHandler{}
	return &Registry{
		handlers: map[domain.Intent]Handler{
			domain.IntentUpdateProgress: updateProgressHandler{b},
			domain.IntentFinishBook:     finishBookHandler{b},
			domain.IntentStartBook:      startBookHandler{b},
			domain.IntentRateBook:       rateBookHandler{b},
			domain.IntentBookDetails:    bookDetailsHandler{b},
			domain.IntentSearchBooks:    searchBooksHandler{b},
			domain.IntentRecommendBooks: recommendBooksHandler{b},
			domain.IntentCompareBooks:   compareBooksHandler{b},
			domain.IntentTimeQuery:      timeQueryHandler{b},
			domain.IntentCurrentReading: currentReadingHandler{b},
			domain.IntentAddBook:        addBookHandler{b},
			domain.IntentDeleteBook:     deleteBookHandler{b},
			domain.IntentHelp:           helpHandler{},
			domain.IntentUnknown:        unknown,
		},
		fallback: unknown,
	}, nil
}

// Handler returns the handler registered for in.
func (r *Registry) Handler(in domain.Intent) (Handler, bool) {
	h, ok := r.handlers[in]
	return h, ok
}

// Dispatch runs the handler for params. Intents without a handler, such as
// unresolved follow-ups, get the unknown reply.
func (r *Registry) Dispatch(ctx context.Context, params intent.Params, conv *domain.ConversationContext) Response {
	if params == nil {
		return r.fallback.Handle(ctx, &intent.UnknownParams{}, conv)
	}
	h, ok := r.handlers[params.Intent()]
	if !ok {
		return r.fallback.Handle(ctx, params, conv)
	}
	return h.Handle(ctx, params, conv)
}

// Confirm executes a confirmed pending action.
func (r *Registry) Confirm(ctx context.Context, pending domain.PendingAction) Response {
	h, ok := r.handlers[pending.Intent]
	if !ok {
		return Response{Message: "There's nothing waiting for confirmation."}
	}
	c, ok := h.(Confirmer)
	if !ok {
		return Response{Message: "There's nothing waiting for confirmation."}
	}
	return c.Confirm(ctx, pending)
}

type base struct {
	deps Deps
}

func (b base) today() string {
	return b.deps.Now().Format(domain.DateLayout)
}

func (b base) failure(ctx context.Context, op string, err error) Response {
	b.deps.Logger.ErrorContext(ctx, "book store failure", "op", op, "err", err)
	return Response{Message: genericFailureMessage}
}

func (b base) invalidParams(ctx context.Context, params intent.Params) Response {
	b.deps.Logger.ErrorContext(ctx, "handler received mismatched params", "params", fmt.Sprintf("%T", params))
	return Response{Message: genericFailureMessage}
}

func notFound(title string) Response {
	return Response{Message: fmt.Sprintf("I couldn't find %q in your library.", title)}
}

// findBook resolves ref to a stored book. When the title matches several
// books without an exact hit, the reply lists them and remembers the list so
// the user can answer with a number. A single-book action in hold is kept
// with the list and runs against the chosen book.
func (b base) findBook(ctx context.Context, ref intent.BookRef, hold intent.Params) (*domain.Book, *Response) {
	if ref.ID > 0 {
		book, err := b.deps.Books.GetBook(ctx, ref.ID)
		if err != nil {
			resp := b.failure(ctx, "get_book", err)
			return nil, &resp
		}
		if book == nil {
			title := ref.Title
			if title == "" {
				title = fmt.Sprintf("book #%d", ref.ID)
			}
			resp := notFound(title)
			return nil, &resp
		}
		return book, nil
	}

	title := strings.TrimSpace(ref.Title)
	books, err := b.deps.Books.FindBooks(ctx, query.StorageQuery{
		Where:   query.Clause{query.FieldTitle: map[string]any{query.OpContains: title, query.OpMode: query.ModeInsensitive}},
		OrderBy: &query.Order{Field: query.SortByTitle, Direction: query.SortAsc},
	})
	if err != nil {
		resp := b.failure(ctx, "find_book", err)
		return nil, &resp
	}
	for i := range books {
		if strings.EqualFold(books[i].Title, title) {
			return &books[i], nil
		}
	}
	switch len(books) {
	case 0:
		resp := notFound(title)
		return nil, &resp
	case 1:
		return &books[0], nil
	default:
		page := books
		if len(page) > b.deps.PageSize {
			page = page[:b.deps.PageSize]
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Several books match %q. Which one?\n", title)
		sb.WriteString(numberedList(page))
		update := selectionUpdate(page, len(books), hold)
		resp := Response{Message: strings.TrimRight(sb.String(), "\n"), Data: page, UpdatedContext: &update}
		return nil, &resp
	}
}

// selectionUpdate stores a "which one?" list along with the action that is
// waiting for the answer.
func selectionUpdate(page []domain.Book, total int, hold intent.Params) domain.ContextUpdate {
	update := domain.ListUpdate(searchResults(page), total)
	if req, ok := intent.RequestFor(hold); ok {
		req.BookID, req.BookTitle = 0, ""
		update.PendingRequest = &req
	}
	return update
}

func withLastBook(u *domain.ContextUpdate, book domain.Book) *domain.ContextUpdate {
	lb := domain.LastBookUpdate(book.ID, book.Title)
	if u == nil {
		return &lb
	}
	merged := u.Merge(lb)
	return &merged
}

func searchResults(books []domain.Book) []domain.SearchResult {
	out := make([]domain.SearchResult, len(books))
	for i, b := range books {
		out[i] = domain.SearchResult{ID: b.ID, Title: b.Title}
	}
	return out
}

func numberedList(books []domain.Book) string {
	var sb strings.Builder
	for i, b := range books {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, bookLine(b))
	}
	return sb.String()
}

func bookLine(b domain.Book) string {
	line := b.Title
	if b.Author != "" {
		line += " by " + b.Author
	}
	return line
}

func stars(n int) string {
	if n == 1 {
		return "1 star"
	}
	return fmt.Sprintf("%d stars", n)
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
