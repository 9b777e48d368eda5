package handlers

import (
	"context"
	"fmt"
	"strings"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/intent"
	"book-sms-agent/internal/query"
)

type bookDetailsHandler struct{ base }

func (h bookDetailsHandler) Handle(ctx context.Context, params intent.Params, _ *domain.ConversationContext) Response {
	p, ok := params.(*intent.BookDetailsParams)
	if !ok {
		return h.invalidParams(ctx, params)
	}
	if p.Book.IsEmpty() {
		return Response{Message: "Which book would you like details on?"}
	}
	book, resp := h.findBook(ctx, p.Book, p)
	if resp != nil {
		return *resp
	}
	return Response{
		Success:        true,
		Message:        describe(*book),
		Data:           *book,
		UpdatedContext: withLastBook(nil, *book),
	}
}

func describe(b domain.Book) string {
	var facts []string
	if b.Genre != "" {
		facts = append(facts, b.Genre)
	}
	if b.Pages > 0 {
		facts = append(facts, fmt.Sprintf("%d pages", b.Pages))
	}
	var sb strings.Builder
	sb.WriteString(bookLine(b))
	if len(facts) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(facts, ", "))
	}
	sb.WriteString(".")
	switch {
	case b.IsRead():
		fmt.Fprintf(&sb, " Finished %s.", b.Read)
	case b.CurrentlyReading:
		sb.WriteString(" " + readingStatus(b))
	default:
		sb.WriteString(" Not read yet.")
	}
	if b.Rating > 0 {
		fmt.Fprintf(&sb, " Rated %d/5.", b.Rating)
	}
	return sb.String()
}

func readingStatus(b domain.Book) string {
	switch {
	case b.Pages > 0 && b.CurrentPage > 0:
		return fmt.Sprintf("Reading now: page %d of %d (%d%%).", b.CurrentPage, b.Pages, b.Progress)
	case b.Progress > 0:
		return fmt.Sprintf("Reading now: %d%%.", b.Progress)
	default:
		return "Reading now."
	}
}

type compareBooksHandler struct{ base }

func (h compareBooksHandler) Handle(ctx context.Context, params intent.Params, _ *domain.ConversationContext) Response {
	p, ok := params.(*intent.CompareBooksParams)
	if !ok {
		return h.invalidParams(ctx, params)
	}
	var refs []intent.BookRef
	for _, r := range p.Books {
		if !r.IsEmpty() {
			refs = append(refs, r)
		}
	}
	if len(refs) < 2 {
		return Response{Message: "Name two books to compare, like \"compare Dune and Emma\"."}
	}
	if len(refs) > h.deps.PageSize {
		refs = refs[:h.deps.PageSize]
	}

	books := make([]domain.Book, 0, len(refs))
	for _, r := range refs {
		book, resp := h.findBook(ctx, r, nil)
		if resp != nil {
			return *resp
		}
		books = append(books, *book)
	}

	var sb strings.Builder
	for i, b := range books {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, compareLine(b))
	}
	if s := compareSummary(books); s != "" {
		sb.WriteString(s)
	}
	update := domain.ListUpdate(searchResults(books), len(books))
	return Response{
		Success:        true,
		Message:        strings.TrimRight(sb.String(), "\n"),
		Data:           books,
		UpdatedContext: &update,
	}
}

func compareLine(b domain.Book) string {
	parts := []string{}
	if b.Pages > 0 {
		parts = append(parts, fmt.Sprintf("%d pages", b.Pages))
	}
	if b.Rating > 0 {
		parts = append(parts, stars(b.Rating))
	}
	switch {
	case b.IsRead():
		parts = append(parts, "finished "+b.Read)
	case b.CurrentlyReading:
		parts = append(parts, "reading now")
	default:
		parts = append(parts, "unread")
	}
	return fmt.Sprintf("%s: %s", b.Title, strings.Join(parts, ", "))
}

func compareSummary(books []domain.Book) string {
	var lines []string
	longest, rated := -1, -1
	for i, b := range books {
		if b.Pages > 0 && (longest < 0 || b.Pages > books[longest].Pages) {
			longest = i
		}
		if b.Rating > 0 && (rated < 0 || b.Rating > books[rated].Rating) {
			rated = i
		}
	}
	if longest >= 0 {
		lines = append(lines, "Longest: "+books[longest].Title+".")
	}
	if rated >= 0 {
		lines = append(lines, "Highest rated: "+books[rated].Title+".")
	}
	return strings.Join(lines, " ")
}

type currentReadingHandler struct{ base }

func (h currentReadingHandler) Handle(ctx context.Context, params intent.Params, _ *domain.ConversationContext) Response {
	if _, ok := params.(*intent.CurrentReadingParams); !ok {
		return h.invalidParams(ctx, params)
	}
	books, err := h.deps.Books.FindBooks(ctx, query.StorageQuery{
		Where:   query.Clause{query.FieldCurrentlyReading: true},
		OrderBy: &query.Order{Field: query.SortByTitle, Direction: query.SortAsc},
	})
	if err != nil {
		return h.failure(ctx, "current_reading", err)
	}
	switch len(books) {
	case 0:
		return Response{
			Success: true,
			Message: "You're not reading anything right now. Text \"started <title>\" to begin a book.",
		}
	case 1:
		b := books[0]
		return Response{
			Success:        true,
			Message:        fmt.Sprintf("You're reading %s. %s", bookLine(b), readingStatus(b)),
			Data:           books,
			UpdatedContext: withLastBook(nil, b),
		}
	default:
		page := books
		if len(page) > h.deps.PageSize {
			page = page[:h.deps.PageSize]
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "You're reading %s:\n", pluralize(len(books), "book", "books"))
		for i, b := range page {
			fmt.Fprintf(&sb, "%d. %s - %s\n", i+1, b.Title, strings.TrimPrefix(readingStatus(b), "Reading now: "))
		}
		update := domain.ListUpdate(searchResults(page), len(books))
		return Response{
			Success:        true,
			Message:        strings.TrimRight(sb.String(), "\n"),
			Data:           page,
			UpdatedContext: &update,
		}
	}
}
