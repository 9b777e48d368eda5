package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/intent"
	"book-sms-agent/internal/query"
)

type searchBooksHandler struct{ base }

func (h searchBooksHandler) Handle(ctx context.Context, params intent.Params, _ *domain.ConversationContext) Response {
	p, ok := params.(*intent.SearchBooksParams)
	if !ok {
		return h.invalidParams(ctx, params)
	}
	if p.Page < 0 {
		return Response{Message: "You're already at the first page."}
	}

	q := query.Builder{Now: h.deps.Now}.Build(p.Filters)
	total, err := h.deps.Books.CountBooks(ctx, q.Where)
	if err != nil {
		return h.failure(ctx, "count_books", err)
	}
	if q.Take != nil && *q.Take < total {
		total = *q.Take
	}

	filters := p.Filters.Clone()
	if total == 0 {
		update := domain.ResultsUpdate(nil, 0, 0)
		update.LastFilters = &filters
		return Response{
			Success:        true,
			Message:        "No books matched that search. Text HELP for search ideas.",
			UpdatedContext: &update,
		}
	}

	skip := p.Page * h.deps.PageSize
	if skip >= total {
		return Response{Message: "No more results."}
	}
	take := min(h.deps.PageSize, total-skip)
	q.Skip = &skip
	q.Take = &take

	books, err := h.deps.Books.FindBooks(ctx, q)
	if err != nil {
		return h.failure(ctx, "find_books", err)
	}
	if len(books) == 0 {
		return Response{Message: "No more results."}
	}

	update := domain.ResultsUpdate(searchResults(books), p.Page, total)
	update.LastFilters = &filters
	if total == 1 {
		update = update.Merge(domain.LastBookUpdate(books[0].ID, books[0].Title))
	}
	return Response{
		Success:        true,
		Message:        resultsMessage(books, skip, total),
		Data:           books,
		UpdatedContext: &update,
	}
}

func resultsMessage(books []domain.Book, skip, total int) string {
	var sb strings.Builder
	if total <= len(books) && skip == 0 {
		fmt.Fprintf(&sb, "Found %s:\n", pluralize(total, "book", "books"))
	} else {
		fmt.Fprintf(&sb, "Found %d books (%d-%d):\n", total, skip+1, skip+len(books))
	}
	sb.WriteString(numberedList(books))
	if skip+len(books) < total {
		sb.WriteString("Reply a number for details or NEXT for more.")
	} else {
		sb.WriteString("Reply a number for details.")
	}
	return sb.String()
}

type recommendBooksHandler struct{ base }

func (h recommendBooksHandler) Handle(ctx context.Context, params intent.Params, _ *domain.ConversationContext) Response {
	p, ok := params.(*intent.RecommendBooksParams)
	if !ok {
		return h.invalidParams(ctx, params)
	}
	where := query.Clause{query.FieldRead: nil}
	if p.Genre != "" {
		where[query.FieldGenre] = p.Genre
	}
	take := h.deps.PageSize
	books, err := h.deps.Books.FindBooks(ctx, query.StorageQuery{
		Where:   where,
		OrderBy: &query.Order{Field: query.SortByPages, Direction: query.SortAsc},
		Take:    &take,
	})
	if err != nil {
		return h.failure(ctx, "recommend_books", err)
	}

	label := "unread"
	if p.Genre != "" {
		label = "unread " + strings.ToLower(p.Genre)
	}
	if len(books) == 0 {
		return Response{
			Success: true,
			Message: fmt.Sprintf("You have no %s books waiting. Add one with \"add <title> by <author>\".", label),
		}
	}
	update := domain.ListUpdate(searchResults(books), len(books))
	return Response{
		Success:        true,
		Message:        fmt.Sprintf("Try one of these %s books:\n%s", label, strings.TrimRight(numberedList(books), "\n")),
		Data:           books,
		UpdatedContext: &update,
	}
}

type timeQueryHandler struct{ base }

func (h timeQueryHandler) Handle(ctx context.Context, params intent.Params, _ *domain.ConversationContext) Response {
	p, ok := params.(*intent.TimeQueryParams)
	if !ok {
		return h.invalidParams(ctx, params)
	}
	year, month, label, ok := h.period(p)
	if !ok {
		return Response{Message: "Which period? Try \"how many books did I read in 2024\" or \"this month\"."}
	}

	filters := query.ParsedFilters{Year: year, Month: month}
	q := query.Builder{Now: h.deps.Now}.Build(filters)
	total, err := h.deps.Books.CountBooks(ctx, q.Where)
	if err != nil {
		return h.failure(ctx, "count_finished", err)
	}
	if total == 0 {
		return Response{Success: true, Message: fmt.Sprintf("You didn't finish any books %s.", label)}
	}

	take := h.deps.PageSize
	q.OrderBy = &query.Order{Field: query.SortByDateRead, Direction: query.SortDesc}
	q.Take = &take
	books, err := h.deps.Books.FindBooks(ctx, q)
	if err != nil {
		return h.failure(ctx, "find_finished", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You finished %s %s:\n", pluralize(total, "book", "books"), label)
	sb.WriteString(numberedList(books))
	if rest := total - len(books); rest > 0 {
		fmt.Fprintf(&sb, "...and %d more.", rest)
	}
	update := domain.ResultsUpdate(searchResults(books), 0, total)
	update.LastFilters = &filters
	return Response{
		Success:        true,
		Message:        strings.TrimRight(sb.String(), "\n"),
		Data:           books,
		UpdatedContext: &update,
	}
}

// period resolves explicit year/month first, then the relative timeframe.
func (h timeQueryHandler) period(p *intent.TimeQueryParams) (*int, *int, string, bool) {
	now := h.deps.Now()
	switch {
	case p.Month != nil && *p.Month >= 1 && *p.Month <= 12:
		y := now.Year()
		if p.Year != nil {
			y = *p.Year
		}
		return &y, p.Month, fmt.Sprintf("in %s %d", time.Month(*p.Month), y), true
	case p.Year != nil:
		return p.Year, nil, fmt.Sprintf("in %d", *p.Year), true
	}

	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	switch p.Timeframe {
	case intent.TimeframeThisYear:
		return domain.Ptr(now.Year()), nil, "this year", true
	case intent.TimeframeLastYear:
		return domain.Ptr(now.Year() - 1), nil, "last year", true
	case intent.TimeframeThisMonth:
		return domain.Ptr(now.Year()), domain.Ptr(int(now.Month())), "this month", true
	case intent.TimeframeLastMonth:
		prev := firstOfMonth.AddDate(0, -1, 0)
		return domain.Ptr(prev.Year()), domain.Ptr(int(prev.Month())), "last month", true
	default:
		return nil, nil, "", false
	}
}
