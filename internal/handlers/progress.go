package handlers

import (
	"context"
	"fmt"
	"strings"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/intent"
	"book-sms-agent/internal/query"
)

type updateProgressHandler struct{ base }

func (h updateProgressHandler) Handle(ctx context.Context, params intent.Params, conv *domain.ConversationContext) Response {
	p, ok := params.(*intent.UpdateProgressParams)
	if !ok {
		return h.invalidParams(ctx, params)
	}
	if p.PageNumber == nil && p.Percentage == nil {
		return Response{Message: "Tell me a page number or a percentage, like \"page 120\" or \"40%\"."}
	}
	if p.PageNumber != nil && *p.PageNumber <= 0 {
		return Response{Message: "Page numbers start at 1."}
	}
	if p.Percentage != nil && (*p.Percentage < 0 || *p.Percentage > 100) {
		return Response{Message: "Percentages go from 0 to 100."}
	}

	book, resp := h.progressBook(ctx, p, conv)
	if resp != nil {
		return *resp
	}

	u := domain.BookUpdate{CurrentlyReading: domain.Ptr(true)}
	if book.StartedAt == "" {
		u.StartedAt = domain.Ptr(h.today())
	}
	var page, percent int
	switch {
	case p.PageNumber != nil:
		page = *p.PageNumber
		if book.Pages > 0 && page > book.Pages {
			return Response{
				Message:        fmt.Sprintf("%s only has %d pages.", book.Title, book.Pages),
				UpdatedContext: withLastBook(nil, *book),
			}
		}
		if book.Pages > 0 {
			percent = page * 100 / book.Pages
		}
	default:
		percent = *p.Percentage
		if book.Pages > 0 {
			page = percent * book.Pages / 100
		}
	}
	u.CurrentPage = domain.Ptr(page)
	u.Progress = domain.Ptr(percent)

	updated, err := h.deps.Books.UpdateBook(ctx, book.ID, u)
	if err != nil {
		return h.failure(ctx, "update_progress", err)
	}
	return Response{
		Success:        true,
		Message:        progressMessage(updated),
		Data:           updated,
		UpdatedContext: withLastBook(nil, updated),
	}
}

// progressBook picks the book a progress update applies to: the named one,
// else the last discussed, else the single book being read.
func (h updateProgressHandler) progressBook(ctx context.Context, p *intent.UpdateProgressParams, conv *domain.ConversationContext) (*domain.Book, *Response) {
	if !p.Book.IsEmpty() {
		return h.findBook(ctx, p.Book, p)
	}
	if conv != nil && conv.HasLastBook() {
		return h.findBook(ctx, intent.BookRef{ID: conv.LastBookID, Title: conv.LastBookTitle}, p)
	}
	reading, err := h.deps.Books.FindBooks(ctx, query.StorageQuery{
		Where:   query.Clause{query.FieldCurrentlyReading: true},
		OrderBy: &query.Order{Field: query.SortByTitle, Direction: query.SortAsc},
	})
	if err != nil {
		resp := h.failure(ctx, "find_reading", err)
		return nil, &resp
	}
	switch len(reading) {
	case 0:
		return nil, &Response{Message: "Which book? You're not reading anything right now."}
	case 1:
		return &reading[0], nil
	default:
		page := reading
		if len(page) > h.deps.PageSize {
			page = page[:h.deps.PageSize]
		}
		update := selectionUpdate(page, len(reading), p)
		return nil, &Response{
			Message:        "You're reading several books. Which one?\n" + strings.TrimRight(numberedList(page), "\n"),
			Data:           page,
			UpdatedContext: &update,
		}
	}
}

func progressMessage(b domain.Book) string {
	if b.Pages > 0 {
		return fmt.Sprintf("Updated %s: page %d of %d (%d%%).", b.Title, b.CurrentPage, b.Pages, b.Progress)
	}
	if b.CurrentPage > 0 {
		return fmt.Sprintf("Updated %s: page %d.", b.Title, b.CurrentPage)
	}
	return fmt.Sprintf("Updated %s: %d%%.", b.Title, b.Progress)
}
