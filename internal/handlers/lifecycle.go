package handlers

import (
	"context"
	"fmt"
	"strings"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/intent"
)

type finishBookHandler struct{ base }

func (h finishBookHandler) Handle(ctx context.Context, params intent.Params, _ *domain.ConversationContext) Response {
	p, ok := params.(*intent.FinishBookParams)
	if !ok {
		return h.invalidParams(ctx, params)
	}
	if p.Book.IsEmpty() {
		return Response{Message: "Which book did you finish? Try \"finished Dune\"."}
	}
	if p.Rating != nil && (*p.Rating < 1 || *p.Rating > 5) {
		return Response{Message: "Ratings go from 1 to 5 stars."}
	}
	book, resp := h.findBook(ctx, p.Book, p)
	if resp != nil {
		return *resp
	}

	pending := domain.PendingAction{Intent: domain.IntentFinishBook, BookID: book.ID, BookTitle: book.Title}
	if p.Rating != nil {
		pending.Rating = *p.Rating
	}
	if book.IsRead() {
		update := domain.ConfirmationRequest(domain.ConfirmationFinishBook, pending)
		return Response{
			Success:        true,
			Message:        fmt.Sprintf("You already finished %s on %s. Mark it finished again today? Reply YES or NO.", book.Title, book.Read),
			Data:           *book,
			UpdatedContext: withLastBook(&update, *book),
		}
	}
	return h.markFinished(ctx, *book, pending.Rating)
}

func (h finishBookHandler) Confirm(ctx context.Context, pending domain.PendingAction) Response {
	book, resp := h.findBook(ctx, intent.BookRef{ID: pending.BookID, Title: pending.BookTitle}, nil)
	if resp != nil {
		return *resp
	}
	return h.markFinished(ctx, *book, pending.Rating)
}

func (h finishBookHandler) markFinished(ctx context.Context, book domain.Book, rating int) Response {
	u := domain.BookUpdate{
		Read:             domain.Ptr(h.today()),
		CurrentlyReading: domain.Ptr(false),
		Progress:         domain.Ptr(100),
	}
	if book.Pages > 0 {
		u.CurrentPage = domain.Ptr(book.Pages)
	}
	if rating > 0 {
		u.Rating = domain.Ptr(rating)
	}
	updated, err := h.deps.Books.UpdateBook(ctx, book.ID, u)
	if err != nil {
		return h.failure(ctx, "finish_book", err)
	}
	msg := fmt.Sprintf("Marked %s as finished. Nice work!", updated.Title)
	if rating > 0 {
		msg += fmt.Sprintf(" Rated %s.", stars(rating))
	} else {
		msg += " Reply \"rate it 1-5\" to add a rating."
	}
	return Response{Success: true, Message: msg, Data: updated, UpdatedContext: withLastBook(nil, updated)}
}

type startBookHandler struct{ base }

func (h startBookHandler) Handle(ctx context.Context, params intent.Params, _ *domain.ConversationContext) Response {
	p, ok := params.(*intent.StartBookParams)
	if !ok {
		return h.invalidParams(ctx, params)
	}
	if p.Book.IsEmpty() {
		return Response{Message: "Which book are you starting? Try \"started Dune\"."}
	}
	book, resp := h.findBook(ctx, p.Book, p)
	if resp != nil {
		return *resp
	}
	if book.CurrentlyReading {
		return Response{
			Success:        true,
			Message:        fmt.Sprintf("You're already reading %s.", book.Title),
			Data:           *book,
			UpdatedContext: withLastBook(nil, *book),
		}
	}
	updated, err := h.deps.Books.UpdateBook(ctx, book.ID, domain.BookUpdate{
		CurrentlyReading: domain.Ptr(true),
		StartedAt:        domain.Ptr(h.today()),
		CurrentPage:      domain.Ptr(0),
		Progress:         domain.Ptr(0),
	})
	if err != nil {
		return h.failure(ctx, "start_book", err)
	}
	return Response{
		Success:        true,
		Message:        fmt.Sprintf("Started %s. Enjoy! Text \"page N\" to log progress.", updated.Title),
		Data:           updated,
		UpdatedContext: withLastBook(nil, updated),
	}
}

type rateBookHandler struct{ base }

func (h rateBookHandler) Handle(ctx context.Context, params intent.Params, _ *domain.ConversationContext) Response {
	p, ok := params.(*intent.RateBookParams)
	if !ok {
		return h.invalidParams(ctx, params)
	}
	if p.Book.IsEmpty() {
		return Response{Message: "Which book would you like to rate? Try \"rate Dune 4 stars\"."}
	}
	if p.Rating == nil || *p.Rating < 1 || *p.Rating > 5 {
		return Response{Message: "Ratings go from 1 to 5 stars. Try \"rate it 4 stars\"."}
	}
	book, resp := h.findBook(ctx, p.Book, p)
	if resp != nil {
		return *resp
	}
	updated, err := h.deps.Books.UpdateBook(ctx, book.ID, domain.BookUpdate{Rating: domain.Ptr(*p.Rating)})
	if err != nil {
		return h.failure(ctx, "rate_book", err)
	}
	return Response{
		Success:        true,
		Message:        fmt.Sprintf("Rated %s %s.", updated.Title, stars(*p.Rating)),
		Data:           updated,
		UpdatedContext: withLastBook(nil, updated),
	}
}

type deleteBookHandler struct{ base }

func (h deleteBookHandler) Handle(ctx context.Context, params intent.Params, _ *domain.ConversationContext) Response {
	p, ok := params.(*intent.DeleteBookParams)
	if !ok {
		return h.invalidParams(ctx, params)
	}
	if p.Book.IsEmpty() {
		return Response{Message: "Which book should I remove? Try \"delete Dune\"."}
	}
	book, resp := h.findBook(ctx, p.Book, p)
	if resp != nil {
		return *resp
	}
	update := domain.ConfirmationRequest(domain.ConfirmationDeleteBook, domain.PendingAction{
		Intent:    domain.IntentDeleteBook,
		BookID:    book.ID,
		BookTitle: book.Title,
	})
	return Response{
		Success:        true,
		Message:        fmt.Sprintf("Delete %s from your library? Reply YES or NO.", book.Title),
		Data:           *book,
		UpdatedContext: withLastBook(&update, *book),
	}
}

func (h deleteBookHandler) Confirm(ctx context.Context, pending domain.PendingAction) Response {
	if err := h.deps.Books.DeleteBook(ctx, pending.BookID); err != nil {
		return h.failure(ctx, "delete_book", err)
	}
	cleared := domain.LastBookUpdate(0, "")
	return Response{
		Success:        true,
		Message:        fmt.Sprintf("Deleted %s.", pending.BookTitle),
		UpdatedContext: &cleared,
	}
}

type addBookHandler struct{ base }

func (h addBookHandler) Handle(ctx context.Context, params intent.Params, _ *domain.ConversationContext) Response {
	p, ok := params.(*intent.AddBookParams)
	if !ok {
		return h.invalidParams(ctx, params)
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return Response{Message: "What's the title? Try \"add Dune by Frank Herbert\"."}
	}
	in := domain.Book{Title: title, Author: strings.TrimSpace(p.Author), Genre: p.Genre}
	if p.Pages != nil && *p.Pages > 0 {
		in.Pages = *p.Pages
	}
	book, created, err := h.deps.Books.UpsertBook(ctx, in)
	if err != nil {
		return h.failure(ctx, "add_book", err)
	}
	msg := fmt.Sprintf("Added %s to your library.", bookLine(book))
	if !created {
		msg = fmt.Sprintf("%s is already in your library. I updated its details.", book.Title)
	}
	return Response{Success: true, Message: msg, Data: book, UpdatedContext: withLastBook(nil, book)}
}
