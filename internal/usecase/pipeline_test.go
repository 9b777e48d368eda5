package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"book-sms-agent/internal/conversation"
	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/handlers"
	"book-sms-agent/internal/intent"
	"book-sms-agent/internal/query"
)

var pipelineNow = time.Date(2026, 4, 10, 15, 30, 0, 0, time.UTC)

// memBooks is an in-memory BookStore covering the clauses the handlers build.
type memBooks struct {
	books map[int]domain.Book
	next  int
}

func newMemBooks(books ...domain.Book) *memBooks {
	m := &memBooks{books: map[int]domain.Book{}, next: 1}
	for _, b := range books {
		m.books[b.ID] = b
		if b.ID >= m.next {
			m.next = b.ID + 1
		}
	}
	return m
}

func (m *memBooks) FindBooks(_ context.Context, q query.StorageQuery) ([]domain.Book, error) {
	var out []domain.Book
	for _, b := range m.books {
		if memMatch(b, q.Where) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.OrderBy != nil && q.OrderBy.Field == query.SortByTitle {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	}
	if q.Skip != nil {
		if *q.Skip >= len(out) {
			return nil, nil
		}
		out = out[*q.Skip:]
	}
	if q.Take != nil && *q.Take < len(out) {
		out = out[:*q.Take]
	}
	return out, nil
}

func (m *memBooks) CountBooks(ctx context.Context, where query.Clause) (int, error) {
	books, err := m.FindBooks(ctx, query.StorageQuery{Where: where})
	return len(books), err
}

func (m *memBooks) GetBook(_ context.Context, id int) (*domain.Book, error) {
	b, ok := m.books[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *memBooks) CreateBook(_ context.Context, b domain.Book) (domain.Book, error) {
	b.ID = m.next
	m.next++
	m.books[b.ID] = b
	return b, nil
}

func (m *memBooks) UpdateBook(_ context.Context, id int, u domain.BookUpdate) (domain.Book, error) {
	b, ok := m.books[id]
	if !ok {
		return domain.Book{}, errors.New("not found")
	}
	if u.Read != nil {
		b.Read = *u.Read
	}
	if u.StartedAt != nil {
		b.StartedAt = *u.StartedAt
	}
	if u.Rating != nil {
		b.Rating = *u.Rating
	}
	if u.CurrentPage != nil {
		b.CurrentPage = *u.CurrentPage
	}
	if u.Progress != nil {
		b.Progress = *u.Progress
	}
	if u.CurrentlyReading != nil {
		b.CurrentlyReading = *u.CurrentlyReading
	}
	m.books[id] = b
	return b, nil
}

func (m *memBooks) UpsertBook(ctx context.Context, b domain.Book) (domain.Book, bool, error) {
	for _, existing := range m.books {
		if strings.EqualFold(existing.Title, b.Title) {
			return existing, false, nil
		}
	}
	created, err := m.CreateBook(ctx, b)
	return created, true, err
}

func (m *memBooks) DeleteBook(_ context.Context, id int) error {
	delete(m.books, id)
	return nil
}

func memMatch(b domain.Book, c query.Clause) bool {
	for key, v := range c {
		if key == query.KeyAnd {
			for _, sub := range v.([]query.Clause) {
				if !memMatch(b, sub) {
					return false
				}
			}
			continue
		}
		var str string
		switch key {
		case query.FieldCurrentlyReading:
			if v != b.CurrentlyReading {
				return false
			}
			continue
		case query.FieldRead:
			str = b.Read
		case query.FieldGenre:
			str = b.Genre
		case query.FieldTitle:
			str = b.Title
		case query.FieldAuthor:
			str = b.Author
		}
		switch val := v.(type) {
		case nil:
			if str != "" {
				return false
			}
		case string:
			if str != val {
				return false
			}
		case map[string]any:
			if sub, ok := val[query.OpContains].(string); ok && !strings.Contains(strings.ToLower(str), strings.ToLower(sub)) {
				return false
			}
			if _, ok := val[query.OpNot]; ok && str == "" {
				return false
			}
		}
	}
	return true
}

func pipelineLibrary() []domain.Book {
	return []domain.Book{
		{ID: 1, Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction", Pages: 412, Read: "2024-03-02", Rating: 5},
		{ID: 2, Title: "The Hobbit", Author: "J.R.R. Tolkien", Genre: "Fantasy", Pages: 310},
		{ID: 3, Title: "Harry Potter and the Philosopher's Stone", Author: "J.K. Rowling", Genre: "Fantasy", Pages: 223},
		{ID: 4, Title: "Harry Potter and the Chamber of Secrets", Author: "J.K. Rowling", Genre: "Fantasy", Pages: 251},
		{ID: 5, Title: "Hyperion", Author: "Dan Simmons", Genre: "Science Fiction", Pages: 482},
	}
}

type pipeline struct {
	svc   *MessageService
	books *memBooks
	store *conversation.Store
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	classifier, err := intent.NewAIClassifier(intent.NewPatternClassifier(), nil, 0, 0, logger)
	require.NoError(t, err)
	books := newMemBooks(pipelineLibrary()...)
	registry, err := handlers.NewRegistry(handlers.Deps{
		Books:    books,
		Logger:   logger,
		Now:      func() time.Time { return pipelineNow },
		PageSize: 2,
	})
	require.NoError(t, err)
	store := conversation.NewStore(conversation.DefaultTTL)
	svc, err := NewMessageService(classifier, registry, store, nil, logger, 0)
	require.NoError(t, err)
	return &pipeline{svc: svc, books: books, store: store}
}

func (p *pipeline) send(t *testing.T, text string) string {
	t.Helper()
	out, err := p.svc.HandleMessage(context.Background(), MessageInput{SenderID: sender, Text: text})
	require.NoError(t, err)
	return out.Message
}

func TestPipeline_Conversations(t *testing.T) {
	type turn struct {
		text string
		want string
	}
	cases := []struct {
		name  string
		turns []turn
		check func(t *testing.T, p *pipeline)
	}{
		{
			name: "details by title",
			turns: []turn{
				{"Tell me about The Hobbit", "The Hobbit by J.R.R. Tolkien (Fantasy, 310 pages). Not read yet."},
			},
		},
		{
			name: "pronoun follows the last book",
			turns: []turn{
				{"tell me about dune", "Dune by Frank Herbert"},
				{"start it", "Started Dune."},
			},
			check: func(t *testing.T, p *pipeline) {
				require.True(t, p.books.books[1].CurrentlyReading)
			},
		},
		{
			name: "ordinal past the end names the count",
			turns: []turn{
				{"show fantasy books", "Found 3 books (1-2):"},
				{"the fifth one", "Only 2 results available."},
				{"the second one", "Harry Potter and the Philosopher's Stone by J.K. Rowling"},
			},
		},
		{
			name: "declined delete clears the conversation",
			turns: []turn{
				{"delete Dune", "Delete Dune from your library? Reply YES or NO."},
				{"no", cancelledMessage},
			},
			check: func(t *testing.T, p *pipeline) {
				_, ok := p.store.Get(sender)
				require.False(t, ok)
				require.Contains(t, p.books.books, 1)
			},
		},
		{
			name: "confirmed delete removes the book",
			turns: []turn{
				{"delete Dune", "Reply YES or NO."},
				{"yes", "Deleted Dune."},
			},
			check: func(t *testing.T, p *pipeline) {
				require.NotContains(t, p.books.books, 1)
			},
		},
		{
			name: "choice from an ambiguous title keeps the action",
			turns: []turn{
				{"finished harry", `Several books match "harry". Which one?`},
				{"2", "Marked Harry Potter and the Philosopher's Stone as finished."},
			},
			check: func(t *testing.T, p *pipeline) {
				require.Equal(t, "2026-04-10", p.books.books[3].Read)
				require.Empty(t, p.books.books[4].Read)
			},
		},
		{
			name: "bare rating answers the rating question",
			turns: []turn{
				{"tell me about hyperion", "Hyperion by Dan Simmons"},
				{"rate it", "What rating would you give it, from 1 to 5 stars?"},
				{"4", "Rated Hyperion 4 stars."},
			},
			check: func(t *testing.T, p *pipeline) {
				require.Equal(t, 4, p.books.books[5].Rating)
			},
		},
		{
			name: "title answers the which-book question",
			turns: []turn{
				{"finished", "Which book did you finish?"},
				{"Hyperion", "Marked Hyperion as finished."},
			},
			check: func(t *testing.T, p *pipeline) {
				require.Equal(t, "2026-04-10", p.books.books[5].Read)
			},
		},
		{
			name: "held choice is dropped by an unrelated message",
			turns: []turn{
				{"finished harry", "Which one?"},
				{"help", ""},
				{"2", "Harry Potter and the Philosopher's Stone by J.K. Rowling (Fantasy, 223 pages). Not read yet."},
			},
			check: func(t *testing.T, p *pipeline) {
				require.Empty(t, p.books.books[3].Read)
			},
		},
		{
			name: "recommendations end the earlier search",
			turns: []turn{
				{"show fantasy books", "Found 3 books (1-2):"},
				{"recommend a science fiction book", "Hyperion"},
				{"next", noSearchMessage},
			},
		},
		{
			name: "ambiguity list ends the earlier search",
			turns: []turn{
				{"show fantasy books", "Found 3 books (1-2):"},
				{"finished harry", "Which one?"},
				{"next", noSearchMessage},
			},
		},
		{
			name: "search pages forward",
			turns: []turn{
				{"show fantasy books", "Found 3 books (1-2):"},
				{"next", "(3-3)"},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newPipeline(t)
			for _, tr := range tc.turns {
				got := p.send(t, tr.text)
				require.Contains(t, got, tr.want, "reply to %q", tr.text)
			}
			if tc.check != nil {
				tc.check(t, p)
			}
		})
	}
}
