package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/query"
)

type fakeStore struct {
	books  map[int]domain.Book
	nextID int
	err    error

	queries []query.StorageQuery
	updates map[int]domain.BookUpdate
	deleted []int
}

func newFakeStore(books ...domain.Book) *fakeStore {
	s := &fakeStore{books: map[int]domain.Book{}, updates: map[int]domain.BookUpdate{}}
	for _, b := range books {
		s.books[b.ID] = b
		if b.ID >= s.nextID {
			s.nextID = b.ID + 1
		}
	}
	return s
}

func (s *fakeStore) FindBooks(_ context.Context, q query.StorageQuery) ([]domain.Book, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.queries = append(s.queries, q)
	var out []domain.Book
	for _, b := range s.books {
		if matchClause(b, q.Where) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.OrderBy != nil {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := sortKey(out[i], q.OrderBy.Field), sortKey(out[j], q.OrderBy.Field)
			if q.OrderBy.Direction == query.SortDesc {
				return a > b
			}
			return a < b
		})
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

func (s *fakeStore) CountBooks(ctx context.Context, where query.Clause) (int, error) {
	books, err := s.FindBooks(ctx, query.StorageQuery{Where: where})
	return len(books), err
}

func (s *fakeStore) GetBook(_ context.Context, id int) (*domain.Book, error) {
	if s.err != nil {
		return nil, s.err
	}
	b, ok := s.books[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *fakeStore) CreateBook(_ context.Context, b domain.Book) (domain.Book, error) {
	if s.err != nil {
		return domain.Book{}, s.err
	}
	b.ID = s.nextID
	s.nextID++
	s.books[b.ID] = b
	return b, nil
}

func (s *fakeStore) UpdateBook(_ context.Context, id int, u domain.BookUpdate) (domain.Book, error) {
	if s.err != nil {
		return domain.Book{}, s.err
	}
	b, ok := s.books[id]
	if !ok {
		return domain.Book{}, errors.New("not found")
	}
	s.updates[id] = u
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&b.Title, u.Title)
	apply(&b.Author, u.Author)
	apply(&b.Genre, u.Genre)
	apply(&b.Read, u.Read)
	apply(&b.StartedAt, u.StartedAt)
	applyInt(&b.Pages, u.Pages)
	applyInt(&b.Rating, u.Rating)
	applyInt(&b.CurrentPage, u.CurrentPage)
	applyInt(&b.Progress, u.Progress)
	if u.CurrentlyReading != nil {
		b.CurrentlyReading = *u.CurrentlyReading
	}
	s.books[id] = b
	return b, nil
}

func (s *fakeStore) UpsertBook(ctx context.Context, b domain.Book) (domain.Book, bool, error) {
	if s.err != nil {
		return domain.Book{}, false, s.err
	}
	for id, existing := range s.books {
		if strings.EqualFold(existing.Title, b.Title) {
			updated, err := s.UpdateBook(ctx, id, domain.BookUpdate{Author: &b.Author})
			return updated, false, err
		}
	}
	created, err := s.CreateBook(ctx, b)
	return created, true, err
}

func (s *fakeStore) DeleteBook(_ context.Context, id int) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, id)
	delete(s.books, id)
	return nil
}

func sortKey(b domain.Book, f query.SortField) string {
	switch f {
	case query.SortByPages:
		return pad(b.Pages)
	case query.SortByRating:
		return pad(b.Rating)
	case query.SortByAuthor:
		return b.Author
	case query.SortByDateRead:
		return b.Read
	default:
		return b.Title
	}
}

func pad(n int) string {
	return fmt.Sprintf("%08d", n)
}

func matchClause(b domain.Book, c query.Clause) bool {
	for key, v := range c {
		switch key {
		case query.KeyAnd:
			for _, sub := range v.([]query.Clause) {
				if !matchClause(b, sub) {
					return false
				}
			}
		case query.KeyOr:
			matched := false
			for _, sub := range v.([]query.Clause) {
				if matchClause(b, sub) {
					matched = true
				}
			}
			if !matched {
				return false
			}
		default:
			if !matchField(b, key, v) {
				return false
			}
		}
	}
	return true
}

func matchField(b domain.Book, field string, v any) bool {
	var str string
	var num int
	isNum := false
	switch field {
	case query.FieldRead:
		str = b.Read
	case query.FieldCurrentlyReading:
		return v == b.CurrentlyReading
	case query.FieldGenre:
		str = b.Genre
	case query.FieldAuthor:
		str = b.Author
	case query.FieldTitle:
		str = b.Title
	case query.FieldPages:
		num, isNum = b.Pages, true
	case query.FieldRating:
		num, isNum = b.Rating, true
	}
	if v == nil {
		return !isNum && str == ""
	}
	ops, ok := v.(map[string]any)
	if !ok {
		return v == str
	}
	for op, arg := range ops {
		switch op {
		case query.OpNot:
			if arg == nil && str == "" {
				return false
			}
		case query.OpContains:
			if !strings.Contains(strings.ToLower(str), strings.ToLower(arg.(string))) {
				return false
			}
		case query.OpGte:
			if isNum && num < arg.(int) || !isNum && (str == "" || str < arg.(string)) {
				return false
			}
		case query.OpLte:
			if isNum && num > arg.(int) || !isNum && (str == "" || str > arg.(string)) {
				return false
			}
		}
	}
	return true
}
