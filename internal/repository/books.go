package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/query"
)

const (
	attrTitle            = "title"
	attrTitleLower       = "titleLower"
	attrAuthor           = "author"
	attrAuthorLower      = "authorLower"
	attrGenre            = "genre"
	attrPages            = "pages"
	attrRating           = "rating"
	attrRead             = "read"
	attrCurrentlyReading = "currentlyReading"
	attrStartedAt        = "startedAt"
	attrCurrentPage      = "currentPage"
	attrProgress         = "progress"
	attrID               = "id"
	attrSeq              = "seq"
)

// FindBooks scans the table for books matching q.Where, then applies
// ordering, skip and take in memory.
func (c *Client) FindBooks(ctx context.Context, q query.StorageQuery) ([]domain.Book, error) {
	items, _, err := c.scanBooks(ctx, q.Where, false)
	if err != nil {
		return nil, fmt.Errorf("repository: FindBooks: %w", err)
	}
	books := make([]domain.Book, 0, len(items))
	for _, item := range items {
		b, err := itemToBook(item)
		if err != nil {
			return nil, fmt.Errorf("repository: FindBooks unmarshal: %w", err)
		}
		books = append(books, b)
	}

	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	if q.OrderBy != nil {
		orderBooks(books, *q.OrderBy)
	}
	if q.Skip != nil {
		if *q.Skip >= len(books) {
			return []domain.Book{}, nil
		}
		books = books[*q.Skip:]
	}
	if q.Take != nil && *q.Take < len(books) {
		books = books[:*q.Take]
	}
	return books, nil
}

// CountBooks returns how many books match where.
func (c *Client) CountBooks(ctx context.Context, where query.Clause) (int, error) {
	_, n, err := c.scanBooks(ctx, where, true)
	if err != nil {
		return 0, fmt.Errorf("repository: CountBooks: %w", err)
	}
	return n, nil
}

func (c *Client) scanBooks(ctx context.Context, where query.Clause, countOnly bool) ([]map[string]types.AttributeValue, int, error) {
	expr := newFilterExpr()
	cond, err := expr.clause(where)
	if err != nil {
		return nil, 0, err
	}
	filter := "begins_with(" + expr.name("PK") + ", " + expr.value(&types.AttributeValueMemberS{Value: pkBook}) + ")"
	if cond != "" {
		filter += " AND " + cond
	}

	in := &dynamodb.ScanInput{
		TableName:                 c.table(),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeNames:  expr.names,
		ExpressionAttributeValues: expr.values,
	}
	if countOnly {
		in.Select = types.SelectCount
	}

	var (
		items []map[string]types.AttributeValue
		count int
	)
	p := dynamodb.NewScanPaginator(c.api, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		count += int(out.Count)
		items = append(items, out.Items...)
	}
	return items, count, nil
}

// GetBook returns the book with id, or nil when there is none.
func (c *Client) GetBook(ctx context.Context, id int) (*domain.Book, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      c.table(),
		Key:            key(bookPK(id), skMeta),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetBook get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	b, err := itemToBook(out.Item)
	if err != nil {
		return nil, fmt.Errorf("repository: GetBook unmarshal: %w", err)
	}
	return &b, nil
}

// CreateBook assigns the next id from the counter item and writes b.
func (c *Client) CreateBook(ctx context.Context, b domain.Book) (domain.Book, error) {
	if strings.TrimSpace(b.Title) == "" {
		return domain.Book{}, errors.New("repository: CreateBook: title is required")
	}
	id, err := c.nextBookID(ctx)
	if err != nil {
		return domain.Book{}, fmt.Errorf("repository: CreateBook: %w", err)
	}
	b.ID = id

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           c.table(),
		Item:                bookItem(b),
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("repository: CreateBook: %w", err)
	}
	return b, nil
}

func (c *Client) nextBookID(ctx context.Context) (int, error) {
	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 c.table(),
		Key:                       key(pkCounter, skMeta),
		UpdateExpression:          aws.String("ADD #seq :one"),
		ExpressionAttributeNames:  map[string]string{"#seq": attrSeq},
		ExpressionAttributeValues: map[string]types.AttributeValue{":one": numValue(1)},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	if out == nil {
		return 0, errors.New("next id: empty response")
	}
	return intAttr(out.Attributes, attrSeq)
}

// UpdateBook applies the non-nil fields of u. Setting Rating to 0 or Read to
// "" removes the attribute. A missing book is a NOT_FOUND domain error.
func (c *Client) UpdateBook(ctx context.Context, id int, u domain.BookUpdate) (domain.Book, error) {
	if u.IsEmpty() {
		b, err := c.GetBook(ctx, id)
		if err != nil {
			return domain.Book{}, err
		}
		if b == nil {
			return domain.Book{}, notFound(id)
		}
		return *b, nil
	}

	expr := newFilterExpr()
	var set, remove []string
	setStr := func(attr string, v *string) {
		if v != nil {
			set = append(set, expr.name(attr)+" = "+expr.value(&types.AttributeValueMemberS{Value: *v}))
		}
	}
	setInt := func(attr string, v *int) {
		if v != nil {
			set = append(set, expr.name(attr)+" = "+expr.value(numValue(*v)))
		}
	}

	setStr(attrTitle, u.Title)
	if u.Title != nil {
		setStr(attrTitleLower, domain.Ptr(strings.ToLower(*u.Title)))
	}
	setStr(attrAuthor, u.Author)
	if u.Author != nil {
		setStr(attrAuthorLower, domain.Ptr(strings.ToLower(*u.Author)))
	}
	setStr(attrGenre, u.Genre)
	setInt(attrPages, u.Pages)
	switch {
	case u.Rating != nil && *u.Rating == 0:
		remove = append(remove, expr.name(attrRating))
	default:
		setInt(attrRating, u.Rating)
	}
	switch {
	case u.Read != nil && *u.Read == "":
		remove = append(remove, expr.name(attrRead))
	default:
		setStr(attrRead, u.Read)
	}
	if u.CurrentlyReading != nil {
		set = append(set, expr.name(attrCurrentlyReading)+" = "+expr.value(&types.AttributeValueMemberBOOL{Value: *u.CurrentlyReading}))
	}
	setStr(attrStartedAt, u.StartedAt)
	setInt(attrCurrentPage, u.CurrentPage)
	setInt(attrProgress, u.Progress)

	var update []string
	if len(set) > 0 {
		update = append(update, "SET "+strings.Join(set, ", "))
	}
	if len(remove) > 0 {
		update = append(update, "REMOVE "+strings.Join(remove, ", "))
	}

	in := &dynamodb.UpdateItemInput{
		TableName:                c.table(),
		Key:                      key(bookPK(id), skMeta),
		UpdateExpression:         aws.String(strings.Join(update, " ")),
		ConditionExpression:      aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: expr.names,
		ReturnValues:             types.ReturnValueAllNew,
	}
	if len(expr.values) > 0 {
		in.ExpressionAttributeValues = expr.values
	}

	out, err := c.api.UpdateItem(ctx, in)
	if err != nil {
		if isConditionFailed(err) {
			return domain.Book{}, notFound(id)
		}
		return domain.Book{}, fmt.Errorf("repository: UpdateBook: %w", err)
	}
	b, err := itemToBook(out.Attributes)
	if err != nil {
		return domain.Book{}, fmt.Errorf("repository: UpdateBook unmarshal: %w", err)
	}
	return b, nil
}

// UpsertBook matches b by case-insensitive title. An existing book gets the
// non-empty author, genre and page count of b; otherwise b is created.
func (c *Client) UpsertBook(ctx context.Context, b domain.Book) (domain.Book, bool, error) {
	books, err := c.FindBooks(ctx, query.StorageQuery{Where: query.Clause{
		query.FieldTitle: map[string]any{query.OpContains: b.Title, query.OpMode: query.ModeInsensitive},
	}})
	if err != nil {
		return domain.Book{}, false, fmt.Errorf("repository: UpsertBook: %w", err)
	}
	for _, existing := range books {
		if !strings.EqualFold(existing.Title, b.Title) {
			continue
		}
		var u domain.BookUpdate
		if b.Author != "" {
			u.Author = domain.Ptr(b.Author)
		}
		if b.Genre != "" {
			u.Genre = domain.Ptr(b.Genre)
		}
		if b.Pages > 0 {
			u.Pages = domain.Ptr(b.Pages)
		}
		updated, err := c.UpdateBook(ctx, existing.ID, u)
		if err != nil {
			return domain.Book{}, false, err
		}
		return updated, false, nil
	}
	created, err := c.CreateBook(ctx, b)
	if err != nil {
		return domain.Book{}, false, err
	}
	return created, true, nil
}

// DeleteBook removes the book with id. Deleting a missing book is not an
// error.
func (c *Client) DeleteBook(ctx context.Context, id int) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: c.table(),
		Key:       key(bookPK(id), skMeta),
	})
	if err != nil {
		return fmt.Errorf("repository: DeleteBook: %w", err)
	}
	return nil
}

func notFound(id int) error {
	return domain.NewError(domain.ErrorNotFound, "book_not_found", "I couldn't find that book.", fmt.Errorf("book %d", id))
}

func orderBooks(books []domain.Book, o query.Order) {
	less := func(a, b domain.Book) bool {
		switch o.Field {
		case query.SortByPages:
			return a.Pages < b.Pages
		case query.SortByRating:
			return a.Rating < b.Rating
		case query.SortByAuthor:
			return strings.ToLower(a.Author) < strings.ToLower(b.Author)
		case query.SortByDateRead:
			return a.Read < b.Read
		default:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	}
	sort.SliceStable(books, func(i, j int) bool {
		if o.Direction == query.SortDesc {
			return less(books[j], books[i])
		}
		return less(books[i], books[j])
	})
}

func bookItem(b domain.Book) map[string]types.AttributeValue {
	item := key(bookPK(b.ID), skMeta)
	item[attrID] = numValue(b.ID)
	item[attrTitle] = &types.AttributeValueMemberS{Value: b.Title}
	item[attrTitleLower] = &types.AttributeValueMemberS{Value: strings.ToLower(b.Title)}
	item[attrCurrentlyReading] = &types.AttributeValueMemberBOOL{Value: b.CurrentlyReading}
	item[attrPages] = numValue(b.Pages)
	item[attrCurrentPage] = numValue(b.CurrentPage)
	item[attrProgress] = numValue(b.Progress)
	if b.Author != "" {
		item[attrAuthor] = &types.AttributeValueMemberS{Value: b.Author}
		item[attrAuthorLower] = &types.AttributeValueMemberS{Value: strings.ToLower(b.Author)}
	}
	if b.Genre != "" {
		item[attrGenre] = &types.AttributeValueMemberS{Value: b.Genre}
	}
	if b.Rating > 0 {
		item[attrRating] = numValue(b.Rating)
	}
	if b.Read != "" {
		item[attrRead] = &types.AttributeValueMemberS{Value: b.Read}
	}
	if b.StartedAt != "" {
		item[attrStartedAt] = &types.AttributeValueMemberS{Value: b.StartedAt}
	}
	return item
}

func itemToBook(item map[string]types.AttributeValue) (domain.Book, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Book{}, err
	}
	id, err := strconv.Atoi(strings.TrimPrefix(pk, pkBook))
	if err != nil {
		return domain.Book{}, fmt.Errorf("repository: malformed book key %q", pk)
	}
	title, err := strAttr(item, attrTitle)
	if err != nil {
		return domain.Book{}, err
	}

	b := domain.Book{ID: id, Title: title}
	for _, f := range []struct {
		attr string
		dst  *string
	}{
		{attrAuthor, &b.Author},
		{attrGenre, &b.Genre},
		{attrRead, &b.Read},
		{attrStartedAt, &b.StartedAt},
	} {
		if *f.dst, err = optStr(item, f.attr); err != nil {
			return domain.Book{}, err
		}
	}
	for _, f := range []struct {
		attr string
		dst  *int
	}{
		{attrPages, &b.Pages},
		{attrRating, &b.Rating},
		{attrCurrentPage, &b.CurrentPage},
		{attrProgress, &b.Progress},
	} {
		if *f.dst, err = optInt(item, f.attr); err != nil {
			return domain.Book{}, err
		}
	}
	if b.CurrentlyReading, err = boolAttr(item, attrCurrentlyReading); err != nil {
		return domain.Book{}, err
	}
	return b, nil
}
