package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/query"
)

type fakeDynamo struct {
	getOut     *dynamodb.GetItemOutput
	getErr     error
	putErr     error
	updateOuts []*dynamodb.UpdateItemOutput
	updateErr  error
	deleteErr  error
	scanOuts   []*dynamodb.ScanOutput
	scanErr    error

	lastGetInput    *dynamodb.GetItemInput
	putInputs       []*dynamodb.PutItemInput
	updateInputs    []*dynamodb.UpdateItemInput
	lastDeleteInput *dynamodb.DeleteItemInput
	scanInputs      []*dynamodb.ScanInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putInputs = append(f.putInputs, in)
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateInputs = append(f.updateInputs, in)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	out := f.updateOuts[0]
	f.updateOuts = f.updateOuts[1:]
	return out, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDeleteInput = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scanInputs = append(f.scanInputs, in)
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	out := f.scanOuts[0]
	f.scanOuts = f.scanOuts[1:]
	return out, nil
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table", WithClock(func() time.Time {
		return time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	return c
}

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func makeBookItem(id, title, pages string, extra map[string]types.AttributeValue) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":    s("BOOK#" + id),
		"SK":    s(skMeta),
		"title": s(title),
		"pages": n(pages),
	}
	for k, v := range extra {
		item[k] = v
	}
	return item
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "t")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestGetBook_HappyPath(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: makeBookItem("7", "Dune", "412", map[string]types.AttributeValue{
		"author":           s("Frank Herbert"),
		"genre":            s("Science Fiction"),
		"rating":           n("5"),
		"read":             s("2024-03-02"),
		"currentlyReading": &types.AttributeValueMemberBOOL{Value: false},
	})}}
	c := mustNewClient(t, db)

	b, err := c.GetBook(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, &domain.Book{
		ID: 7, Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction",
		Pages: 412, Rating: 5, Read: "2024-03-02",
	}, b)
	require.Equal(t, "BOOK#7", db.lastGetInput.Key["PK"].(*types.AttributeValueMemberS).Value)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestGetBook_Missing(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{}})
	b, err := c.GetBook(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestGetBook_Error(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getErr: errors.New("boom")})
	_, err := c.GetBook(context.Background(), 1)
	require.ErrorContains(t, err, "repository: GetBook")
}

func TestCreateBook_AssignsCounterID(t *testing.T) {
	db := &fakeDynamo{updateOuts: []*dynamodb.UpdateItemOutput{{Attributes: map[string]types.AttributeValue{"seq": n("12")}}}}
	c := mustNewClient(t, db)

	b, err := c.CreateBook(context.Background(), domain.Book{Title: "Emma", Author: "Jane Austen", Pages: 474})
	require.NoError(t, err)
	require.Equal(t, 12, b.ID)

	require.Equal(t, "ADD #seq :one", *db.updateInputs[0].UpdateExpression)
	require.Equal(t, pkCounter, db.updateInputs[0].Key["PK"].(*types.AttributeValueMemberS).Value)

	item := db.putInputs[0].Item
	require.Equal(t, "BOOK#12", item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "emma", item["titleLower"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "jane austen", item["authorLower"].(*types.AttributeValueMemberS).Value)
	require.NotContains(t, item, "rating", "unrated books omit the rating")
	require.NotContains(t, item, "read", "unread books omit the read date")
	require.Equal(t, "attribute_not_exists(PK)", *db.putInputs[0].ConditionExpression)
}

func TestCreateBook_RequiresTitle(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	_, err := c.CreateBook(context.Background(), domain.Book{Title: " "})
	require.Error(t, err)
}

func TestUpdateBook_BuildsSetAndRemove(t *testing.T) {
	db := &fakeDynamo{updateOuts: []*dynamodb.UpdateItemOutput{{Attributes: makeBookItem("3", "Dune", "412", map[string]types.AttributeValue{
		"currentPage": n("100"),
	})}}}
	c := mustNewClient(t, db)

	b, err := c.UpdateBook(context.Background(), 3, domain.BookUpdate{
		CurrentPage: domain.Ptr(100),
		Rating:      domain.Ptr(0),
		Read:        domain.Ptr(""),
	})
	require.NoError(t, err)
	require.Equal(t, 100, b.CurrentPage)

	in := db.updateInputs[0]
	require.Equal(t, "SET #currentPage = :v0 REMOVE #rating, #read", *in.UpdateExpression)
	require.Equal(t, "attribute_exists(PK)", *in.ConditionExpression)
	require.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
}

func TestUpdateBook_TitleKeepsLowercaseCopy(t *testing.T) {
	db := &fakeDynamo{updateOuts: []*dynamodb.UpdateItemOutput{{Attributes: makeBookItem("3", "Dune Messiah", "256", nil)}}}
	c := mustNewClient(t, db)

	_, err := c.UpdateBook(context.Background(), 3, domain.BookUpdate{Title: domain.Ptr("Dune Messiah")})
	require.NoError(t, err)
	in := db.updateInputs[0]
	require.Equal(t, "SET #title = :v0, #titleLower = :v1", *in.UpdateExpression)
	require.Equal(t, "dune messiah", in.ExpressionAttributeValues[":v1"].(*types.AttributeValueMemberS).Value)
}

func TestUpdateBook_MissingIsNotFound(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{}})
	_, err := c.UpdateBook(context.Background(), 9, domain.BookUpdate{Progress: domain.Ptr(10)})
	require.True(t, domain.IsCode(err, domain.ErrorNotFound))
}

func TestFindBooks_FiltersSortsAndPages(t *testing.T) {
	db := &fakeDynamo{scanOuts: []*dynamodb.ScanOutput{
		{
			Items: []map[string]types.AttributeValue{
				makeBookItem("1", "Short", "120", nil),
				makeBookItem("2", "Long", "900", nil),
			},
			LastEvaluatedKey: map[string]types.AttributeValue{"PK": s("BOOK#2"), "SK": s(skMeta)},
		},
		{Items: []map[string]types.AttributeValue{makeBookItem("3", "Medium", "300", nil)}},
	}}
	c := mustNewClient(t, db)

	books, err := c.FindBooks(context.Background(), query.StorageQuery{
		Where:   query.Clause{query.FieldGenre: "Fantasy"},
		OrderBy: &query.Order{Field: query.SortByPages, Direction: query.SortDesc},
		Skip:    domain.Ptr(1),
		Take:    domain.Ptr(1),
	})
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, "Medium", books[0].Title)

	require.Len(t, db.scanInputs, 2, "all scan pages are read")
	require.NotNil(t, db.scanInputs[1].ExclusiveStartKey)
	require.Equal(t, "begins_with(#PK, :v1) AND #genre = :v0", *db.scanInputs[0].FilterExpression)
}

func TestFindBooks_SkipPastEnd(t *testing.T) {
	db := &fakeDynamo{scanOuts: []*dynamodb.ScanOutput{{Items: []map[string]types.AttributeValue{makeBookItem("1", "Dune", "412", nil)}}}}
	c := mustNewClient(t, db)
	books, err := c.FindBooks(context.Background(), query.StorageQuery{Skip: domain.Ptr(5)})
	require.NoError(t, err)
	require.Empty(t, books)
}

func TestCountBooks_SumsPages(t *testing.T) {
	db := &fakeDynamo{scanOuts: []*dynamodb.ScanOutput{
		{Count: 4, LastEvaluatedKey: map[string]types.AttributeValue{"PK": s("BOOK#4")}},
		{Count: 2},
	}}
	c := mustNewClient(t, db)

	total, err := c.CountBooks(context.Background(), query.Clause{query.FieldRead: nil})
	require.NoError(t, err)
	require.Equal(t, 6, total)
	require.Equal(t, types.SelectCount, db.scanInputs[0].Select)
	require.Equal(t, "begins_with(#PK, :v0) AND attribute_not_exists(#read)", *db.scanInputs[0].FilterExpression)
}

func TestCountBooks_ScanError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{scanErr: errors.New("throttled")})
	_, err := c.CountBooks(context.Background(), nil)
	require.ErrorContains(t, err, "repository: CountBooks")
}

func TestUpsertBook_UpdatesExistingTitle(t *testing.T) {
	db := &fakeDynamo{
		scanOuts: []*dynamodb.ScanOutput{{Items: []map[string]types.AttributeValue{
			makeBookItem("4", "Dune Messiah", "256", nil),
			makeBookItem("3", "Dune", "412", nil),
		}}},
		updateOuts: []*dynamodb.UpdateItemOutput{{Attributes: makeBookItem("3", "Dune", "412", map[string]types.AttributeValue{
			"author": s("Frank Herbert"),
		})}},
	}
	c := mustNewClient(t, db)

	b, created, err := c.UpsertBook(context.Background(), domain.Book{Title: "dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "Frank Herbert", b.Author)
	require.Equal(t, "BOOK#3", db.updateInputs[0].Key["PK"].(*types.AttributeValueMemberS).Value)
	require.Empty(t, db.putInputs)
}

func TestUpsertBook_CreatesNewTitle(t *testing.T) {
	db := &fakeDynamo{
		scanOuts:   []*dynamodb.ScanOutput{{}},
		updateOuts: []*dynamodb.UpdateItemOutput{{Attributes: map[string]types.AttributeValue{"seq": n("1")}}},
	}
	c := mustNewClient(t, db)

	b, created, err := c.UpsertBook(context.Background(), domain.Book{Title: "Emma"})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 1, b.ID)
	require.Len(t, db.putInputs, 1)
}

func TestDeleteBook(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	require.NoError(t, c.DeleteBook(context.Background(), 5))
	require.Equal(t, "BOOK#5", db.lastDeleteInput.Key["PK"].(*types.AttributeValueMemberS).Value)

	db.deleteErr = errors.New("boom")
	require.Error(t, c.DeleteBook(context.Background(), 5))
}

func TestClaimMessage(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	ok, err := c.ClaimMessage(context.Background(), "15550102000", "SM1")
	require.NoError(t, err)
	require.True(t, ok)

	item := db.putInputs[0].Item
	require.Equal(t, "SENDER#15550102000", item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "MSG#SM1", item["SK"].(*types.AttributeValueMemberS).Value)
	wantTTL := time.Date(2026, 4, 17, 12, 0, 0, 0, time.UTC).Unix()
	require.Equal(t, n(itoa64(wantTTL)), item["ttl"])
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *db.putInputs[0].ConditionExpression)
}

func TestClaimMessage_Duplicate(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{putErr: &types.ConditionalCheckFailedException{}})
	ok, err := c.ClaimMessage(context.Background(), "1555", "SM1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClaimMessage_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{putErr: errors.New("boom")})
	_, err := c.ClaimMessage(context.Background(), "1555", "SM1")
	require.ErrorContains(t, err, "repository: ClaimMessage")

	_, err = c.ClaimMessage(context.Background(), "", "SM1")
	require.Error(t, err)
}
