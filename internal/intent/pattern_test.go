package intent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/query"
)

func TestPatternClassifier_RuleOrder(t *testing.T) {
	require.Equal(t, []string{
		"help",
		"pagination_next",
		"pagination_previous",
		"list_reference",
		"update_progress",
		"finish_book",
		"start_book",
		"rate_book",
		"delete_book",
		"add_book",
		"compare_books",
		"current_reading",
		"time_query",
		"book_details",
		"recommend_books",
		"search_books",
	}, NewPatternClassifier().RuleOrder())
}

func TestPatternClassifier_Intents(t *testing.T) {
	cases := []struct {
		text       string
		intent     domain.Intent
		confidence float64
	}{
		{"help", domain.IntentHelp, 0.95},
		{"?", domain.IntentHelp, 0.95},
		{"HELP!", domain.IntentHelp, 0.95},
		{"next", domain.IntentPaginationNext, 0.95},
		{"show more", domain.IntentPaginationNext, 0.95},
		{"back", domain.IntentPaginationPrevious, 0.95},
		{"the second one", domain.IntentListReference, 0.9},
		{"2", domain.IntentListReference, 0.9},
		{"I'm on page 50 of The Hobbit", domain.IntentUpdateProgress, 0.9},
		{"update my progress", domain.IntentUpdateProgress, 0.75},
		{"I finished Dune", domain.IntentFinishBook, 0.9},
		{"started Project Hail Mary", domain.IntentStartBook, 0.9},
		{"rate Dune 4 stars", domain.IntentRateBook, 0.9},
		{"delete Dune from my library", domain.IntentDeleteBook, 0.9},
		{"add Dune by Frank Herbert", domain.IntentAddBook, 0.85},
		{"compare Dune and Emma", domain.IntentCompareBooks, 0.9},
		{"Dune vs Emma", domain.IntentCompareBooks, 0.85},
		{"what am I reading?", domain.IntentCurrentReading, 0.9},
		{"how many books did I read in 2023", domain.IntentTimeQuery, 0.85},
		{"tell me about Dune", domain.IntentBookDetails, 0.85},
		{"recommend a fantasy book", domain.IntentRecommendBooks, 0.85},
		{"Unread fantasy under 300 pages", domain.IntentSearchBooks, 0.8},
		{"finished books", domain.IntentSearchBooks, 0.8},
		{"show me my books", domain.IntentSearchBooks, 0.75},
		{"progress?", domain.IntentUpdateProgress, 0.5},
		{"blah blah", domain.IntentUnknown, 0.1},
		{"   ", domain.IntentUnknown, 0},
		{"", domain.IntentUnknown, 0},
	}
	c := NewPatternClassifier()
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			r := c.Classify(tc.text)
			require.Equal(t, tc.intent, r.Intent)
			require.Equal(t, tc.intent, r.Params.Intent())
			require.InDelta(t, tc.confidence, r.Confidence, 1e-9)
			require.Less(t, r.Confidence, 1.0)
		})
	}
}

func TestPatternClassifier_RawMessageIsVerbatim(t *testing.T) {
	r := NewPatternClassifier().Classify("  Help  ")
	require.Equal(t, "  Help  ", r.RawMessage)
	require.Equal(t, domain.IntentHelp, r.Intent)
}

func TestPatternClassifier_ProgressExtraction(t *testing.T) {
	c := NewPatternClassifier()

	p := c.Classify("I'm on page 50 of The Hobbit").Params.(*UpdateProgressParams)
	require.Equal(t, 50, *p.PageNumber)
	require.Nil(t, p.Percentage)
	require.Equal(t, "The Hobbit", p.Book.Title)

	p = c.Classify("50% through Dune").Params.(*UpdateProgressParams)
	require.Equal(t, 50, *p.Percentage)
	require.Equal(t, "Dune", p.Book.Title)

	p = c.Classify("The Hobbit page 120").Params.(*UpdateProgressParams)
	require.Equal(t, 120, *p.PageNumber)
	require.Equal(t, "The Hobbit", p.Book.Title)

	p = c.Classify("on page 75").Params.(*UpdateProgressParams)
	require.Empty(t, p.Book.Title)

	r := c.Classify("I'm 150% done")
	require.Equal(t, domain.IntentUpdateProgress, r.Intent)
	p = r.Params.(*UpdateProgressParams)
	require.Nil(t, p.Percentage, "percentages above 100 are dropped")
	require.True(t, r.NeedsMoreInfo)
	require.NotEmpty(t, r.FollowUpQuestion)
}

func TestPatternClassifier_FinishExtraction(t *testing.T) {
	c := NewPatternClassifier()

	p := c.Classify("Finished The Name of the Wind, 5 stars").Params.(*FinishBookParams)
	require.Equal(t, "The Name of the Wind", p.Book.Title)
	require.Equal(t, 5, *p.Rating)

	p = c.Classify("mark Dune as read").Params.(*FinishBookParams)
	require.Equal(t, "Dune", p.Book.Title)
	require.Nil(t, p.Rating)

	p = c.Classify("I'm done with it").Params.(*FinishBookParams)
	require.Equal(t, "it", p.Book.Title)

	r := c.Classify("finished")
	require.Equal(t, domain.IntentFinishBook, r.Intent)
	require.True(t, r.NeedsMoreInfo)
	require.Equal(t, "Which book did you finish?", r.FollowUpQuestion)
}

func TestPatternClassifier_RatingExtraction(t *testing.T) {
	c := NewPatternClassifier()
	cases := []struct {
		text   string
		title  string
		rating *int
	}{
		{"rate Dune 4 stars", "Dune", domain.Ptr(4)},
		{"rate it 5", "it", domain.Ptr(5)},
		{"give it 3 stars", "it", domain.Ptr(3)},
		{"5 stars for Emma", "Emma", domain.Ptr(5)},
		{"Persuasion was 4 stars", "Persuasion", domain.Ptr(4)},
		{"rate Dune 9", "Dune", nil},
		{"rate Dune", "Dune", nil},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			r := c.Classify(tc.text)
			require.Equal(t, domain.IntentRateBook, r.Intent)
			p := r.Params.(*RateBookParams)
			require.Equal(t, tc.title, p.Book.Title)
			require.Equal(t, tc.rating, p.Rating)
			require.Equal(t, tc.rating == nil, r.NeedsMoreInfo)
		})
	}
}

func TestPatternClassifier_OtherExtraction(t *testing.T) {
	c := NewPatternClassifier()

	add := c.Classify("add Dune by Frank Herbert to my library").Params.(*AddBookParams)
	require.Equal(t, "Dune", add.Title)
	require.Equal(t, "Frank Herbert", add.Author)

	cmpP := c.Classify("compare Dune with \"Emma\"").Params.(*CompareBooksParams)
	require.Equal(t, []BookRef{{Title: "Dune"}, {Title: "Emma"}}, cmpP.Books)

	r := c.Classify("compare Dune")
	require.True(t, r.NeedsMoreInfo)

	details := c.Classify(`tell me about "The Hobbit"`).Params.(*BookDetailsParams)
	require.Equal(t, "The Hobbit", details.Book.Title)

	tq := c.Classify("how many books did I finish this year").Params.(*TimeQueryParams)
	require.Equal(t, TimeframeThisYear, tq.Timeframe)
	require.Nil(t, tq.Year)

	tq = c.Classify("how many books did I read in 2023").Params.(*TimeQueryParams)
	require.Equal(t, 2023, *tq.Year)

	rec := c.Classify("recommend a sci-fi book").Params.(*RecommendBooksParams)
	require.Equal(t, "Science Fiction", rec.Genre)

	ref := c.Classify("the second one").Params.(*ListReferenceParams)
	require.Equal(t, "the second one", ref.Reference)
}

func TestPatternClassifier_SearchFilters(t *testing.T) {
	r := NewPatternClassifier().Classify("Unread fantasy under 300 pages")
	p := r.Params.(*SearchBooksParams)
	want := query.ParsedFilters{ReadStatus: query.ReadStatusUnread, Genre: "Fantasy", MaxPages: domain.Ptr(300)}
	if diff := cmp.Diff(want, p.Filters); diff != "" {
		t.Fatalf("filters mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 0, p.Page)
	require.False(t, r.NeedsMoreInfo)
}
