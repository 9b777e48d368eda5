package intent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"book-sms-agent/internal/domain"
)

func TestRequestFor_RoundTrip(t *testing.T) {
	cases := []Params{
		&UpdateProgressParams{Book: BookRef{Title: "Dune"}, PageNumber: domain.Ptr(40)},
		&FinishBookParams{Book: BookRef{ID: 3, Title: "Emma"}, Rating: domain.Ptr(5)},
		&StartBookParams{Book: BookRef{Title: "Dune"}},
		&RateBookParams{Book: BookRef{ID: 7}, Rating: domain.Ptr(2)},
		&BookDetailsParams{Book: BookRef{Title: "The Hobbit"}},
		&DeleteBookParams{Book: BookRef{ID: 9, Title: "Emma"}},
	}
	for _, p := range cases {
		t.Run(string(p.Intent()), func(t *testing.T) {
			r, ok := RequestFor(p)
			require.True(t, ok)
			require.Equal(t, p.Intent(), r.Intent)
			require.Equal(t, p, ParamsForRequest(r))
		})
	}

	_, ok := RequestFor(&SearchBooksParams{})
	require.False(t, ok)
	_, ok = RequestFor(&CompareBooksParams{})
	require.False(t, ok)
	_, ok = RequestFor(nil)
	require.False(t, ok)
}

func TestFillRequest_Rating(t *testing.T) {
	pending := domain.PendingRequest{Intent: domain.IntentRateBook, BookID: 4, BookTitle: "Dune"}

	for _, reply := range []string{"4", "4 stars", "4/5", "a 4.", "give it 4 stars"} {
		t.Run(reply, func(t *testing.T) {
			p, ok := FillRequest(pending, reply)
			require.True(t, ok)
			require.Equal(t, &RateBookParams{Book: BookRef{ID: 4, Title: "Dune"}, Rating: domain.Ptr(4)}, p)
		})
	}

	p, ok := FillRequest(pending, "9")
	require.True(t, ok, "out of range ratings reach the handler")
	require.Equal(t, 9, *p.(*RateBookParams).Rating)

	for _, reply := range []string{"0", "show my books", "Dune"} {
		_, ok := FillRequest(pending, reply)
		require.False(t, ok, reply)
	}

	_, ok = FillRequest(domain.PendingRequest{Intent: domain.IntentRateBook}, "4")
	require.False(t, ok, "a book is needed before the rating")

	_, ok = FillRequest(domain.PendingRequest{Intent: domain.IntentRateBook, BookID: 4, Rating: domain.Ptr(3)}, "2")
	require.False(t, ok, "a rated request waits for a book choice")
}

func TestFillRequest_Progress(t *testing.T) {
	pending := domain.PendingRequest{Intent: domain.IntentUpdateProgress, BookTitle: "Dune"}

	p, ok := FillRequest(pending, "120")
	require.True(t, ok)
	require.Equal(t, &UpdateProgressParams{Book: BookRef{Title: "Dune"}, PageNumber: domain.Ptr(120)}, p)

	p, ok = FillRequest(pending, "I'm on page 88")
	require.True(t, ok)
	require.Equal(t, 88, *p.(*UpdateProgressParams).PageNumber)

	p, ok = FillRequest(pending, "40%")
	require.True(t, ok)
	require.Equal(t, 40, *p.(*UpdateProgressParams).Percentage)
	require.Nil(t, p.(*UpdateProgressParams).PageNumber)

	_, ok = FillRequest(pending, "halfway there")
	require.False(t, ok)

	_, ok = FillRequest(domain.PendingRequest{Intent: domain.IntentUpdateProgress, PageNumber: domain.Ptr(5)}, "2")
	require.False(t, ok)

	_, ok = FillRequest(domain.PendingRequest{Intent: domain.IntentStartBook}, "2")
	require.False(t, ok)
}

func TestNameBook(t *testing.T) {
	p, ok := NameBook(domain.PendingRequest{Intent: domain.IntentFinishBook, Rating: domain.Ptr(5)}, ` "Dune". `)
	require.True(t, ok)
	require.Equal(t, &FinishBookParams{Book: BookRef{Title: "Dune"}, Rating: domain.Ptr(5)}, p)

	_, ok = NameBook(domain.PendingRequest{Intent: domain.IntentFinishBook, BookTitle: "Emma"}, "Dune")
	require.False(t, ok)

	_, ok = NameBook(domain.PendingRequest{Intent: domain.IntentFinishBook}, " ?! ")
	require.False(t, ok)
}

func TestResultFor_AsksForMissingSlot(t *testing.T) {
	r := ResultFor("Dune", &RateBookParams{Book: BookRef{Title: "Dune"}})
	require.True(t, r.NeedsMoreInfo)
	require.Equal(t, domain.IntentRateBook, r.Intent)
	require.Equal(t, MissingSlotQuestion(r.Params), r.FollowUpQuestion)

	r = ResultFor("4", &RateBookParams{Book: BookRef{Title: "Dune"}, Rating: domain.Ptr(4)})
	require.False(t, r.NeedsMoreInfo)
}
