package domain

// Intent is the classified purpose of an inbound message.
type Intent string

const (
	IntentUpdateProgress     Intent = "update_progress"
	IntentFinishBook         Intent = "finish_book"
	IntentStartBook          Intent = "start_book"
	IntentRateBook           Intent = "rate_book"
	IntentBookDetails        Intent = "book_details"
	IntentSearchBooks        Intent = "search_books"
	IntentRecommendBooks     Intent = "recommend_books"
	IntentCompareBooks       Intent = "compare_books"
	IntentTimeQuery          Intent = "time_query"
	IntentCurrentReading     Intent = "current_reading"
	IntentAddBook            Intent = "add_book"
	IntentDeleteBook         Intent = "delete_book"
	IntentListReference      Intent = "list_reference"
	IntentPaginationNext     Intent = "pagination_next"
	IntentPaginationPrevious Intent = "pagination_previous"
	IntentHelp               Intent = "help"
	IntentUnknown            Intent = "unknown"
)

// Intents lists the closed intent set.
var Intents = []Intent{
	IntentUpdateProgress,
	IntentFinishBook,
	IntentStartBook,
	IntentRateBook,
	IntentBookDetails,
	IntentSearchBooks,
	IntentRecommendBooks,
	IntentCompareBooks,
	IntentTimeQuery,
	IntentCurrentReading,
	IntentAddBook,
	IntentDeleteBook,
	IntentListReference,
	IntentPaginationNext,
	IntentPaginationPrevious,
	IntentHelp,
	IntentUnknown,
}

// ParseIntent maps s onto the closed set.
func ParseIntent(s string) (Intent, bool) {
	for _, in := range Intents {
		if string(in) == s {
			return in, true
		}
	}
	return IntentUnknown, false
}

// IsFollowUp reports whether the intent only makes sense against a previous turn.
func (i Intent) IsFollowUp() bool {
	switch i {
	case IntentListReference, IntentPaginationNext, IntentPaginationPrevious:
		return true
	default:
		return false
	}
}
