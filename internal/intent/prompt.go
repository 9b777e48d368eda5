package intent

import (
	"strings"

	"book-sms-agent/internal/domain"
)

func buildClassificationMessages(text string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildClassificationPrompt()},
		{Role: domain.RoleUser, Content: normalizePromptInput(text)},
	}
}

func buildClassificationPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You classify SMS messages sent to a personal book-tracking assistant.",
		"",
		"Task:",
		"Pick the single intent that best matches the message and extract its parameters.",
		"",
		"Intents:",
		intentList(),
		"",
		"Parameter Rules:",
		parameterRules(),
		"",
		"Output Contract:",
		classificationContract(),
	}, "\n")
}

func intentList() string {
	return strings.Join([]string{
		"- update_progress: reports a page number or percentage in a book",
		"- finish_book: says a book was finished, optionally with a rating",
		"- start_book: says a book was started",
		"- rate_book: gives a book a 1-5 star rating",
		"- book_details: asks about one specific book",
		"- search_books: asks for a list of books by filters",
		"- recommend_books: asks what to read next",
		"- compare_books: compares two or more books",
		"- time_query: asks what or how much was read in a period",
		"- current_reading: asks what is being read now",
		"- add_book: adds a book to the library",
		"- delete_book: removes a book from the library",
		"- list_reference: picks an item from the previous list (\"the second one\")",
		"- pagination_next: asks for more results",
		"- pagination_previous: asks for the previous results",
		"- help: asks how to use the assistant",
		"- unknown: anything else",
	}, "\n")
}

func parameterRules() string {
	return strings.Join([]string{
		"1) Keep book titles exactly as written; keep pronouns like \"it\" as the title.",
		"2) rating is an integer from 1 to 5; percentage is an integer from 0 to 100.",
		"3) month is 1-12; year is four digits; timeframe is one of this_year, last_year, this_month, last_month.",
		"4) readStatus is one of unread, reading, completed.",
		"5) sortBy is one of rating, pages, title, author, read; sortOrder is asc or desc.",
		"6) Omit any parameter the message does not state.",
	}, "\n")
}

func classificationContract() string {
	return "Return JSON only with keys intent (string), confidence (number between 0 and 1) and parameters (object). " +
		"parameters may contain bookTitle, bookTitles, pageNumber, percentage, rating, genre, author, readStatus, " +
		"minPages, maxPages, minRating, maxRating, year, month, timeframe, sortBy, sortOrder, limit, reference."
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
