package intent

import (
	"regexp"
	"strconv"
	"strings"

	"book-sms-agent/internal/query"
)

// Confidence bands of the pattern classifier.
const (
	confidenceCommand  = 0.95
	confidenceExplicit = 0.9
	confidenceStrong   = 0.85
	confidenceFilters  = 0.8
	confidenceWeak     = 0.75
	confidenceKeyword  = 0.5
	confidenceHint     = 0.45
	confidenceFallback = 0.4
	confidenceUnknown  = 0.1
)

type message struct {
	raw   string
	clean string
	lower string
}

type rule struct {
	name  string
	match func(m message) (Params, float64, bool)
}

// PatternClassifier is a deterministic ordered rule table. The first rule
// that matches decides the intent.
type PatternClassifier struct {
	rules     []rule
	fallbacks []rule
}

func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{
		rules: []rule{
			{"help", matchHelp},
			{"pagination_next", matchNext},
			{"pagination_previous", matchPrevious},
			{"list_reference", matchListReference},
			{"update_progress", matchUpdateProgress},
			{"finish_book", matchFinishBook},
			{"start_book", matchStartBook},
			{"rate_book", matchRateBook},
			{"delete_book", matchDeleteBook},
			{"add_book", matchAddBook},
			{"compare_books", matchCompareBooks},
			{"current_reading", matchCurrentReading},
			{"time_query", matchTimeQuery},
			{"book_details", matchBookDetails},
			{"recommend_books", matchRecommend},
			{"search_books", matchSearch},
		},
		fallbacks: []rule{
			{"progress_keyword", keyword(progressKeywordRe, confidenceKeyword, func(message) Params { return &UpdateProgressParams{} })},
			{"finish_keyword", keyword(finishKeywordRe, confidenceHint, func(message) Params { return &FinishBookParams{} })},
			{"start_keyword", keyword(startKeywordRe, confidenceHint, func(message) Params { return &StartBookParams{} })},
			{"rate_keyword", keyword(rateKeywordRe, confidenceHint, func(message) Params { return &RateBookParams{} })},
			{"books_keyword", keyword(booksKeywordRe, confidenceFallback, func(m message) Params {
				return &SearchBooksParams{Query: m.clean, Filters: query.ParseFilters(m.clean)}
			})},
		},
	}
}

// RuleOrder lists the explicit rules in evaluation order.
func (c *PatternClassifier) RuleOrder() []string {
	out := make([]string, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.name
	}
	return out
}

// Classify never fails: unmatched text is unknown at low confidence and
// blank text is unknown at zero.
func (c *PatternClassifier) Classify(text string) ClassificationResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return newResult(text, 0, &UnknownParams{})
	}
	if trimmed == "?" {
		return newResult(text, confidenceCommand, &HelpParams{})
	}
	clean := strings.TrimSpace(strings.TrimRight(trimmed, ".!?"))
	m := message{raw: text, clean: clean, lower: strings.ToLower(clean)}

	for _, r := range c.rules {
		if p, conf, ok := r.match(m); ok {
			return newResult(text, conf, p)
		}
	}
	for _, r := range c.fallbacks {
		if p, conf, ok := r.match(m); ok {
			return newResult(text, conf, p)
		}
	}
	return newResult(text, confidenceUnknown, &UnknownParams{})
}

func keyword(re *regexp.Regexp, conf float64, build func(message) Params) func(message) (Params, float64, bool) {
	return func(m message) (Params, float64, bool) {
		if !re.MatchString(m.lower) {
			return nil, 0, false
		}
		return build(m), conf, true
	}
}

var (
	helpRe     = regexp.MustCompile(`^(?:help|help me|commands|menu|options|what can you do|how does this work|how do i use this)$`)
	nextRe     = regexp.MustCompile(`^(?:next|more|show more|next page|see more|more results|more please|keep going)$`)
	previousRe = regexp.MustCompile(`^(?:previous|prev|back|go back|previous page|prev page)$`)

	listRefRe = regexp.MustCompile(`^(?:(?:show me|tell me about|what about|open|pick|select|choose|give me)\s+)?(?:the\s+)?(first|second|third|fourth|fifth|last|[1-5](?:st|nd|rd|th)|#\s*\d{1,2}|(?:number|no\.?)\s*\d{1,2}|\d{1,2})(?:\s+(?:one|book|result|title))?$`)

	pageRe           = regexp.MustCompile(`(?i)\bpage\s+(\d+)\b`)
	percentRe        = regexp.MustCompile(`(?i)\b(\d{1,4})\s*(?:%|percent\b)`)
	progressPhraseRe = regexp.MustCompile(`(?i)\b(?:update|log|track)\s+(?:my\s+)?progress\b`)
	titleSuffixRe    = regexp.MustCompile(`(?i)^\s*(?:of|in|into|for|through|on)\s+(.+)$`)

	finishRe   = regexp.MustCompile(`(?i)^(?:i\s+|i've\s+|ive\s+|i\s+have\s+)?(?:just\s+|finally\s+)?(?:finished|completed|finish|complete)(?:\s+reading)?(?:\s+(.+))?$`)
	doneWithRe = regexp.MustCompile(`(?i)^(?:i'?m\s+|im\s+|i\s+am\s+)?(?:all\s+)?done\s+(?:with|reading)\s+(.+)$`)
	markReadRe = regexp.MustCompile(`(?i)^mark\s+(.+?)\s+as\s+(?:finished|read|done|completed?)$`)
	ratingTail = regexp.MustCompile(`(?i)^(.+?)(?:\s*,\s*|\s+)(?:and\s+)?(?:(?:i\s+)?(?:rate|rated|give|gave)\s+it\s+)?(?:a\s+)?(\d+)\s*(?:stars?|/\s*5|out\s+of\s+5)$`)

	startRe     = regexp.MustCompile(`(?i)^(?:i\s+|i've\s+|ive\s+|i\s+have\s+)?(?:just\s+)?(?:started|starting|began|begun|start|begin)(?:\s+(?:reading|on))?\s+(.+)$`)
	imReadingRe = regexp.MustCompile(`(?i)^(?:i'?m|im|i\s+am)\s+(?:now\s+|currently\s+)?(?:starting|reading)\s+(.+)$`)

	rateTitleFirstRe = regexp.MustCompile(`(?i)^(?:rate|rating)\s+(.+?)\s+(?:a\s+|as\s+)?(\d+)\s*(?:stars?|/\s*5|out\s+of\s+5)?$`)
	giveRe           = regexp.MustCompile(`(?i)^(?:i\s+)?(?:give|gave|giving)\s+(.+?)\s+(?:a\s+)?(\d+)\s*(?:stars?|/\s*5|out\s+of\s+5)?$`)
	starsForRe       = regexp.MustCompile(`(?i)^(\d+)\s*(?:stars?|/\s*5)\s+(?:for|to)\s+(.+)$`)
	titleIsStarsRe   = regexp.MustCompile(`(?i)^(.+?)(?:'s|\s+is|\s+was|\s+gets|\s+deserves)\s+(?:a\s+)?(\d+)\s*(?:stars?|/\s*5|out\s+of\s+5)$`)
	rateBareRe       = regexp.MustCompile(`(?i)^rate\s+(.+)$`)

	deleteRe = regexp.MustCompile(`(?i)^(?:please\s+)?(?:delete|remove)\s+(.+?)(?:\s+from\s+(?:my\s+)?(?:library|list|books|shelf|collection))?$`)
	addRe    = regexp.MustCompile(`(?i)^(?:please\s+)?add\s+(?:the\s+book\s+|a\s+book\s+)?(.+?)(?:\s+by\s+(.+?))?(?:\s+to\s+(?:my\s+)?(?:library|list|books|shelf|collection|reading list))?$`)

	compareRe     = regexp.MustCompile(`(?i)^compare\s+(.+?)\s+(?:and|with|vs\.?|versus|to)\s+(.+)$`)
	compareBareRe = regexp.MustCompile(`(?i)^compare\b\s*(.*)$`)
	versusRe      = regexp.MustCompile(`(?i)^(.+?)\s+(?:vs\.?|versus)\s+(.+)$`)

	currentRe = regexp.MustCompile(`^(?:what\s+(?:books?\s+)?am\s+i\s+(?:currently\s+)?reading(?:\s+(?:now|right now))?|(?:my\s+)?current(?:ly)?\s+(?:reading|reads?|books?)|what'?s\s+on\s+my\s+nightstand)$`)

	howManyRe     = regexp.MustCompile(`\bhow\s+many\b.*\b(?:read|finish(?:ed)?|complete(?:d)?)\b`)
	whatDidIRe    = regexp.MustCompile(`\b(?:what|which)(?:\s+books)?\s+(?:did|have)\s+i\s+(?:read|finish(?:ed)?)\b`)
	readDuringRe  = regexp.MustCompile(`\b(?:read|finished|completed)\b.*\b(?:this|last)\s+(?:year|month)\b`)
	timeframeRe   = regexp.MustCompile(`\b(this|last)\s+(year|month)\b`)
	detailsRe     = regexp.MustCompile(`(?i)^(?:tell\s+me\s+(?:more\s+)?about|more\s+about|info\s+(?:on|about|for)|information\s+(?:on|about)|details\s+(?:on|for|about|of)|describe|who\s+wrote|what\s+about|how\s+about|look\s+up|lookup)\s+(.+)$`)
	recommendRe   = regexp.MustCompile(`\b(?:recommend|recommendation|recommendations|suggest|suggestion|suggestions|what\s+should\s+i\s+read|what\s+to\s+read|something\s+to\s+read|next\s+read)\b`)
	searchVerbRe  = regexp.MustCompile(`^(?:show|find|list|search|get|give|display|which|what|any)\b`)
	booksNounRe   = regexp.MustCompile(`\b(?:books?|novels?|library|shelf|titles)\b`)
	pluralBooksRe = regexp.MustCompile(`(?i)\b(?:books|novels)\b`)

	progressKeywordRe = regexp.MustCompile(`\b(?:page|pages|progress|percent)\b`)
	finishKeywordRe   = regexp.MustCompile(`\b(?:finish|finished|done|completed)\b`)
	startKeywordRe    = regexp.MustCompile(`\b(?:start|started|starting|begin|began)\b`)
	rateKeywordRe     = regexp.MustCompile(`\b(?:stars?|rate|rating|rated)\b`)
	booksKeywordRe    = regexp.MustCompile(`\b(?:books?|read|reading|novels?)\b`)
)

func matchHelp(m message) (Params, float64, bool) {
	if helpRe.MatchString(m.lower) {
		return &HelpParams{}, confidenceCommand, true
	}
	return nil, 0, false
}

func matchNext(m message) (Params, float64, bool) {
	if nextRe.MatchString(m.lower) {
		return &PaginationParams{Next: true}, confidenceCommand, true
	}
	return nil, 0, false
}

func matchPrevious(m message) (Params, float64, bool) {
	if previousRe.MatchString(m.lower) {
		return &PaginationParams{}, confidenceCommand, true
	}
	return nil, 0, false
}

func matchListReference(m message) (Params, float64, bool) {
	if listRefRe.MatchString(m.lower) {
		return &ListReferenceParams{Reference: m.clean}, confidenceExplicit, true
	}
	return nil, 0, false
}

func matchUpdateProgress(m message) (Params, float64, bool) {
	p := &UpdateProgressParams{}
	var loc []int
	if sm := pageRe.FindStringSubmatchIndex(m.clean); sm != nil {
		p.PageNumber = positiveInt(m.clean[sm[2]:sm[3]])
		loc = sm
	} else if sm := percentRe.FindStringSubmatchIndex(m.clean); sm != nil {
		p.Percentage = percentInt(m.clean[sm[2]:sm[3]])
		loc = sm
	}
	if loc == nil {
		if progressPhraseRe.MatchString(m.clean) {
			return p, confidenceWeak, true
		}
		return nil, 0, false
	}
	p.Book.Title = progressTitle(m.clean[:loc[0]], m.clean[loc[1]:])
	return p, confidenceExplicit, true
}

var (
	leadingFiller = map[string]bool{
		"i'm": true, "im": true, "i": true, "am": true, "i've": true, "ive": true, "now": true,
		"currently": true, "just": true, "finally": true, "reading": true, "read": true,
		"reached": true, "got": true, "made": true, "it": true, "up": true, "at": true, "on": true,
		"to": true, "update": true, "updated": true, "log": true, "set": true, "progress": true,
		"my": true, "ok": true, "okay": true,
	}
	trailingFiller = map[string]bool{
		"on": true, "at": true, "to": true, "is": true, "now": true, "am": true, "i'm": true,
		"im": true, "-": true, ":": true, "up": true, "reached": true,
	}
)

// progressTitle picks the book title around a progress number: after a
// preposition that follows it, or else whatever non-filler text precedes it.
func progressTitle(before, after string) string {
	if sm := titleSuffixRe.FindStringSubmatch(after); sm != nil {
		return cleanTitle(sm[1])
	}
	words := strings.Fields(before)
	for len(words) > 0 && leadingFiller[strings.ToLower(strings.Trim(words[0], ",:-"))] {
		words = words[1:]
	}
	for len(words) > 0 && trailingFiller[strings.ToLower(strings.Trim(words[len(words)-1], ",:"))] {
		words = words[:len(words)-1]
	}
	return cleanTitle(strings.Join(words, " "))
}

func matchFinishBook(m message) (Params, float64, bool) {
	var rest string
	switch {
	case markReadRe.MatchString(m.clean):
		rest = markReadRe.FindStringSubmatch(m.clean)[1]
	case doneWithRe.MatchString(m.clean):
		rest = doneWithRe.FindStringSubmatch(m.clean)[1]
	case finishRe.MatchString(m.clean):
		rest = finishRe.FindStringSubmatch(m.clean)[1]
	default:
		return nil, 0, false
	}
	if pluralBooksRe.MatchString(rest) {
		return nil, 0, false
	}
	p := &FinishBookParams{}
	if sm := ratingTail.FindStringSubmatch(rest); sm != nil {
		rest = sm[1]
		p.Rating = starRating(sm[2])
	}
	p.Book.Title = cleanTitle(rest)
	return p, confidenceExplicit, true
}

func matchStartBook(m message) (Params, float64, bool) {
	var rest string
	switch {
	case imReadingRe.MatchString(m.clean):
		rest = imReadingRe.FindStringSubmatch(m.clean)[1]
	case startRe.MatchString(m.clean):
		rest = startRe.FindStringSubmatch(m.clean)[1]
	default:
		return nil, 0, false
	}
	if pluralBooksRe.MatchString(rest) {
		return nil, 0, false
	}
	return &StartBookParams{Book: BookRef{Title: cleanTitle(rest)}}, confidenceExplicit, true
}

func matchRateBook(m message) (Params, float64, bool) {
	var title, rating string
	switch {
	case rateTitleFirstRe.MatchString(m.clean):
		sm := rateTitleFirstRe.FindStringSubmatch(m.clean)
		title, rating = sm[1], sm[2]
	case giveRe.MatchString(m.clean):
		sm := giveRe.FindStringSubmatch(m.clean)
		title, rating = sm[1], sm[2]
	case starsForRe.MatchString(m.clean):
		sm := starsForRe.FindStringSubmatch(m.clean)
		rating, title = sm[1], sm[2]
	case titleIsStarsRe.MatchString(m.clean):
		sm := titleIsStarsRe.FindStringSubmatch(m.clean)
		title, rating = sm[1], sm[2]
	case rateBareRe.MatchString(m.clean):
		title = rateBareRe.FindStringSubmatch(m.clean)[1]
	default:
		return nil, 0, false
	}
	if pluralBooksRe.MatchString(title) {
		return nil, 0, false
	}
	p := &RateBookParams{Book: BookRef{Title: cleanTitle(title)}}
	if rating != "" {
		p.Rating = starRating(rating)
	}
	return p, confidenceExplicit, true
}

func matchDeleteBook(m message) (Params, float64, bool) {
	sm := deleteRe.FindStringSubmatch(m.clean)
	if sm == nil {
		return nil, 0, false
	}
	return &DeleteBookParams{Book: BookRef{Title: cleanTitle(sm[1])}}, confidenceExplicit, true
}

func matchAddBook(m message) (Params, float64, bool) {
	sm := addRe.FindStringSubmatch(m.clean)
	if sm == nil {
		return nil, 0, false
	}
	return &AddBookParams{
		Title:  cleanTitle(sm[1]),
		Author: cleanTitle(sm[2]),
	}, confidenceStrong, true
}

func matchCompareBooks(m message) (Params, float64, bool) {
	if sm := compareRe.FindStringSubmatch(m.clean); sm != nil {
		return &CompareBooksParams{Books: []BookRef{{Title: cleanTitle(sm[1])}, {Title: cleanTitle(sm[2])}}}, confidenceExplicit, true
	}
	if sm := compareBareRe.FindStringSubmatch(m.clean); sm != nil {
		p := &CompareBooksParams{}
		if t := cleanTitle(sm[1]); t != "" {
			p.Books = []BookRef{{Title: t}}
		}
		return p, confidenceWeak, true
	}
	if sm := versusRe.FindStringSubmatch(m.clean); sm != nil {
		return &CompareBooksParams{Books: []BookRef{{Title: cleanTitle(sm[1])}, {Title: cleanTitle(sm[2])}}}, confidenceStrong, true
	}
	return nil, 0, false
}

func matchCurrentReading(m message) (Params, float64, bool) {
	if currentRe.MatchString(m.lower) {
		return &CurrentReadingParams{}, confidenceExplicit, true
	}
	return nil, 0, false
}

func matchTimeQuery(m message) (Params, float64, bool) {
	if !howManyRe.MatchString(m.lower) && !whatDidIRe.MatchString(m.lower) && !readDuringRe.MatchString(m.lower) {
		return nil, 0, false
	}
	p := &TimeQueryParams{
		Year:  query.ParseYear(m.clean),
		Month: query.ParseMonth(m.clean),
	}
	if sm := timeframeRe.FindStringSubmatch(m.lower); sm != nil {
		p.Timeframe = Timeframe(sm[1] + "_" + sm[2])
	}
	return p, confidenceStrong, true
}

func matchBookDetails(m message) (Params, float64, bool) {
	sm := detailsRe.FindStringSubmatch(m.clean)
	if sm == nil || pluralBooksRe.MatchString(sm[1]) {
		return nil, 0, false
	}
	return &BookDetailsParams{Book: BookRef{Title: cleanTitle(sm[1])}}, confidenceStrong, true
}

func matchRecommend(m message) (Params, float64, bool) {
	if !recommendRe.MatchString(m.lower) {
		return nil, 0, false
	}
	return &RecommendBooksParams{Genre: query.LookupGenre(m.clean)}, confidenceStrong, true
}

func matchSearch(m message) (Params, float64, bool) {
	f := query.ParseFilters(m.clean)
	p := &SearchBooksParams{Query: m.clean, Filters: f}
	if !f.IsEmpty() {
		return p, confidenceFilters, true
	}
	if searchVerbRe.MatchString(m.lower) && booksNounRe.MatchString(m.lower) {
		return p, confidenceWeak, true
	}
	return nil, 0, false
}

const titleTrim = " \t\r\n\"'“”‘’.,!?;:"

// cleanTitle trims whitespace, punctuation and surrounding quotes while
// keeping the original casing.
func cleanTitle(s string) string {
	s = strings.Trim(strings.TrimSpace(s), titleTrim)
	return strings.Join(strings.Fields(s), " ")
}

func positiveInt(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func percentInt(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 100 {
		return nil
	}
	return &n
}

func starRating(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 5 {
		return nil
	}
	return &n
}
