package query

import (
	"regexp"
	"strconv"
	"strings"
)

// ReadStatus is the reading state a filter can target.
type ReadStatus string

const (
	ReadStatusUnread    ReadStatus = "unread"
	ReadStatusReading   ReadStatus = "reading"
	ReadStatusCompleted ReadStatus = "completed"
)

// SortField is a storage field results can be ordered by.
type SortField string

const (
	SortByRating   SortField = "rating"
	SortByPages    SortField = "pages"
	SortByTitle    SortField = "title"
	SortByAuthor   SortField = "author"
	SortByDateRead SortField = "read"
)

// SortOrder is the direction of an ordering.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseReadStatus accepts the canonical read status names.
func ParseReadStatus(s string) (ReadStatus, bool) {
	switch rs := ReadStatus(strings.ToLower(strings.TrimSpace(s))); rs {
	case ReadStatusUnread, ReadStatusReading, ReadStatusCompleted:
		return rs, true
	default:
		return "", false
	}
}

// ParseSortField accepts the canonical sort field names.
func ParseSortField(s string) (SortField, bool) {
	switch sf := SortField(strings.ToLower(strings.TrimSpace(s))); sf {
	case SortByRating, SortByPages, SortByTitle, SortByAuthor, SortByDateRead:
		return sf, true
	default:
		return "", false
	}
}

func ParseSortOrder(s string) (SortOrder, bool) {
	switch so := SortOrder(strings.ToLower(strings.TrimSpace(s))); so {
	case SortAsc, SortDesc:
		return so, true
	default:
		return "", false
	}
}

const (
	shortBookPages = 200
	longBookPages  = 500
)

// ParsedFilters is the structured form of a free-text book filter. Zero
// values and nil pointers mean the filter is absent.
type ParsedFilters struct {
	Genre      string     `json:"genre,omitempty"`
	Author     string     `json:"author,omitempty"`
	ReadStatus ReadStatus `json:"readStatus,omitempty"`
	MinPages   *int       `json:"minPages,omitempty"`
	MaxPages   *int       `json:"maxPages,omitempty"`
	MinRating  *int       `json:"minRating,omitempty"`
	MaxRating  *int       `json:"maxRating,omitempty"`
	Year       *int       `json:"year,omitempty"`
	Month      *int       `json:"month,omitempty"`
	SortBy     SortField  `json:"sortBy,omitempty"`
	SortOrder  SortOrder  `json:"sortOrder,omitempty"`
	Limit      *int       `json:"limit,omitempty"`
	Offset     *int       `json:"offset,omitempty"`
}

// IsEmpty reports whether no filter, sort or paging field is set.
func (f ParsedFilters) IsEmpty() bool {
	return f.Genre == "" && f.Author == "" && f.ReadStatus == "" &&
		f.MinPages == nil && f.MaxPages == nil &&
		f.MinRating == nil && f.MaxRating == nil &&
		f.Year == nil && f.Month == nil &&
		f.SortBy == "" && f.SortOrder == "" &&
		f.Limit == nil && f.Offset == nil
}

// Clone returns a deep copy of f.
func (f ParsedFilters) Clone() ParsedFilters {
	out := f
	out.MinPages = cloneInt(f.MinPages)
	out.MaxPages = cloneInt(f.MaxPages)
	out.MinRating = cloneInt(f.MinRating)
	out.MaxRating = cloneInt(f.MaxRating)
	out.Year = cloneInt(f.Year)
	out.Month = cloneInt(f.Month)
	out.Limit = cloneInt(f.Limit)
	out.Offset = cloneInt(f.Offset)
	return out
}

// genreSynonyms is checked in order; longer phrases come before the words
// they contain ("science fiction" before "science" and "fiction").
var genreSynonyms = []struct {
	alias string
	genre string
}{
	{"historical fiction", "Historical Fiction"},
	{"literary fiction", "Literary Fiction"},
	{"science fiction", "Science Fiction"},
	{"young adult", "Young Adult"},
	{"non-fiction", "Non-Fiction"},
	{"non fiction", "Non-Fiction"},
	{"nonfiction", "Non-Fiction"},
	{"self-help", "Self-Help"},
	{"self help", "Self-Help"},
	{"sci-fi", "Science Fiction"},
	{"scifi", "Science Fiction"},
	{"sf", "Science Fiction"},
	{"fantasy", "Fantasy"},
	{"mysteries", "Mystery"},
	{"mystery", "Mystery"},
	{"thrillers", "Thriller"},
	{"thriller", "Thriller"},
	{"romance", "Romance"},
	{"horror", "Horror"},
	{"biographies", "Biography"},
	{"biography", "Biography"},
	{"memoirs", "Memoir"},
	{"memoir", "Memoir"},
	{"history", "History"},
	{"philosophy", "Philosophy"},
	{"poetry", "Poetry"},
	{"classics", "Classics"},
	{"classic", "Classics"},
	{"business", "Business"},
	{"ya", "Young Adult"},
	{"science", "Science"},
	{"fiction", "Fiction"},
}

var genrePatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(genreSynonyms))
	for i, s := range genreSynonyms {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(s.alias) + `\b`)
	}
	return out
}()

// LookupGenre returns the canonical genre of the first synonym found in
// text, or "" when none is present.
func LookupGenre(text string) string {
	lower := strings.ToLower(text)
	for i, re := range genrePatterns {
		if re.MatchString(lower) {
			return genreSynonyms[i].genre
		}
	}
	return ""
}

// CanonicalGenre maps a genre name or synonym to its canonical form.
func CanonicalGenre(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", false
	}
	for _, s := range genreSynonyms {
		if s.alias == key || strings.ToLower(s.genre) == key {
			return s.genre, true
		}
	}
	return "", false
}

var (
	// Read status checks run unread, reading, completed. The completed check
	// is a loose "read" word match and must stay last.
	unreadRe    = regexp.MustCompile(`\b(?:haven'?t|have not|never|not yet|not)\s+(?:been\s+)?(?:read|started|finished)\b|\bunread\b|\bto[- ]read\b|\bnot started\b`)
	readingRe   = regexp.MustCompile(`\b(?:currently|still|now)\s+reading\b|\b(?:i'?m|i am)\s+reading\b|\breading now\b|\bin progress\b|\bstarted\b`)
	completedRe = regexp.MustCompile(`\b(?:read|finished|completed|done)\b`)

	maxPagesRe  = regexp.MustCompile(`\b(?:under|less than|fewer than|below|shorter than|at most|no more than|max(?:imum)?(?: of)?)\s*(\d+)(?:\s*-?\s*(stars?|books?|novels?|pages?|pgs?))?`)
	minPagesRe  = regexp.MustCompile(`\b(?:over|more than|greater than|above|longer than|at least|min(?:imum)?(?: of)?)\s*(\d+)(?:\s*-?\s*(stars?|books?|novels?|pages?|pgs?))?`)
	plusPagesRe = regexp.MustCompile(`\b(\d+)\+\s*(?:pages?|pgs?)\b`)
	betweenRe   = regexp.MustCompile(`\bbetween\s+(\d+)\s+and\s+(\d+)\s*(?:pages?|pgs?)\b`)
	shortRe     = regexp.MustCompile(`\bshort(?:er|est)?\b`)
	longRe      = regexp.MustCompile(`\blong(?:er|est)?\b`)

	ratingRe = regexp.MustCompile(`(?:\b(above|over|more than|greater than|higher than|at least|better than|below|under|less than|lower than|at most|worse than)\s+)?\b(\d)(?:\.\d)?\s*(\+)?\s*-?\s*stars?\b`)

	yearRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b(\s*(?:pages?|pgs?))?`)

	monthRe = regexp.MustCompile(`\b(january|february|march|april|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\b`)
	mayRe   = regexp.MustCompile(`\b(?:in|during|from|of|since)\s+may\b|\bmay\s+(?:19|20)\d{2}\b`)

	sortRe = regexp.MustCompile(`\b(?:sort(?:ed)?|order(?:ed)?)\s+by\s+(page count|date read|read date|finish date|ratings?|stars|pages|length|size|title|name|author|date|recent)(?:\s+(ascending|asc|descending|desc|low(?:est)? to high(?:est)?|high(?:est)? to low(?:est)?))?`)

	limitRe = regexp.MustCompile(`\b(?:top|first|show(?:\s+me)?|give me|list|get)\s+(\d{1,3})\b(\s*-?\s*stars?)?`)

	authorRe = regexp.MustCompile(`\b[Bb]y\s+([A-Z][\p{L}'.\-]*(?:\s+[A-Z][\p{L}'.\-]*)*)`)
)

// superlatives imply a sort when no explicit "sort by" is given.
var superlatives = []struct {
	re    *regexp.Regexp
	field SortField
	order SortOrder
}{
	{regexp.MustCompile(`\b(?:highest|best|top)[- ]rated\b|\bhighest\b|\bbest\b`), SortByRating, SortDesc},
	{regexp.MustCompile(`\blowest\b|\bworst\b`), SortByRating, SortAsc},
	{regexp.MustCompile(`\bshortest\b`), SortByPages, SortAsc},
	{regexp.MustCompile(`\blongest\b`), SortByPages, SortDesc},
	{regexp.MustCompile(`\b(?:newest|latest|most recent(?:ly)?|recently)\b`), SortByDateRead, SortDesc},
	{regexp.MustCompile(`\boldest\b`), SortByDateRead, SortAsc},
}

var monthNumbers = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may":  5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sept": 9, "sep": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

var sortFieldWords = map[string]SortField{
	"rating":      SortByRating,
	"ratings":     SortByRating,
	"stars":       SortByRating,
	"pages":       SortByPages,
	"page count":  SortByPages,
	"length":      SortByPages,
	"size":        SortByPages,
	"title":       SortByTitle,
	"name":        SortByTitle,
	"author":      SortByAuthor,
	"date":        SortByDateRead,
	"date read":   SortByDateRead,
	"read date":   SortByDateRead,
	"finish date": SortByDateRead,
	"recent":      SortByDateRead,
}

var minRatingModifiers = map[string]bool{
	"above": true, "over": true, "more than": true, "greater than": true,
	"higher than": true, "at least": true, "better than": true,
}

// ParseFilters extracts every filter it can find in text. Each pass is
// independent, so several filters in one sentence all survive.
func ParseFilters(text string) ParsedFilters {
	lower := strings.ToLower(text)
	var f ParsedFilters

	f.Genre = LookupGenre(lower)
	f.ReadStatus = parseReadStatus(lower)
	parsePages(lower, &f)
	parseRating(lower, &f)
	f.Year = parseYear(lower)
	f.Month = ParseMonth(lower)
	f.SortBy, f.SortOrder = parseSort(lower)
	f.Limit = parseLimit(lower)
	f.Author = parseAuthor(text)

	return f
}

func parseReadStatus(lower string) ReadStatus {
	switch {
	case unreadRe.MatchString(lower):
		return ReadStatusUnread
	case readingRe.MatchString(lower):
		return ReadStatusReading
	case completedRe.MatchString(lower):
		return ReadStatusCompleted
	default:
		return ""
	}
}

func pageUnit(unit string) bool {
	return unit == "" || strings.HasPrefix(unit, "page") || strings.HasPrefix(unit, "pg")
}

func parsePages(lower string, f *ParsedFilters) {
	if m := betweenRe.FindStringSubmatch(lower); m != nil {
		lo, okLo := positiveCount(m[1])
		hi, okHi := positiveCount(m[2])
		if okLo && okHi {
			if lo > hi {
				lo, hi = hi, lo
			}
			f.MinPages, f.MaxPages = intPtr(lo), intPtr(hi)
		}
	}
	if f.MaxPages == nil {
		for _, m := range maxPagesRe.FindAllStringSubmatch(lower, -1) {
			if n, ok := positiveCount(m[1]); ok && pageUnit(m[2]) {
				f.MaxPages = intPtr(n)
				break
			}
		}
	}
	if f.MinPages == nil {
		for _, m := range minPagesRe.FindAllStringSubmatch(lower, -1) {
			if n, ok := positiveCount(m[1]); ok && pageUnit(m[2]) {
				f.MinPages = intPtr(n)
				break
			}
		}
	}
	if f.MinPages == nil {
		if m := plusPagesRe.FindStringSubmatch(lower); m != nil {
			if n, ok := positiveCount(m[1]); ok {
				f.MinPages = intPtr(n)
			}
		}
	}
	if f.MaxPages == nil && shortRe.MatchString(lower) {
		f.MaxPages = intPtr(shortBookPages)
	}
	if f.MinPages == nil && longRe.MatchString(lower) {
		f.MinPages = intPtr(longBookPages)
	}
}

// positiveCount rejects counts that overflow int or are zero.
func positiveCount(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parseRating(lower string, f *ParsedFilters) {
	for _, m := range ratingRe.FindAllStringSubmatch(lower, -1) {
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 || n > 5 {
			continue
		}
		modifier := m[1]
		switch {
		case modifier == "" || m[3] != "" || minRatingModifiers[modifier]:
			if f.MinRating == nil {
				f.MinRating = intPtr(n)
			}
		default:
			if f.MaxRating == nil {
				f.MaxRating = intPtr(n)
			}
		}
	}
}

func parseYear(lower string) *int {
	for _, m := range yearRe.FindAllStringSubmatch(lower, -1) {
		if m[2] != "" {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		return intPtr(n)
	}
	return nil
}

// ParseMonth returns the month (1-12) named in text. "may" only counts
// after a preposition or before a year so the modal verb is ignored.
func ParseMonth(text string) *int {
	lower := strings.ToLower(text)
	if m := monthRe.FindStringSubmatch(lower); m != nil {
		return intPtr(monthNumbers[m[1]])
	}
	if mayRe.MatchString(lower) {
		return intPtr(5)
	}
	return nil
}

// ParseYear returns the first four digit year in text that is not a page count.
func ParseYear(text string) *int {
	return parseYear(strings.ToLower(text))
}

func parseSort(lower string) (SortField, SortOrder) {
	if m := sortRe.FindStringSubmatch(lower); m != nil {
		field := sortFieldWords[m[1]]
		var order SortOrder
		switch dir := m[2]; {
		case dir == "":
		case strings.HasPrefix(dir, "asc") || strings.HasPrefix(dir, "low"):
			order = SortAsc
		default:
			order = SortDesc
		}
		return field, order
	}
	for _, s := range superlatives {
		if s.re.MatchString(lower) {
			return s.field, s.order
		}
	}
	return "", ""
}

func parseLimit(lower string) *int {
	for _, m := range limitRe.FindAllStringSubmatch(lower, -1) {
		if m[2] != "" {
			continue
		}
		if n, ok := positiveCount(m[1]); ok {
			return intPtr(n)
		}
	}
	return nil
}

func parseAuthor(text string) string {
	for _, loc := range authorRe.FindAllStringSubmatchIndex(text, -1) {
		before := strings.ToLower(strings.TrimSpace(text[:loc[0]]))
		if strings.HasSuffix(before, "sort") || strings.HasSuffix(before, "sorted") ||
			strings.HasSuffix(before, "order") || strings.HasSuffix(before, "ordered") {
			continue
		}
		name := strings.TrimRight(text[loc[2]:loc[3]], ".'-")
		first := strings.ToLower(strings.Fields(name)[0])
		if _, ok := sortFieldWords[first]; ok {
			continue
		}
		return name
	}
	return ""
}

func intPtr(n int) *int { return &n }

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	return intPtr(*p)
}
