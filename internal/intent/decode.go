package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"book-sms-agent/internal/domain"
	"book-sms-agent/internal/query"
)

const (
	maxAIConfidence     = 0.95
	unknownAIConfidence = 0.3
)

// classificationSchema checks only the document shape. Enumerations and
// ranges are checked per field so one bad value drops that value alone.
const classificationSchema = `{
  "type": "object",
  "required": ["intent", "confidence"],
  "properties": {
    "intent": {"type": "string"},
    "confidence": {"type": "number"},
    "parameters": {"type": ["object", "null"]}
  }
}`

var compiledClassificationSchema = mustCompileSchema("classification.json", classificationSchema)

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("intent: load schema %s: %v", name, err))
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("intent: compile schema %s: %v", name, err))
	}
	return compiled
}

type aiPayload struct {
	Intent     string       `json:"intent"`
	Confidence float64      `json:"confidence"`
	Parameters aiParameters `json:"parameters"`
}

type aiParameters struct {
	BookTitle  string   `json:"bookTitle"`
	BookTitles []string `json:"bookTitles"`
	PageNumber *float64 `json:"pageNumber"`
	Percentage *float64 `json:"percentage"`
	Rating     *float64 `json:"rating"`
	Genre      string   `json:"genre"`
	Author     string   `json:"author"`
	ReadStatus string   `json:"readStatus"`
	MinPages   *float64 `json:"minPages"`
	MaxPages   *float64 `json:"maxPages"`
	MinRating  *float64 `json:"minRating"`
	MaxRating  *float64 `json:"maxRating"`
	Year       *float64 `json:"year"`
	Month      *float64 `json:"month"`
	Timeframe  string   `json:"timeframe"`
	SortBy     string   `json:"sortBy"`
	SortOrder  string   `json:"sortOrder"`
	Limit      *float64 `json:"limit"`
	Reference  string   `json:"reference"`
	Title      string   `json:"title"`
}

// decodeClassification turns a model reply into a ClassificationResult.
// Invalid values are dropped, never coerced.
func decodeClassification(raw, message string) (ClassificationResult, error) {
	body, err := parseJSONObject(raw)
	if err != nil {
		return ClassificationResult{}, err
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ClassificationResult{}, fmt.Errorf("intent: decode classification: %w", err)
	}
	if err := compiledClassificationSchema.Validate(doc); err != nil {
		return ClassificationResult{}, fmt.Errorf("intent: classification does not match schema: %w", err)
	}

	var payload aiPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ClassificationResult{}, fmt.Errorf("intent: decode classification: %w", err)
	}

	in, ok := domain.ParseIntent(strings.TrimSpace(payload.Intent))
	if !ok || in == domain.IntentUnknown {
		return newResult(message, unknownAIConfidence, &UnknownParams{}), nil
	}
	return newResult(message, clampConfidence(payload.Confidence), buildParams(in, payload.Parameters, message)), nil
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	c = math.Max(0, math.Min(1, c))
	return math.Min(c, maxAIConfidence)
}

func buildParams(in domain.Intent, p aiParameters, message string) Params {
	title := cleanTitle(p.BookTitle)
	switch in {
	case domain.IntentUpdateProgress:
		return &UpdateProgressParams{
			Book:       BookRef{Title: title},
			PageNumber: intInRange(p.PageNumber, 1, math.MaxInt32),
			Percentage: intInRange(p.Percentage, 0, 100),
		}
	case domain.IntentFinishBook:
		return &FinishBookParams{Book: BookRef{Title: title}, Rating: intInRange(p.Rating, 1, 5)}
	case domain.IntentStartBook:
		return &StartBookParams{Book: BookRef{Title: title}}
	case domain.IntentRateBook:
		return &RateBookParams{Book: BookRef{Title: title}, Rating: intInRange(p.Rating, 1, 5)}
	case domain.IntentBookDetails:
		return &BookDetailsParams{Book: BookRef{Title: title}}
	case domain.IntentDeleteBook:
		return &DeleteBookParams{Book: BookRef{Title: title}}
	case domain.IntentSearchBooks:
		return &SearchBooksParams{Query: cleanTitle(message), Filters: p.filters()}
	case domain.IntentRecommendBooks:
		genre, _ := query.CanonicalGenre(p.Genre)
		return &RecommendBooksParams{Genre: genre}
	case domain.IntentCompareBooks:
		out := &CompareBooksParams{}
		for _, t := range p.BookTitles {
			if t = cleanTitle(t); t != "" {
				out.Books = append(out.Books, BookRef{Title: t})
			}
		}
		return out
	case domain.IntentTimeQuery:
		tf, _ := ParseTimeframe(p.Timeframe)
		return &TimeQueryParams{
			Year:      intInRange(p.Year, 1000, 9999),
			Month:     intInRange(p.Month, 1, 12),
			Timeframe: tf,
		}
	case domain.IntentAddBook:
		t := cleanTitle(p.Title)
		if t == "" {
			t = title
		}
		return &AddBookParams{Title: t, Author: cleanTitle(p.Author)}
	case domain.IntentListReference:
		ref := strings.TrimSpace(p.Reference)
		if ref == "" {
			ref = cleanTitle(message)
		}
		return &ListReferenceParams{Reference: ref}
	default:
		return ParamsFor(in)
	}
}

func (p aiParameters) filters() query.ParsedFilters {
	f := query.ParsedFilters{
		MinPages:  intInRange(p.MinPages, 1, math.MaxInt32),
		MaxPages:  intInRange(p.MaxPages, 1, math.MaxInt32),
		MinRating: intInRange(p.MinRating, 1, 5),
		MaxRating: intInRange(p.MaxRating, 1, 5),
		Year:      intInRange(p.Year, 1000, 9999),
		Month:     intInRange(p.Month, 1, 12),
		Limit:     intInRange(p.Limit, 1, math.MaxInt32),
	}
	if g, ok := query.CanonicalGenre(p.Genre); ok {
		f.Genre = g
	}
	f.Author = strings.TrimSpace(p.Author)
	if rs, ok := query.ParseReadStatus(p.ReadStatus); ok {
		f.ReadStatus = rs
	}
	if sb, ok := query.ParseSortField(p.SortBy); ok {
		f.SortBy = sb
	}
	if so, ok := query.ParseSortOrder(p.SortOrder); ok {
		f.SortOrder = so
	}
	return f
}

func intInRange(v *float64, lo, hi int) *int {
	if v == nil || *v != math.Trunc(*v) {
		return nil
	}
	n := int(*v)
	if n < lo || n > hi {
		return nil
	}
	return &n
}

// parseJSONObject extracts a JSON object from model output, tolerating code
// fences and surrounding prose.
func parseJSONObject(content string) ([]byte, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("intent: empty classification")
	}
	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" {
		candidates = append(candidates, stripped)
	}
	if extracted := extractObject(content); extracted != "" {
		candidates = append(candidates, extracted)
	}
	for _, c := range candidates {
		if json.Valid([]byte(c)) {
			return []byte(c), nil
		}
	}
	return nil, errors.New("intent: classification is not valid JSON")
}

func stripCodeFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return content[start : end+1]
}
