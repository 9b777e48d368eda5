package repository

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"book-sms-agent/internal/query"
)

// filterExpr accumulates a Scan filter expression with its placeholder
// names and values.
type filterExpr struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

func newFilterExpr() *filterExpr {
	return &filterExpr{names: map[string]string{}, values: map[string]types.AttributeValue{}}
}

func (e *filterExpr) name(attr string) string {
	p := "#" + attr
	e.names[p] = attr
	return p
}

func (e *filterExpr) value(v types.AttributeValue) string {
	p := ":v" + strconv.Itoa(len(e.values))
	e.values[p] = v
	return p
}

// clause translates c into an expression. Keys are visited in sorted order
// so the output is deterministic. An empty clause yields "".
func (e *filterExpr) clause(c query.Clause) (string, error) {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var (
			part string
			err  error
		)
		switch k {
		case query.KeyAnd, query.KeyOr:
			part, err = e.combinator(k, c[k])
		default:
			part, err = e.field(k, c[k])
		}
		if err != nil {
			return "", err
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	return join(parts, " AND "), nil
}

func (e *filterExpr) combinator(op string, v any) (string, error) {
	subs, ok := v.([]query.Clause)
	if !ok {
		return "", fmt.Errorf("repository: %s expects a clause list, got %T", op, v)
	}
	parts := make([]string, 0, len(subs))
	for _, sub := range subs {
		part, err := e.clause(sub)
		if err != nil {
			return "", err
		}
		if part != "" {
			parts = append(parts, "("+part+")")
		}
	}
	if len(parts) < 2 {
		return join(parts, ""), nil
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")", nil
}

func (e *filterExpr) field(field string, v any) (string, error) {
	attr, err := attributeFor(field)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "attribute_not_exists(" + e.name(attr) + ")", nil
	}
	ops, ok := v.(map[string]any)
	if !ok {
		av, err := attributeValue(v)
		if err != nil {
			return "", fmt.Errorf("repository: field %q: %w", field, err)
		}
		return e.name(attr) + " = " + e.value(av), nil
	}

	opKeys := make([]string, 0, len(ops))
	for op := range ops {
		if op != query.OpMode {
			opKeys = append(opKeys, op)
		}
	}
	sort.Strings(opKeys)
	insensitive := ops[query.OpMode] == query.ModeInsensitive

	parts := make([]string, 0, len(opKeys))
	for _, op := range opKeys {
		arg := ops[op]
		switch op {
		case query.OpNot:
			if arg == nil {
				parts = append(parts, "attribute_exists("+e.name(attr)+")")
				continue
			}
			av, err := attributeValue(arg)
			if err != nil {
				return "", fmt.Errorf("repository: field %q: %w", field, err)
			}
			parts = append(parts, e.name(attr)+" <> "+e.value(av))
		case query.OpContains:
			s, ok := arg.(string)
			if !ok {
				return "", fmt.Errorf("repository: field %q: contains expects a string, got %T", field, arg)
			}
			target := attr
			if insensitive {
				target, s = lowerAttr(attr), strings.ToLower(s)
			}
			parts = append(parts, "contains("+e.name(target)+", "+e.value(&types.AttributeValueMemberS{Value: s})+")")
		case query.OpGte, query.OpLte, query.OpEquals:
			av, err := attributeValue(arg)
			if err != nil {
				return "", fmt.Errorf("repository: field %q: %w", field, err)
			}
			parts = append(parts, e.name(attr)+" "+comparators[op]+" "+e.value(av))
		default:
			return "", fmt.Errorf("repository: field %q: unsupported operator %q", field, op)
		}
	}
	return join(parts, " AND "), nil
}

var comparators = map[string]string{
	query.OpGte:    ">=",
	query.OpLte:    "<=",
	query.OpEquals: "=",
}

var fieldAttributes = map[string]string{
	query.FieldRead:             attrRead,
	query.FieldCurrentlyReading: attrCurrentlyReading,
	query.FieldGenre:            attrGenre,
	query.FieldAuthor:           attrAuthor,
	query.FieldPages:            attrPages,
	query.FieldRating:           attrRating,
	query.FieldTitle:            attrTitle,
}

func attributeFor(field string) (string, error) {
	attr, ok := fieldAttributes[field]
	if !ok {
		return "", fmt.Errorf("repository: unknown field %q", field)
	}
	return attr, nil
}

func lowerAttr(attr string) string {
	switch attr {
	case attrTitle:
		return attrTitleLower
	case attrAuthor:
		return attrAuthorLower
	default:
		return attr
	}
}

func attributeValue(v any) (types.AttributeValue, error) {
	switch x := v.(type) {
	case string:
		return &types.AttributeValueMemberS{Value: x}, nil
	case int:
		return numValue(x), nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: x}, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func join(parts []string, sep string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return strings.Join(parts, sep)
	}
}
