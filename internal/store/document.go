package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Collections used by the auction engine.
const (
	CollectionAuctions    = "auctions"
	CollectionTerritories = "territories"
)

// ErrDocumentNotFound is returned by Get and Update for a missing document.
var ErrDocumentNotFound = errors.New("document_not_found")

// Document is a JSON-shaped record. Values are normalised to the types
// encoding/json produces with UseNumber (json.Number, string, bool, nil,
// []any, map[string]any), so integer amounts keep full precision.
type Document map[string]any

// Filter matches documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value any
}

// Order sorts query results by a top-level field.
type Order struct {
	Field string
	Desc  bool
}

// Query selects documents within a collection. Limit <= 0 means no limit.
type Query struct {
	Filters []Filter
	OrderBy *Order
	Limit   int
}

// Where is shorthand for a Query with equality filters only.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Store is a document-style persistence backend.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, doc Document) error
	Update(ctx context.Context, collection, id string, patch Document) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
}

var fieldRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validateQuery(q Query) error {
	for _, f := range q.Filters {
		if !fieldRegex.MatchString(f.Field) {
			return fmt.Errorf("invalid filter field %q", f.Field)
		}
	}
	if q.OrderBy != nil && !fieldRegex.MatchString(q.OrderBy.Field) {
		return fmt.Errorf("invalid order field %q", q.OrderBy.Field)
	}
	return nil
}

// normalize round-trips v through JSON so documents and filter values
// compare the same way regardless of the Go types they were built from.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := unmarshalNumbers(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeDocument(doc Document) (Document, error) {
	n, err := normalize(map[string]any(doc))
	if err != nil {
		return nil, err
	}
	m, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document is not an object")
	}
	return Document(m), nil
}

// encode converts a JSON-tagged struct to a Document.
func encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := unmarshalNumbers(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// unmarshalNumbers decodes JSON keeping numbers as json.Number.
func unmarshalNumbers(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// lessNumber compares two JSON numbers, exactly when both are integers.
func lessNumber(a, b json.Number) bool {
	if ai, err := a.Int64(); err == nil {
		if bi, err := b.Int64(); err == nil {
			return ai < bi
		}
	}
	af, _ := a.Float64()
	bf, _ := b.Float64()
	return af < bf
}

// decode fills a JSON-tagged struct from a Document.
func decode(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
