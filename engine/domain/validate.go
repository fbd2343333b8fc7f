package domain

import (
	"fmt"
	"strings"
)

// MinQueryLen is the shortest question the query entry point accepts.
const MinQueryLen = 3

// ValidateDocument checks a Document and its raw content before parsing.
func ValidateDocument(doc Document, content []byte) error {
	if doc.ID == "" {
		return NewValidationError("id", "", ErrInvalidDocument)
	}
	if !ValidDocumentKinds[doc.Kind] {
		return NewValidationError("kind", string(doc.Kind), ErrInvalidDocument)
	}
	if len(content) == 0 {
		return fmt.Errorf("%w: empty content", ErrUnreadableDocument)
	}
	return nil
}

// ValidateQuery checks a user question before resolution.
func ValidateQuery(q Query) error {
	text := strings.TrimSpace(q.Text)
	if len(text) < MinQueryLen {
		return NewValidationError("text", q.Text, ErrInvalidQuery)
	}
	if q.Hops < 0 {
		return NewValidationError("hops", fmt.Sprintf("%d", q.Hops), ErrInvalidQuery)
	}
	return nil
}

// ValidateEntity enforces the grounding invariant on a single entity.
func ValidateEntity(e Entity) error {
	if e.ID == "" || e.Name == "" {
		return NewValidationError("entity", e.Name, ErrInvalidDocument)
	}
	if !ValidEntityTypes[e.Type] {
		return NewValidationError("entity.type", string(e.Type), ErrInvalidDocument)
	}
	if len(e.Support) == 0 {
		return fmt.Errorf("entity %s (%s): no supporting segments", e.ID, e.Name)
	}
	return nil
}

// ValidateRelation enforces the grounding invariant on a single relation.
func ValidateRelation(r Relation) error {
	if r.Source == "" || r.Target == "" {
		return fmt.Errorf("relation %s: missing endpoint", r.Key())
	}
	if r.Weight < 0 || r.Weight > 1 {
		return fmt.Errorf("relation %s: weight %.3f out of [0,1]", r.Key(), r.Weight)
	}
	if len(r.Support) == 0 {
		return fmt.Errorf("relation %s: no supporting segments", r.Key())
	}
	return nil
}
