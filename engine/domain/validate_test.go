package domain

import (
	"errors"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		content []byte
		wantErr error
	}{
		{"ok screenplay", Document{ID: "doc-1", Kind: KindScreenplay}, []byte("INT. LAB - DAY"), nil},
		{"ok moodboard", Document{ID: "doc-2", Kind: KindMoodboard}, []byte{0x89, 0x50}, nil},
		{"missing id", Document{Kind: KindScreenplay}, []byte("x"), ErrInvalidDocument},
		{"unknown kind", Document{ID: "doc-3", Kind: "novel"}, []byte("x"), ErrInvalidDocument},
		{"empty content", Document{ID: "doc-4", Kind: KindScreenplay}, nil, ErrUnreadableDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc, tt.content)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery(Query{Text: "who appears in the warehouse?"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateQuery(Query{Text: "  a "}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if err := ValidateQuery(Query{Text: "valid question", Hops: -1}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery for negative hops, got %v", err)
	}
}

func TestValidateEntityGrounding(t *testing.T) {
	e := Entity{ID: "ent-1", Type: EntityCharacter, Name: "ADA"}
	if err := ValidateEntity(e); err == nil {
		t.Fatal("expected grounding violation for empty support")
	}
	e.Support = []string{"seg-1"}
	if err := ValidateEntity(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRelation(t *testing.T) {
	r := Relation{Source: "a", Target: "b", Type: RelAppearsIn, Weight: 0.9, Support: []string{"seg-1"}}
	if err := ValidateRelation(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Weight = 1.2
	if err := ValidateRelation(r); err == nil {
		t.Fatal("expected weight range error")
	}
	r.Weight = 0.9
	r.Support = nil
	if err := ValidateRelation(r); err == nil {
		t.Fatal("expected grounding violation for empty support")
	}
}

func TestDeterministicIDs(t *testing.T) {
	if SegmentID("doc-1", 3) != SegmentID("doc-1", 3) {
		t.Fatal("segment ids must be deterministic")
	}
	if SegmentID("doc-1", 3) == SegmentID("doc-1", 4) {
		t.Fatal("distinct positions must yield distinct ids")
	}
	a := EntityID("doc-1", EntityCharacter, "ADA")
	b := EntityID("doc-1", EntityCharacter, "  ada ")
	if a != b {
		t.Fatal("entity ids must normalize the name")
	}
	if a == EntityID("doc-2", EntityCharacter, "ADA") {
		t.Fatal("entity ids must be scoped to the document")
	}
}

func TestEntityTypeSides(t *testing.T) {
	for _, typ := range []EntityType{EntityCharacter, EntityLocation, EntityScene} {
		if !typ.ScreenplaySide() || typ.MoodboardSide() {
			t.Fatalf("%s classified on wrong side", typ)
		}
	}
	for _, typ := range []EntityType{EntityVisualMotif, EntityColorPalette, EntityLightingStyle} {
		if !typ.MoodboardSide() || typ.ScreenplaySide() {
			t.Fatalf("%s classified on wrong side", typ)
		}
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	err := NewValidationError("kind", "novel", ErrInvalidDocument)
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatal("ValidationError must unwrap to its sentinel")
	}
}
