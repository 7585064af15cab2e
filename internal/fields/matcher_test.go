package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/pdf-fieldsync/internal/descriptor"
	"github.com/fieldsync/pdf-fieldsync/internal/geometry"
)

func testMatcher() *Matcher {
	return NewMatcher(DefaultFuzzyThreshold, false)
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "email", "email", 1.0},
		{"case_insensitive_equal", "Customer Full Name", "customer full name", 1.0},
		{"containment", "name", "full name", 0.8},
		{"containment_reversed", "full name", "name", 0.8},
		{"word_overlap_two_of_three", "customer full name", "customer legal name", 2.0 / 3.0},
		{"no_overlap", "email address", "phone number", 0.0},
		{"both_empty", "", "", 1.0},
		{"one_empty", "email", "", 0.0},
		{"whitespace_only", "   ", "\t", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Similarity(tt.a, tt.b), 1e-9)
			// The scoring function is symmetric.
			assert.InDelta(t, Similarity(tt.a, tt.b), Similarity(tt.b, tt.a), 1e-9)
		})
	}
}

func TestMatcher_ExactCompositeKey(t *testing.T) {
	descriptors := []descriptor.Record{
		{FieldName: "email", Page: 1, X: 99, Y: 99, Width: 1, Height: 1, LogicID: "wrong-page"},
		{FieldName: "email", Page: 2, X: 10, Y: 20, Width: 100, Height: 20, LogicID: "L-9", DocumentFieldID: "doc-email"},
	}

	rec := newRecord("existing_2_0", "email", 2)
	matched := testMatcher().Match(rec, descriptors)

	require.True(t, matched)
	assert.True(t, rec.Matched)
	assert.Equal(t, "L-9", rec.LogicID)
	assert.Equal(t, "doc-email", rec.DocumentFieldID)
	require.NotNil(t, rec.OriginGeometry)
	assert.Equal(t, geometry.DocumentRect{X: 10, Y: 20, Width: 100, Height: 20}, *rec.OriginGeometry)
}

func TestMatcher_NameOnlyIgnoresPageDisagreement(t *testing.T) {
	descriptors := []descriptor.Record{
		{FieldName: "total", Page: 7, X: 1, Y: 2, Width: 3, Height: 4, LogicID: "L-1"},
	}

	rec := newRecord("existing_2_0", "total", 2)
	require.True(t, testMatcher().Match(rec, descriptors))
	assert.Equal(t, "L-1", rec.LogicID)
	// Page stays the record's own; only metadata is copied.
	assert.Equal(t, 2, rec.Page)
}

func TestMatcher_FuzzyAboveThreshold(t *testing.T) {
	descriptors := []descriptor.Record{
		{FieldName: "Customer Full Name", Page: 1, X: 5, Y: 6, Width: 7, Height: 8, LogicID: "L-3"},
	}

	rec := newRecord("existing_1_0", "customer full name", 1)
	require.True(t, testMatcher().Match(rec, descriptors))
	assert.Equal(t, "L-3", rec.LogicID)
	assert.True(t, rec.Matched)
}

func TestMatcher_NoMatchLeavesRecordUsable(t *testing.T) {
	descriptors := []descriptor.Record{
		{FieldName: "completely different", Page: 1},
	}

	rec := newRecord("existing_1_0", "email", 1)
	assert.False(t, testMatcher().Match(rec, descriptors))
	assert.False(t, rec.Matched)
	assert.Empty(t, rec.LogicID)
	assert.Nil(t, rec.OriginGeometry)
}

func TestMatcher_TypeOverride(t *testing.T) {
	tests := []struct {
		name           string
		descriptorType string
		expected       FieldType
	}{
		{"unknown_keeps_extracted", descriptor.FieldTypeUnknown, FieldTypeText},
		{"empty_keeps_extracted", "", FieldTypeText},
		{"checkbox_overrides", "checkbox", FieldTypeCheckbox},
		{"textarea_overrides", "textarea", FieldTypeTextarea},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecord("existing_1_0", "field", 1)
			descriptors := []descriptor.Record{{FieldName: "field", Page: 1, FieldType: tt.descriptorType}}
			require.True(t, testMatcher().Match(rec, descriptors))
			assert.Equal(t, tt.expected, rec.Type)
		})
	}
}

func TestMatcher_DocumentFieldIDFallsBackToRecordID(t *testing.T) {
	descriptors := []descriptor.Record{{FieldName: "field", Page: 1}}

	rec := newRecord("existing_1_4", "field", 1)
	require.True(t, testMatcher().Match(rec, descriptors))
	assert.Equal(t, "existing_1_4", rec.DocumentFieldID)
}

func TestMatcher_GeometryUntouchedByMatch(t *testing.T) {
	descriptors := []descriptor.Record{{FieldName: "field", Page: 1, X: 500, Y: 500, Width: 9, Height: 9}}

	rec := newRecord("existing_1_0", "field", 1)
	before := rec.Display
	require.True(t, testMatcher().Match(rec, descriptors))
	assert.Equal(t, before, rec.Display)
}

func TestMatcher_MatchAllIdempotent(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Add(newRecord("existing_1_0", "email", 1)))
	require.NoError(t, store.Add(newRecord("existing_1_1", "unmatched", 1)))

	userField := newRecord("new_1", "email", 1)
	userField.Origin = OriginNew
	require.NoError(t, store.Add(userField))

	descriptors := []descriptor.Record{
		{FieldName: "email", Page: 1, X: 1, Y: 2, Width: 3, Height: 4, LogicID: "L-1"},
	}

	m := testMatcher()
	assert.Equal(t, 1, m.MatchAll(store, descriptors))

	first, err := store.Get("existing_1_0")
	require.NoError(t, err)
	snapshot := *first

	// Re-running produces the same enrichment.
	assert.Equal(t, 1, m.MatchAll(store, descriptors))
	second, err := store.Get("existing_1_0")
	require.NoError(t, err)
	assert.Equal(t, snapshot.LogicID, second.LogicID)
	assert.Equal(t, snapshot.DocumentFieldID, second.DocumentFieldID)
	assert.Equal(t, *snapshot.OriginGeometry, *second.OriginGeometry)

	// New-origin records are never enriched.
	newRec, err := store.Get("new_1")
	require.NoError(t, err)
	assert.False(t, newRec.Matched)
}

func TestMatcher_TierOrderEarlyExit(t *testing.T) {
	// An exact composite match must win over an earlier-listed fuzzy candidate.
	descriptors := []descriptor.Record{
		{FieldName: "customer name extra", Page: 3, LogicID: "fuzzy"},
		{FieldName: "customer name", Page: 3, LogicID: "exact"},
	}

	rec := newRecord("existing_3_0", "customer name", 3)
	require.True(t, testMatcher().Match(rec, descriptors))
	assert.Equal(t, "exact", rec.LogicID)
}
