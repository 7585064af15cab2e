package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/pdf-fieldsync/internal/geometry"
)

func testExtractor() *Extractor {
	return NewExtractor(geometry.NewTransformer(geometry.DefaultBaseScale), DefaultCheckboxMaxSize, false)
}

func TestExtractor_Classify(t *testing.T) {
	tests := []struct {
		name       string
		annotation RawAnnotation
		dispW      float64
		dispH      float64
		expected   FieldType
	}{
		{
			name:       "text_field",
			annotation: RawAnnotation{FieldKind: KindText},
			dispW:      150, dispH: 30,
			expected: FieldTypeText,
		},
		{
			name:       "multiline_text_field",
			annotation: RawAnnotation{FieldKind: KindText, Multiline: true},
			dispW:      200, dispH: 80,
			expected: FieldTypeTextarea,
		},
		{
			name:       "choice_degrades_to_text",
			annotation: RawAnnotation{FieldKind: KindChoice},
			dispW:      150, dispH: 30,
			expected: FieldTypeText,
		},
		{
			name:       "button_explicit_checkbox",
			annotation: RawAnnotation{FieldKind: KindButton, CheckBox: true},
			dispW:      150, dispH: 150,
			expected: FieldTypeCheckbox,
		},
		{
			name:       "button_explicit_radio",
			annotation: RawAnnotation{FieldKind: KindButton, RadioButton: true},
			dispW:      150, dispH: 150,
			expected: FieldTypeCheckbox,
		},
		{
			name:       "button_radio_flag_bit",
			annotation: RawAnnotation{FieldKind: KindButton, Flags: FlagRadio},
			dispW:      150, dispH: 150,
			expected: FieldTypeCheckbox,
		},
		{
			name:       "button_small_square",
			annotation: RawAnnotation{FieldKind: KindButton},
			dispW:      18, dispH: 18,
			expected: FieldTypeCheckbox,
		},
		{
			name:       "button_named_check",
			annotation: RawAnnotation{FieldKind: KindButton, FieldName: "CheckIfMarried"},
			dispW:      150, dispH: 30,
			expected: FieldTypeCheckbox,
		},
		{
			name:       "push_button_stays_text",
			annotation: RawAnnotation{FieldKind: KindButton, Flags: FlagPushbutton},
			dispW:      150, dispH: 40,
			expected: FieldTypeText,
		},
		{
			name:       "undeclared_kind_small_square",
			annotation: RawAnnotation{},
			dispW:      18, dispH: 18,
			expected: FieldTypeCheckbox,
		},
		{
			name:       "undeclared_kind_named_check",
			annotation: RawAnnotation{FieldName: "spouse_check"},
			dispW:      150, dispH: 30,
			expected: FieldTypeCheckbox,
		},
		{
			name:       "undeclared_kind_large_defaults_to_text",
			annotation: RawAnnotation{FieldName: "address"},
			dispW:      150, dispH: 30,
			expected: FieldTypeText,
		},
		{
			name:       "declared_text_overrides_small_size",
			annotation: RawAnnotation{FieldKind: KindText},
			dispW:      150, dispH: 30,
			expected: FieldTypeText,
		},
	}

	e := testExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Classify(tt.annotation, tt.dispW, tt.dispH))
		})
	}
}

func TestExtractor_ExtractPage(t *testing.T) {
	viewport := PageViewport{Width: 612, Height: 792}
	e := testExtractor()

	annotations := []RawAnnotation{
		{Subtype: SubtypeWidget, FieldKind: KindText, FieldName: "email",
			Rect: []float64{72, 700, 272, 720}, FieldValue: "a@b.co"},
		{Subtype: "Link", Rect: []float64{0, 0, 10, 10}},                  // not a widget
		{Subtype: SubtypeWidget, FieldKind: KindText, FieldName: "short"}, // missing rect
		{Subtype: SubtypeWidget, FieldKind: KindButton, FieldName: "agree", CheckBox: true,
			Rect: []float64{72, 650, 84, 662}, FieldValue: "Yes", ReadOnly: true},
	}

	records, skipped := e.ExtractPage(annotations, viewport, 3, 1.0)

	require.Len(t, records, 2)
	assert.Equal(t, 1, skipped)

	email := records[0]
	assert.Equal(t, "existing_3_0", email.ID)
	assert.Equal(t, "email", email.Name)
	assert.Equal(t, FieldTypeText, email.Type)
	assert.Equal(t, 3, email.Page)
	assert.Equal(t, OriginExisting, email.Origin)
	assert.Equal(t, "a@b.co", email.Value)
	assert.Equal(t, "email", email.DocumentFieldID)
	assert.InDelta(t, 72.0, email.Display.X, 1e-9)
	assert.InDelta(t, 72.0, email.Display.Y, 1e-9) // 792 - 720
	assert.InDelta(t, 200.0, email.Display.Width, 1e-9)
	assert.InDelta(t, 20.0, email.Display.Height, 1e-9)

	agree := records[1]
	assert.Equal(t, "existing_3_3", agree.ID)
	assert.Equal(t, FieldTypeCheckbox, agree.Type)
	assert.Equal(t, "true", agree.Value)
	assert.True(t, agree.ReadOnly)
	// Checkbox size normalized into the [15,25] band.
	assert.InDelta(t, CheckboxMinSize, agree.Display.Width, 1e-9)
	assert.InDelta(t, CheckboxMinSize, agree.Display.Height, 1e-9)
}

func TestExtractor_ExtractPage_AllBadDegradesToEmpty(t *testing.T) {
	e := testExtractor()

	annotations := []RawAnnotation{
		{Subtype: SubtypeWidget, FieldKind: KindText, Rect: []float64{1, 2}},
		{Subtype: SubtypeWidget, FieldKind: KindText},
	}

	records, skipped := e.ExtractPage(annotations, PageViewport{Width: 612, Height: 792}, 1, 1.5)

	assert.Empty(t, records)
	assert.Equal(t, 2, skipped)
}

func TestDeriveValue(t *testing.T) {
	tests := []struct {
		name       string
		annotation RawAnnotation
		fieldType  FieldType
		expected   string
	}{
		{"checkbox_yes", RawAnnotation{FieldValue: "Yes"}, FieldTypeCheckbox, "true"},
		{"checkbox_on", RawAnnotation{FieldValue: "On"}, FieldTypeCheckbox, "true"},
		{"checkbox_true", RawAnnotation{FieldValue: "true"}, FieldTypeCheckbox, "true"},
		{"checkbox_one", RawAnnotation{FieldValue: "1"}, FieldTypeCheckbox, "true"},
		{"checkbox_checked_flag", RawAnnotation{Checked: true}, FieldTypeCheckbox, "true"},
		{"checkbox_off", RawAnnotation{FieldValue: "Off"}, FieldTypeCheckbox, "false"},
		{"checkbox_empty", RawAnnotation{}, FieldTypeCheckbox, "false"},
		{"text_field_value", RawAnnotation{FieldValue: "v", ButtonValue: "b"}, FieldTypeText, "v"},
		{"text_button_value_fallback", RawAnnotation{ButtonValue: "b", AlternativeText: "alt"}, FieldTypeText, "b"},
		{"text_alternative_text_fallback", RawAnnotation{AlternativeText: "alt"}, FieldTypeText, "alt"},
		{"text_empty", RawAnnotation{}, FieldTypeText, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, deriveValue(tt.annotation, tt.fieldType))
		})
	}
}

func TestClampDisplay(t *testing.T) {
	tests := []struct {
		name      string
		in        geometry.DisplayRect
		fieldType FieldType
		expected  geometry.DisplayRect
	}{
		{
			name:      "negative_origin_clamped",
			in:        geometry.DisplayRect{X: -5, Y: -2, Width: 100, Height: 30},
			fieldType: FieldTypeText,
			expected:  geometry.DisplayRect{X: 0, Y: 0, Width: 100, Height: 30},
		},
		{
			name:      "tiny_text_field_grows",
			in:        geometry.DisplayRect{X: 10, Y: 10, Width: 5, Height: 5},
			fieldType: FieldTypeText,
			expected:  geometry.DisplayRect{X: 10, Y: 10, Width: 20, Height: 20},
		},
		{
			name:      "oversized_checkbox_shrinks",
			in:        geometry.DisplayRect{X: 0, Y: 0, Width: 40, Height: 40},
			fieldType: FieldTypeCheckbox,
			expected:  geometry.DisplayRect{X: 0, Y: 0, Width: 25, Height: 25},
		},
		{
			name:      "in_band_checkbox_untouched",
			in:        geometry.DisplayRect{X: 0, Y: 0, Width: 18, Height: 22},
			fieldType: FieldTypeCheckbox,
			expected:  geometry.DisplayRect{X: 0, Y: 0, Width: 18, Height: 22},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClampDisplay(tt.in, tt.fieldType))
		})
	}
}
