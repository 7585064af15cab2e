package fields

import (
	"fmt"
	"log"
	"strings"

	"github.com/fieldsync/pdf-fieldsync/internal/geometry"
)

// DefaultCheckboxMaxSize is the display-size ceiling (pixels) under which an
// undeclared or button field classifies as a checkbox. A tuning choice, not a
// contract; override via NewExtractor.
const DefaultCheckboxMaxSize = 30.0

// checkboxTruthy is the token set that marks a checkbox value as checked.
var checkboxTruthy = map[string]bool{
	"Yes":  true,
	"On":   true,
	"true": true,
	"1":    true,
}

// Extractor turns raw per-page annotation data into normalized field records.
type Extractor struct {
	transformer     *geometry.Transformer
	checkboxMaxSize float64
	debugMode       bool
}

// NewExtractor creates a field extractor. checkboxMaxSize zero or negative
// falls back to DefaultCheckboxMaxSize.
func NewExtractor(transformer *geometry.Transformer, checkboxMaxSize float64, debugMode bool) *Extractor {
	if checkboxMaxSize <= 0 {
		checkboxMaxSize = DefaultCheckboxMaxSize
	}
	return &Extractor{
		transformer:     transformer,
		checkboxMaxSize: checkboxMaxSize,
		debugMode:       debugMode,
	}
}

// classifyRule is one step of the ordered classification ladder. First rule
// that applies wins.
type classifyRule struct {
	name    string
	applies func(a RawAnnotation, dispW, dispH float64, maxSize float64) bool
	result  func(a RawAnnotation) FieldType
}

var classifyRules = []classifyRule{
	{
		name: "native_text_field",
		applies: func(a RawAnnotation, _, _, _ float64) bool {
			return a.FieldKind == KindText
		},
		result: func(a RawAnnotation) FieldType {
			if a.Multiline {
				return FieldTypeTextarea
			}
			return FieldTypeText
		},
	},
	{
		// Choice rendering is out of scope; combo and list boxes degrade to text.
		name: "native_choice_field",
		applies: func(a RawAnnotation, _, _, _ float64) bool {
			return a.FieldKind == KindChoice
		},
		result: func(RawAnnotation) FieldType { return FieldTypeText },
	},
	{
		name: "button_explicit_check",
		applies: func(a RawAnnotation, _, _, _ float64) bool {
			return a.FieldKind == KindButton && (a.CheckBox || a.RadioButton)
		},
		result: func(RawAnnotation) FieldType { return FieldTypeCheckbox },
	},
	{
		name: "button_flag_bits",
		applies: func(a RawAnnotation, _, _, _ float64) bool {
			return a.FieldKind == KindButton && a.Flags&FlagRadio != 0
		},
		result: func(RawAnnotation) FieldType { return FieldTypeCheckbox },
	},
	{
		name: "button_small_or_named_check",
		applies: func(a RawAnnotation, w, h, maxSize float64) bool {
			return a.FieldKind == KindButton && a.Flags&FlagPushbutton == 0 &&
				(w <= maxSize && h <= maxSize || nameLooksLikeCheckbox(a.FieldName))
		},
		result: func(RawAnnotation) FieldType { return FieldTypeCheckbox },
	},
	{
		// Push buttons and anything else declared Btn are not specially modeled.
		name: "button_fallthrough",
		applies: func(a RawAnnotation, _, _, _ float64) bool {
			return a.FieldKind == KindButton
		},
		result: func(RawAnnotation) FieldType { return FieldTypeText },
	},
	{
		// Some producers omit field-kind metadata for interactive widgets;
		// small squares and "check"-named fields still classify as checkboxes.
		name: "undeclared_kind_heuristic",
		applies: func(a RawAnnotation, w, h, maxSize float64) bool {
			return a.FieldKind == "" &&
				(w <= maxSize && h <= maxSize || nameLooksLikeCheckbox(a.FieldName))
		},
		result: func(RawAnnotation) FieldType { return FieldTypeCheckbox },
	},
}

func nameLooksLikeCheckbox(name string) bool {
	return name != "" && strings.Contains(strings.ToLower(name), "check")
}

// Classify runs the ordered rule ladder against one annotation, using the
// already computed display width and height for the size heuristics.
func (e *Extractor) Classify(a RawAnnotation, dispW, dispH float64) FieldType {
	for _, rule := range classifyRules {
		if rule.applies(a, dispW, dispH, e.checkboxMaxSize) {
			if e.debugMode {
				log.Printf("classified %q as %s via rule %s", a.FieldName, rule.result(a), rule.name)
			}
			return rule.result(a)
		}
	}
	return FieldTypeText
}

// ExtractPage turns one page's annotations into field records. A bad
// annotation is logged and skipped; it never aborts the rest of the page.
// Returns the extracted records and the number of skipped annotations.
func (e *Extractor) ExtractPage(annotations []RawAnnotation, viewport PageViewport, page int, scale float64) ([]*Record, int) {
	records := make([]*Record, 0, len(annotations))
	skipped := 0

	for i, a := range annotations {
		if a.Subtype != SubtypeWidget {
			continue
		}

		rec, err := e.extractOne(a, viewport, page, i, scale)
		if err != nil {
			skipped++
			log.Printf("page %d annotation %d skipped: %v", page, i, err)
			continue
		}
		records = append(records, rec)
	}

	return records, skipped
}

func (e *Extractor) extractOne(a RawAnnotation, viewport PageViewport, page, index int, scale float64) (*Record, error) {
	if len(a.Rect) < 4 {
		return nil, fmt.Errorf("rect has %d elements, need 4", len(a.Rect))
	}

	doc := geometry.DocumentRect{
		X:      a.Rect[0],
		Y:      a.Rect[1],
		Width:  a.Rect[2] - a.Rect[0],
		Height: a.Rect[3] - a.Rect[1],
	}
	disp := e.transformer.ToDisplay(doc, viewport.Height, scale)

	fieldType := e.Classify(a, disp.Width, disp.Height)
	disp = ClampDisplay(disp, fieldType)

	id := fmt.Sprintf("existing_%d_%d", page, index)
	name := a.FieldName
	if name == "" {
		name = a.AlternativeText
	}
	if name == "" {
		name = id
	}

	return &Record{
		ID:              id,
		Name:            name,
		Type:            fieldType,
		Page:            page,
		Display:         disp,
		Value:           deriveValue(a, fieldType),
		Origin:          OriginExisting,
		ReadOnly:        a.ReadOnly,
		DocumentFieldID: a.FieldName,
	}, nil
}

// deriveValue resolves the record value. Checkboxes canonicalize to
// "true"/"false"; text fields fall back through the alternate sources.
func deriveValue(a RawAnnotation, t FieldType) string {
	if t == FieldTypeCheckbox {
		if a.Checked || checkboxTruthy[a.FieldValue] {
			return "true"
		}
		return "false"
	}
	switch {
	case a.FieldValue != "":
		return a.FieldValue
	case a.ButtonValue != "":
		return a.ButtonValue
	case a.AlternativeText != "":
		return a.AlternativeText
	}
	return ""
}

// ClampDisplay enforces non-negative positions and the minimum interactive
// sizes. Checkboxes normalize into a narrow band to even out inconsistent
// source sizing. Applied to every record entering the model, extracted or
// user-created.
func ClampDisplay(d geometry.DisplayRect, t FieldType) geometry.DisplayRect {
	if d.X < 0 {
		d.X = 0
	}
	if d.Y < 0 {
		d.Y = 0
	}
	if t == FieldTypeCheckbox {
		d.Width = clampRange(d.Width, CheckboxMinSize, CheckboxMaxSize)
		d.Height = clampRange(d.Height, CheckboxMinSize, CheckboxMaxSize)
		return d
	}
	if d.Width < MinFieldSize {
		d.Width = MinFieldSize
	}
	if d.Height < MinFieldSize {
		d.Height = MinFieldSize
	}
	return d
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
