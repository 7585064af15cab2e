// Package fields holds the in-memory field model: the records extracted from
// a PDF's widget annotations, the store that owns them for a session, and the
// matcher that reconciles them against an external descriptor list.
package fields

import (
	"github.com/fieldsync/pdf-fieldsync/internal/descriptor"
	"github.com/fieldsync/pdf-fieldsync/internal/geometry"
)

// FieldType is the semantic type of an editable field.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeCheckbox FieldType = "checkbox"
)

// Origin records how a field entered the model. It never changes after
// creation.
type Origin string

const (
	// OriginExisting marks fields discovered in the document's annotations.
	OriginExisting Origin = "existing"
	// OriginNew marks fields created by the user.
	OriginNew Origin = "new"
)

// Minimum interactive sizes in display units.
const (
	MinFieldSize      = 20.0
	CheckboxMinSize   = 15.0
	CheckboxMaxSize   = 25.0
	TextDefaultWidth  = 120.0
	TextDefaultHeight = 30.0
	TextareaMinWidth  = 200.0
	TextareaMinHeight = 80.0
	CheckboxSize      = 20.0
)

// Record is the unit of truth for one field.
type Record struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Type     FieldType            `json:"type"`
	Page     int                  `json:"page"`
	Display  geometry.DisplayRect `json:"display"`
	Value    string               `json:"value"`
	Origin   Origin               `json:"origin"`
	ReadOnly bool                 `json:"readonly"`

	// DocumentFieldID is the identifier used to look the field up inside the
	// original document. Defaults to ID when absent.
	DocumentFieldID string `json:"documentFieldId"`

	// Enrichment carried over from a matched descriptor.
	LogicID    string                 `json:"logicId,omitempty"`
	OptionInfo *descriptor.OptionInfo `json:"optionInfo,omitempty"`

	// OriginGeometry snapshots the matched descriptor's native geometry so
	// descriptor export round-trips without drift. Present iff Matched.
	OriginGeometry *geometry.DocumentRect `json:"originGeometry,omitempty"`
	Matched        bool                   `json:"matched"`
}

// Checked reports whether a checkbox record is in its checked state.
func (r *Record) Checked() bool {
	return r.Type == FieldTypeCheckbox && r.Value == "true"
}

// LookupID returns the identifier used against the source document.
func (r *Record) LookupID() string {
	if r.DocumentFieldID != "" {
		return r.DocumentFieldID
	}
	return r.ID
}

// Patch describes a partial update to a record. Nil fields are left untouched.
type Patch struct {
	Name    *string
	Type    *FieldType
	Value   *string
	Display *geometry.DisplayRect
}

// DefaultDisplaySize returns the geometry defaults applied when a field's
// type changes, keeping the existing rect where the type only imposes minima.
func DefaultDisplaySize(t FieldType, current geometry.DisplayRect) geometry.DisplayRect {
	switch t {
	case FieldTypeCheckbox:
		current.Width = CheckboxSize
		current.Height = CheckboxSize
	case FieldTypeTextarea:
		current.Width = max(current.Width, TextareaMinWidth)
		current.Height = max(current.Height, TextareaMinHeight)
	default:
		current.Width = max(current.Width, TextDefaultWidth)
		current.Height = TextDefaultHeight
	}
	return current
}
