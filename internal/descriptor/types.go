// Package descriptor loads and serializes the externally supplied field
// descriptor lists that enrich fields extracted from a PDF.
package descriptor

// FieldTypeUnknown marks a descriptor that does not declare a field type.
// Any other value overrides the extracted type during matching.
const FieldTypeUnknown = "unknown"

// OptionInfo describes a descriptor's position within a multi-option group.
// It is carried through verbatim and never invented locally.
type OptionInfo struct {
	OptionNumber  int  `json:"optionNumber"`
	TotalOptions  int  `json:"totalOptions"`
	IsMultiOption bool `json:"isMultiOption"`
}

// Record is one externally supplied field descriptor. Geometry is in the
// descriptor's native units. Records are read-only to the engine.
type Record struct {
	FieldName       string      `json:"fieldName"`
	Page            int         `json:"page"`
	X               float64     `json:"x"`
	Y               float64     `json:"y"`
	Width           float64     `json:"width"`
	Height          float64     `json:"height"`
	DocumentFieldID string      `json:"documentFieldId,omitempty"`
	LogicID         string      `json:"logicId,omitempty"`
	FieldType       string      `json:"fieldType,omitempty"`
	OptionInfo      *OptionInfo `json:"optionInfo,omitempty"`
}
