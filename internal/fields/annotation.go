package fields

// Annotation subtypes and field kinds as they appear in the document. Only
// widget annotations are interactive form fields.
const (
	SubtypeWidget = "Widget"

	KindText   = "Tx"
	KindChoice = "Ch"
	KindButton = "Btn"
)

// Button field flag bits (PDF 32000-1, table 226).
const (
	FlagRadio      = 1 << 15
	FlagPushbutton = 1 << 16
)

// RawAnnotation is one page annotation as supplied by the document source.
// The shape is loose on purpose: absent metadata resolves to zero values and
// is handled by the extraction rules, never by a runtime error.
type RawAnnotation struct {
	Subtype         string
	Rect            []float64 // [llx, lly, urx, ury] in document space
	FieldKind       string    // Tx, Ch, Btn or empty when the producer omitted it
	FieldName       string
	FieldValue      string
	ButtonValue     string
	AlternativeText string
	Flags           int
	Multiline       bool
	CheckBox        bool
	RadioButton     bool
	Checked         bool
	ReadOnly        bool
}

// PageViewport carries the page geometry extraction needs. Page heights are
// per page: documents may mix page sizes.
type PageViewport struct {
	Width  float64
	Height float64
}
