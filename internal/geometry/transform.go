// Package geometry converts field rectangles between the PDF's native
// coordinate space (origin bottom-left, points) and the on-screen display
// space (origin top-left, pixels scaled by zoom).
package geometry

// DefaultBaseScale is the reference scale applied at 100% zoom so pages read
// comfortably on typical displays.
const DefaultBaseScale = 1.5

// DisplayRect is a rectangle in display space.
type DisplayRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DocumentRect is a rectangle in the document's native space.
type DocumentRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Transformer converts rectangles between document and display space.
// It is a pure value type; page height is supplied per call because pages
// within one document may have different dimensions.
type Transformer struct {
	baseScale float64
}

// NewTransformer creates a transformer with the given base scale.
// A zero or negative base scale falls back to DefaultBaseScale.
func NewTransformer(baseScale float64) *Transformer {
	if baseScale <= 0 {
		baseScale = DefaultBaseScale
	}
	return &Transformer{baseScale: baseScale}
}

// BaseScale returns the configured reference scale.
func (t *Transformer) BaseScale() float64 {
	return t.baseScale
}

// Scale returns the effective scale factor for a zoom percentage.
func (t *Transformer) Scale(zoomPercent float64) float64 {
	return zoomPercent / 100.0 * t.baseScale
}

// ToDisplay converts a document-space rectangle to display space.
// The vertical axis flips: document origin is bottom-left, display is top-left.
func (t *Transformer) ToDisplay(doc DocumentRect, pageHeight, scale float64) DisplayRect {
	return DisplayRect{
		X:      doc.X * scale,
		Y:      pageHeight*scale - (doc.Y+doc.Height)*scale,
		Width:  doc.Width * scale,
		Height: doc.Height * scale,
	}
}

// ToDocument is the inverse of ToDisplay: it recovers the document-space
// rectangle from a display rectangle at the given page height and scale.
func (t *Transformer) ToDocument(disp DisplayRect, pageHeight, scale float64) DocumentRect {
	width := disp.Width / scale
	height := disp.Height / scale
	return DocumentRect{
		X:      disp.X / scale,
		Y:      pageHeight - disp.Y/scale - height,
		Width:  width,
		Height: height,
	}
}
