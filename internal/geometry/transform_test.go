package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformer_ToDisplay(t *testing.T) {
	tests := []struct {
		name       string
		doc        DocumentRect
		pageHeight float64
		scale      float64
		expected   DisplayRect
	}{
		{
			name:       "unit_scale_flips_vertical_axis",
			doc:        DocumentRect{X: 10, Y: 20, Width: 100, Height: 30},
			pageHeight: 792,
			scale:      1.0,
			expected:   DisplayRect{X: 10, Y: 742, Width: 100, Height: 30},
		},
		{
			name:       "base_scale_at_full_zoom",
			doc:        DocumentRect{X: 100, Y: 600, Width: 80, Height: 20},
			pageHeight: 792,
			scale:      1.5,
			expected:   DisplayRect{X: 150, Y: 258, Width: 120, Height: 30},
		},
		{
			name:       "field_at_page_bottom",
			doc:        DocumentRect{X: 0, Y: 0, Width: 50, Height: 10},
			pageHeight: 842,
			scale:      2.0,
			expected:   DisplayRect{X: 0, Y: 1664, Width: 100, Height: 20},
		},
		{
			name:       "field_at_page_top",
			doc:        DocumentRect{X: 0, Y: 782, Width: 50, Height: 10},
			pageHeight: 792,
			scale:      1.0,
			expected:   DisplayRect{X: 0, Y: 0, Width: 50, Height: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransformer(DefaultBaseScale)
			got := tr.ToDisplay(tt.doc, tt.pageHeight, tt.scale)
			assert.InDelta(t, tt.expected.X, got.X, 1e-9)
			assert.InDelta(t, tt.expected.Y, got.Y, 1e-9)
			assert.InDelta(t, tt.expected.Width, got.Width, 1e-9)
			assert.InDelta(t, tt.expected.Height, got.Height, 1e-9)
		})
	}
}

func TestTransformer_RoundTrip(t *testing.T) {
	tr := NewTransformer(DefaultBaseScale)

	tests := []struct {
		name       string
		doc        DocumentRect
		pageHeight float64
		scale      float64
	}{
		{"letter_page_unit_scale", DocumentRect{X: 72, Y: 144, Width: 216, Height: 28}, 792, 1.0},
		{"a4_page_base_scale", DocumentRect{X: 50.5, Y: 700.25, Width: 120.75, Height: 18.5}, 841.89, 1.5},
		{"zoomed_out", DocumentRect{X: 0, Y: 0, Width: 612, Height: 792}, 792, 0.75},
		{"zoomed_in", DocumentRect{X: 300.33, Y: 12.66, Width: 45.1, Height: 45.1}, 1008, 3.0},
		{"zero_size", DocumentRect{X: 10, Y: 10, Width: 0, Height: 0}, 792, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disp := tr.ToDisplay(tt.doc, tt.pageHeight, tt.scale)
			back := tr.ToDocument(disp, tt.pageHeight, tt.scale)

			assert.InDelta(t, tt.doc.X, back.X, 1e-9)
			assert.InDelta(t, tt.doc.Y, back.Y, 1e-9)
			assert.InDelta(t, tt.doc.Width, back.Width, 1e-9)
			assert.InDelta(t, tt.doc.Height, back.Height, 1e-9)
		})
	}
}

func TestTransformer_Scale(t *testing.T) {
	tr := NewTransformer(1.5)

	assert.InDelta(t, 1.5, tr.Scale(100), 1e-9)
	assert.InDelta(t, 0.75, tr.Scale(50), 1e-9)
	assert.InDelta(t, 3.0, tr.Scale(200), 1e-9)
}

func TestNewTransformer_DefaultsBaseScale(t *testing.T) {
	assert.InDelta(t, DefaultBaseScale, NewTransformer(0).BaseScale(), 1e-9)
	assert.InDelta(t, DefaultBaseScale, NewTransformer(-1).BaseScale(), 1e-9)
	assert.InDelta(t, 2.0, NewTransformer(2.0).BaseScale(), 1e-9)
}
