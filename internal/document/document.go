// Package document is the pdfcpu-backed boundary to the PDF itself: loading
// a document from a byte buffer, walking its widget annotations, mutating its
// field set, and rebuilding a substitute document when the original cannot be
// parsed.
package document

import (
	"github.com/fieldsync/pdf-fieldsync/internal/fields"
)

// Page is one page of a loaded document: its geometry plus the raw
// annotations found on it.
type Page struct {
	Number      int
	Viewport    fields.PageViewport
	Annotations []fields.RawAnnotation
}

// Document is a loaded PDF. The original bytes are retained for the mutation
// path; the engine never mutates a document in place.
type Document struct {
	Bytes []byte
	Pages []Page
}

// PageCount returns the number of pages. Zero pages is a valid, loaded state
// distinct from a load failure.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Viewport returns the viewport for a 1-based page number.
func (d *Document) Viewport(page int) (fields.PageViewport, bool) {
	if page < 1 || page > len(d.Pages) {
		return fields.PageViewport{}, false
	}
	return d.Pages[page-1].Viewport, true
}
