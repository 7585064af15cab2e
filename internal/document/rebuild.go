package document

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/fieldsync/pdf-fieldsync/internal/fields"
)

// Snapshotter supplies a rendered image of one page, used only by the
// degraded rebuild path when the original document cannot be parsed for
// mutation.
type Snapshotter interface {
	Snapshot(page int) (io.Reader, error)
}

// WhiteSnapshotter renders plain white pages at the original page sizes. It
// is the fallback when no real renderer is wired in.
type WhiteSnapshotter struct {
	Viewports []fields.PageViewport
}

// Snapshot produces a white PNG sized like the requested page.
func (w *WhiteSnapshotter) Snapshot(page int) (io.Reader, error) {
	if page < 1 || page > len(w.Viewports) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	vp := w.Viewports[page-1]

	img := image.NewRGBA(image.Rect(0, 0, int(vp.Width), int(vp.Height)))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			img.Set(x, y, white)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page snapshot: %w", err)
	}
	return &buf, nil
}

// Rebuilder constructs a substitute document from scratch: one page per
// original page, the page snapshot as background, the field set layered on
// top. A degraded but complete output for unparseable targets.
type Rebuilder struct {
	mutator   *Mutator
	debugMode bool
}

// NewRebuilder creates a rebuilder.
func NewRebuilder(debugMode bool) *Rebuilder {
	return &Rebuilder{
		mutator:   NewMutator(debugMode),
		debugMode: debugMode,
	}
}

// Rebuild builds the substitute document for the given page count and lays
// every field creation on top. A failed page snapshot degrades further to a
// white page rather than aborting.
func (r *Rebuilder) Rebuild(pageCount int, viewports []fields.PageViewport, snap Snapshotter, creations []FieldCreation) ([]byte, *MutationResult, error) {
	if pageCount < 1 {
		return nil, nil, fmt.Errorf("cannot rebuild a document with no pages")
	}
	if snap == nil {
		snap = &WhiteSnapshotter{Viewports: viewports}
	}
	white := &WhiteSnapshotter{Viewports: viewports}

	imgs := make([]io.Reader, 0, pageCount)
	for page := 1; page <= pageCount; page++ {
		img, err := snap.Snapshot(page)
		if err != nil {
			log.Printf("page %d snapshot failed, using blank page: %v", page, err)
			img, err = white.Snapshot(page)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to produce page %d: %w", page, err)
			}
		}
		imgs = append(imgs, img)
	}

	conf := model.NewDefaultConfiguration()

	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, imgs, pdfcpu.DefaultImportConfig(), conf); err != nil {
		return nil, nil, fmt.Errorf("failed to assemble substitute document: %w", err)
	}

	if r.debugMode {
		log.Printf("rebuilt substitute document: %d pages, %d fields to layer", pageCount, len(creations))
	}

	return r.mutator.Apply(buf.Bytes(), nil, creations)
}
