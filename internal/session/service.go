// Package session ties the engine together for one editing session: one
// document, one descriptor list, one field store, and the operations the
// surrounding server exposes.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsync/pdf-fieldsync/internal/descriptor"
	"github.com/fieldsync/pdf-fieldsync/internal/document"
	"github.com/fieldsync/pdf-fieldsync/internal/export"
	"github.com/fieldsync/pdf-fieldsync/internal/fields"
	"github.com/fieldsync/pdf-fieldsync/internal/geometry"
)

// Default viewport for pages whose dimensions are unknown, matching US letter
// at 72 dpi.
var defaultViewport = fields.PageViewport{Width: 612, Height: 792}

// Options configures a session. Zero values fall back to the engine defaults.
type Options struct {
	BaseScale       float64
	ZoomPercent     float64
	CheckboxMaxSize float64
	FuzzyThreshold  float64
	DebugMode       bool
}

// LoadResult reports what loading a document produced.
type LoadResult struct {
	Pages     int  `json:"pages"`
	Extracted int  `json:"extracted"`
	Skipped   int  `json:"skipped"`
	Matched   int  `json:"matched"`
	Degraded  bool `json:"degraded"`
}

// Service owns the state of one editing session. It carries no locks; the
// caller serializes access.
type Service struct {
	id          string
	transformer *geometry.Transformer
	extractor   *fields.Extractor
	matcher     *fields.Matcher
	projector   *export.Projector
	loader      *document.Loader
	mutator     *document.Mutator
	rebuilder   *document.Rebuilder
	snapshotter document.Snapshotter

	store       *fields.Store
	descriptors []descriptor.Record
	doc         *document.Document
	docName     string
	zoomPercent float64
	degraded    bool
	debugMode   bool
}

// NewService creates a fresh session.
func NewService(opts Options) *Service {
	tr := geometry.NewTransformer(opts.BaseScale)
	zoom := opts.ZoomPercent
	if zoom <= 0 {
		zoom = 100
	}
	return &Service{
		id:          uuid.NewString(),
		transformer: tr,
		extractor:   fields.NewExtractor(tr, opts.CheckboxMaxSize, opts.DebugMode),
		matcher:     fields.NewMatcher(opts.FuzzyThreshold, opts.DebugMode),
		projector:   export.NewProjector(tr, opts.DebugMode),
		loader:      document.NewLoader(opts.DebugMode),
		mutator:     document.NewMutator(opts.DebugMode),
		rebuilder:   document.NewRebuilder(opts.DebugMode),
		store:       fields.NewStore(),
		zoomPercent: zoom,
		debugMode:   opts.DebugMode,
	}
}

// ID returns the session identifier.
func (s *Service) ID() string {
	return s.id
}

// SetSnapshotter installs a page renderer for the degraded rebuild path.
// Without one, rebuilt pages are plain white.
func (s *Service) SetSnapshotter(snap document.Snapshotter) {
	s.snapshotter = snap
}

// SetZoom changes the display zoom for subsequent geometry work.
func (s *Service) SetZoom(percent float64) error {
	if percent <= 0 {
		return fmt.Errorf("zoom must be positive, got %v", percent)
	}
	s.zoomPercent = percent
	return nil
}

// Zoom returns the current zoom percentage.
func (s *Service) Zoom() float64 {
	return s.zoomPercent
}

func (s *Service) scale() float64 {
	return s.transformer.Scale(s.zoomPercent)
}

// LoadDescriptors parses and installs the descriptor list. Descriptors must
// land before the document so extraction can match against them.
func (s *Service) LoadDescriptors(data []byte) (int, error) {
	if s.doc != nil {
		return 0, fmt.Errorf("descriptors must be loaded before the document")
	}
	records, err := descriptor.NewLoader(0).Load(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	s.descriptors = records
	return len(records), nil
}

// Descriptors returns the installed descriptor list.
func (s *Service) Descriptors() []descriptor.Record {
	return s.descriptors
}

// LoadDocument parses the document, extracts its fields, and matches them
// against the descriptor list. A bad signature is terminal and leaves state
// untouched. A parse failure past the signature degrades to an empty field
// set over the raw bytes so the session can still build fields and export.
func (s *Service) LoadDocument(name string, data []byte) (*LoadResult, error) {
	if err := document.CheckSignature(data); err != nil {
		return nil, err
	}

	result := &LoadResult{}

	doc, err := s.loader.Load(data)
	if err != nil {
		if !errors.Is(err, fields.ErrDocumentParse) {
			return nil, err
		}
		log.Printf("document %q did not parse, continuing degraded: %v", name, err)
		doc = &document.Document{Bytes: data}
		result.Degraded = true
	}

	s.store.Clear()
	s.doc = doc
	s.docName = name
	s.degraded = result.Degraded
	result.Pages = doc.PageCount()

	scale := s.scale()
	for _, page := range doc.Pages {
		records, skipped := s.extractor.ExtractPage(page.Annotations, page.Viewport, page.Number, scale)
		result.Skipped += skipped
		for _, r := range records {
			if err := s.store.Add(r); err != nil {
				result.Skipped++
				log.Printf("field %s dropped: %v", r.ID, err)
				continue
			}
			result.Extracted++
		}
	}

	if len(s.descriptors) > 0 {
		result.Matched = s.matcher.MatchAll(s.store, s.descriptors)
	}

	if s.debugMode {
		log.Printf("loaded %q: %d pages, %d fields, %d matched, %d skipped",
			name, result.Pages, result.Extracted, result.Matched, result.Skipped)
	}
	return result, nil
}

// DocumentLoaded reports whether a document is in the session.
func (s *Service) DocumentLoaded() bool {
	return s.doc != nil
}

// DocumentName returns the loaded document's name.
func (s *Service) DocumentName() string {
	return s.docName
}

// Degraded reports whether the loaded document failed to parse.
func (s *Service) Degraded() bool {
	return s.degraded
}

func (s *Service) viewport(page int) (fields.PageViewport, bool) {
	if s.doc != nil {
		if vp, ok := s.doc.Viewport(page); ok {
			return vp, true
		}
	}
	return defaultViewport, true
}

// AddField creates a user field at the given display position. Width and
// height of zero take the type's defaults.
func (s *Service) AddField(name string, t fields.FieldType, page int, display geometry.DisplayRect) (*fields.Record, error) {
	if s.doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if page < 1 {
		return nil, fmt.Errorf("page must be positive, got %d", page)
	}
	if pages := s.doc.PageCount(); pages > 0 && page > pages {
		return nil, fmt.Errorf("page %d out of range, document has %d pages", page, pages)
	}
	switch t {
	case fields.FieldTypeText, fields.FieldTypeTextarea, fields.FieldTypeCheckbox:
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}

	if display.Width == 0 && display.Height == 0 {
		display = fields.DefaultDisplaySize(t, display)
	}
	display = fields.ClampDisplay(display, t)

	r := &fields.Record{
		ID:      "new_" + uuid.NewString(),
		Name:    name,
		Type:    t,
		Page:    page,
		Display: display,
		Origin:  fields.OriginNew,
	}
	if t == fields.FieldTypeCheckbox {
		r.Value = "false"
	}
	if err := s.store.Add(r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateField patches a field. A type change without explicit geometry gets
// the new type's default sizing.
func (s *Service) UpdateField(id string, patch fields.Patch) (*fields.Record, error) {
	current, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if patch.Type != nil && *patch.Type != current.Type && patch.Display == nil {
		resized := fields.DefaultDisplaySize(*patch.Type, current.Display)
		patch.Display = &resized
		if *patch.Type == fields.FieldTypeCheckbox && patch.Value == nil {
			v := "false"
			patch.Value = &v
		}
	}
	if patch.Display != nil {
		t := current.Type
		if patch.Type != nil {
			t = *patch.Type
		}
		clamped := fields.ClampDisplay(*patch.Display, t)
		patch.Display = &clamped
	}
	return s.store.Update(id, patch)
}

// RemoveField deletes a field from the session.
func (s *Service) RemoveField(id string) error {
	return s.store.Remove(id)
}

// Field returns one field by id.
func (s *Service) Field(id string) (*fields.Record, error) {
	return s.store.Get(id)
}

// Fields returns every field in insertion order.
func (s *Service) Fields() []*fields.Record {
	return s.store.All()
}

// FieldsByPage returns the fields on one page.
func (s *Service) FieldsByPage(page int) []*fields.Record {
	return s.store.ByPage(page)
}

// Counts summarizes the store.
func (s *Service) Counts() fields.Counts {
	return s.store.Counts()
}

// ExportDescriptors serializes the full field set as a descriptor list.
func (s *Service) ExportDescriptors() ([]byte, error) {
	records := s.projector.Descriptors(s.store.All(), s.viewport, s.scale())
	var buf bytes.Buffer
	if err := descriptor.NewWriter().Write(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportDocument writes the field set into the loaded document. When the
// document cannot be parsed for mutation it is rebuilt from page snapshots
// with the whole field set recreated on top.
func (s *Service) ExportDocument() ([]byte, *document.MutationResult, error) {
	if s.doc == nil {
		return nil, nil, fmt.Errorf("no document loaded")
	}

	scale := s.scale()
	all := s.store.All()
	plan := s.projector.Plan(all, s.viewport, scale)

	out, result, err := s.mutator.Apply(s.doc.Bytes, plan.Updates, plan.Creations)
	if err == nil {
		return out, result, nil
	}
	if !errors.Is(err, fields.ErrDocumentParse) {
		return nil, nil, err
	}

	log.Printf("target document unparseable, rebuilding: %v", err)

	pageCount := s.doc.PageCount()
	if pageCount < 1 {
		pageCount = s.maxFieldPage()
	}
	viewports := make([]fields.PageViewport, pageCount)
	for i := range viewports {
		vp, _ := s.viewport(i + 1)
		viewports[i] = vp
	}

	creations := s.projector.RebuildCreations(all, s.viewport, scale)
	return s.rebuilder.Rebuild(pageCount, viewports, s.snapshotter, creations)
}

func (s *Service) maxFieldPage() int {
	pages := 1
	for _, r := range s.store.All() {
		if r.Page > pages {
			pages = r.Page
		}
	}
	return pages
}

// ExportSummary serializes the session overview JSON.
func (s *Service) ExportSummary(now time.Time) ([]byte, error) {
	info := export.DocumentInfo{Name: s.docName}
	if s.doc != nil {
		info.Pages = s.doc.PageCount()
	}
	summary := s.projector.Summary(s.store.All(), s.store.Counts(), info, now)
	return summary.JSON()
}
