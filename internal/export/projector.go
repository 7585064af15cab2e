// Package export projects the in-memory field model onto its two sinks: the
// descriptor JSON list and a document mutation plan.
package export

import (
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/fieldsync/pdf-fieldsync/internal/descriptor"
	"github.com/fieldsync/pdf-fieldsync/internal/document"
	"github.com/fieldsync/pdf-fieldsync/internal/fields"
	"github.com/fieldsync/pdf-fieldsync/internal/geometry"
)

// rowTolerance groups fields whose vertical positions differ by less than
// this many document units into the same visual row for ordering.
const rowTolerance = 5.0

// ViewportFunc resolves the viewport of a page, reporting false for pages the
// loaded document does not have.
type ViewportFunc func(page int) (fields.PageViewport, bool)

// Projector converts field records into export shapes. It never mutates the
// records it reads.
type Projector struct {
	transformer *geometry.Transformer
	debugMode   bool
}

// NewProjector creates a projector using the given coordinate transformer.
func NewProjector(transformer *geometry.Transformer, debugMode bool) *Projector {
	if transformer == nil {
		transformer = geometry.NewTransformer(0)
	}
	return &Projector{transformer: transformer, debugMode: debugMode}
}

// documentRect recovers a record's document-space geometry. A matched
// descriptor's snapshot is authoritative; anything else is inverted from
// display space.
func (p *Projector) documentRect(r *fields.Record, viewport ViewportFunc, scale float64) geometry.DocumentRect {
	if r.OriginGeometry != nil {
		return *r.OriginGeometry
	}

	pageHeight := 0.0
	if viewport != nil {
		if vp, ok := viewport(r.Page); ok {
			pageHeight = vp.Height
		}
	}
	return p.transformer.ToDocument(r.Display, pageHeight, scale)
}

// Descriptors projects every record into a descriptor list, grouped by page
// and ordered top of page first, left to right within a row.
func (p *Projector) Descriptors(records []*fields.Record, viewport ViewportFunc, scale float64) []descriptor.Record {
	out := make([]descriptor.Record, 0, len(records))
	for _, r := range records {
		rect := p.documentRect(r, viewport, scale)
		out = append(out, descriptor.Record{
			FieldName:       r.Name,
			Page:            r.Page,
			X:               rect.X,
			Y:               rect.Y,
			Width:           rect.Width,
			Height:          rect.Height,
			DocumentFieldID: r.LookupID(),
			LogicID:         r.LogicID,
			FieldType:       string(r.Type),
			OptionInfo:      r.OptionInfo,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		dy := a.Y - b.Y
		if dy > rowTolerance {
			return true // higher on the page (larger Y) comes first
		}
		if dy < -rowTolerance {
			return false
		}
		return a.X < b.X
	})

	if p.debugMode {
		log.Printf("projected %d descriptor records", len(out))
	}
	return out
}

// MutationPlan splits the records into target updates and field creations.
// Existing fields carrying a value are written back by lookup; user-created
// fields are added to the target.
type MutationPlan struct {
	Updates   []document.FieldUpdate
	Creations []document.FieldCreation
}

// Plan builds the mutation plan for a parseable target document.
func (p *Projector) Plan(records []*fields.Record, viewport ViewportFunc, scale float64) MutationPlan {
	var plan MutationPlan
	for _, r := range records {
		if r.Origin == fields.OriginExisting {
			if r.Value == "" {
				continue
			}
			plan.Updates = append(plan.Updates, document.FieldUpdate{
				Lookup: r.LookupID(),
				Name:   r.Name,
				Value:  r.Value,
				Kind:   r.Type,
			})
			continue
		}
		plan.Creations = append(plan.Creations, p.creation(r, viewport, scale))
	}
	return plan
}

// RebuildCreations recreates the entire field set as creations, used when the
// target cannot be parsed and a substitute document is built from scratch.
func (p *Projector) RebuildCreations(records []*fields.Record, viewport ViewportFunc, scale float64) []document.FieldCreation {
	out := make([]document.FieldCreation, 0, len(records))
	for _, r := range records {
		out = append(out, p.creation(r, viewport, scale))
	}
	return out
}

func (p *Projector) creation(r *fields.Record, viewport ViewportFunc, scale float64) document.FieldCreation {
	return document.FieldCreation{
		Name:     r.Name,
		Kind:     r.Type,
		Page:     r.Page,
		Rect:     p.documentRect(r, viewport, scale),
		Value:    r.Value,
		Existing: r.Origin == fields.OriginExisting,
	}
}

// DocumentInfo identifies the document a summary was exported for.
type DocumentInfo struct {
	Name  string `json:"name"`
	Pages int    `json:"pages"`
}

// Summary is the human-oriented JSON export: what the session holds, split by
// where each field came from.
type Summary struct {
	ExportedAt     time.Time        `json:"exportedAt"`
	Document       DocumentInfo     `json:"document"`
	Counts         fields.Counts    `json:"counts"`
	ExistingFields []*fields.Record `json:"existingFields"`
	NewFields      []*fields.Record `json:"newFields"`
}

// Summary builds the summary export from a store read.
func (p *Projector) Summary(records []*fields.Record, counts fields.Counts, info DocumentInfo, now time.Time) *Summary {
	s := &Summary{
		ExportedAt:     now,
		Document:       info,
		Counts:         counts,
		ExistingFields: make([]*fields.Record, 0),
		NewFields:      make([]*fields.Record, 0),
	}
	for _, r := range records {
		if r.Origin == fields.OriginExisting {
			s.ExistingFields = append(s.ExistingFields, r)
		} else {
			s.NewFields = append(s.NewFields, r)
		}
	}
	return s
}

// JSON serializes the summary with stable indentation.
func (s *Summary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
