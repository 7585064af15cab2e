package document

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/fieldsync/pdf-fieldsync/internal/fields"
	"github.com/fieldsync/pdf-fieldsync/internal/geometry"
)

// Flat background colors for created widgets, distinguishing recreated
// existing fields from user additions.
var (
	existingFieldBG = []float64{0.914, 0.969, 0.937} // pale green
	newFieldBG      = []float64{0.914, 0.925, 1.0}   // pale blue
)

// FieldUpdate writes a value into a field already present in the target.
type FieldUpdate struct {
	Lookup string // documentFieldId, falling back to the record name
	Name   string
	Value  string
	Kind   fields.FieldType
}

// FieldCreation adds a fresh interactive field to the target.
type FieldCreation struct {
	Name     string
	Kind     fields.FieldType
	Page     int
	Rect     geometry.DocumentRect // document space
	Value    string
	Existing bool // recreated existing field vs user-created
}

// MutationResult reports what the mutation actually did; lookup and write
// failures are skipped, never fatal.
type MutationResult struct {
	Updated int
	Created int
	Skipped int
	Renamed []string
}

// Mutator applies a mutation plan to a target document and serializes the
// result.
type Mutator struct {
	debugMode bool
}

// NewMutator creates a document mutator.
func NewMutator(debugMode bool) *Mutator {
	return &Mutator{debugMode: debugMode}
}

// Apply mutates the target document. A parse failure of the target returns
// ErrDocumentParse so the caller can fall back to a rebuild.
func (m *Mutator) Apply(target []byte, updates []FieldUpdate, creations []FieldCreation) ([]byte, *MutationResult, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(target), conf)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", fields.ErrDocumentParse, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", fields.ErrDocumentParse, err)
	}

	result := &MutationResult{}
	existing := m.collectFieldDicts(ctx)

	for _, u := range updates {
		if m.applyUpdate(ctx, existing, u) {
			result.Updated++
		} else {
			result.Skipped++
			log.Printf("field %q not updated in target, skipped", u.Name)
		}
	}

	taken := make(map[string]bool, len(existing))
	for name := range existing {
		taken[name] = true
	}

	for _, c := range creations {
		name := UniqueFieldName(c.Name, taken)
		if name != c.Name {
			result.Renamed = append(result.Renamed, name)
		}
		taken[name] = true
		if err := m.createField(ctx, c, name); err != nil {
			result.Skipped++
			log.Printf("field %q not created: %v", c.Name, err)
			continue
		}
		result.Created++
	}

	m.ensureNeedAppearances(ctx)

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, nil, fmt.Errorf("failed to write mutated document: %w", err)
	}

	if m.debugMode {
		log.Printf("document mutation: %d updated, %d created, %d skipped", result.Updated, result.Created, result.Skipped)
	}

	return buf.Bytes(), result, nil
}

// FieldNames returns the full names of every field in the target document.
func (m *Mutator) FieldNames(target []byte) (map[string]bool, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(target), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fields.ErrDocumentParse, err)
	}

	dicts := m.collectFieldDicts(ctx)
	names := make(map[string]bool, len(dicts))
	for name := range dicts {
		names[name] = true
	}
	return names, nil
}

// UniqueFieldName appends an incrementing numeric suffix until the name does
// not collide with the taken set. The in-memory model is never renamed; only
// the output format's uniqueness constraint is satisfied here.
func UniqueFieldName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// collectFieldDicts walks the AcroForm field tree and returns terminal field
// dicts keyed by full name. Unreadable entries are skipped.
func (m *Mutator) collectFieldDicts(ctx *model.Context) map[string]types.Dict {
	out := make(map[string]types.Dict)

	rootDict, err := ctx.Catalog()
	if err != nil {
		return out
	}
	acroObj, found := rootDict.Find("AcroForm")
	if !found {
		return out
	}
	acroDict, err := ctx.DereferenceDict(acroObj)
	if err != nil || acroDict == nil {
		return out
	}
	fieldsObj, found := acroDict.Find("Fields")
	if !found {
		return out
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return out
	}

	for _, ref := range fieldsArray {
		m.collectField(ctx, ref, "", out, 0)
	}
	return out
}

func (m *Mutator) collectField(ctx *model.Context, obj types.Object, prefix string, out map[string]types.Dict, depth int) {
	if depth > maxParentDepth {
		return
	}
	dict, err := ctx.DereferenceDict(obj)
	if err != nil || dict == nil {
		return
	}

	name := prefix
	if tObj, found := dict.Find("T"); found {
		if t, err := ctx.DereferenceStringOrHexLiteral(tObj, model.V10, nil); err == nil {
			if name == "" {
				name = t
			} else {
				name = name + "." + t
			}
		}
	}

	if kidsObj, found := dict.Find("Kids"); found {
		if kids, err := ctx.DereferenceArray(kidsObj); err == nil && len(kids) > 0 {
			// Containers with kids that carry their own T are nested fields;
			// kids without T are widgets of this field.
			nested := false
			for _, kid := range kids {
				if kidDict, err := ctx.DereferenceDict(kid); err == nil && kidDict != nil {
					if _, hasT := kidDict.Find("T"); hasT {
						nested = true
						m.collectField(ctx, kid, name, out, depth+1)
					}
				}
			}
			if nested {
				return
			}
		}
	}

	if name != "" {
		out[name] = dict
	}
}

// applyUpdate writes one value into the matching target field, preferring the
// lookup id and falling back to the record name.
func (m *Mutator) applyUpdate(ctx *model.Context, existing map[string]types.Dict, u FieldUpdate) bool {
	dict, ok := existing[u.Lookup]
	if !ok {
		dict, ok = existing[u.Name]
	}
	if !ok {
		return false
	}

	if u.Kind == fields.FieldTypeCheckbox {
		state := "Off"
		if u.Value == "true" {
			state = "Yes"
		}
		dict.Update("V", types.Name(state))
		dict.Update("AS", types.Name(state))
		return true
	}

	dict.Update("V", types.StringLiteral(u.Value))
	// Drop a stale appearance stream so viewers regenerate it.
	dict.Delete("AP")
	return true
}

// createField builds a merged widget annotation for the new field and wires
// it into both the page's Annots and the AcroForm field tree.
func (m *Mutator) createField(ctx *model.Context, c FieldCreation, name string) error {
	bg := newFieldBG
	if c.Existing {
		bg = existingFieldBG
	}

	widget := types.Dict{
		"Type":    types.Name("Annot"),
		"Subtype": types.Name("Widget"),
		"T":       types.StringLiteral(name),
		"F":       types.Integer(4), // print
		"Rect":    types.NewNumberArray(c.Rect.X, c.Rect.Y, c.Rect.X+c.Rect.Width, c.Rect.Y+c.Rect.Height),
		"MK":      types.Dict{"BG": types.NewNumberArray(bg[0], bg[1], bg[2])},
		"DA":      types.StringLiteral("/Helv 10 Tf 0 g"),
	}

	switch c.Kind {
	case fields.FieldTypeCheckbox:
		widget["FT"] = types.Name("Btn")
		state := "Off"
		if c.Value == "true" {
			state = "Yes"
		}
		widget["V"] = types.Name(state)
		widget["AS"] = types.Name(state)
	case fields.FieldTypeTextarea:
		widget["FT"] = types.Name("Tx")
		widget["Ff"] = types.Integer(1 << 12) // multiline
		if c.Value != "" {
			widget["V"] = types.StringLiteral(c.Value)
		}
	default:
		widget["FT"] = types.Name("Tx")
		if c.Value != "" {
			widget["V"] = types.StringLiteral(c.Value)
		}
	}

	ir, err := ctx.IndRefForNewObject(widget)
	if err != nil {
		return fmt.Errorf("failed to register widget object: %w", err)
	}

	if err := m.appendPageAnnotation(ctx, c.Page, *ir); err != nil {
		return err
	}
	return m.appendAcroFormField(ctx, *ir)
}

func (m *Mutator) appendPageAnnotation(ctx *model.Context, page int, ir types.IndirectRef) error {
	pageDict, _, _, err := ctx.PageDict(page, false)
	if err != nil {
		return fmt.Errorf("failed to resolve page %d: %w", page, err)
	}
	if pageDict == nil {
		return fmt.Errorf("page %d not found", page)
	}

	var annots types.Array
	if annotsObj, found := pageDict.Find("Annots"); found {
		if arr, err := ctx.DereferenceArray(annotsObj); err == nil {
			annots = arr
		}
	}
	annots = append(annots, ir)
	pageDict.Update("Annots", annots)
	return nil
}

func (m *Mutator) appendAcroFormField(ctx *model.Context, ir types.IndirectRef) error {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}

	var acroDict types.Dict
	if acroObj, found := rootDict.Find("AcroForm"); found {
		if d, err := ctx.DereferenceDict(acroObj); err == nil && d != nil {
			acroDict = d
		}
	}
	if acroDict == nil {
		acroDict = types.Dict{"Fields": types.Array{}}
		rootDict.Insert("AcroForm", acroDict)
	}

	var fieldRefs types.Array
	if fieldsObj, found := acroDict.Find("Fields"); found {
		if arr, err := ctx.DereferenceArray(fieldsObj); err == nil {
			fieldRefs = arr
		}
	}
	fieldRefs = append(fieldRefs, ir)
	acroDict.Update("Fields", fieldRefs)
	return nil
}

// ensureNeedAppearances asks viewers to regenerate widget appearances for the
// values written here.
func (m *Mutator) ensureNeedAppearances(ctx *model.Context) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return
	}
	if acroObj, found := rootDict.Find("AcroForm"); found {
		if acroDict, err := ctx.DereferenceDict(acroObj); err == nil && acroDict != nil {
			acroDict.Update("NeedAppearances", types.Boolean(true))
		}
	}
}

// KindForTarget maps a target document field-kind name onto the engine's
// field types, for kind reflection during updates.
func KindForTarget(ft string) fields.FieldType {
	switch strings.TrimPrefix(ft, "/") {
	case "Btn":
		return fields.FieldTypeCheckbox
	default:
		return fields.FieldTypeText
	}
}
