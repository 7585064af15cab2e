package document

import (
	"bytes"
	"fmt"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/fieldsync/pdf-fieldsync/internal/fields"
)

// pdfSignature is the 5-byte magic every PDF starts with.
var pdfSignature = []byte("%PDF-")

// CheckSignature verifies the buffer starts with the PDF signature. Absence
// is a terminal validation error raised before any extraction is attempted.
func CheckSignature(data []byte) error {
	if len(data) < len(pdfSignature) || !bytes.HasPrefix(data, pdfSignature) {
		return fmt.Errorf("%w: file does not start with %%PDF-", fields.ErrInvalidSignature)
	}
	return nil
}

// Loader reads documents and their widget annotations using pdfcpu.
type Loader struct {
	debugMode bool
}

// NewLoader creates a document loader.
func NewLoader(debugMode bool) *Loader {
	return &Loader{debugMode: debugMode}
}

// Load parses a document from a byte buffer. The signature check runs first;
// parse failures are reported distinctly from a zero-page document.
func (l *Loader) Load(data []byte) (*Document, error) {
	if err := CheckSignature(data); err != nil {
		return nil, err
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fields.ErrDocumentParse, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %v", fields.ErrDocumentParse, err)
	}

	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	doc := &Document{
		Bytes: data,
		Pages: make([]Page, 0, len(dims)),
	}

	for i, dim := range dims {
		pageNum := i + 1
		annotations, err := l.pageAnnotations(ctx, pageNum)
		if err != nil {
			// One unreadable page never blocks the rest.
			log.Printf("page %d annotations unreadable: %v", pageNum, err)
			annotations = nil
		}
		doc.Pages = append(doc.Pages, Page{
			Number:      pageNum,
			Viewport:    fields.PageViewport{Width: dim.Width, Height: dim.Height},
			Annotations: annotations,
		})
	}

	if l.debugMode {
		total := 0
		for _, p := range doc.Pages {
			total += len(p.Annotations)
		}
		log.Printf("loaded document: %d pages, %d annotations", len(doc.Pages), total)
	}

	return doc, nil
}

// pageAnnotations collects the raw annotations on one page.
func (l *Loader) pageAnnotations(ctx *model.Context, pageNum int) ([]fields.RawAnnotation, error) {
	pageDict, _, _, err := ctx.PageDict(pageNum, false)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve page dict: %w", err)
	}
	if pageDict == nil {
		return nil, nil
	}

	annotsObj, found := pageDict.Find("Annots")
	if !found {
		return nil, nil
	}
	annotsArray, err := ctx.DereferenceArray(annotsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Annots: %w", err)
	}

	annotations := make([]fields.RawAnnotation, 0, len(annotsArray))
	for i, obj := range annotsArray {
		annotDict, err := ctx.DereferenceDict(obj)
		if err != nil || annotDict == nil {
			log.Printf("page %d annotation %d unreadable, skipped", pageNum, i)
			continue
		}
		annotations = append(annotations, l.rawAnnotation(ctx, annotDict))
	}
	return annotations, nil
}

// rawAnnotation flattens one annotation dict (merged widget or widget with a
// parent field) into the extraction boundary shape. Absent entries resolve to
// zero values; classification downstream handles them.
func (l *Loader) rawAnnotation(ctx *model.Context, annotDict types.Dict) fields.RawAnnotation {
	raw := fields.RawAnnotation{}

	if subtypeObj, found := annotDict.Find("Subtype"); found {
		if name, err := ctx.DereferenceName(subtypeObj, model.V10, nil); err == nil {
			raw.Subtype = string(name)
		}
	}

	if rectObj, found := annotDict.Find("Rect"); found {
		if rectArray, err := ctx.DereferenceArray(rectObj); err == nil {
			raw.Rect = make([]float64, 0, len(rectArray))
			for _, coord := range rectArray {
				if f, err := ctx.DereferenceNumber(coord); err == nil {
					raw.Rect = append(raw.Rect, f)
				}
			}
		}
	}

	raw.FieldKind = l.inheritedName(ctx, annotDict, "FT", 0)
	raw.FieldName = l.fullFieldName(ctx, annotDict, 0)

	if tuObj, found := annotDict.Find("TU"); found {
		if tu, err := ctx.DereferenceStringOrHexLiteral(tuObj, model.V10, nil); err == nil {
			raw.AlternativeText = tu
		}
	}

	flags := l.inheritedInteger(ctx, annotDict, "Ff", 0)
	raw.Flags = flags
	raw.ReadOnly = flags&1 != 0
	raw.Multiline = flags&(1<<12) != 0
	raw.RadioButton = flags&fields.FlagRadio != 0
	if raw.FieldKind == fields.KindButton && flags&fields.FlagPushbutton == 0 && !raw.RadioButton {
		raw.CheckBox = true
	}

	raw.FieldValue = l.fieldValue(ctx, annotDict)
	if asObj, found := annotDict.Find("AS"); found {
		if as, err := ctx.DereferenceName(asObj, model.V10, nil); err == nil {
			raw.Checked = as != "" && as != "Off"
		}
	}
	if !raw.Checked && raw.FieldValue != "" && raw.FieldValue != "Off" && raw.FieldKind == fields.KindButton {
		raw.Checked = true
	}

	return raw
}

// maxParentDepth bounds the walk up the field hierarchy; real documents
// rarely nest fields more than a few levels.
const maxParentDepth = 8

// inheritedName resolves a name entry, consulting ancestors when absent.
func (l *Loader) inheritedName(ctx *model.Context, dict types.Dict, key string, depth int) string {
	if depth > maxParentDepth {
		return ""
	}
	if obj, found := dict.Find(key); found {
		if name, err := ctx.DereferenceName(obj, model.V10, nil); err == nil {
			return string(name)
		}
	}
	if parentObj, found := dict.Find("Parent"); found {
		if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
			return l.inheritedName(ctx, parentDict, key, depth+1)
		}
	}
	return ""
}

// inheritedInteger resolves an integer entry, consulting ancestors when absent.
func (l *Loader) inheritedInteger(ctx *model.Context, dict types.Dict, key string, depth int) int {
	if depth > maxParentDepth {
		return 0
	}
	if obj, found := dict.Find(key); found {
		if v, err := ctx.DereferenceInteger(obj); err == nil && v != nil {
			return int(*v)
		}
	}
	if parentObj, found := dict.Find("Parent"); found {
		if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
			return l.inheritedInteger(ctx, parentDict, key, depth+1)
		}
	}
	return 0
}

// fullFieldName joins the partial names up the parent chain with dots,
// matching how viewers address fields.
func (l *Loader) fullFieldName(ctx *model.Context, dict types.Dict, depth int) string {
	if depth > maxParentDepth {
		return ""
	}

	own := ""
	if tObj, found := dict.Find("T"); found {
		if t, err := ctx.DereferenceStringOrHexLiteral(tObj, model.V10, nil); err == nil {
			own = t
		}
	}

	if parentObj, found := dict.Find("Parent"); found {
		if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
			prefix := l.fullFieldName(ctx, parentDict, depth+1)
			switch {
			case prefix != "" && own != "":
				return prefix + "." + own
			case prefix != "":
				return prefix
			}
		}
	}
	return own
}

// fieldValue resolves the V entry as text, falling back to a name for button
// states, consulting the parent when the widget itself carries no value.
func (l *Loader) fieldValue(ctx *model.Context, dict types.Dict) string {
	if vObj, found := dict.Find("V"); found {
		if s, err := ctx.DereferenceStringOrHexLiteral(vObj, model.V10, nil); err == nil {
			return s
		}
		if name, err := ctx.DereferenceName(vObj, model.V10, nil); err == nil {
			return string(name)
		}
	}
	if parentObj, found := dict.Find("Parent"); found {
		if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
			if vObj, found := parentDict.Find("V"); found {
				if s, err := ctx.DereferenceStringOrHexLiteral(vObj, model.V10, nil); err == nil {
					return s
				}
				if name, err := ctx.DereferenceName(vObj, model.V10, nil); err == nil {
					return string(name)
				}
			}
		}
	}
	return ""
}
