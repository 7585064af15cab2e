package fields

import (
	"log"
	"strings"

	"github.com/fieldsync/pdf-fieldsync/internal/descriptor"
	"github.com/fieldsync/pdf-fieldsync/internal/geometry"
)

// DefaultFuzzyThreshold is the minimum similarity score for a fuzzy match.
// A tuning choice, not a contract; override via NewMatcher.
const DefaultFuzzyThreshold = 0.7

// Matcher enriches existing-origin records with metadata from a previously
// loaded descriptor list. It never alters display geometry set by extraction,
// and it only reads extraction-era fields (name, page), so re-running it
// against the same list is idempotent.
type Matcher struct {
	fuzzyThreshold float64
	debugMode      bool
}

// NewMatcher creates a matcher. A non-positive threshold falls back to
// DefaultFuzzyThreshold.
func NewMatcher(fuzzyThreshold float64, debugMode bool) *Matcher {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = DefaultFuzzyThreshold
	}
	return &Matcher{fuzzyThreshold: fuzzyThreshold, debugMode: debugMode}
}

// matchStrategy is one tier of the lookup. Returns nil when the tier has no
// match; the first tier that succeeds wins and later tiers are not evaluated.
type matchStrategy func(r *Record, descriptors []descriptor.Record) *descriptor.Record

func (m *Matcher) strategies() []matchStrategy {
	return []matchStrategy{m.exactMatch, m.nameOnlyMatch, m.fuzzyMatch}
}

// exactMatch finds a descriptor whose (fieldName, page) equals the record's.
func (m *Matcher) exactMatch(r *Record, descriptors []descriptor.Record) *descriptor.Record {
	for i := range descriptors {
		if descriptors[i].FieldName == r.Name && descriptors[i].Page == r.Page {
			return &descriptors[i]
		}
	}
	return nil
}

// nameOnlyMatch ignores the page; descriptor page numbering sometimes
// disagrees with the document's.
func (m *Matcher) nameOnlyMatch(r *Record, descriptors []descriptor.Record) *descriptor.Record {
	for i := range descriptors {
		if descriptors[i].FieldName == r.Name {
			return &descriptors[i]
		}
	}
	return nil
}

// fuzzyMatch takes the first descriptor scoring above the threshold.
func (m *Matcher) fuzzyMatch(r *Record, descriptors []descriptor.Record) *descriptor.Record {
	for i := range descriptors {
		if Similarity(r.Name, descriptors[i].FieldName) >= m.fuzzyThreshold {
			return &descriptors[i]
		}
	}
	return nil
}

// Match runs the tiered lookup for a single record and applies the
// enrichment on success. Returns true iff a descriptor matched.
func (m *Matcher) Match(r *Record, descriptors []descriptor.Record) bool {
	for _, strategy := range m.strategies() {
		if d := strategy(r, descriptors); d != nil {
			m.enrich(r, d)
			return true
		}
	}
	r.Matched = false
	return false
}

// MatchAll enriches every existing-origin record in the store in place and
// returns the number matched. Unmatched records stay fully usable, just
// unlinked from descriptor metadata.
func (m *Matcher) MatchAll(store *Store, descriptors []descriptor.Record) int {
	matched := 0
	for _, r := range store.All() {
		if r.Origin != OriginExisting {
			continue
		}
		if m.Match(r, descriptors) {
			matched++
		}
	}
	if m.debugMode {
		log.Printf("descriptor matching: %d of %d existing fields matched", matched, store.Counts().Existing)
	}
	return matched
}

func (m *Matcher) enrich(r *Record, d *descriptor.Record) {
	r.LogicID = d.LogicID
	if d.DocumentFieldID != "" {
		r.DocumentFieldID = d.DocumentFieldID
	} else {
		r.DocumentFieldID = r.ID
	}
	r.OptionInfo = d.OptionInfo
	r.OriginGeometry = &geometry.DocumentRect{X: d.X, Y: d.Y, Width: d.Width, Height: d.Height}
	if d.FieldType != "" && d.FieldType != descriptor.FieldTypeUnknown {
		r.Type = FieldType(d.FieldType)
	}
	r.Matched = true
}

// Similarity scores two field names in [0,1]. Symmetric: equal strings
// (case-insensitive) score 1.0, containment either way scores 0.8, otherwise
// the shared-word fraction relative to the longer name; 0 when neither has
// words.
func Similarity(a, b string) float64 {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return 1.0
	}
	if la != "" && lb != "" && (strings.Contains(la, lb) || strings.Contains(lb, la)) {
		return 0.8
	}

	wordsA := strings.Fields(la)
	wordsB := strings.Fields(lb)
	longer := len(wordsA)
	if len(wordsB) > longer {
		longer = len(wordsB)
	}
	if longer == 0 {
		return 0
	}

	seen := make(map[string]bool, len(wordsA))
	for _, w := range wordsA {
		seen[w] = true
	}
	common := 0
	counted := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		if seen[w] && !counted[w] {
			common++
			counted[w] = true
		}
	}
	return float64(common) / float64(longer)
}
