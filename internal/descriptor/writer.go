package descriptor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// fixed2 serializes a float with fixed 2-decimal precision, the descriptor
// format's numeric convention.
type fixed2 float64

func (f fixed2) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(f), 'f', 2, 64)), nil
}

// exportRecord mirrors Record with fixed-precision geometry.
type exportRecord struct {
	FieldName       string      `json:"fieldName"`
	Page            int         `json:"page"`
	X               fixed2      `json:"x"`
	Y               fixed2      `json:"y"`
	Width           fixed2      `json:"width"`
	Height          fixed2      `json:"height"`
	DocumentFieldID string      `json:"documentFieldId,omitempty"`
	LogicID         string      `json:"logicId,omitempty"`
	FieldType       string      `json:"fieldType,omitempty"`
	OptionInfo      *OptionInfo `json:"optionInfo,omitempty"`
}

// Writer serializes descriptor lists back to the JSON interchange format.
type Writer struct{}

// NewWriter creates a descriptor writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write serializes the ordered descriptor list, preserving the given order.
func (w *Writer) Write(out io.Writer, records []Record) error {
	export := make([]exportRecord, len(records))
	for i, r := range records {
		export[i] = exportRecord{
			FieldName:       r.FieldName,
			Page:            r.Page,
			X:               fixed2(r.X),
			Y:               fixed2(r.Y),
			Width:           fixed2(r.Width),
			Height:          fixed2(r.Height),
			DocumentFieldID: r.DocumentFieldID,
			LogicID:         r.LogicID,
			FieldType:       r.FieldType,
			OptionInfo:      r.OptionInfo,
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("failed to encode descriptor list: %w", err)
	}
	return nil
}

// WriteFile serializes the descriptor list to a file.
func (w *Writer) WriteFile(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create descriptor file: %w", err)
	}
	defer f.Close()

	return w.Write(f, records)
}
