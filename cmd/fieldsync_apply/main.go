package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fieldsync/pdf-fieldsync/internal/fields"
	"github.com/fieldsync/pdf-fieldsync/internal/session"
)

var (
	descriptorsPath = flag.String("descriptors", "", "Path to a field descriptor JSON file")
	valuesPath      = flag.String("values", "", "Path to a JSON file mapping field names to values")
	outputPath      = flag.String("output", "", "Write the synchronized PDF to this path")
	exportPath      = flag.String("export", "", "Write the projected descriptor JSON to this path")
	outputFormat    = flag.String("format", "text", "Output format: text, json")
	verbose         = flag.Bool("verbose", false, "Enable verbose output")
	help            = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: PDF file path required\n\n")
		printUsage()
		os.Exit(1)
	}

	pdfPath := flag.Arg(0)
	if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found: %s\n", pdfPath)
		os.Exit(1)
	}

	result, err := runSync(pdfPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error synchronizing fields: %v\n", err)
		os.Exit(1)
	}

	if err := outputResults(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error outputting results: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("FieldSync Apply - Synchronize field descriptors with a PDF document offline")
	fmt.Println()
	fmt.Println("This tool extracts form annotations from a PDF, matches them against an")
	fmt.Println("externally supplied descriptor list, applies field values, and writes the")
	fmt.Println("updated document and projected descriptor JSON.")
	fmt.Println()
	printUsage()
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -descriptors   Path to a field descriptor JSON file")
	fmt.Println("  -values        JSON file mapping field names to values to apply")
	fmt.Println("  -output        Write the synchronized PDF to this path")
	fmt.Println("  -export        Write the projected descriptor JSON to this path")
	fmt.Println("  -format        Output format: text (default), json")
	fmt.Println("  -verbose       Enable verbose output")
	fmt.Println("  -help          Show this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  fieldsync_apply form.pdf")
	fmt.Println("  fieldsync_apply -descriptors fields.json form.pdf")
	fmt.Println("  fieldsync_apply -descriptors fields.json -values answers.json -output filled.pdf form.pdf")
	fmt.Println("  fieldsync_apply -format json -export projected.json form.pdf")
}

func printUsage() {
	fmt.Println("USAGE:")
	fmt.Println("  fieldsync_apply [OPTIONS] <pdf_file>")
}

// FieldSummary is the per-field portion of the sync report.
type FieldSummary struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Page    int     `json:"page"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Value   string  `json:"value,omitempty"`
	Matched bool    `json:"matched"`
	LogicID string  `json:"logicId,omitempty"`
}

// SyncResult is the complete result of an offline synchronization run.
type SyncResult struct {
	FilePath      string         `json:"file_path"`
	Success       bool           `json:"success"`
	Pages         int            `json:"pages"`
	Extracted     int            `json:"extracted"`
	Skipped       int            `json:"skipped"`
	Matched       int            `json:"matched"`
	Degraded      bool           `json:"degraded"`
	ValuesApplied int            `json:"values_applied"`
	FieldsUpdated int            `json:"fields_updated,omitempty"`
	FieldsCreated int            `json:"fields_created,omitempty"`
	OutputPath    string         `json:"output_path,omitempty"`
	ExportPath    string         `json:"export_path,omitempty"`
	Fields        []FieldSummary `json:"fields"`
	Error         string         `json:"error,omitempty"`
}

func runSync(pdfPath string) (*SyncResult, error) {
	absPath, err := filepath.Abs(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	result := &SyncResult{
		FilePath: absPath,
		Success:  false,
	}

	svc := session.NewService(session.Options{DebugMode: *verbose})

	if *descriptorsPath != "" {
		data, err := os.ReadFile(*descriptorsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptors: %w", err)
		}
		count, err := svc.LoadDescriptors(data)
		if err != nil {
			return nil, fmt.Errorf("failed to load descriptors: %w", err)
		}
		if *verbose {
			fmt.Printf("Loaded %d descriptor(s) from %s\n", count, *descriptorsPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	load, err := svc.LoadDocument(filepath.Base(absPath), data)
	if err != nil {
		result.Error = err.Error()
		return result, nil // Don't fail, return error in result
	}

	result.Pages = load.Pages
	result.Extracted = load.Extracted
	result.Skipped = load.Skipped
	result.Matched = load.Matched
	result.Degraded = load.Degraded

	if *valuesPath != "" {
		applied, err := applyValues(svc, *valuesPath)
		if err != nil {
			return nil, err
		}
		result.ValuesApplied = applied
	}

	result.Fields = summarizeFields(svc.Fields())

	if *exportPath != "" {
		exported, err := svc.ExportDescriptors()
		if err != nil {
			return nil, fmt.Errorf("failed to export descriptors: %w", err)
		}
		if err := os.WriteFile(*exportPath, exported, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write descriptor export: %w", err)
		}
		result.ExportPath = *exportPath
	}

	if *outputPath != "" {
		doc, mutation, err := svc.ExportDocument()
		if err != nil {
			return nil, fmt.Errorf("failed to export document: %w", err)
		}
		if err := os.WriteFile(*outputPath, doc, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write document: %w", err)
		}
		result.OutputPath = *outputPath
		result.FieldsUpdated = mutation.Updated
		result.FieldsCreated = mutation.Created
	}

	result.Success = true
	return result, nil
}

// applyValues reads a name-to-value JSON object and applies each entry to the
// session field with that name. Unknown names are reported, not fatal.
func applyValues(svc *session.Service, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read values: %w", err)
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return 0, fmt.Errorf("failed to parse values: %w", err)
	}

	byName := make(map[string]string)
	for _, rec := range svc.Fields() {
		if _, dup := byName[rec.Name]; !dup {
			byName[rec.Name] = rec.ID
		}
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		id, ok := byName[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "Warning: no field named %q in document\n", name)
			continue
		}
		value := values[name]
		if _, err := svc.UpdateField(id, fields.Patch{Value: &value}); err != nil {
			return applied, fmt.Errorf("failed to set %q: %w", name, err)
		}
		applied++
	}

	return applied, nil
}

func summarizeFields(records []*fields.Record) []FieldSummary {
	summaries := make([]FieldSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, FieldSummary{
			ID:      rec.ID,
			Name:    rec.Name,
			Type:    string(rec.Type),
			Page:    rec.Page,
			X:       rec.Display.X,
			Y:       rec.Display.Y,
			Width:   rec.Display.Width,
			Height:  rec.Display.Height,
			Value:   rec.Value,
			Matched: rec.Matched,
			LogicID: rec.LogicID,
		})
	}
	return summaries
}

func outputResults(result *SyncResult) error {
	switch *outputFormat {
	case "json":
		return outputJSON(result)
	case "text":
		return outputText(result)
	default:
		return fmt.Errorf("unsupported output format: %s", *outputFormat)
	}
}

func outputJSON(result *SyncResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputText(result *SyncResult) error {
	if !result.Success {
		fmt.Printf("Synchronization failed: %s\n", result.Error)
		return nil
	}

	fmt.Printf("Synchronized %s\n", result.FilePath)
	fmt.Printf("Pages: %d\n", result.Pages)
	fmt.Printf("Fields extracted: %d\n", result.Extracted)
	if result.Skipped > 0 {
		fmt.Printf("Annotations skipped: %d\n", result.Skipped)
	}
	if result.Matched > 0 {
		fmt.Printf("Fields matched to descriptors: %d\n", result.Matched)
	}
	if result.ValuesApplied > 0 {
		fmt.Printf("Values applied: %d\n", result.ValuesApplied)
	}
	if result.Degraded {
		fmt.Println("WARNING: document could not be fully parsed; operating in degraded mode")
	}
	fmt.Println()

	if len(result.Fields) == 0 {
		fmt.Println("No form fields detected in the PDF")
		return nil
	}

	for i, field := range result.Fields {
		fmt.Printf("[%d] %s\n", i+1, field.Name)
		fmt.Printf("    Type: %s\n", field.Type)
		fmt.Printf("    Page: %d\n", field.Page)
		fmt.Printf("    Display: (%.1f, %.1f) %0.1fx%0.1f\n", field.X, field.Y, field.Width, field.Height)

		if field.Value != "" {
			fmt.Printf("    Value: %s\n", field.Value)
		}

		properties := []string{}
		if field.Matched {
			properties = append(properties, "Matched")
		}
		if field.LogicID != "" {
			properties = append(properties, "Logic "+field.LogicID)
		}
		if len(properties) > 0 {
			fmt.Printf("    Properties: %s\n", strings.Join(properties, ", "))
		}

		fmt.Println()
	}

	if result.OutputPath != "" {
		fmt.Printf("Wrote synchronized document to %s (%d updated, %d created)\n",
			result.OutputPath, result.FieldsUpdated, result.FieldsCreated)
	}
	if result.ExportPath != "" {
		fmt.Printf("Wrote descriptor export to %s\n", result.ExportPath)
	}

	return nil
}

func init() {
	flag.Usage = func() {
		printHelp()
	}
}
