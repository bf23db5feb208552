// Package loader turns an ingestable document into parsed text records.
//
// Dispatch is by file extension over a closed set of formats. Anything else
// fails with UnsupportedFormatError before any parsing happens.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/pkg/logger"
)

const module = "loader"

// DefaultExtension is assumed when a filename carries no extension.
const DefaultExtension = "txt"

type Format int

const (
	FormatText Format = iota
	FormatPDF
	FormatJSON
	FormatCSV
	FormatDOCX
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatDOCX:
		return "docx"
	default:
		return "text"
	}
}

// UnsupportedFormatError carries the rejected extension.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: %q", entity.ErrUnsupportedFormat, e.Ext)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == entity.ErrUnsupportedFormat
}

// Extension returns the lower-cased extension of filename without the dot.
func Extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return DefaultExtension
	}
	return ext
}

// FormatFor maps an extension to its parser.
func FormatFor(ext string) (Format, error) {
	switch strings.ToLower(ext) {
	case "pdf":
		return FormatPDF, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "docx", "doc":
		return FormatDOCX, nil
	case "txt", "md":
		return FormatText, nil
	default:
		return 0, &UnsupportedFormatError{Ext: ext}
	}
}

type Loader struct {
	logger logger.ILogger
}

func New(log logger.ILogger) *Loader {
	return &Loader{logger: log}
}

// Load parses doc and stamps every record's source with doc.OriginalName,
// overriding whatever the parser put there.
func (l *Loader) Load(ctx context.Context, doc *entity.IngestableDocument) ([]entity.ParsedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := Extension(doc.OriginalName)
	format, err := FormatFor(ext)
	if err != nil {
		return nil, err
	}

	var records []entity.ParsedRecord
	switch format {
	case FormatPDF:
		records, err = parsePDF(doc.Content)
	case FormatJSON:
		records, err = parseJSON(doc.Content)
	case FormatCSV:
		records, err = parseCSV(doc.Content)
	case FormatDOCX:
		records, err = parseDOCX(doc.Content)
	case FormatText:
		records = parseText(doc.Content)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %v", entity.ErrParseFailure, doc.OriginalName, format, err)
	}

	for i := range records {
		if records[i].Metadata == nil {
			records[i].Metadata = make(map[string]interface{})
		}
		records[i].Metadata[entity.MetaSource] = doc.OriginalName
	}

	l.logger.Debug(module, "Document parsed", map[string]interface{}{
		"filename": doc.OriginalName,
		"format":   format.String(),
		"records":  len(records),
	})

	return records, nil
}
