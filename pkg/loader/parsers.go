package loader

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"ai-knowledgebase-be/internal/entity"

	"github.com/ledongthuc/pdf"
)

var utf8BOM = []byte("\xef\xbb\xbf")

func parseText(content []byte) []entity.ParsedRecord {
	text := string(bytes.TrimPrefix(content, utf8BOM))
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []entity.ParsedRecord{{Content: text, Metadata: map[string]interface{}{}}}
}

// parsePDF emits one record per page that has extractable text.
func parsePDF(content []byte) ([]entity.ParsedRecord, error) {
	if len(content) == 0 {
		return nil, errors.New("empty pdf content")
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	var records []entity.ParsedRecord
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // unreadable page
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		records = append(records, entity.ParsedRecord{
			Content: text,
			Metadata: map[string]interface{}{
				"page_number": i,
				"total_pages": total,
			},
		})
	}
	return records, nil
}

// parseCSV emits one record per data row as "header: value" lines.
func parseCSV(content []byte) ([]entity.ParsedRecord, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(content))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read headers: %w", err)
	}

	var records []entity.ParsedRecord
	line := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++

		fields := make([]string, 0, len(row))
		for i, val := range row {
			if i >= len(headers) {
				break
			}
			fields = append(fields, fmt.Sprintf("%s: %s", strings.TrimSpace(headers[i]), strings.TrimSpace(val)))
		}
		if len(fields) == 0 {
			continue
		}
		records = append(records, entity.ParsedRecord{
			Content:  strings.Join(fields, "\n"),
			Metadata: map[string]interface{}{"line": line},
		})
	}
	return records, nil
}

type jsonFrame struct {
	object    bool
	expectKey bool
}

// parseJSON emits one record per string value (object keys excluded), in
// document order.
func parseJSON(content []byte) ([]entity.ParsedRecord, error) {
	content = bytes.TrimSpace(bytes.TrimPrefix(content, utf8BOM))
	if len(content) == 0 {
		return nil, nil
	}
	// Token stops cleanly at EOF even inside an open value.
	if !json.Valid(content) {
		return nil, fmt.Errorf("parse json: %w", io.ErrUnexpectedEOF)
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	var (
		stack   []jsonFrame
		records []entity.ParsedRecord
	)

	valueDone := func() {
		if n := len(stack); n > 0 && stack[n-1].object {
			stack[n-1].expectKey = true
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				stack = append(stack, jsonFrame{object: true, expectKey: true})
			case '[':
				stack = append(stack, jsonFrame{})
			default:
				stack = stack[:len(stack)-1]
				valueDone()
			}
		case string:
			if n := len(stack); n > 0 && stack[n-1].object && stack[n-1].expectKey {
				stack[n-1].expectKey = false
				continue
			}
			records = append(records, entity.ParsedRecord{
				Content:  v,
				Metadata: map[string]interface{}{"line": len(records) + 1},
			})
			valueDone()
		default:
			valueDone()
		}
	}
	return records, nil
}

// parseDOCX reads word/document.xml and joins paragraph text with blank lines.
func parseDOCX(content []byte) ([]entity.ParsedRecord, error) {
	if len(content) == 0 {
		return nil, errors.New("empty docx content")
	}

	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, errors.New("missing word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("read document.xml: %w", err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				current.Reset()
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br":
				current.WriteString("\n")
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(el)
			}
		}
	}

	if len(paragraphs) == 0 {
		return nil, nil
	}
	return []entity.ParsedRecord{{
		Content:  strings.Join(paragraphs, "\n\n"),
		Metadata: map[string]interface{}{"paragraphs": len(paragraphs)},
	}}, nil
}
