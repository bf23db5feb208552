package entity

// IngestableDocument is a fully materialized upload, either received whole or rebuilt by the merge engine.
type IngestableDocument struct {
	OriginalName string
	Content      []byte
	ContentType  string
}

// ParsedRecord is one unit of text produced by a format parser.
type ParsedRecord struct {
	Content  string
	Metadata map[string]interface{}
}

// Metadata keys shared by parsed records, child chunks and parent chunks.
const (
	MetaSource = "source"
	MetaDocID  = "doc_id"
	MetaType   = "type"
)
