package models

// SourceKind tells where a chunk came from
type SourceKind string

const (
	SourceKindNews      SourceKind = "news"
	SourceKindFinancial SourceKind = "financial"
)

// ChunkMetadata is provenance copied verbatim from the source document to each of its chunks
type ChunkMetadata struct {
	SourceKind SourceKind `json:"source_kind"`
	OriginLink *string    `json:"origin_link,omitempty"`
}

// NewsMetadata builds metadata for a news document
func NewsMetadata(link string) ChunkMetadata {
	return ChunkMetadata{SourceKind: SourceKindNews, OriginLink: &link}
}

// FinancialMetadata builds metadata for a financial document (no link)
func FinancialMetadata() ChunkMetadata {
	return ChunkMetadata{SourceKind: SourceKindFinancial}
}

// Link returns origin link or empty string
func (m ChunkMetadata) Link() string {
	if m.OriginLink == nil {
		return ""
	}
	return *m.OriginLink
}

// TextChunk is a bounded span of source text stored for retrieval
type TextChunk struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"metadata"`
	TokenCount int           `json:"token_count"`
}
