package models

// Page is the extracted text of one page, sheet or section of the source document.
type Page struct {
	Number int
	Text   string
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content    string
	PageNumber int
	ChunkID    int
	// Offset is the rune offset of Content within its page, or -1 when the
	// splitter rewrote the span.
	Offset int
}

type ChunkEmbedding struct {
	Content        string
	Embedding      []float32
	SourceFilename string
	PageNumber     int
	ChunkID        int
	Offset         int
}

type RetrievedChunk struct {
	Chunk
	SourceFilename string
	Similarity     float32
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}
