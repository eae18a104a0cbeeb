package chromemdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/models"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

const (
	metaSource  = "source"
	metaPage    = "page"
	metaChunkID = "chunk_id"
	metaOffset  = "offset"
)

// VectorDBManager encapsulates the chromem-go database operations for one
// persisted index directory.
type VectorDBManager struct {
	mu             sync.Mutex
	db             *chromem.DB
	collection     *chromem.Collection
	dbPath         string
	collectionName string
	compress       bool
	embeddingFunc  chromem.EmbeddingFunc
}

// NewVectorDBManager prepares a manager for the index stored at dbPath.
// Nothing is read from disk until the index is searched or stored.
func NewVectorDBManager(dbPath, collectionName string, compress bool, embeddingFunc chromem.EmbeddingFunc) *VectorDBManager {
	return &VectorDBManager{
		dbPath:         dbPath,
		collectionName: collectionName,
		compress:       compress,
		embeddingFunc:  embeddingFunc,
	}
}

// Exists reports whether a persisted index directory is present.
func (m *VectorDBManager) Exists(ctx context.Context) (bool, error) {
	return helper.PathExists(m.dbPath)
}

// Store writes every chunk into a fresh database and publishes it at dbPath
// with a rename, so readers never observe a half-written index. If another
// builder published first, its index is kept.
func (m *VectorDBManager) Store(ctx context.Context, chunks []models.ChunkEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := helper.CreateFolder(filepath.Dir(m.dbPath)); err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.tmp-%s", m.dbPath, uuid.NewString())
	tmpDB, err := chromem.NewPersistentDB(tmpPath, m.compress)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	c, err := tmpDB.GetOrCreateCollection(m.collectionName, nil, m.embeddingFunc)
	if err != nil {
		os.RemoveAll(tmpPath)
		return fmt.Errorf("failed to create/get collection: %w", err)
	}

	if err := c.AddDocuments(ctx, toDocuments(chunks), runtime.NumCPU()); err != nil {
		os.RemoveAll(tmpPath)
		return fmt.Errorf("failed to add documents: %w", err)
	}

	if err := os.Rename(tmpPath, m.dbPath); err != nil {
		os.RemoveAll(tmpPath)
		exists, statErr := helper.PathExists(m.dbPath)
		if statErr != nil || !exists {
			return fmt.Errorf("failed to publish index: %w", err)
		}
		log.Warn().Str("path", m.dbPath).Msg("Index was published concurrently, keeping existing copy")
	}

	log.Info().Str("path", m.dbPath).Int("documents", len(chunks)).Msg("Persisted vector index")
	return m.open()
}

// Search returns up to k chunks ordered by cosine similarity to embedding.
func (m *VectorDBManager) Search(ctx context.Context, embedding []float32, k int) ([]models.RetrievedChunk, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}

	m.mu.Lock()
	if m.collection == nil {
		if err := m.open(); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	collection := m.collection
	m.mu.Unlock()

	n := min(k, collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	retrieved := make([]models.RetrievedChunk, len(results))
	for i, res := range results {
		retrieved[i] = fromResult(res)
	}
	return retrieved, nil
}

// Count returns the number of stored chunks, opening the index if needed.
func (m *VectorDBManager) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collection == nil {
		if err := m.open(); err != nil {
			return 0, err
		}
	}
	return m.collection.Count(), nil
}

// open loads the persisted database. Callers hold m.mu.
func (m *VectorDBManager) open() error {
	db, err := chromem.NewPersistentDB(m.dbPath, m.compress)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c, err := db.GetOrCreateCollection(m.collectionName, nil, m.embeddingFunc)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	if c.Count() == 0 {
		log.Warn().Str("path", m.dbPath).Msg("Persisted index is empty")
	}
	m.db = db
	m.collection = c
	return nil
}

func toDocuments(chunks []models.ChunkEmbedding) []chromem.Document {
	docs := make([]chromem.Document, len(chunks))
	for i, ce := range chunks {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("%d-%d", ce.PageNumber, ce.ChunkID),
			Content: ce.Content,
			Metadata: map[string]string{
				metaSource:  ce.SourceFilename,
				metaPage:    strconv.Itoa(ce.PageNumber),
				metaChunkID: strconv.Itoa(ce.ChunkID),
				metaOffset:  strconv.Itoa(ce.Offset),
			},
			Embedding: ce.Embedding,
		}
	}
	return docs
}

func fromResult(res chromem.Result) models.RetrievedChunk {
	page, _ := strconv.Atoi(res.Metadata[metaPage])
	chunkID, _ := strconv.Atoi(res.Metadata[metaChunkID])
	offset, err := strconv.Atoi(res.Metadata[metaOffset])
	if err != nil {
		offset = -1
	}
	return models.RetrievedChunk{
		Chunk: models.Chunk{
			Content:    res.Content,
			PageNumber: page,
			ChunkID:    chunkID,
			Offset:     offset,
		},
		SourceFilename: res.Metadata[metaSource],
		Similarity:     res.Similarity,
	}
}
