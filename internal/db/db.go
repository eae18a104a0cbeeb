package db

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/models"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

type Document struct {
	bun.BaseModel  `bun:"table:documents,alias:d"`
	ID             int64           `bun:"id,pk,autoincrement"`
	IndexKey       string          `bun:"index_key,notnull"`
	SourceFilename string          `bun:"source_filename,notnull"`
	PageNumber     int             `bun:"page_number,notnull"`
	ChunkID        int             `bun:"chunk_id,notnull"`
	ChunkOffset    int             `bun:"chunk_offset,notnull"`
	Content        string          `bun:"content,notnull"`
	Embedding      pgvector.Vector `bun:"embedding,type:vector,notnull"`
	Similarity     float32         `bun:"similarity,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.URL)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

// InitDB enables pgvector and creates the documents table.
func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*Document)(nil)).
		Index("documents_index_key_idx").
		Column("index_key").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create documents index: %w", err)
	}
	return nil
}

func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// Store keeps the chunks of one document version, identified by indexKey, in Postgres.
type Store struct {
	db       *bun.DB
	indexKey string
}

func NewStore(db *bun.DB, indexKey string) *Store {
	return &Store{db: db, indexKey: indexKey}
}

func (s *Store) Exists(ctx context.Context) (bool, error) {
	return s.db.NewSelect().
		Model((*Document)(nil)).
		Where("index_key = ?", s.indexKey).
		Exists(ctx)
}

// Store inserts all chunks in one transaction. An advisory lock on the index
// key serializes builders across processes; the loser finds rows already
// present and keeps them.
func (s *Store) Store(ctx context.Context, chunks []models.ChunkEmbedding) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?)", lockID(s.indexKey)); err != nil {
			return fmt.Errorf("failed to lock index: %w", err)
		}

		exists, err := tx.NewSelect().Model((*Document)(nil)).Where("index_key = ?", s.indexKey).Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			log.Warn().Str("index_key", s.indexKey).Msg("Index was published concurrently, keeping existing rows")
			return nil
		}
		if len(chunks) == 0 {
			return nil
		}

		docs := make([]Document, len(chunks))
		for i, ce := range chunks {
			docs[i] = Document{
				IndexKey:       s.indexKey,
				SourceFilename: ce.SourceFilename,
				PageNumber:     ce.PageNumber,
				ChunkID:        ce.ChunkID,
				ChunkOffset:    ce.Offset,
				Content:        ce.Content,
				Embedding:      pgvector.NewVector(ce.Embedding),
			}
		}
		if _, err := tx.NewInsert().Model(&docs).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert documents: %w", err)
		}
		log.Info().Str("index_key", s.indexKey).Int("documents", len(docs)).Msg("Persisted vector index")
		return nil
	})
}

// Search orders the stored chunks by cosine distance to embedding.
func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]models.RetrievedChunk, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	query := pgvector.NewVector(embedding)

	var docs []Document
	err := s.db.NewSelect().
		Model(&docs).
		Column("id", "source_filename", "page_number", "chunk_id", "chunk_offset", "content").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", query).
		Where("index_key = ?", s.indexKey).
		OrderExpr("embedding <=> ?", query).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	retrieved := make([]models.RetrievedChunk, len(docs))
	for i, d := range docs {
		retrieved[i] = models.RetrievedChunk{
			Chunk: models.Chunk{
				Content:    d.Content,
				PageNumber: d.PageNumber,
				ChunkID:    d.ChunkID,
				Offset:     d.ChunkOffset,
			},
			SourceFilename: d.SourceFilename,
			Similarity:     d.Similarity,
		}
	}
	return retrieved, nil
}

func lockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
