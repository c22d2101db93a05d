// Package postgres provides a PostgreSQL-backed implementation of the
// document and credentials stores for multi-node deployments.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
)

const schema = `
CREATE TABLE IF NOT EXISTS imported_documents (
    connector_id         TEXT NOT NULL,
    external_id          TEXT NOT NULL,
    title                TEXT NOT NULL DEFAULT '',
    content              BYTEA,
    content_hash         TEXT NOT NULL,
    file_type            TEXT NOT NULL DEFAULT '',
    file_size            BIGINT NOT NULL DEFAULT 0,
    source_metadata      JSONB,
    processing_status    TEXT NOT NULL DEFAULT 'pending',
    chunks_generated     BOOLEAN NOT NULL DEFAULT FALSE,
    embeddings_generated BOOLEAN NOT NULL DEFAULT FALSE,
    last_synced_at       TIMESTAMPTZ,
    sync_count           INTEGER NOT NULL DEFAULT 0,
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (connector_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_imported_documents_hash ON imported_documents(content_hash);
CREATE INDEX IF NOT EXISTS idx_imported_documents_status ON imported_documents(processing_status);

CREATE TABLE IF NOT EXISTS connector_credentials (
    connector_id TEXT PRIMARY KEY,
    payload      JSONB NOT NULL,
    version      BIGINT NOT NULL DEFAULT 1,
    updated_at   TIMESTAMPTZ NOT NULL
);
`

// Store wraps a PostgreSQL connection pool.
type Store struct {
	db *sql.DB
}

// NewStore connects to the database identified by dsn and ensures the
// schema exists.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DocumentStore returns a DocumentStore backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{db: s.db}
}

// CredentialsStore returns a CredentialsStore backed by this store.
func (s *Store) CredentialsStore() driven.CredentialsStore {
	return &credentialsStore{db: s.db}
}

type documentStore struct {
	db *sql.DB
}

var _ driven.DocumentStore = (*documentStore)(nil)

func (d *documentStore) Get(ctx context.Context, connectorID, externalID string) (*domain.ImportedDocument, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT connector_id, external_id, title, content, content_hash,
		       file_type, file_size, COALESCE(source_metadata::text, ''),
		       processing_status, chunks_generated, embeddings_generated,
		       last_synced_at, sync_count, created_at, updated_at
		FROM imported_documents
		WHERE connector_id = $1 AND external_id = $2
	`, connectorID, externalID)
	return scanDocument(row)
}

func (d *documentStore) Put(ctx context.Context, doc domain.ImportedDocument) error {
	if doc.ConnectorID == "" || doc.ExternalID == "" {
		return domain.ErrInvalidInput
	}
	metadata, err := json.Marshal(doc.SourceMetadata)
	if err != nil {
		return fmt.Errorf("marshal source metadata: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO imported_documents (
			connector_id, external_id, title, content, content_hash,
			file_type, file_size, source_metadata, processing_status,
			chunks_generated, embeddings_generated, last_synced_at,
			sync_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (connector_id, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			content_hash = EXCLUDED.content_hash,
			file_type = EXCLUDED.file_type,
			file_size = EXCLUDED.file_size,
			source_metadata = EXCLUDED.source_metadata,
			processing_status = EXCLUDED.processing_status,
			chunks_generated = EXCLUDED.chunks_generated,
			embeddings_generated = EXCLUDED.embeddings_generated,
			last_synced_at = EXCLUDED.last_synced_at,
			sync_count = EXCLUDED.sync_count,
			updated_at = EXCLUDED.updated_at
	`,
		doc.ConnectorID, doc.ExternalID, doc.Title, doc.Content, doc.ContentHash,
		doc.FileType, doc.FileSize, string(metadata), doc.ProcessingStatus,
		doc.ChunksGenerated, doc.EmbeddingsGenerated, doc.LastSyncedAt.UTC(),
		doc.SyncCount, doc.CreatedAt.UTC(), doc.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (d *documentStore) Delete(ctx context.Context, connectorID, externalID string) error {
	res, err := d.db.ExecContext(ctx,
		"DELETE FROM imported_documents WHERE connector_id = $1 AND external_id = $2",
		connectorID, externalID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (d *documentStore) ListByConnector(ctx context.Context, connectorID string) ([]domain.ImportedDocument, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT connector_id, external_id, title, content, content_hash,
		       file_type, file_size, COALESCE(source_metadata::text, ''),
		       processing_status, chunks_generated, embeddings_generated,
		       last_synced_at, sync_count, created_at, updated_at
		FROM imported_documents
		WHERE connector_id = $1
		ORDER BY external_id
	`, connectorID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.ImportedDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.ImportedDocument, error) {
	var doc domain.ImportedDocument
	var metadata string
	err := row.Scan(
		&doc.ConnectorID, &doc.ExternalID, &doc.Title, &doc.Content,
		&doc.ContentHash, &doc.FileType, &doc.FileSize, &metadata,
		&doc.ProcessingStatus, &doc.ChunksGenerated, &doc.EmbeddingsGenerated,
		&doc.LastSyncedAt, &doc.SyncCount, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if metadata != "" && metadata != "null" {
		if err := json.Unmarshal([]byte(metadata), &doc.SourceMetadata); err != nil {
			return nil, fmt.Errorf("unmarshal source metadata: %w", err)
		}
	}
	return &doc, nil
}

type credentialsStore struct {
	db *sql.DB
}

var _ driven.CredentialsStore = (*credentialsStore)(nil)

func (c *credentialsStore) Get(ctx context.Context, connectorID string) (*domain.ConnectorCredentials, error) {
	var payload string
	var version int64
	err := c.db.QueryRowContext(ctx,
		"SELECT payload::text, version FROM connector_credentials WHERE connector_id = $1",
		connectorID).Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}

	var creds domain.ConnectorCredentials
	if err := json.Unmarshal([]byte(payload), &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	creds.Version = version
	return &creds, nil
}

func (c *credentialsStore) Save(ctx context.Context, connectorID string, creds domain.ConnectorCredentials, expectedVersion int64) error {
	creds.Version = expectedVersion + 1
	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if expectedVersion == 0 {
		res, err := c.db.ExecContext(ctx, `
			INSERT INTO connector_credentials (connector_id, payload, version, updated_at)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (connector_id) DO NOTHING
		`, connectorID, string(payload), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert credentials: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return domain.ErrCredentialConflict
		}
		return nil
	}

	res, err := c.db.ExecContext(ctx, `
		UPDATE connector_credentials
		SET payload = $1, version = version + 1, updated_at = $2
		WHERE connector_id = $3 AND version = $4
	`, string(payload), time.Now().UTC(), connectorID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCredentialConflict
	}
	return nil
}

func (c *credentialsStore) Delete(ctx context.Context, connectorID string) error {
	_, err := c.db.ExecContext(ctx,
		"DELETE FROM connector_credentials WHERE connector_id = $1", connectorID)
	if err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}
