// Package sqlite provides a SQLite-backed implementation of the document
// and credentials stores. Suitable for single-node deployments and
// integration tests; the SaaS deployment uses the postgres package instead.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/storage/sqlite/migrations"
)

// Store is a SQLite-backed storage providing the document and credentials
// store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at dataDir/connectors.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory required")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "connectors.db")

	// WAL mode for better concurrency between sync workers.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// CredentialsStore returns a CredentialsStore backed by this store.
func (s *Store) CredentialsStore() driven.CredentialsStore {
	return &credentialsStore{store: s}
}

// migrate runs all pending migrations from the embedded filesystem.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

func (d *documentStore) Get(ctx context.Context, connectorID, externalID string) (*domain.ImportedDocument, error) {
	row := d.store.db.QueryRowContext(ctx, `
		SELECT connector_id, external_id, title, content, content_hash,
		       file_type, file_size, source_metadata, processing_status,
		       chunks_generated, embeddings_generated, last_synced_at,
		       sync_count, created_at, updated_at
		FROM imported_documents
		WHERE connector_id = ? AND external_id = ?
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

	_, err = d.store.db.ExecContext(ctx, `
		INSERT INTO imported_documents (
			connector_id, external_id, title, content, content_hash,
			file_type, file_size, source_metadata, processing_status,
			chunks_generated, embeddings_generated, last_synced_at,
			sync_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (connector_id, external_id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			file_type = excluded.file_type,
			file_size = excluded.file_size,
			source_metadata = excluded.source_metadata,
			processing_status = excluded.processing_status,
			chunks_generated = excluded.chunks_generated,
			embeddings_generated = excluded.embeddings_generated,
			last_synced_at = excluded.last_synced_at,
			sync_count = excluded.sync_count,
			updated_at = excluded.updated_at
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
	res, err := d.store.db.ExecContext(ctx,
		"DELETE FROM imported_documents WHERE connector_id = ? AND external_id = ?",
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
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT connector_id, external_id, title, content, content_hash,
		       file_type, file_size, source_metadata, processing_status,
		       chunks_generated, embeddings_generated, last_synced_at,
		       sync_count, created_at, updated_at
		FROM imported_documents
		WHERE connector_id = ?
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

// scanner covers *sql.Row and *sql.Rows.
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

// credentialsStore implements driven.CredentialsStore.
type credentialsStore struct {
	store *Store
}

var _ driven.CredentialsStore = (*credentialsStore)(nil)

func (c *credentialsStore) Get(ctx context.Context, connectorID string) (*domain.ConnectorCredentials, error) {
	var payload string
	var version int64
	err := c.store.db.QueryRowContext(ctx,
		"SELECT payload, version FROM connector_credentials WHERE connector_id = ?",
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
		res, err := c.store.db.ExecContext(ctx, `
			INSERT INTO connector_credentials (connector_id, payload, version, updated_at)
			VALUES (?, ?, 1, ?)
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
			// A concurrent create won.
			return domain.ErrCredentialConflict
		}
		return nil
	}

	res, err := c.store.db.ExecContext(ctx, `
		UPDATE connector_credentials
		SET payload = ?, version = version + 1, updated_at = ?
		WHERE connector_id = ? AND version = ?
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
	_, err := c.store.db.ExecContext(ctx,
		"DELETE FROM connector_credentials WHERE connector_id = ?", connectorID)
	if err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}
