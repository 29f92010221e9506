package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgreSQLProvider implements the StorageProvider interface using PostgreSQL
type PostgreSQLProvider struct {
	db              *sql.DB
	definitionStore *PostgreSQLDefinitionStore
	cacheStore      *PostgreSQLCacheStore
}

// PostgreSQLProviderConfig contains configuration for the PostgreSQL provider
type PostgreSQLProviderConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPostgreSQLProvider creates a new PostgreSQL storage provider
func NewPostgreSQLProvider(config PostgreSQLProviderConfig) (*PostgreSQLProvider, error) {
	// Set default port if not specified
	if config.Port == 0 {
		config.Port = 5432
	}

	// Set default SSL mode if not specified
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgreSQLProvider{
		db:              db,
		definitionStore: NewPostgreSQLDefinitionStore(db),
		cacheStore:      NewPostgreSQLCacheStore(db),
	}, nil
}

// Initialize sets up the storage backend
func (p *PostgreSQLProvider) Initialize() error {
	if err := p.definitionStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize definition store: %w", err)
	}

	if err := p.cacheStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize cache store: %w", err)
	}

	return nil
}

// Close cleans up resources
func (p *PostgreSQLProvider) Close() error {
	return p.db.Close()
}

// GetDefinitionStore returns a store for workflow definitions
func (p *PostgreSQLProvider) GetDefinitionStore() DefinitionStore {
	return p.definitionStore
}

// GetCacheStore returns a store for engine definitions
func (p *PostgreSQLProvider) GetCacheStore() CacheStore {
	return p.cacheStore
}

// PostgreSQLDefinitionStore implements the DefinitionStore interface using PostgreSQL
type PostgreSQLDefinitionStore struct {
	db *sql.DB
}

// NewPostgreSQLDefinitionStore creates a new PostgreSQL definition store
func NewPostgreSQLDefinitionStore(db *sql.DB) *PostgreSQLDefinitionStore {
	return &PostgreSQLDefinitionStore{
		db: db,
	}
}

// Initialize creates the PostgreSQL tables if they don't exist
func (s *PostgreSQLDefinitionStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS definitions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			metadata JSONB NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS definitions_name_idx ON definitions (name);
	`)
	if err != nil {
		return fmt.Errorf("failed to create definitions table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS definition_versions (
			definition_id TEXT NOT NULL REFERENCES definitions (id) ON DELETE CASCADE,
			version INTEGER NOT NULL,
			definition BYTEA NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (definition_id, version)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create definition_versions table: %w", err)
	}

	return nil
}

// SaveDefinition persists a definition version
func (s *PostgreSQLDefinitionStore) SaveDefinition(metadata DefinitionMetadata, definition []byte) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO definitions (id, name, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = $2, metadata = $3, updated_at = $5`,
		metadata.ID, metadata.Name, metaJSON, time.Unix(metadata.CreatedAt, 0), time.Unix(metadata.UpdatedAt, 0),
	)
	if err != nil {
		return fmt.Errorf("failed to save definition: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO definition_versions (definition_id, version, definition, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (definition_id, version) DO UPDATE SET definition = $3`,
		metadata.ID, metadata.Version, definition, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save definition version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit definition: %w", err)
	}

	return nil
}

// GetDefinition retrieves the latest version of a definition
func (s *PostgreSQLDefinitionStore) GetDefinition(id string) ([]byte, error) {
	var definition []byte
	err := s.db.QueryRow(
		"SELECT definition FROM definition_versions WHERE definition_id = $1 ORDER BY version DESC LIMIT 1",
		id,
	).Scan(&definition)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}

	return definition, nil
}

// GetDefinitionVersion retrieves a specific version of a definition
func (s *PostgreSQLDefinitionStore) GetDefinitionVersion(id string, version int) ([]byte, error) {
	var definition []byte
	err := s.db.QueryRow(
		"SELECT definition FROM definition_versions WHERE definition_id = $1 AND version = $2",
		id, version,
	).Scan(&definition)

	if err != nil {
		if err == sql.ErrNoRows {
			if _, metaErr := s.GetDefinitionMetadata(id); metaErr != nil {
				return nil, metaErr
			}
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to get definition version: %w", err)
	}

	return definition, nil
}

// ListDefinitionVersions returns the stored versions in ascending order
func (s *PostgreSQLDefinitionStore) ListDefinitionVersions(id string) ([]int, error) {
	rows, err := s.db.Query(
		"SELECT version FROM definition_versions WHERE definition_id = $1 ORDER BY version",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list definition versions: %w", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version rows: %w", err)
	}

	if len(versions) == 0 {
		return nil, ErrDefinitionNotFound
	}

	return versions, nil
}

// ListDefinitions returns all definition IDs
func (s *PostgreSQLDefinitionStore) ListDefinitions() ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM definitions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan definition ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating definition rows: %w", err)
	}

	return ids, nil
}

// DeleteDefinition removes a definition and all its versions
func (s *PostgreSQLDefinitionStore) DeleteDefinition(id string) error {
	result, err := s.db.Exec("DELETE FROM definitions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrDefinitionNotFound
	}

	return nil
}

// GetDefinitionMetadata retrieves metadata for a definition
func (s *PostgreSQLDefinitionStore) GetDefinitionMetadata(id string) (DefinitionMetadata, error) {
	var data []byte
	err := s.db.QueryRow("SELECT metadata FROM definitions WHERE id = $1", id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return DefinitionMetadata{}, ErrDefinitionNotFound
		}
		return DefinitionMetadata{}, fmt.Errorf("failed to get definition metadata: %w", err)
	}

	var metadata DefinitionMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return DefinitionMetadata{}, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return metadata, nil
}

// ListDefinitionsWithMetadata returns metadata for every definition
func (s *PostgreSQLDefinitionStore) ListDefinitionsWithMetadata() ([]DefinitionMetadata, error) {
	rows, err := s.db.Query("SELECT metadata FROM definitions")
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions with metadata: %w", err)
	}
	defer rows.Close()

	list := []DefinitionMetadata{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		var metadata DefinitionMetadata
		if err := json.Unmarshal(data, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		list = append(list, metadata)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metadata rows: %w", err)
	}

	sortMetadata(list)
	return list, nil
}

// UpdateDefinitionMetadata updates the descriptive metadata fields
func (s *PostgreSQLDefinitionStore) UpdateDefinitionMetadata(id string, metadata DefinitionMetadata) error {
	existing, err := s.GetDefinitionMetadata(id)
	if err != nil {
		return err
	}

	existing = mergeMetadata(existing, metadata)
	now := time.Now()
	existing.UpdatedAt = now.Unix()

	metaJSON, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.Exec(
		"UPDATE definitions SET metadata = $1, updated_at = $2 WHERE id = $3",
		metaJSON, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update definition metadata: %w", err)
	}

	return nil
}

// SearchDefinitions returns the definitions matching filter
func (s *PostgreSQLDefinitionStore) SearchDefinitions(filter SearchFilter) ([]DefinitionMetadata, error) {
	all, err := s.ListDefinitionsWithMetadata()
	if err != nil {
		return nil, err
	}
	return filter.Apply(all), nil
}

// PostgreSQLCacheStore implements the CacheStore interface using PostgreSQL
type PostgreSQLCacheStore struct {
	db *sql.DB
}

// NewPostgreSQLCacheStore creates a new PostgreSQL cache store
func NewPostgreSQLCacheStore(db *sql.DB) *PostgreSQLCacheStore {
	return &PostgreSQLCacheStore{
		db: db,
	}
}

// Initialize creates the PostgreSQL tables if they don't exist
func (s *PostgreSQLCacheStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS engine_cache (
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			definition BYTEA NOT NULL,
			expires_at TIMESTAMP,
			PRIMARY KEY (name, version)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create engine_cache table: %w", err)
	}

	return nil
}

// PutDefinition stores a definition; a zero ttl never expires
func (s *PostgreSQLCacheStore) PutDefinition(name string, version int, definition []byte, ttl time.Duration) error {
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO engine_cache (name, version, definition, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, version) DO UPDATE SET definition = $3, expires_at = $4`,
		name, version, definition, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to cache definition: %w", err)
	}

	return nil
}

// GetDefinition returns a cached definition or ErrCacheMiss
func (s *PostgreSQLCacheStore) GetDefinition(name string, version int) ([]byte, error) {
	var definition []byte
	err := s.db.QueryRow(`
		SELECT definition FROM engine_cache
		WHERE name = $1 AND version = $2 AND (expires_at IS NULL OR expires_at > $3)`,
		name, version, time.Now(),
	).Scan(&definition)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	return definition, nil
}

// DeleteDefinition removes a cached definition
func (s *PostgreSQLCacheStore) DeleteDefinition(name string, version int) error {
	_, err := s.db.Exec("DELETE FROM engine_cache WHERE name = $1 AND version = $2", name, version)
	if err != nil {
		return fmt.Errorf("failed to delete cached definition: %w", err)
	}
	return nil
}
