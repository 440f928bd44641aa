// Package sqlstore implements the vector registry on a relational
// database. Embeddings are rows referencing a person row; search loads
// every embedding and scores it in-process, which is exact but O(n) and
// meant for small-to-moderate registries.
//
// Two drivers are supported: mysql for deployments and sqlite (pure Go)
// for development and tests.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/facereg/facereg/internal/registry"
)

// Store is safe for concurrent use; all coordination happens in the
// database.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects, configures the pool, and creates the schema if absent.
func Open(driver, dsn string) (*Store, error) {
	if driver != "mysql" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if dsn == "" {
		return nil, errors.New("database DSN is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		// modernc sqlite does not tolerate concurrent writers on one
		// connection pool.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	var stmts []string
	if s.driver == "mysql" {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS persons (
				person_id VARCHAR(255) NOT NULL PRIMARY KEY,
				best_image LONGBLOB,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS embeddings (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				person_id VARCHAR(255) NOT NULL,
				vector LONGBLOB NOT NULL,
				INDEX idx_embeddings_person (person_id),
				CONSTRAINT fk_embeddings_person FOREIGN KEY (person_id)
					REFERENCES persons (person_id)
			)`,
		}
	} else {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS persons (
				person_id TEXT NOT NULL PRIMARY KEY,
				best_image BLOB,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS embeddings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				person_id TEXT NOT NULL REFERENCES persons (person_id),
				vector BLOB NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_embeddings_person ON embeddings (person_id)`,
		}
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Store(ctx context.Context, personID string, embeddings [][]float32, bestImage []byte) (int, error) {
	if len(embeddings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// The primary key makes uniqueness atomic: a concurrent register of
	// the same ID loses here, regardless of any earlier existence check.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO persons (person_id, best_image) VALUES (?, ?)`,
		personID, bestImage,
	); err != nil {
		if isDuplicateKey(err) {
			return 0, registry.ErrPersonExists
		}
		return 0, fmt.Errorf("inserting person: %w", err)
	}

	if err := insertEmbeddings(ctx, tx, personID, embeddings); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing registration: %w", err)
	}
	return len(embeddings), nil
}

func (s *Store) Search(ctx context.Context, query []float32, threshold float64, limit int) ([]registry.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.person_id, e.vector, p.best_image
		FROM embeddings e
		JOIN persons p ON p.person_id = e.person_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var matches []registry.Match
	for rows.Next() {
		var personID string
		var blob, bestImage []byte
		if err := rows.Scan(&personID, &blob, &bestImage); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}

		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("embedding for %q: %w", personID, err)
		}

		sim, ok := registry.CosineSimilarity(query, vec)
		if !ok || sim < threshold {
			continue
		}
		matches = append(matches, registry.Match{PersonID: personID, Similarity: sim, BestImage: bestImage})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) Exists(ctx context.Context, personID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM embeddings WHERE person_id = ?)`,
		personID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking person exists: %w", err)
	}
	return exists, nil
}

func (s *Store) Update(ctx context.Context, personID string, embeddings [][]float32, bestImage []byte) (int, error) {
	if len(embeddings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete-then-store in one transaction: concurrent writers for the
	// same person serialize on the persons row.
	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE person_id = ?`, personID); err != nil {
		return 0, fmt.Errorf("clearing embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE person_id = ?`, personID); err != nil {
		return 0, fmt.Errorf("clearing person: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO persons (person_id, best_image) VALUES (?, ?)`,
		personID, bestImage,
	); err != nil {
		return 0, fmt.Errorf("inserting person: %w", err)
	}
	if err := insertEmbeddings(ctx, tx, personID, embeddings); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing update: %w", err)
	}
	return len(embeddings), nil
}

func (s *Store) Delete(ctx context.Context, personID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE person_id = ?`, personID); err != nil {
		return false, fmt.Errorf("deleting embeddings: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE person_id = ?`, personID)
	if err != nil {
		return false, fmt.Errorf("deleting person: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading delete result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing delete: %w", err)
	}
	return affected > 0, nil
}

func (s *Store) HealthCheck(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

func insertEmbeddings(ctx context.Context, tx *sql.Tx, personID string, embeddings [][]float32) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO embeddings (person_id, vector) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing embedding insert: %w", err)
	}
	defer stmt.Close()

	for i, emb := range embeddings {
		if _, err := stmt.ExecContext(ctx, personID, encodeVector(emb)); err != nil {
			return fmt.Errorf("inserting embedding %d: %w", i, err)
		}
	}
	return nil
}

// isDuplicateKey recognizes a primary-key conflict for both drivers.
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

// encodeVector packs float32 components as little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("malformed vector blob of %d bytes", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

var _ registry.Registry = (*Store)(nil)
