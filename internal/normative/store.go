// Package normative resolves coded legal citations (e.g. CCCH.Art1545)
// against a pre-built read-only database and renders the dual-view annexes
// attached to completed turns.
package normative

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"lexgate/internal/domain/models"
)

// Store is the read-only keyed lookup into the normative database.
// Implementations must be safe for concurrent use.
type Store interface {
	// FindExact matches on (clave, numero_articulo).
	FindExact(ctx context.Context, clave, articulo string) (*models.ResolvedCitation, error)

	// FindByNormalizedName matches on (clave, nombreparte_normalizado).
	FindByNormalizedName(ctx context.Context, clave, nombre string) (*models.ResolvedCitation, error)

	// FindByNameLike fuzzy-matches nombreparte against the given patterns.
	FindByNameLike(ctx context.Context, clave string, patterns []string) (*models.ResolvedCitation, error)

	// DistinctClaves lists distinct clave values with the given prefix.
	DistinctClaves(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

const selectColumns = `clave, norma, norma_tipo, norma_organismo, nombreparte,
	numero_articulo, url_norma_pdf, texto, clasificacion_norma,
	metadatos_fechaversion, rutacompleta, materias, bloque_juridico,
	norma_idnorma, metadatos_idparte`

// SQLiteStore reads the pre-built normative SQLite database. Opened once per
// process and shared; the database is never written.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path in read-only mode.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open normative database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping normative database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an already opened handle (used by tests and the
// seeder).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) FindExact(ctx context.Context, clave, articulo string) (*models.ResolvedCitation, error) {
	query := fmt.Sprintf(`SELECT %s FROM normas
		WHERE clave = ? COLLATE NOCASE AND numero_articulo = ? COLLATE NOCASE
		LIMIT 1`, selectColumns)
	return s.queryOne(ctx, query, clave, articulo)
}

func (s *SQLiteStore) FindByNormalizedName(ctx context.Context, clave, nombre string) (*models.ResolvedCitation, error) {
	query := fmt.Sprintf(`SELECT %s FROM normas
		WHERE clave = ? COLLATE NOCASE AND nombreparte_normalizado = ? COLLATE NOCASE
		LIMIT 1`, selectColumns)
	return s.queryOne(ctx, query, clave, nombre)
}

func (s *SQLiteStore) FindByNameLike(ctx context.Context, clave string, patterns []string) (*models.ResolvedCitation, error) {
	for _, pattern := range patterns {
		query := fmt.Sprintf(`SELECT %s FROM normas
			WHERE clave = ? COLLATE NOCASE AND nombreparte LIKE ?
			LIMIT 1`, selectColumns)
		row, err := s.queryOne(ctx, query, clave, pattern)
		if err != nil {
			return nil, err
		}
		if row != nil {
			return row, nil
		}
	}
	return nil, nil
}

func (s *SQLiteStore) DistinctClaves(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT clave FROM normas WHERE clave LIKE ? ORDER BY clave`,
		prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("distinct claves: %w", err)
	}
	defer rows.Close()

	var claves []string
	for rows.Next() {
		var clave string
		if err := rows.Scan(&clave); err != nil {
			return nil, fmt.Errorf("scan clave: %w", err)
		}
		claves = append(claves, clave)
	}
	return claves, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryOne(ctx context.Context, query string, args ...interface{}) (*models.ResolvedCitation, error) {
	var c models.ResolvedCitation
	var fecha, ruta, materias, bloque, idnorma, idparte sql.NullString
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&c.Clave,
		&c.Norma,
		&c.NormaTipo,
		&c.NormaOrganismo,
		&c.NombreParte,
		&c.NumeroArticulo,
		&c.URL,
		&c.Texto,
		&c.Clasificacion,
		&fecha,
		&ruta,
		&materias,
		&bloque,
		&idnorma,
		&idparte,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query normative row: %w", err)
	}
	c.FechaVersion = fecha.String
	c.RutaCompleta = ruta.String
	c.Materias = materias.String
	c.BloqueJuridico = bloque.String
	c.NormaIDNorma = idnorma.String
	c.MetadatosParte = idparte.String
	return &c, nil
}
