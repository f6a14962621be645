package places

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"ubicate.osuc.dev/internal/logging"
	"ubicate.osuc.dev/internal/models"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schema.sql
var ddl string

// CampusResolver names the campus a point belongs to, or "" when none.
type CampusResolver func(models.Coordinates) string

// Options for Open.
type Options struct {
	// DBPath is the SQLite database file, or ":memory:".
	DBPath        string
	ResolveCampus CampusResolver
	Logger        *slog.Logger
}

// Directory is the SQLite-backed place catalogue.
type Directory struct {
	db            *sql.DB
	validate      *validator.Validate
	resolveCampus CampusResolver
	logger        *slog.Logger
}

func Open(ctx context.Context, opts Options) (*Directory, error) {
	path := opts.DBPath
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening places database: %w", err)
	}
	if path == ":memory:" {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := performDatabaseMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Directory{
		db:            db,
		validate:      validator.New(),
		resolveCampus: opts.ResolveCampus,
		logger:        logger.With(slog.String("component", "places_directory")),
	}, nil
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	statements := strings.Split(ddl, "-- migrate")
	for _, stmt := range statements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmedStmt); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmedStmt, err)
		}
	}
	return nil
}

func (d *Directory) Close() error {
	return d.db.Close()
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string          `json:"type"`
	Properties Place           `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// ImportGeoJSON loads a FeatureCollection of places and returns how many were stored.
// Places without a campus are assigned the campus their destination falls in.
func (d *Directory) ImportGeoJSON(ctx context.Context, r io.Reader) (int, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return 0, fmt.Errorf("decoding places: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return 0, fmt.Errorf("expected a FeatureCollection, got %q", fc.Type)
	}

	batch := make([]Place, 0, len(fc.Features))
	for i, f := range fc.Features {
		place := f.Properties
		place.Geometry = f.Geometry
		if err := d.validate.Struct(place); err != nil {
			return 0, fmt.Errorf("feature %d: %w", i, err)
		}
		if _, err := place.Shape(); err != nil {
			return 0, fmt.Errorf("feature %d: %w", i, err)
		}
		if place.Campus == "" && d.resolveCampus != nil {
			if dest, err := place.Destination(); err == nil {
				place.Campus = d.resolveCampus(dest)
			}
		}
		batch = append(batch, place)
	}

	if err := d.InsertPlaceBatch(ctx, batch); err != nil {
		return 0, err
	}

	logging.LogOperation(d.logger, "places imported", slog.Int("count", len(batch)))
	return len(batch), nil
}

// InsertPlaceBatch upserts places in one transaction.
func (d *Directory) InsertPlaceBatch(ctx context.Context, batch []Place) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer logging.SafeRollbackWithLogging(tx, d.logger, "insert_place_batch")

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO places (
			identifier, name, information, campus, faculties,
			categories, floors, geometry_type, geometry
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer logging.SafeCloseWithLogging(stmt, d.logger, "insert_place_statement")

	for _, place := range batch {
		shape, err := place.Shape()
		if err != nil {
			return err
		}
		categories, err := json.Marshal(nonNil(place.Categories))
		if err != nil {
			return err
		}
		faculties, err := json.Marshal(nonNil(place.Faculties))
		if err != nil {
			return err
		}
		floors, err := json.Marshal(nonNilInts(place.Floors))
		if err != nil {
			return err
		}

		if _, err := stmt.ExecContext(ctx,
			place.Identifier, place.Name, place.Information, place.Campus, string(faculties),
			string(categories), string(floors), shape.Type().String(), string(place.Geometry),
		); err != nil {
			return fmt.Errorf("error inserting place %s: %w", place.Identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

const selectPlace = `
	SELECT identifier, name, information, campus, faculties, categories, floors, geometry
	FROM places`

func (d *Directory) Get(ctx context.Context, id string) (Place, error) {
	row := d.db.QueryRowContext(ctx, selectPlace+` WHERE identifier = ?`, id)
	place, err := scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Place{}, fmt.Errorf("%w: %s", ErrPlaceNotFound, id)
	}
	return place, err
}

// List returns the places of one campus, or all places when campus is empty.
func (d *Directory) List(ctx context.Context, campus string) (places []Place, err error) {
	query, args := selectPlace+` ORDER BY identifier`, []any{}
	if campus != "" {
		query, args = selectPlace+` WHERE campus = ? ORDER BY identifier`, []any{campus}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer logging.HandleDeferredError(&err, rows.Close, d.logger, "list_places_rows")

	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, place)
	}
	return places, rows.Err()
}

func (d *Directory) Count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM places`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlace(s scanner) (Place, error) {
	var place Place
	var faculties, categories, floors, geometry string
	if err := s.Scan(&place.Identifier, &place.Name, &place.Information, &place.Campus,
		&faculties, &categories, &floors, &geometry); err != nil {
		return Place{}, err
	}
	if faculties != "" {
		if err := json.Unmarshal([]byte(faculties), &place.Faculties); err != nil {
			return Place{}, fmt.Errorf("place %s faculties: %w", place.Identifier, err)
		}
	}
	if err := json.Unmarshal([]byte(categories), &place.Categories); err != nil {
		return Place{}, fmt.Errorf("place %s categories: %w", place.Identifier, err)
	}
	if err := json.Unmarshal([]byte(floors), &place.Floors); err != nil {
		return Place{}, fmt.Errorf("place %s floors: %w", place.Identifier, err)
	}
	place.Geometry = json.RawMessage(geometry)
	return place, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
