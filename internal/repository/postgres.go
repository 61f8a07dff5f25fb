package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carefinder/internal/config"
	"carefinder/internal/model"
	"carefinder/internal/utils"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// table describes one facility collection and the columns it may be filtered on
type table struct {
	name    string
	columns []string
	text    map[string]bool // columns usable with OpContains
	numeric map[string]bool // columns usable with OpGTE / OpLTE
}

var tables = map[model.Domain]table{
	model.DomainElderly: {
		name:    "elderly_service",
		columns: []string{"id", "district", "street", "name", "address", "beds", "type", "phone", "lng", "lat"},
		text: map[string]bool{
			model.FieldDistrict: true, model.FieldName: true, model.FieldAddress: true, model.FieldType: true,
		},
		numeric: map[string]bool{model.FieldBeds: true},
	},
	model.DomainHealth: {
		name:    "health_center",
		columns: []string{"id", "district", "name", "address", "lng", "lat"},
		text: map[string]bool{
			model.FieldDistrict: true, model.FieldName: true, model.FieldAddress: true,
		},
		numeric: map[string]bool{},
	},
}

// Options tunes how facility queries are issued
type Options struct {
	// ECEFPrefilter narrows nearest-N queries with a KNN scan over location_ecef vector(3)
	ECEFPrefilter        bool
	ECEFPrefilterPadding int
}

// PostgresRepository handles database operations
type PostgresRepository struct {
	db   *sqlx.DB
	opts Options
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int, opts Options) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewWithDB(db, opts), nil
}

// NewWithDB wraps an existing connection pool
func NewWithDB(db *sqlx.DB, opts Options) *PostgresRepository {
	if opts.ECEFPrefilterPadding < 0 {
		opts.ECEFPrefilterPadding = 0
	}
	return &PostgresRepository{db: db, opts: opts}
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks that the database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// FindFacilities returns the rows of set.Domain matching every predicate, in id order.
// With the ECEF prefilter enabled, nearest-N queries return only the closest candidates.
func (r *PostgresRepository) FindFacilities(ctx context.Context, set model.PredicateSet, ref *model.GeoPoint) ([]model.Facility, error) {
	query, args, err := r.buildQuery(set, ref)
	if err != nil {
		return nil, err
	}

	var facilities []model.Facility
	if err := r.db.SelectContext(ctx, &facilities, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch %s facilities: %w", set.Domain, err)
	}
	for i := range facilities {
		facilities[i].Domain = set.Domain
	}
	return facilities, nil
}

func (r *PostgresRepository) buildQuery(set model.PredicateSet, ref *model.GeoPoint) (string, []interface{}, error) {
	tbl, ok := tables[set.Domain]
	if !ok {
		return "", nil, fmt.Errorf("unknown facility domain %q", set.Domain)
	}

	whereClauses := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	for _, p := range set.Predicates {
		clause, params, next, err := predicateClause(tbl, p, argIndex)
		if err != nil {
			return "", nil, err
		}
		if clause == "" {
			continue
		}
		whereClauses = append(whereClauses, clause)
		args = append(args, params...)
		argIndex = next
	}

	orderBy := "id"
	limitClause := ""
	if r.usePrefilter(set, ref) {
		whereClauses = append(whereClauses, "location_ecef IS NOT NULL")
		orderBy = fmt.Sprintf("location_ecef <-> $%d, id", argIndex)
		args = append(args, pgvector.NewVector(utils.ToECEF(ref.Lat, ref.Lng)))
		argIndex++
		limitClause = fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, set.Limit+r.opts.ECEFPrefilterPadding)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s%s",
		strings.Join(tbl.columns, ", "),
		tbl.name,
		strings.Join(whereClauses, " AND "),
		orderBy,
		limitClause,
	)
	return query, args, nil
}

// usePrefilter holds for nearest-N queries only: a radius needs every candidate
func (r *PostgresRepository) usePrefilter(set model.PredicateSet, ref *model.GeoPoint) bool {
	return r.opts.ECEFPrefilter &&
		ref != nil &&
		set.RadiusMeters == nil &&
		set.Limit > 0 &&
		set.Limit < config.UnboundedLimit
}

func predicateClause(tbl table, p model.Predicate, argIndex int) (string, []interface{}, int, error) {
	switch p.Op {
	case model.OpContains:
		values := make([]string, 0, len(p.Values))
		for _, v := range p.Values {
			s, ok := v.(string)
			if !ok {
				return "", nil, argIndex, fmt.Errorf("contains predicate on %v needs text values, got %T", p.Fields, v)
			}
			values = append(values, s)
		}
		for _, f := range p.Fields {
			if !tbl.text[f] {
				return "", nil, argIndex, fmt.Errorf("column %q cannot be text-filtered on %s", f, tbl.name)
			}
		}
		clause, params, next := utils.BuildILikeAnyCondition(p.Fields, values, argIndex)
		return clause, params, next, nil

	case model.OpGTE, model.OpLTE:
		if len(p.Fields) != 1 || len(p.Values) != 1 {
			return "", nil, argIndex, fmt.Errorf("%s predicate needs one field and one value", p.Op)
		}
		field := p.Fields[0]
		if !tbl.numeric[field] {
			return "", nil, argIndex, fmt.Errorf("column %q cannot be range-filtered on %s", field, tbl.name)
		}
		cmp := ">="
		if p.Op == model.OpLTE {
			cmp = "<="
		}
		return fmt.Sprintf("%s %s $%d", field, cmp, argIndex), []interface{}{p.Values[0]}, argIndex + 1, nil
	}
	return "", nil, argIndex, fmt.Errorf("unsupported predicate operator %q", p.Op)
}

// CountMissingECEF reports, per domain, how many rows have coordinates but no location_ecef.
// The nearest-N prefilter never returns such rows.
func (r *PostgresRepository) CountMissingECEF(ctx context.Context) (map[model.Domain]int, error) {
	counts := make(map[model.Domain]int, len(tables))
	for _, domain := range []model.Domain{model.DomainElderly, model.DomainHealth} {
		query := fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE location_ecef IS NULL AND lng IS NOT NULL AND lat IS NOT NULL",
			tables[domain].name,
		)
		var n int
		if err := r.db.GetContext(ctx, &n, query); err != nil {
			return nil, fmt.Errorf("failed to count %s rows without location_ecef: %w", domain, err)
		}
		counts[domain] = n
	}
	return counts, nil
}

// BackfillECEF recomputes location_ecef from lng/lat for every row of domain
// whose vector is missing. Returns the number of rows updated and per-row errors.
func (r *PostgresRepository) BackfillECEF(ctx context.Context, domain model.Domain) (int, []string) {
	success := 0
	var errors []string

	tbl, ok := tables[domain]
	if !ok {
		return 0, []string{fmt.Sprintf("unknown facility domain %q", domain)}
	}

	type point struct {
		ID  int64   `db:"id"`
		Lng float64 `db:"lng"`
		Lat float64 `db:"lat"`
	}
	var points []point
	selectQuery := fmt.Sprintf(
		"SELECT id, lng, lat FROM %s WHERE location_ecef IS NULL AND lng IS NOT NULL AND lat IS NOT NULL ORDER BY id",
		tbl.name,
	)
	if err := r.db.SelectContext(ctx, &points, selectQuery); err != nil {
		return 0, []string{fmt.Sprintf("failed to list %s coordinates: %v", domain, err)}
	}
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to start transaction: %v", err))
		return success, errors
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, fmt.Sprintf("UPDATE %s SET location_ecef = $1 WHERE id = $2", tbl.name))
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to prepare statement: %v", err))
		return success, errors
	}
	defer stmt.Close()

	for _, p := range points {
		vec := pgvector.NewVector(utils.ToECEF(p.Lat, p.Lng))
		if _, err := stmt.ExecContext(ctx, vec, p.ID); err != nil {
			errors = append(errors, fmt.Sprintf("id %d: %v", p.ID, err))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		errors = append(errors, fmt.Sprintf("failed to commit transaction: %v", err))
		return 0, errors
	}

	return success, errors
}
