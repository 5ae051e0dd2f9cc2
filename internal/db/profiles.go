package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/vulture/internal/types"
)

// -----------------------------------------------------------------------------
// Profile Methods
// -----------------------------------------------------------------------------

// CreateProfile inserts a profile and seeds its sub-records in one transaction
func (db *DB) CreateProfile(ctx context.Context, req *types.CreateProfileRequest) (*types.ProfileFacts, error) {
	var id uuid.UUID
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO profiles (name, job_family, summary)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			req.Name, req.JobFamily, req.Summary,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}

		for _, op := range ProfileSeedOperations(req) {
			if err := applyPatch(ctx, tx, id, op); err != nil {
				return fmt.Errorf("failed to seed %s: %w", op.Table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetProfileFacts(ctx, id)
}

// GetProfile retrieves a profile root record by ID
func (db *DB) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, job_family, summary, created_at, updated_at
		 FROM profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.JobFamily, &p.Summary, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// ListProfiles returns all profiles, newest first
func (db *DB) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, job_family, summary, created_at, updated_at
		 FROM profiles ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.JobFamily, &p.Summary, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// GetProfileFacts loads a profile with all of its sub-records
func (db *DB) GetProfileFacts(ctx context.Context, id uuid.UUID) (*types.ProfileFacts, error) {
	p, err := db.GetProfile(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}

	personal, err := db.subRow(ctx, types.PatchTablePersonal, id)
	if err != nil {
		return nil, err
	}
	prefs, err := db.subRow(ctx, types.PatchTablePreferences, id)
	if err != nil {
		return nil, err
	}
	workAuth, err := db.subRow(ctx, types.PatchTableWorkAuth, id)
	if err != nil {
		return nil, err
	}

	rows, err := db.pool.Query(ctx, `SELECT * FROM skills WHERE profile_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load skills: %w", err)
	}
	skills, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to load skills: %w", err)
	}

	return FactsFromRows(p, personal, prefs, workAuth, skills), nil
}

// subRow loads the single per-profile row of a whitelisted table, or nil.
func (db *DB) subRow(ctx context.Context, table string, profileID uuid.UUID) (map[string]any, error) {
	if !IsPatchTable(table) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPatchTable, table)
	}
	rows, err := db.pool.Query(ctx,
		fmt.Sprintf(`SELECT * FROM %s WHERE profile_id = $1 LIMIT 1`, table), profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	return row, nil
}

// -----------------------------------------------------------------------------
// Patch Application
// -----------------------------------------------------------------------------

// ApplyPatchOperation applies one whitelisted operation to the profile.
// insert is a no-op when the row exists, update fails when it does not, and
// upsert updates or inserts.
func (db *DB) ApplyPatchOperation(ctx context.Context, profileID uuid.UUID, op types.PatchOperation) error {
	return applyPatch(ctx, db.pool, profileID, op)
}

func applyPatch(ctx context.Context, q querier, profileID uuid.UUID, op types.PatchOperation) error {
	target, err := ResolvePatchOperation(op)
	if err != nil {
		return err
	}

	where := []string{"profile_id = $1"}
	args := []any{profileID}
	for _, col := range target.KeyColumns() {
		args = append(args, target.Key[col])
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	var rowID int64
	err = q.QueryRow(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE %s LIMIT 1`, target.Table, strings.Join(where, " AND ")),
		args...,
	).Scan(&rowID)
	exists := true
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to look up %s row: %w", target.Table, err)
		}
		exists = false
	}

	switch target.Op {
	case types.PatchOpInsert:
		if exists {
			return nil
		}
		return insertPatchRow(ctx, q, profileID, target)
	case types.PatchOpUpdate:
		if !exists {
			return fmt.Errorf("%w: %s", ErrPatchTargetMissing, target.Table)
		}
		return updatePatchRow(ctx, q, rowID, target)
	default:
		if exists {
			return updatePatchRow(ctx, q, rowID, target)
		}
		return insertPatchRow(ctx, q, profileID, target)
	}
}

func insertPatchRow(ctx context.Context, q querier, profileID uuid.UUID, target *PatchTarget) error {
	row := target.InsertRow()
	cols := []string{"profile_id"}
	placeholders := []string{"$1"}
	args := []any{profileID}
	for _, col := range sortedColumns(row) {
		args = append(args, row[col])
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	_, err := q.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
			target.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s row: %w", target.Table, err)
	}
	return nil
}

func updatePatchRow(ctx context.Context, q querier, rowID int64, target *PatchTarget) error {
	cols := target.ValueColumns()
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, 0, len(cols))
	args := []any{rowID}
	for _, col := range cols {
		args = append(args, target.Values[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	_, err := q.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, target.Table, strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s row: %w", target.Table, err)
	}
	return nil
}
