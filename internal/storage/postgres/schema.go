package postgres

import (
	"context"
	"fmt"

	"equity-research-lab/internal/storage"
)

// DetectedSchema is the result of probing a bars table: resolved column
// roles plus the storage shape of the timestamp column.
type DetectedSchema struct {
	Table     string
	Roles     storage.Roles
	TsDBType  string            // raw data_type from information_schema
	TsIsEpoch bool              // true when the ts column stores epoch integers
	EpochUnit storage.EpochUnit // valid only when TsIsEpoch
}

// loadColumns returns the table's column names in ordinal order.
func loadColumns(ctx context.Context, pool *Pool, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position ASC
	`

	rows, err := pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("load %s columns: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}

// ColumnDBType returns the storage type of a column, lower-cased, or ""
// when the column does not exist.
func ColumnDBType(ctx context.Context, pool *Pool, table, column string) (string, error) {
	query := `
		SELECT lower(data_type)
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
	`

	var dbType string
	err := pool.QueryRow(ctx, query, table, column).Scan(&dbType)
	if err != nil {
		if isNotFoundError(err) {
			return "", nil
		}
		return "", fmt.Errorf("column type of %s.%s: %w", table, column, err)
	}
	return dbType, nil
}

func isIntegerDBType(dbType string) bool {
	switch dbType {
	case "bigint", "integer", "smallint":
		return true
	}
	return false
}

// inferEpochUnitStrict classifies an epoch-integer timestamp column as
// seconds vs milliseconds from its min/max. Both bounds must agree; a
// disagreement means mixed units and fails closed. An empty column defaults
// to seconds (the window query will fail with diagnostics anyway).
func inferEpochUnitStrict(ctx context.Context, pool *Pool, table, column string) (storage.EpochUnit, error) {
	query := fmt.Sprintf(`SELECT min(%s), max(%s) FROM %s WHERE %s IS NOT NULL`, column, column, table, column)

	var minRaw, maxRaw *int64
	if err := pool.QueryRow(ctx, query).Scan(&minRaw, &maxRaw); err != nil {
		return "", fmt.Errorf("sample %s.%s epoch bounds: %w", table, column, err)
	}
	if minRaw == nil || maxRaw == nil {
		return storage.EpochSeconds, nil
	}
	return storage.InferEpochUnit(table, column, *minRaw, *maxRaw)
}

// DetectSchema resolves canonical column roles for a bars table and, when
// the timestamp column stores integers, infers its epoch unit strictly.
func DetectSchema(ctx context.Context, pool *Pool, table string) (*DetectedSchema, error) {
	if err := validIdent(table); err != nil {
		return nil, fmt.Errorf("detect schema: %w", err)
	}

	cols, err := loadColumns(ctx, pool, table)
	if err != nil {
		return nil, err
	}

	roles, err := storage.ResolveRoles(table, cols)
	if err != nil {
		return nil, err
	}

	tsType, err := ColumnDBType(ctx, pool, table, roles.Timestamp)
	if err != nil {
		return nil, err
	}

	d := &DetectedSchema{
		Table:    table,
		Roles:    roles,
		TsDBType: tsType,
	}
	if isIntegerDBType(tsType) {
		d.TsIsEpoch = true
		unit, err := inferEpochUnitStrict(ctx, pool, table, roles.Timestamp)
		if err != nil {
			return nil, err
		}
		d.EpochUnit = unit
	}
	return d, nil
}
