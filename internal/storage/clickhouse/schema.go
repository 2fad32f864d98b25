package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"equity-research-lab/internal/storage"
)

// DetectedSchema is the result of probing a bars table: resolved column
// roles plus the storage shape of the timestamp column.
type DetectedSchema struct {
	Table     string
	Roles     storage.Roles
	TsDBType  string            // raw type from system.columns
	TsIsEpoch bool              // true when the ts column stores epoch integers
	EpochUnit storage.EpochUnit // valid only when TsIsEpoch
}

// loadColumns returns the table's column names and types in position order.
func loadColumns(ctx context.Context, conn *Conn, table string) (names []string, types map[string]string, err error) {
	query := `
		SELECT name, type
		FROM system.columns
		WHERE database = currentDatabase() AND table = ?
		ORDER BY position ASC
	`

	rows, err := conn.Query(ctx, query, table)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s columns: %w", table, err)
	}
	defer rows.Close()

	types = make(map[string]string)
	for rows.Next() {
		var name, colType string
		if err := rows.Scan(&name, &colType); err != nil {
			return nil, nil, fmt.Errorf("scan column: %w", err)
		}
		names = append(names, name)
		types[name] = colType
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate columns: %w", err)
	}
	return names, types, nil
}

// isIntegerCHType reports whether a ClickHouse type stores plain integers.
// Nullable wrappers are unwrapped first.
func isIntegerCHType(colType string) bool {
	colType = strings.TrimSuffix(strings.TrimPrefix(colType, "Nullable("), ")")
	switch colType {
	case "Int8", "Int16", "Int32", "Int64", "UInt8", "UInt16", "UInt32", "UInt64":
		return true
	}
	return false
}

// inferEpochUnitStrict classifies an epoch-integer timestamp column as
// seconds vs milliseconds from its min/max. Both bounds must agree; a
// disagreement means mixed units and fails closed.
func inferEpochUnitStrict(ctx context.Context, conn *Conn, table, column string) (storage.EpochUnit, error) {
	query := fmt.Sprintf(`SELECT toInt64(min(%s)), toInt64(max(%s)), count() FROM %s`, column, column, table)

	var minRaw, maxRaw, n int64
	if err := conn.QueryRow(ctx, query).Scan(&minRaw, &maxRaw, &n); err != nil {
		return "", fmt.Errorf("sample %s.%s epoch bounds: %w", table, column, err)
	}
	if n == 0 {
		return storage.EpochSeconds, nil
	}
	return storage.InferEpochUnit(table, column, minRaw, maxRaw)
}

// DetectSchema resolves canonical column roles for a bars table and, when
// the timestamp column stores integers, infers its epoch unit strictly.
func DetectSchema(ctx context.Context, conn *Conn, table string) (*DetectedSchema, error) {
	if err := validIdent(table); err != nil {
		return nil, fmt.Errorf("detect schema: %w", err)
	}

	names, types, err := loadColumns(ctx, conn, table)
	if err != nil {
		return nil, err
	}

	roles, err := storage.ResolveRoles(table, names)
	if err != nil {
		return nil, err
	}

	d := &DetectedSchema{
		Table:    table,
		Roles:    roles,
		TsDBType: types[roles.Timestamp],
	}
	if isIntegerCHType(d.TsDBType) {
		d.TsIsEpoch = true
		unit, err := inferEpochUnitStrict(ctx, conn, table, roles.Timestamp)
		if err != nil {
			return nil, err
		}
		d.EpochUnit = unit
	}
	return d, nil
}
