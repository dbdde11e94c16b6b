// Package postgres implements storage.Store on PostgreSQL using pgx. The
// schema mirrors the dashboard's relational model (tables, columns, rows,
// cell_values, cell_references) and hardens it with a uniqueness index on
// (row_id, column_id) so the one-cell-per-pair invariant holds at the
// storage level. Every cascading mutation runs inside a single transaction.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	griderrors "github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/models"
)

// Config contains postgres connection settings
type Config struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
	Migrate        bool
}

// Store is a PostgreSQL-backed storage.Store
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore connects to PostgreSQL and optionally applies the schema DDL
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "invalid postgres DSN")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to ping postgres")
	}

	s := &Store{pool: pool, logger: logger}

	if cfg.Migrate {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	logger.Info("postgres store initialized", zap.Int32("max_conns", poolCfg.MaxConns))
	return s, nil
}

// migrate applies the schema DDL. Statements are idempotent.
func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tables (
	id         BIGSERIAL PRIMARY KEY,
	name       VARCHAR(255) NOT NULL,
	project_id BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS columns (
	id          BIGSERIAL PRIMARY KEY,
	name        VARCHAR(255) NOT NULL,
	table_id    BIGINT NOT NULL REFERENCES tables(id),
	data_type   VARCHAR(50) NOT NULL,
	order_index INTEGER NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rows (
	id         BIGSERIAL PRIMARY KEY,
	table_id   BIGINT NOT NULL REFERENCES tables(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cell_values (
	id        BIGSERIAL PRIMARY KEY,
	row_id    BIGINT NOT NULL REFERENCES rows(id),
	column_id BIGINT NOT NULL REFERENCES columns(id),
	value     TEXT,
	CONSTRAINT cell_values_row_column_key UNIQUE (row_id, column_id)
);

CREATE TABLE IF NOT EXISTS cell_references (
	id             BIGSERIAL PRIMARY KEY,
	source_cell_id BIGINT NOT NULL REFERENCES cell_values(id),
	target_cell_id BIGINT NOT NULL REFERENCES cell_values(id),
	reference_type VARCHAR(50),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS columns_table_order_idx ON columns (table_id, order_index);
CREATE INDEX IF NOT EXISTS rows_table_idx ON rows (table_id);
CREATE INDEX IF NOT EXISTS cell_references_source_idx ON cell_references (source_cell_id);
CREATE INDEX IF NOT EXISTS cell_references_target_idx ON cell_references (target_cell_id);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to apply schema DDL")
	}
	return nil
}

// CreateTable creates a table owned by a project
func (s *Store) CreateTable(ctx context.Context, projectID int64, name string) (*models.Table, error) {
	if name == "" {
		return nil, griderrors.New(griderrors.ErrorTypeInvalidArgument, "table name is required")
	}

	t := &models.Table{Name: name, ProjectID: projectID}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tables (name, project_id) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		name, projectID,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to insert table")
	}
	return t, nil
}

// GetTable returns a table by id
func (s *Store) GetTable(ctx context.Context, tableID int64) (*models.Table, error) {
	t := &models.Table{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, project_id, created_at, updated_at FROM tables WHERE id = $1`,
		tableID,
	).Scan(&t.ID, &t.Name, &t.ProjectID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, griderrors.Newf(griderrors.ErrorTypeNotFound, "table %d not found", tableID)
	}
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query table")
	}
	return t, nil
}

// ListTables returns the tables of a project ordered by id
func (s *Store) ListTables(ctx context.Context, projectID int64) ([]*models.Table, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, project_id, created_at, updated_at
		 FROM tables WHERE project_id = $1 ORDER BY id`,
		projectID)
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query tables")
	}
	defer rows.Close()

	out := make([]*models.Table, 0)
	for rows.Next() {
		t := &models.Table{}
		if err := rows.Scan(&t.ID, &t.Name, &t.ProjectID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to scan table")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTable deletes a table and everything it owns in one transaction
func (s *Store) DeleteTable(ctx context.Context, tableID int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := tableExists(ctx, tx, tableID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`DELETE FROM cell_references
			 WHERE source_cell_id IN (SELECT cv.id FROM cell_values cv JOIN rows r ON cv.row_id = r.id WHERE r.table_id = $1)
			    OR target_cell_id IN (SELECT cv.id FROM cell_values cv JOIN rows r ON cv.row_id = r.id WHERE r.table_id = $1)`,
			tableID)
		if err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to cascade references")
		}

		for _, q := range []string{
			`DELETE FROM cell_values WHERE row_id IN (SELECT id FROM rows WHERE table_id = $1)`,
			`DELETE FROM rows WHERE table_id = $1`,
			`DELETE FROM columns WHERE table_id = $1`,
			`DELETE FROM tables WHERE id = $1`,
		} {
			if _, err := tx.Exec(ctx, q, tableID); err != nil {
				return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to cascade table delete")
			}
		}
		return nil
	})
}

// AddColumn appends a column, or inserts it at position, shifting trailing
// columns inside the same transaction so indices stay dense
func (s *Store) AddColumn(ctx context.Context, tableID int64, name string, dataType models.DataType, position *int) (*models.Column, error) {
	if name == "" {
		return nil, griderrors.New(griderrors.ErrorTypeInvalidArgument, "column name is required")
	}
	if !dataType.Valid() {
		return nil, griderrors.Newf(griderrors.ErrorTypeInvalidArgument, "unknown data type %q", dataType)
	}

	col := &models.Column{Name: name, TableID: tableID, DataType: dataType}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := tableExists(ctx, tx, tableID); err != nil {
			return err
		}

		var count int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM columns WHERE table_id = $1`, tableID,
		).Scan(&count); err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to count columns")
		}

		index := count
		if position != nil {
			if *position < 0 || *position > count {
				return griderrors.Newf(griderrors.ErrorTypeInvalidArgument, "position %d out of range [0,%d]", *position, count)
			}
			index = *position
			if _, err := tx.Exec(ctx,
				`UPDATE columns SET order_index = order_index + 1, updated_at = now()
				 WHERE table_id = $1 AND order_index >= $2`,
				tableID, index); err != nil {
				return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to shift columns")
			}
		}

		col.OrderIndex = index
		return tx.QueryRow(ctx,
			`INSERT INTO columns (name, table_id, data_type, order_index)
			 VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
			name, tableID, string(dataType), index,
		).Scan(&col.ID, &col.CreatedAt, &col.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// RemoveColumn deletes a column, cascades its cells and their references,
// and renumbers trailing columns, all in one transaction
func (s *Store) RemoveColumn(ctx context.Context, tableID, columnID int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var orderIndex int
		err := tx.QueryRow(ctx,
			`SELECT order_index FROM columns WHERE id = $1 AND table_id = $2`,
			columnID, tableID,
		).Scan(&orderIndex)
		if errors.Is(err, pgx.ErrNoRows) {
			return griderrors.Newf(griderrors.ErrorTypeNotFound, "column %d not found in table %d", columnID, tableID)
		}
		if err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query column")
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM cell_references
			 WHERE source_cell_id IN (SELECT id FROM cell_values WHERE column_id = $1)
			    OR target_cell_id IN (SELECT id FROM cell_values WHERE column_id = $1)`,
			columnID); err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to cascade references")
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM cell_values WHERE column_id = $1`, columnID); err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to cascade cell values")
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM columns WHERE id = $1`, columnID); err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to delete column")
		}
		if _, err := tx.Exec(ctx,
			`UPDATE columns SET order_index = order_index - 1, updated_at = now()
			 WHERE table_id = $1 AND order_index > $2`,
			tableID, orderIndex); err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to renumber columns")
		}
		return nil
	})
}

// RenameColumn updates a column's name
func (s *Store) RenameColumn(ctx context.Context, tableID, columnID int64, newName string) (*models.Column, error) {
	if newName == "" {
		return nil, griderrors.New(griderrors.ErrorTypeInvalidArgument, "column name is required")
	}

	col := &models.Column{ID: columnID, TableID: tableID, Name: newName}
	var dataType string
	err := s.pool.QueryRow(ctx,
		`UPDATE columns SET name = $1, updated_at = now()
		 WHERE id = $2 AND table_id = $3
		 RETURNING data_type, order_index, created_at, updated_at`,
		newName, columnID, tableID,
	).Scan(&dataType, &col.OrderIndex, &col.CreatedAt, &col.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, griderrors.Newf(griderrors.ErrorTypeNotFound, "column %d not found in table %d", columnID, tableID)
	}
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to rename column")
	}
	col.DataType = models.DataType(dataType)
	return col, nil
}

// RetypeColumn updates a column's data type; stored values are untouched
func (s *Store) RetypeColumn(ctx context.Context, tableID, columnID int64, newType models.DataType) (*models.Column, error) {
	if !newType.Valid() {
		return nil, griderrors.Newf(griderrors.ErrorTypeInvalidArgument, "unknown data type %q", newType)
	}

	col := &models.Column{ID: columnID, TableID: tableID, DataType: newType}
	err := s.pool.QueryRow(ctx,
		`UPDATE columns SET data_type = $1, updated_at = now()
		 WHERE id = $2 AND table_id = $3
		 RETURNING name, order_index, created_at, updated_at`,
		string(newType), columnID, tableID,
	).Scan(&col.Name, &col.OrderIndex, &col.CreatedAt, &col.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, griderrors.Newf(griderrors.ErrorTypeNotFound, "column %d not found in table %d", columnID, tableID)
	}
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to retype column")
	}
	return col, nil
}

// ListColumns returns a table's columns ordered ascending by order index
func (s *Store) ListColumns(ctx context.Context, tableID int64) ([]*models.Column, error) {
	if _, err := s.GetTable(ctx, tableID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, table_id, data_type, order_index, created_at, updated_at
		 FROM columns WHERE table_id = $1 ORDER BY order_index`,
		tableID)
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query columns")
	}
	defer rows.Close()

	out := make([]*models.Column, 0)
	for rows.Next() {
		col := &models.Column{}
		var dataType string
		if err := rows.Scan(&col.ID, &col.Name, &col.TableID, &dataType, &col.OrderIndex, &col.CreatedAt, &col.UpdatedAt); err != nil {
			return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to scan column")
		}
		col.DataType = models.DataType(dataType)
		out = append(out, col)
	}
	return out, rows.Err()
}

// AddRow appends a row to a table
func (s *Store) AddRow(ctx context.Context, tableID int64) (*models.Row, error) {
	if _, err := s.GetTable(ctx, tableID); err != nil {
		return nil, err
	}

	row := &models.Row{TableID: tableID}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO rows (table_id) VALUES ($1) RETURNING id, created_at`,
		tableID,
	).Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to insert row")
	}
	return row, nil
}

// GetRow returns a row by id
func (s *Store) GetRow(ctx context.Context, rowID int64) (*models.Row, error) {
	row := &models.Row{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, table_id, created_at FROM rows WHERE id = $1`, rowID,
	).Scan(&row.ID, &row.TableID, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, griderrors.Newf(griderrors.ErrorTypeNotFound, "row %d not found", rowID)
	}
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query row")
	}
	return row, nil
}

// ListRows returns a table's rows ordered ascending by id
func (s *Store) ListRows(ctx context.Context, tableID int64) ([]*models.Row, error) {
	if _, err := s.GetTable(ctx, tableID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, table_id, created_at FROM rows WHERE table_id = $1 ORDER BY id`,
		tableID)
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query rows")
	}
	defer rows.Close()

	out := make([]*models.Row, 0)
	for rows.Next() {
		r := &models.Row{}
		if err := rows.Scan(&r.ID, &r.TableID, &r.CreatedAt); err != nil {
			return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to scan row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RemoveRow deletes a row, its cells, and references touching those cells
func (s *Store) RemoveRow(ctx context.Context, tableID, rowID int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM rows WHERE id = $1 AND table_id = $2)`,
			rowID, tableID,
		).Scan(&exists); err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query row")
		}
		if !exists {
			return griderrors.Newf(griderrors.ErrorTypeNotFound, "row %d not found in table %d", rowID, tableID)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM cell_references
			 WHERE source_cell_id IN (SELECT id FROM cell_values WHERE row_id = $1)
			    OR target_cell_id IN (SELECT id FROM cell_values WHERE row_id = $1)`,
			rowID); err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to cascade references")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cell_values WHERE row_id = $1`, rowID); err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to cascade cell values")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM rows WHERE id = $1`, rowID); err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to delete row")
		}
		return nil
	})
}

// GetCell returns the cell value for (row, column), or nil when absent
func (s *Store) GetCell(ctx context.Context, rowID, columnID int64) (*models.CellValue, error) {
	if _, err := s.GetRow(ctx, rowID); err != nil {
		return nil, err
	}

	cell := &models.CellValue{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, row_id, column_id, value FROM cell_values
		 WHERE row_id = $1 AND column_id = $2`,
		rowID, columnID,
	).Scan(&cell.ID, &cell.RowID, &cell.ColumnID, &cell.Value)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM columns WHERE id = $1)`, columnID,
		).Scan(&exists); err != nil {
			return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query column")
		}
		if !exists {
			return nil, griderrors.Newf(griderrors.ErrorTypeNotFound, "column %d not found", columnID)
		}
		return nil, nil
	}
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query cell")
	}
	return cell, nil
}

// SetCell inserts or replaces the single cell value for (row, column). The
// uniqueness constraint makes the upsert race-free.
func (s *Store) SetCell(ctx context.Context, rowID, columnID int64, value *string) (*models.CellValue, error) {
	cell := &models.CellValue{RowID: rowID, ColumnID: columnID, Value: value}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var rowTable, colTable int64
		err := tx.QueryRow(ctx, `SELECT table_id FROM rows WHERE id = $1`, rowID).Scan(&rowTable)
		if errors.Is(err, pgx.ErrNoRows) {
			return griderrors.Newf(griderrors.ErrorTypeNotFound, "row %d not found", rowID)
		}
		if err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query row")
		}
		err = tx.QueryRow(ctx, `SELECT table_id FROM columns WHERE id = $1`, columnID).Scan(&colTable)
		if errors.Is(err, pgx.ErrNoRows) {
			return griderrors.Newf(griderrors.ErrorTypeNotFound, "column %d not found", columnID)
		}
		if err != nil {
			return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query column")
		}
		if rowTable != colTable {
			return griderrors.Newf(griderrors.ErrorTypeNotFound, "column %d does not belong to table %d", columnID, rowTable)
		}

		return tx.QueryRow(ctx,
			`INSERT INTO cell_values (row_id, column_id, value) VALUES ($1, $2, $3)
			 ON CONFLICT ON CONSTRAINT cell_values_row_column_key
			 DO UPDATE SET value = EXCLUDED.value
			 RETURNING id`,
			rowID, columnID, value,
		).Scan(&cell.ID)
	})
	if err != nil {
		return nil, err
	}
	return cell, nil
}

// ScanTable returns every cell of a table ordered by (row id, order index)
func (s *Store) ScanTable(ctx context.Context, tableID int64) ([]*models.CellValue, error) {
	if _, err := s.GetTable(ctx, tableID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT cv.id, cv.row_id, cv.column_id, cv.value
		 FROM cell_values cv
		 JOIN rows r ON cv.row_id = r.id
		 JOIN columns c ON cv.column_id = c.id
		 WHERE r.table_id = $1
		 ORDER BY cv.row_id, c.order_index`,
		tableID)
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to scan table")
	}
	defer rows.Close()

	out := make([]*models.CellValue, 0)
	for rows.Next() {
		cell := &models.CellValue{}
		if err := rows.Scan(&cell.ID, &cell.RowID, &cell.ColumnID, &cell.Value); err != nil {
			return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to scan cell")
		}
		out = append(out, cell)
	}
	return out, rows.Err()
}

// AddReference inserts a directed reference between two existing cells
func (s *Store) AddReference(ctx context.Context, sourceCellID, targetCellID int64, referenceType string) (*models.CellReference, error) {
	ref := &models.CellReference{
		SourceCellID:  sourceCellID,
		TargetCellID:  targetCellID,
		ReferenceType: referenceType,
	}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for _, cellID := range []int64{sourceCellID, targetCellID} {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM cell_values WHERE id = $1)`, cellID,
			).Scan(&exists); err != nil {
				return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query cell")
			}
			if !exists {
				return griderrors.Newf(griderrors.ErrorTypeNotFound, "cell %d not found", cellID)
			}
		}

		return tx.QueryRow(ctx,
			`INSERT INTO cell_references (source_cell_id, target_cell_id, reference_type)
			 VALUES ($1, $2, $3) RETURNING id, created_at`,
			sourceCellID, targetCellID, referenceType,
		).Scan(&ref.ID, &ref.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// RemoveReference deletes a reference by id
func (s *Store) RemoveReference(ctx context.Context, referenceID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cell_references WHERE id = $1`, referenceID)
	if err != nil {
		return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to delete reference")
	}
	if tag.RowsAffected() == 0 {
		return griderrors.Newf(griderrors.ErrorTypeNotFound, "reference %d not found", referenceID)
	}
	return nil
}

// ListReferences returns every reference touching the given cell
func (s *Store) ListReferences(ctx context.Context, cellID int64) ([]*models.CellReference, error) {
	if err := s.cellExists(ctx, cellID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, source_cell_id, target_cell_id, COALESCE(reference_type, ''), created_at
		 FROM cell_references
		 WHERE source_cell_id = $1 OR target_cell_id = $1
		 ORDER BY id`,
		cellID)
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query references")
	}
	defer rows.Close()

	out := make([]*models.CellReference, 0)
	for rows.Next() {
		ref := &models.CellReference{}
		if err := rows.Scan(&ref.ID, &ref.SourceCellID, &ref.TargetCellID, &ref.ReferenceType, &ref.CreatedAt); err != nil {
			return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to scan reference")
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// ResolveReferences returns the cells directly referenced by the given cell
func (s *Store) ResolveReferences(ctx context.Context, cellID int64) ([]*models.CellValue, error) {
	if err := s.cellExists(ctx, cellID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT cv.id, cv.row_id, cv.column_id, cv.value
		 FROM cell_references cr
		 JOIN cell_values cv ON cr.target_cell_id = cv.id
		 WHERE cr.source_cell_id = $1
		 ORDER BY cv.id`,
		cellID)
	if err != nil {
		return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to resolve references")
	}
	defer rows.Close()

	out := make([]*models.CellValue, 0)
	for rows.Next() {
		cell := &models.CellValue{}
		if err := rows.Scan(&cell.ID, &cell.RowID, &cell.ColumnID, &cell.Value); err != nil {
			return nil, griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to scan cell")
		}
		out = append(out, cell)
	}
	return out, rows.Err()
}

// Close releases the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// inTx runs fn inside a transaction, rolling back on any error
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to commit transaction")
	}
	return nil
}

func (s *Store) cellExists(ctx context.Context, cellID int64) error {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cell_values WHERE id = $1)`, cellID,
	).Scan(&exists); err != nil {
		return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query cell")
	}
	if !exists {
		return griderrors.Newf(griderrors.ErrorTypeNotFound, "cell %d not found", cellID)
	}
	return nil
}

// tableExists verifies a table id inside a transaction
func tableExists(ctx context.Context, tx pgx.Tx, tableID int64) error {
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tables WHERE id = $1)`, tableID,
	).Scan(&exists); err != nil {
		return griderrors.Wrap(err, griderrors.ErrorTypeStorage, "failed to query table")
	}
	if !exists {
		return griderrors.Newf(griderrors.ErrorTypeNotFound, "table %d not found", tableID)
	}
	return nil
}
