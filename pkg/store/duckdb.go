// Package store persists fetched price series into a local DuckDB database
// so downstream analytics can re-read them without repeating upstream calls.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/humbldata/humbldata-go/internal/logger"
	"github.com/humbldata/humbldata-go/pkg/errors"
	"github.com/humbldata/humbldata-go/pkg/table"
)

// Bar is one OHLCV observation for a symbol.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// DuckDBStore writes and queries bars in a DuckDB database file. Pass an
// empty path for an in-memory database.
type DuckDBStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBStore opens the database and ensures the bars table exists.
func NewDuckDBStore(path string, log *logger.Logger) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to open duckdb database", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			id VARCHAR PRIMARY KEY,
			symbol VARCHAR NOT NULL,
			date TIMESTAMP NOT NULL,
			open DOUBLE NOT NULL,
			high DOUBLE NOT NULL,
			low DOUBLE NOT NULL,
			close DOUBLE NOT NULL,
			volume BIGINT NOT NULL,
			created_at TIMESTAMP DEFAULT current_timestamp
		);
	`)
	if err != nil {
		_ = db.Close()

		return nil, errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create bars table", err)
	}

	return &DuckDBStore{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// SaveBars inserts the bars in a single transaction. Each row gets a fresh
// uuid id.
func (s *DuckDBStore) SaveBars(ctx context.Context, bars []Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to begin transaction", err)
	}

	insert := s.sq.
		Insert("bars").
		Columns("id", "symbol", "date", "open", "high", "low", "close", "volume")

	for _, bar := range bars {
		insert = insert.Values(uuid.New().String(), bar.Symbol, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		_ = tx.Rollback()

		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to build insert query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()

		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to insert bars", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to commit bars", err)
	}

	s.logger.Debug("saved bars", zap.Int("count", len(bars)))

	return nil
}

// QueryBars returns the bars for a symbol ordered by date, optionally bounded
// by start and end (inclusive).
func (s *DuckDBStore) QueryBars(ctx context.Context, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]Bar, error) {
	builder := s.sq.
		Select("symbol", "date", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("date ASC")

	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"date": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"date": end.Unwrap()})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to build select query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to query bars", err)
	}
	defer rows.Close()

	var bars []Bar

	for rows.Next() {
		var bar Bar
		if err := rows.Scan(&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to scan bar", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to read bars", err)
	}

	return bars, nil
}

// Count returns the number of stored bars for a symbol within the optional
// bounds.
func (s *DuckDBStore) Count(ctx context.Context, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	builder := s.sq.
		Select("COUNT(*)").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol})

	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"date": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"date": end.Unwrap()})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Close closes the underlying database.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// TableToBars converts a materialized fetch result into bars. The table must
// carry date, open, high, low, close and volume columns; a symbol column is
// used when present, otherwise fallbackSymbol fills in.
func TableToBars(t *table.Table, fallbackSymbol string) ([]Bar, error) {
	required := []string{"date", "open", "high", "low", "close", "volume"}
	indexes := make(map[string]int, len(required))

	for _, name := range required {
		idx := t.Schema.Index(name)
		if idx < 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "table has no %q column", name)
		}

		indexes[name] = idx
	}

	symbolIdx := t.Schema.Index("symbol")
	bars := make([]Bar, 0, t.NumRows())

	for i, row := range t.Rows {
		date, ok := row[indexes["date"]].(time.Time)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidType, "row %d: date column is not a time value", i)
		}

		bar := Bar{Symbol: fallbackSymbol, Date: date}
		if symbolIdx >= 0 {
			if symbol, ok := row[symbolIdx].(string); ok {
				bar.Symbol = symbol
			}
		}

		var err error
		if bar.Open, err = floatCell(row[indexes["open"]], i, "open"); err != nil {
			return nil, err
		}

		if bar.High, err = floatCell(row[indexes["high"]], i, "high"); err != nil {
			return nil, err
		}

		if bar.Low, err = floatCell(row[indexes["low"]], i, "low"); err != nil {
			return nil, err
		}

		if bar.Close, err = floatCell(row[indexes["close"]], i, "close"); err != nil {
			return nil, err
		}

		volume, err := floatCell(row[indexes["volume"]], i, "volume")
		if err != nil {
			return nil, err
		}

		bar.Volume = int64(volume)
		bars = append(bars, bar)
	}

	return bars, nil
}

// BarsToTable converts bars back into a materialized table with the canonical
// column order.
func BarsToTable(bars []Bar) *table.Table {
	schema := table.Schema{
		{Name: "symbol", Type: table.ColumnString},
		{Name: "date", Type: table.ColumnDatetime},
		{Name: "open", Type: table.ColumnFloat},
		{Name: "high", Type: table.ColumnFloat},
		{Name: "low", Type: table.ColumnFloat},
		{Name: "close", Type: table.ColumnFloat},
		{Name: "volume", Type: table.ColumnInt},
	}

	rows := make([][]any, len(bars))
	for i, bar := range bars {
		rows[i] = []any{bar.Symbol, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume}
	}

	return &table.Table{Schema: schema, Rows: rows}
}

func floatCell(cell any, row int, column string) (float64, error) {
	switch v := cell.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidType, "row %d: %s column is not numeric", row, column)
	}
}
