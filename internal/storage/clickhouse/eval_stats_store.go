package clickhouse

import (
	"context"
	"fmt"

	"github.com/Whisker17/swap-path/internal/storage"
)

// EvalStatsStore implements storage.EvalStatsStore using ClickHouse.
type EvalStatsStore struct {
	conn *Conn
}

// NewEvalStatsStore creates a new EvalStatsStore.
func NewEvalStatsStore(conn *Conn) *EvalStatsStore {
	return &EvalStatsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EvalStatsStore = (*EvalStatsStore)(nil)

// Insert adds a pass record. Returns ErrDuplicateKey for a known block
// (MergeTree would happily append; we want append-once semantics).
func (s *EvalStatsStore) Insert(ctx context.Context, row *storage.EvalStatsRow) error {
	if row == nil || row.BlockNumber == 0 {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, row.BlockNumber)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO eval_stats (
			block_number, paths_total, paths_evaluated, paths_skipped,
			paths_failed, opportunities, duration_us, timestamp_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	err = s.conn.Exec(ctx, query,
		row.BlockNumber, uint32(row.PathsTotal), uint32(row.PathsEvaluated),
		uint32(row.PathsSkipped), uint32(row.PathsFailed), uint32(row.Opportunities),
		row.DurationMicros, row.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert eval stats: %w", err)
	}
	return nil
}

// ListRange returns records within the block range, ascending.
func (s *EvalStatsStore) ListRange(ctx context.Context, fromBlock, toBlock uint64) ([]*storage.EvalStatsRow, error) {
	if fromBlock > toBlock {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT block_number, paths_total, paths_evaluated, paths_skipped,
		       paths_failed, opportunities, duration_us, timestamp_ms
		FROM eval_stats
		WHERE block_number >= ? AND block_number <= ?
		ORDER BY block_number ASC
	`
	rows, err := s.conn.Query(ctx, query, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("query eval stats range: %w", err)
	}
	defer rows.Close()

	var result []*storage.EvalStatsRow
	for rows.Next() {
		var (
			row                                     storage.EvalStatsRow
			total, evaluated, skipped, failed, opps uint32
		)
		if err := rows.Scan(
			&row.BlockNumber, &total, &evaluated, &skipped,
			&failed, &opps, &row.DurationMicros, &row.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan eval stats row: %w", err)
		}
		row.PathsTotal = int(total)
		row.PathsEvaluated = int(evaluated)
		row.PathsSkipped = int(skipped)
		row.PathsFailed = int(failed)
		row.Opportunities = int(opps)
		result = append(result, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eval stats rows: %w", err)
	}
	return result, nil
}

func (s *EvalStatsStore) exists(ctx context.Context, blockNumber uint64) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM eval_stats WHERE block_number = ?`, blockNumber)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
