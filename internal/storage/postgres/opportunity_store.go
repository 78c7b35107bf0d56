package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Whisker17/swap-path/internal/storage"
)

// OpportunityStore implements storage.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OpportunityStore = (*OpportunityStore)(nil)

const insertOpportunitySQL = `
	INSERT INTO opportunities (
		block_number, path_signature, token_route, hops,
		optimal_input, expected_output, gross_profit, gas_cost, net_profit,
		profit_margin, discovered_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// Insert adds one record. Returns ErrDuplicateKey on conflict.
func (s *OpportunityStore) Insert(ctx context.Context, row *storage.OpportunityRow) error {
	if row == nil || row.PathSignature == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertOpportunitySQL,
		row.BlockNumber, row.PathSignature, row.TokenRoute, row.Hops,
		row.OptimalInput, row.ExpectedOutput, row.GrossProfit, row.GasCost, row.NetProfit,
		row.ProfitMargin, row.DiscoveredAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

// InsertBulk adds multiple records in one transaction. The whole batch
// fails on any duplicate.
func (s *OpportunityStore) InsertBulk(ctx context.Context, rows []*storage.OpportunityRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		if row == nil || row.PathSignature == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertOpportunitySQL,
			row.BlockNumber, row.PathSignature, row.TokenRoute, row.Hops,
			row.OptimalInput, row.ExpectedOutput, row.GrossProfit, row.GasCost, row.NetProfit,
			row.ProfitMargin, row.DiscoveredAt,
		); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert opportunity: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const selectOpportunityColumns = `
	block_number, path_signature, token_route, hops,
	optimal_input::text, expected_output::text, gross_profit::text,
	gas_cost::text, net_profit::text, profit_margin, discovered_at
`

// ListByBlock returns records of one block, net profit descending.
func (s *OpportunityStore) ListByBlock(ctx context.Context, blockNumber uint64) ([]*storage.OpportunityRow, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM opportunities
		WHERE block_number = $1
		ORDER BY net_profit DESC, path_signature ASC
	`, selectOpportunityColumns)

	rows, err := s.pool.Query(ctx, query, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("query opportunities by block: %w", err)
	}
	defer rows.Close()

	return scanOpportunityRows(rows)
}

// ListTop returns the most profitable records across all blocks.
func (s *OpportunityStore) ListTop(ctx context.Context, limit int) ([]*storage.OpportunityRow, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := fmt.Sprintf(`
		SELECT %s FROM opportunities
		ORDER BY net_profit DESC, path_signature ASC
		LIMIT $1
	`, selectOpportunityColumns)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query top opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunityRows(rows)
}

func scanOpportunityRows(rows pgx.Rows) ([]*storage.OpportunityRow, error) {
	var result []*storage.OpportunityRow
	for rows.Next() {
		row := &storage.OpportunityRow{}
		if err := rows.Scan(
			&row.BlockNumber, &row.PathSignature, &row.TokenRoute, &row.Hops,
			&row.OptimalInput, &row.ExpectedOutput, &row.GrossProfit,
			&row.GasCost, &row.NetProfit, &row.ProfitMargin, &row.DiscoveredAt,
		); err != nil {
			return nil, fmt.Errorf("scan opportunity row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunity rows: %w", err)
	}
	return result, nil
}
