package repositories

import (
	"context"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// TransactionRepository appends to and reads the stock ledger.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, executor SQLExecutor, txn *models.StockTransaction) error
	ListByItem(ctx context.Context, itemID int64, limit int) ([]models.StockTransaction, error)
}

type transactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository creates a new instance of TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) CreateTransaction(ctx context.Context, executor SQLExecutor, txn *models.StockTransaction) error {
	query := `INSERT INTO stock_transactions
	          (stock_item_id, batch_id, transaction_type, quantity, reference_type, reference_id, notes, performed_by, performed_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
	          RETURNING id, performed_at`
	var performedAt interface{}
	if !txn.PerformedAt.IsZero() {
		performedAt = txn.PerformedAt
	}
	err := executor.QueryRowxContext(ctx, query,
		txn.StockItemID, txn.BatchID, txn.TransactionType, txn.Quantity, txn.ReferenceType,
		txn.ReferenceID, txn.Notes, txn.PerformedBy, performedAt,
	).Scan(&txn.ID, &txn.PerformedAt)
	return mapError(err, "creating stock transaction")
}

func (r *transactionRepository) ListByItem(ctx context.Context, itemID int64, limit int) ([]models.StockTransaction, error) {
	txns := []models.StockTransaction{}
	err := r.db.SelectContext(ctx, &txns,
		`SELECT st.id, st.stock_item_id, st.batch_id, st.transaction_type, st.quantity, st.reference_type,
		        st.reference_id, st.notes, st.performed_by, u.full_name AS performed_by_name, st.performed_at
		 FROM stock_transactions st
		 LEFT JOIN users u ON u.id = st.performed_by
		 WHERE st.stock_item_id = $1
		 ORDER BY st.performed_at DESC, st.id DESC
		 LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, mapError(err, "listing stock transactions")
	}
	return txns, nil
}
