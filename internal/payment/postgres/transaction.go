package postgres

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errors "github.com/mekongagency/payment-hub/internal"
	"github.com/mekongagency/payment-hub/internal/core/datamodel/transaction"
	"github.com/mekongagency/payment-hub/internal/payment"
)

// TransactionRepository implements payment.TransactionRepository using GORM
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) payment.TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create saves a new gateway transaction to the ledger
func (r *TransactionRepository) Create(txn *transaction.GatewayTransaction) error {
	return r.db.Create(txn).Error
}

// GetByTransactionID retrieves a transaction by its gateway reference
func (r *TransactionRepository) GetByTransactionID(transactionID string) (*transaction.GatewayTransaction, error) {
	var txn transaction.GatewayTransaction
	err := r.db.Where("transaction_id = ?", transactionID).First(&txn).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// MarkTerminal transitions a pending row to a terminal status. The
// status guard in the WHERE clause makes replays a no-op: a row that
// already reached success or failed matches zero rows, and the caller
// learns that through the applied flag.
func (r *TransactionRepository) MarkTerminal(transactionID, status string, gatewayTransactionNo *string, callbackData []byte) (bool, error) {
	updates := map[string]interface{}{
		"status":        status,
		"callback_data": callbackData,
		"updated_at":    time.Now(),
	}
	if gatewayTransactionNo != nil {
		updates["gateway_transaction_no"] = *gatewayTransactionNo
	}

	result := r.db.Model(&transaction.GatewayTransaction{}).
		Where("transaction_id = ? AND status = ?", transactionID, transaction.StatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Upsert inserts a transaction first seen through its webhook. A row
// already created by the payment leg wins the race and is left intact.
func (r *TransactionRepository) Upsert(txn *transaction.GatewayTransaction) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoNothing: true,
	}).Create(txn).Error
}
