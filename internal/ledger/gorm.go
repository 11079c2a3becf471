package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custody-core/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedger 是 Ledger 的 PostgreSQL 实现。
// 每个原语是一个事务，余额行用 SELECT ... FOR UPDATE 锁住，
// 这把行锁就是同一 (user, asset) 上所有并发资金操作的唯一串行化点。
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) ValidateAndDebit(ctx context.Context, userID, assetID uint64, amount, fee decimal.Decimal, reason string, withdrawalID uint64) (DebitResult, error) {
	if withdrawalID == 0 {
		return DebitResult{}, fmt.Errorf("ledger debit: withdrawal id must be allocated before debiting")
	}

	total := amount.Add(fee)
	var result DebitResult

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bal model.Balance
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND asset_id = ?", userID, assetID).
			First(&bal).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = DebitResult{Allowed: false, Reason: ReasonNoAccount}
			return nil
		}
		if err != nil {
			return err
		}

		if bal.Available.LessThan(total) {
			result = DebitResult{Allowed: false, Reason: ReasonInsufficientBalance, NewAvailable: bal.Available}
			return nil
		}

		newAvailable := bal.Available.Sub(total)
		newLocked := bal.Locked.Add(total)
		if err := tx.Model(&model.Balance{}).Where("id = ?", bal.ID).
			Updates(map[string]interface{}{
				"available":  newAvailable,
				"locked":     newLocked,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		entry := model.LedgerEntry{
			UserID:        userID,
			AssetID:       assetID,
			Amount:        total.Neg(),
			BalanceAfter:  newAvailable,
			EntryType:     model.EntryWithdrawLock,
			ReferenceType: "withdrawal",
			ReferenceID:   withdrawalID,
			Reason:        reason,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		result = DebitResult{Allowed: true, NewAvailable: newAvailable}
		return nil
	})
	if err != nil {
		return DebitResult{}, fmt.Errorf("ledger debit: %w", err)
	}
	return result, nil
}

func (l *GormLedger) Refund(ctx context.Context, userID, assetID uint64, amount, fee decimal.Decimal, reason string, withdrawalID uint64) error {
	// 引用 0 意味着扣减从未按规程携带提现 ID; 拒绝而不是让
	// 所有无记录的失败共享同一个幂等键
	if withdrawalID == 0 {
		return fmt.Errorf("ledger refund: withdrawal id must not be zero")
	}

	total := amount.Add(fee)

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bal model.Balance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND asset_id = ?", userID, assetID).
			First(&bal).Error; err != nil {
			return err
		}

		// 没有对应的锁定流水时无可退: 扣减与落库之间崩溃留下的
		// 空壳记录走到这里，直接视为退款完成
		var count int64
		if err := tx.Model(&model.LedgerEntry{}).
			Where("entry_type = ? AND reference_type = ? AND reference_id = ?",
				model.EntryWithdrawLock, "withdrawal", withdrawalID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return nil
		}

		// 幂等: 同一笔提现已退款则直接返回 (余额行锁保证检查和写入原子)
		if err := tx.Model(&model.LedgerEntry{}).
			Where("entry_type = ? AND reference_type = ? AND reference_id = ?",
				model.EntryWithdrawRefund, "withdrawal", withdrawalID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		// 已结算的提现不可再补偿
		if err := tx.Model(&model.LedgerEntry{}).
			Where("entry_type = ? AND reference_type = ? AND reference_id = ?",
				model.EntryWithdrawSettle, "withdrawal", withdrawalID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("refund rejected: withdrawal %d already settled", withdrawalID)
		}

		newAvailable := bal.Available.Add(total)
		newLocked := bal.Locked.Sub(total)
		if newLocked.IsNegative() {
			return fmt.Errorf("refund would drive locked negative: withdrawal %d", withdrawalID)
		}
		if err := tx.Model(&model.Balance{}).Where("id = ?", bal.ID).
			Updates(map[string]interface{}{
				"available":  newAvailable,
				"locked":     newLocked,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		entry := model.LedgerEntry{
			UserID:        userID,
			AssetID:       assetID,
			Amount:        total,
			BalanceAfter:  newAvailable,
			EntryType:     model.EntryWithdrawRefund,
			ReferenceType: "withdrawal",
			ReferenceID:   withdrawalID,
			Reason:        reason,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return fmt.Errorf("ledger refund: %w", err)
	}
	return nil
}

func (l *GormLedger) Settle(ctx context.Context, withdrawalID uint64) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var w model.Withdrawal
		if err := tx.First(&w, withdrawalID).Error; err != nil {
			return err
		}

		var bal model.Balance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND asset_id = ?", w.UserID, w.AssetID).
			First(&bal).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.LedgerEntry{}).
			Where("entry_type = ? AND reference_type = ? AND reference_id = ?",
				model.EntryWithdrawSettle, "withdrawal", withdrawalID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		if err := tx.Model(&model.LedgerEntry{}).
			Where("entry_type = ? AND reference_type = ? AND reference_id = ?",
				model.EntryWithdrawRefund, "withdrawal", withdrawalID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("settle rejected: withdrawal %d already refunded", withdrawalID)
		}

		total := w.Total()
		newLocked := bal.Locked.Sub(total)
		if newLocked.IsNegative() {
			return fmt.Errorf("settle would drive locked negative: withdrawal %d", withdrawalID)
		}
		if err := tx.Model(&model.Balance{}).Where("id = ?", bal.ID).
			Updates(map[string]interface{}{
				"locked":     newLocked,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		entry := model.LedgerEntry{
			UserID:        w.UserID,
			AssetID:       w.AssetID,
			Amount:        decimal.Zero,
			BalanceAfter:  bal.Available,
			EntryType:     model.EntryWithdrawSettle,
			ReferenceType: "withdrawal",
			ReferenceID:   withdrawalID,
			Reason:        "withdrawal settled on-chain",
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return fmt.Errorf("ledger settle: %w", err)
	}
	return nil
}

func (l *GormLedger) Credit(ctx context.Context, depositID uint64) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dep model.Deposit
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&dep, depositID).Error; err != nil {
			return err
		}

		// 幂等: 同一 tx_hash 只入账一次
		if dep.Status == model.DepositStatusCredited {
			return nil
		}
		if dep.Status == model.DepositStatusSuspicious {
			return fmt.Errorf("credit rejected: deposit %d is frozen", depositID)
		}

		var bal model.Balance
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND asset_id = ?", dep.UserID, dep.AssetID).
			First(&bal).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			bal = model.Balance{
				UserID:    dep.UserID,
				AssetID:   dep.AssetID,
				Available: decimal.Zero,
				Locked:    decimal.Zero,
			}
			if err := tx.Create(&bal).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		newAvailable := bal.Available.Add(dep.Amount)
		if err := tx.Model(&model.Balance{}).Where("id = ?", bal.ID).
			Updates(map[string]interface{}{
				"available":  newAvailable,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		entry := model.LedgerEntry{
			UserID:        dep.UserID,
			AssetID:       dep.AssetID,
			Amount:        dep.Amount,
			BalanceAfter:  newAvailable,
			EntryType:     model.EntryDepositCredit,
			ReferenceType: "deposit",
			ReferenceID:   dep.ID,
			Reason:        "deposit " + dep.TxHash,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		now := time.Now()
		return tx.Model(&model.Deposit{}).Where("id = ?", dep.ID).
			Updates(map[string]interface{}{
				"status":      model.DepositStatusCredited,
				"credited_at": &now,
				"updated_at":  now,
			}).Error
	})
	if err != nil {
		return fmt.Errorf("ledger credit: %w", err)
	}
	return nil
}
