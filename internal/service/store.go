package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"custody-core/internal/model"
)

// GormStore 是 Store 的 PostgreSQL 实现
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DepositableAssets(ctx context.Context) ([]model.Asset, error) {
	var assets []model.Asset
	err := s.db.WithContext(ctx).
		Where("deposit_enabled = ? AND contract_address <> ''", true).
		Find(&assets).Error
	return assets, err
}

func (s *GormStore) AssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	var asset model.Asset
	err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// ResolveAddress 统一索引单次查询，替代历史上按来源的三连查
func (s *GormStore) ResolveAddress(ctx context.Context, address string) (*model.RegisteredAddress, error) {
	var claim model.RegisteredAddress
	err := s.db.WithContext(ctx).
		Where("lower(address) = lower(?)", address).
		Order("id asc"). // legacy 数据若有跨用户重复，取最早认领，保持确定性
		First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (s *GormStore) DepositByTxHash(ctx context.Context, txHash string) (*model.Deposit, error) {
	var dep model.Deposit
	err := s.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&dep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dep, nil
}

func (s *GormStore) CreateDeposit(ctx context.Context, dep *model.Deposit) error {
	return s.db.WithContext(ctx).Create(dep).Error
}

func (s *GormStore) UpdateDepositConfirmations(ctx context.Context, id uint64, confirmations uint64) error {
	return s.db.WithContext(ctx).Model(&model.Deposit{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"confirmations": confirmations,
			"updated_at":    time.Now(),
		}).Error
}

func (s *GormStore) MarkDepositConfirmed(ctx context.Context, id uint64, confirmations uint64) error {
	return s.db.WithContext(ctx).Model(&model.Deposit{}).
		Where("id = ? AND status = ?", id, model.DepositStatusPending).
		Updates(map[string]interface{}{
			"status":        model.DepositStatusConfirmed,
			"confirmations": confirmations,
			"updated_at":    time.Now(),
		}).Error
}

func (s *GormStore) MarkDepositSuspicious(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Model(&model.Deposit{}).
		Where("id = ? AND status <> ?", id, model.DepositStatusCredited).
		Updates(map[string]interface{}{
			"status":     model.DepositStatusSuspicious,
			"updated_at": time.Now(),
		}).Error
}

func (s *GormStore) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	return s.db.WithContext(ctx).Create(w).Error
}

func (s *GormStore) SetWithdrawalTxHash(ctx context.Context, id uint64, txHash string) error {
	return s.db.WithContext(ctx).Model(&model.Withdrawal{}).
		Where("id = ? AND status = ?", id, model.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"tx_hash":    txHash,
			"updated_at": time.Now(),
		}).Error
}

func (s *GormStore) CompleteWithdrawal(ctx context.Context, id uint64, txHash string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&model.Withdrawal{}).
		Where("id = ? AND status = ?", id, model.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":       model.WithdrawalStatusCompleted,
			"tx_hash":      txHash,
			"completed_at": &now,
			"updated_at":   now,
		}).Error
}

func (s *GormStore) FailWithdrawal(ctx context.Context, id uint64, errMsg string) error {
	return s.db.WithContext(ctx).Model(&model.Withdrawal{}).
		Where("id = ? AND status = ?", id, model.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":        model.WithdrawalStatusFailed,
			"error_message": errMsg,
			"updated_at":    time.Now(),
		}).Error
}

func (s *GormStore) WithdrawalsByUser(ctx context.Context, userID uint64, limit int) ([]model.Withdrawal, error) {
	var rows []model.Withdrawal
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}

func (s *GormStore) StalePendingWithdrawals(ctx context.Context, olderThan time.Time, limit int) ([]model.Withdrawal, error) {
	var rows []model.Withdrawal
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.WithdrawalStatusPending, olderThan).
		Order("id asc").Limit(limit).Find(&rows).Error
	return rows, err
}

func (s *GormStore) Balance(ctx context.Context, userID, assetID uint64) (*model.Balance, error) {
	var bal model.Balance
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND asset_id = ?", userID, assetID).
		First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

func (s *GormStore) DepositsByUser(ctx context.Context, userID uint64, limit int) ([]model.Deposit, error) {
	var rows []model.Deposit
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}
