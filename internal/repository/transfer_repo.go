package repository

import (
	"context"
	"errors"

	"crowdfund/internal/model"

	"gorm.io/gorm"
)

type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, tx *gorm.DB, transfer *model.FundTransfer) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(transfer).Error
}

func (r *TransferRepository) GetByTransferNo(ctx context.Context, transferNo string) (*model.FundTransfer, error) {
	var transfer model.FundTransfer
	err := r.db.WithContext(ctx).Where("transfer_no = ?", transferNo).First(&transfer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transfer, nil
}

func (r *TransferRepository) ListByCampaign(ctx context.Context, campaignID int64, page, pageSize int) ([]*model.FundTransfer, int64, error) {
	var transfers []*model.FundTransfer
	var total int64

	query := r.db.WithContext(ctx).Model(&model.FundTransfer{}).Where("campaign_id = ?", campaignID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transfers).Error

	return transfers, total, err
}

func (r *TransferRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.FundTransfer, int64, error) {
	var transfers []*model.FundTransfer
	var total int64

	query := r.db.WithContext(ctx).Model(&model.FundTransfer{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transfers).Error

	return transfers, total, err
}
