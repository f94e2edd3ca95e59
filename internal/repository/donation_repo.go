package repository

import (
	"context"
	"errors"

	"crowdfund/internal/model"

	"gorm.io/gorm"
)

type DonationRepository struct {
	db *gorm.DB
}

func NewDonationRepository(db *gorm.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) Create(ctx context.Context, tx *gorm.DB, record *model.DonationRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

func (r *DonationRepository) GetByRequestID(ctx context.Context, requestID string) (*model.DonationRecord, error) {
	var record model.DonationRecord
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListByCampaign 按捐赠时间顺序分页返回活动的捐赠明细
// 分页语义与活动列表一致：offset 超出总数返回空，末尾截断
func (r *DonationRepository) ListByCampaign(ctx context.Context, campaignID int64, offset, limit int) ([]*model.DonationRecord, int64, error) {
	var records []*model.DonationRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&model.DonationRecord{}).Where("campaign_id = ?", campaignID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	if offset < 0 || int64(offset) >= total || limit <= 0 {
		return []*model.DonationRecord{}, total, nil
	}

	if int64(offset+limit) > total {
		limit = int(total) - offset
	}

	err = query.
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error

	return records, total, err
}
