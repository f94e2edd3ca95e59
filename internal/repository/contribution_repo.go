package repository

import (
	"context"
	"errors"

	"crowdfund/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrContributionNotFound = errors.New("出资记录不存在")
	ErrContributionChanged  = errors.New("出资记录已变更，请重试")
)

type ContributionRepository struct {
	db *gorm.DB
}

func NewContributionRepository(db *gorm.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

func (r *ContributionRepository) Get(ctx context.Context, campaignID, donorID int64) (*model.Contribution, error) {
	var contribution model.Contribution
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND donor_id = ?", campaignID, donorID).
		First(&contribution).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContributionNotFound
		}
		return nil, err
	}
	return &contribution, nil
}

// Add 累加出资台账，不存在则插入
// 唯一索引 (campaign_id, donor_id) 保证同一出资人只有一条聚合记录
func (r *ContributionRepository) Add(ctx context.Context, tx *gorm.DB, campaignID, donorID, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	entry := &model.Contribution{
		CampaignID: campaignID,
		DonorID:    donorID,
		Amount:     amount,
	}

	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "campaign_id"}, {Name: "donor_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"amount":  gorm.Expr("amount + ?", amount),
				"version": gorm.Expr("version + 1"),
			}),
		}).
		Create(entry).Error
}

// Zero 将台账一次性清零，条件带上原金额防止并发下重复退款
func (r *ContributionRepository) Zero(ctx context.Context, tx *gorm.DB, campaignID, donorID, expectedAmount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Contribution{}).
		Where("campaign_id = ? AND donor_id = ? AND amount = ?", campaignID, donorID, expectedAmount).
		Updates(map[string]interface{}{
			"amount":  0,
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrContributionChanged
	}
	return nil
}

// SumByCampaign 活动下全部台账金额之和，对账用
func (r *ContributionRepository) SumByCampaign(ctx context.Context, campaignID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Contribution{}).
		Where("campaign_id = ?", campaignID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
