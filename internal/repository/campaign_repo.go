package repository

import (
	"context"
	"errors"
	"time"

	"crowdfund/internal/model"

	"gorm.io/gorm"
)

var (
	ErrCampaignNotFound     = errors.New("活动不存在")
	ErrCampaignStateInvalid = errors.New("活动状态不合法")
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) Create(ctx context.Context, tx *gorm.DB, campaign *model.Campaign) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(campaign).Error
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	var campaign model.Campaign
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return &campaign, nil
}

// Finalize 将活动从 ACTIVE 一次性流转到目标状态并置结算标记
// 条件更新保证标记只会置位一次：并发的第二次调用 RowsAffected 为 0
func (r *CampaignRepository) Finalize(ctx context.Context, tx *gorm.DB, id int64, toState string) error {
	if !model.CanTransitionTo(model.CampaignStateActive, toState) {
		return ErrCampaignStateInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND state = ? AND finalized = ?", id, model.CampaignStateActive, false).
		Updates(map[string]interface{}{
			"state":     toState,
			"finalized": true,
			"version":   gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCampaignStateInvalid
	}
	return nil
}

// AddCollected 累加已筹金额，只在 ACTIVE 状态下生效
func (r *CampaignRepository) AddCollected(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND state = ?", id, model.CampaignStateActive).
		Updates(map[string]interface{}{
			"amount_collected": gorm.Expr("amount_collected + ?", amount),
			"version":          gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCampaignStateInvalid
	}
	return nil
}

// MarkWithdrawn 提现：清零已筹金额并流转到 WITHDRAWN，带状态与金额双重校验
func (r *CampaignRepository) MarkWithdrawn(ctx context.Context, tx *gorm.DB, id int64, expectedAmount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND state = ? AND amount_collected = ?", id, model.CampaignStateSuccessful, expectedAmount).
		Updates(map[string]interface{}{
			"state":            model.CampaignStateWithdrawn,
			"amount_collected": 0,
			"version":          gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCampaignStateInvalid
	}
	return nil
}

// SubCollected 退款时扣减已筹金额，只在 FAILED 状态下生效
func (r *CampaignRepository) SubCollected(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND state = ? AND amount_collected >= ?", id, model.CampaignStateFailed, amount).
		Updates(map[string]interface{}{
			"amount_collected": gorm.Expr("amount_collected - ?", amount),
			"version":          gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCampaignStateInvalid
	}
	return nil
}

// List 按创建顺序分页：offset 超出总数返回空，末尾不足 limit 时截断
func (r *CampaignRepository) List(ctx context.Context, offset, limit int) ([]*model.Campaign, int64, error) {
	var campaigns []*model.Campaign
	var total int64

	err := r.db.WithContext(ctx).Model(&model.Campaign{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	if offset < 0 || int64(offset) >= total || limit <= 0 {
		return []*model.Campaign{}, total, nil
	}

	if int64(offset+limit) > total {
		limit = int(total) - offset
	}

	err = r.db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&campaigns).Error

	return campaigns, total, err
}

// GetExpiredActive 查询已过截止时间但仍处于 ACTIVE 的活动
func (r *CampaignRepository) GetExpiredActive(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error) {
	var campaigns []*model.Campaign
	err := r.db.WithContext(ctx).
		Where("state = ? AND deadline <= ?", model.CampaignStateActive, now).
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, err
}

// SumCollected 全部活动的托管资金总额
func (r *CampaignRepository) SumCollected(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Select("COALESCE(SUM(amount_collected), 0)").
		Scan(&total).Error
	return total, err
}
