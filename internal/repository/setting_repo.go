package repository

import (
	"context"
	"errors"

	"crowdfund/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSettingNotFound = errors.New("平台配置不存在")
	ErrSettingConflict = errors.New("平台配置已变更，请重试")
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Seed 首次启动时写入初始配置，已存在则不覆盖
func (r *SettingRepository) Seed(ctx context.Context, adminUserID int64) error {
	setting := &model.PlatformSetting{
		ID:          model.SettingID,
		AdminUserID: adminUserID,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(setting).Error
}

func (r *SettingRepository) Get(ctx context.Context) (*model.PlatformSetting, error) {
	var setting model.PlatformSetting
	err := r.db.WithContext(ctx).Where("id = ?", model.SettingID).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	return &setting, nil
}

// Update 按版本号条件更新配置字段，并发变更时拒绝
func (r *SettingRepository) Update(ctx context.Context, tx *gorm.DB, version int, fields map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}

	fields["version"] = gorm.Expr("version + 1")

	result := tx.WithContext(ctx).
		Model(&model.PlatformSetting{}).
		Where("id = ? AND version = ?", model.SettingID, version).
		Updates(fields)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettingConflict
	}
	return nil
}
