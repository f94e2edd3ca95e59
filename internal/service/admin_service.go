package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"crowdfund/internal/config"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"

	"gorm.io/gorm"
)

// AdminService 平台管理操作
// 管理员身份、费率、暂停开关都存在平台配置单行记录里，
// 所有变更带版本号条件更新，管理员变更额外发事件留痕
type AdminService struct {
	db          *gorm.DB
	cfg         *config.Config
	settingRepo *repository.SettingRepository
	outboxRepo  *repository.OutboxRepository
}

func NewAdminService(db *gorm.DB, cfg *config.Config) *AdminService {
	return &AdminService{
		db:          db,
		cfg:         cfg,
		settingRepo: repository.NewSettingRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// requireAdmin 校验调用方是当前管理员，返回当前配置
func (s *AdminService) requireAdmin(ctx context.Context, callerID int64) (*model.PlatformSetting, error) {
	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询平台配置失败: %w", err)
	}
	if callerID != setting.AdminUserID {
		return nil, fmt.Errorf("%w: 需要管理员身份", ErrUnauthorized)
	}
	return setting, nil
}

// SetFeeRate 设置手续费率（基点），上限 10%
func (s *AdminService) SetFeeRate(ctx context.Context, callerID, feeRateBps int64) error {
	setting, err := s.requireAdmin(ctx, callerID)
	if err != nil {
		return err
	}

	if feeRateBps < 0 || feeRateBps > model.MaxFeeRateBps {
		return fmt.Errorf("%w: 费率必须在 0-%d 基点之间", ErrInvalidArgument, model.MaxFeeRateBps)
	}

	err = s.settingRepo.Update(ctx, nil, setting.Version, map[string]interface{}{
		"fee_rate_bps": feeRateBps,
	})
	if err != nil {
		return err
	}

	log.Printf("手续费率已更新: %d -> %d bps", setting.FeeRateBps, feeRateBps)
	return nil
}

// SetFeeRecipient 设置手续费收款人，0 表示取消配置
func (s *AdminService) SetFeeRecipient(ctx context.Context, callerID, recipientID int64) error {
	setting, err := s.requireAdmin(ctx, callerID)
	if err != nil {
		return err
	}

	if recipientID < 0 {
		return fmt.Errorf("%w: 收款人不合法", ErrInvalidArgument)
	}

	err = s.settingRepo.Update(ctx, nil, setting.Version, map[string]interface{}{
		"fee_recipient_id": recipientID,
	})
	if err != nil {
		return err
	}

	log.Printf("手续费收款人已更新: %d -> %d", setting.FeeRecipientID, recipientID)
	return nil
}

// Pause 全局暂停：创建、捐赠、结算、提现、退款全部拒绝，
// 批量退款作为应急通道不受影响
func (s *AdminService) Pause(ctx context.Context, callerID int64) error {
	return s.setPaused(ctx, callerID, true)
}

// Unpause 解除暂停
func (s *AdminService) Unpause(ctx context.Context, callerID int64) error {
	return s.setPaused(ctx, callerID, false)
}

func (s *AdminService) setPaused(ctx context.Context, callerID int64, paused bool) error {
	setting, err := s.requireAdmin(ctx, callerID)
	if err != nil {
		return err
	}

	err = s.settingRepo.Update(ctx, nil, setting.Version, map[string]interface{}{
		"paused": paused,
	})
	if err != nil {
		return err
	}

	log.Printf("全局暂停开关已更新: paused=%v", paused)
	return nil
}

// TransferAdmin 移交管理员身份，变更发事件留痕
func (s *AdminService) TransferAdmin(ctx context.Context, callerID, newAdminID int64) error {
	setting, err := s.requireAdmin(ctx, callerID)
	if err != nil {
		return err
	}

	if newAdminID <= 0 {
		return fmt.Errorf("%w: 新管理员不合法", ErrInvalidArgument)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.settingRepo.Update(ctx, tx, setting.Version, map[string]interface{}{
			"admin_user_id": newAdminID,
		}); err != nil {
			return err
		}

		return s.outboxRepo.Emit(ctx, tx, s.cfg.Kafka.Topic.CampaignEvent,
			fmt.Sprintf("admin-%d", newAdminID), model.EventAdminTransferred,
			map[string]interface{}{
				"old_admin_id":   setting.AdminUserID,
				"new_admin_id":   newAdminID,
				"transferred_at": time.Now().Format(time.RFC3339),
			})
	})

	if err != nil {
		return err
	}

	log.Printf("管理员已移交: %d -> %d", setting.AdminUserID, newAdminID)
	return nil
}

// GetSetting 查询当前平台配置
func (s *AdminService) GetSetting(ctx context.Context) (*model.PlatformSetting, error) {
	return s.settingRepo.Get(ctx)
}
