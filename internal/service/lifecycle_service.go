package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"crowdfund/internal/config"
	"crowdfund/internal/infrastructure/lock"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type LifecycleService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	campaignRepo *repository.CampaignRepository
	settingRepo  *repository.SettingRepository
	outboxRepo   *repository.OutboxRepository
}

func NewLifecycleService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *LifecycleService {
	return &LifecycleService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		campaignRepo: repository.NewCampaignRepository(db),
		settingRepo:  repository.NewSettingRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
}

type FinalizeResponse struct {
	CampaignID      int64  `json:"campaign_id"`
	State           string `json:"state"`
	AmountCollected int64  `json:"amount_collected"`
	TargetAmount    int64  `json:"target_amount"`
}

// Finalize 到期结算
// 截止时间之后按筹款额与目标比较流转为 SUCCESSFUL 或 FAILED；
// 结算标记保证只会结算一次，捐赠达标自动成功的活动再调用本接口
// 会返回已结算错误
func (s *LifecycleService) Finalize(ctx context.Context, campaignID int64) (*FinalizeResponse, error) {
	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询平台配置失败: %w", err)
	}
	if setting.Paused {
		return nil, ErrSystemPaused
	}

	campaignLock := lock.NewCampaignLock(s.redisClient, campaignID, idgen.GenerateLockToken())
	err = campaignLock.Lock(ctx, 100*time.Millisecond, 30)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer campaignLock.Unlock(ctx)

	campaign, err := s.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if campaign.Finalized || campaign.State != model.CampaignStateActive {
		return nil, ErrAlreadyFinalized
	}
	if time.Now().Before(campaign.Deadline) {
		return nil, ErrTooEarly
	}

	toState := model.CampaignStateFailed
	if campaign.GoalReached() {
		toState = model.CampaignStateSuccessful
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.campaignRepo.Finalize(ctx, tx, campaignID, toState); err != nil {
			return fmt.Errorf("活动结算失败: %w", err)
		}

		key := fmt.Sprintf("%d", campaignID)
		if toState == model.CampaignStateSuccessful {
			if err := s.outboxRepo.Emit(ctx, tx, s.cfg.Kafka.Topic.CampaignEvent,
				key, model.EventGoalReached,
				map[string]interface{}{
					"campaign_id":      campaignID,
					"target_amount":    campaign.TargetAmount,
					"amount_collected": campaign.AmountCollected,
				}); err != nil {
				return fmt.Errorf("写入消息失败: %w", err)
			}
		}

		return s.outboxRepo.Emit(ctx, tx, s.cfg.Kafka.Topic.CampaignEvent,
			key, model.EventCampaignFinalized,
			map[string]interface{}{
				"campaign_id":      campaignID,
				"state":            toState,
				"amount_collected": campaign.AmountCollected,
				"target_amount":    campaign.TargetAmount,
				"finalized_at":     time.Now().Format(time.RFC3339),
			})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("活动结算完成: campaignID=%d, state=%s, collected=%d, target=%d",
		campaignID, toState, campaign.AmountCollected, campaign.TargetAmount)

	return &FinalizeResponse{
		CampaignID:      campaignID,
		State:           toState,
		AmountCollected: campaign.AmountCollected,
		TargetAmount:    campaign.TargetAmount,
	}, nil
}
