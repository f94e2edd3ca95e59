package service

import (
	"context"
	"errors"
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

type DonateService struct {
	db               *gorm.DB
	redisClient      *redis.Client
	cfg              *config.Config
	campaignRepo     *repository.CampaignRepository
	contributionRepo *repository.ContributionRepository
	donationRepo     *repository.DonationRepository
	accountRepo      *repository.AccountRepository
	transferRepo     *repository.TransferRepository
	settingRepo      *repository.SettingRepository
	outboxRepo       *repository.OutboxRepository
}

func NewDonateService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *DonateService {
	return &DonateService{
		db:               db,
		redisClient:      redisClient,
		cfg:              cfg,
		campaignRepo:     repository.NewCampaignRepository(db),
		contributionRepo: repository.NewContributionRepository(db),
		donationRepo:     repository.NewDonationRepository(db),
		accountRepo:      repository.NewAccountRepository(db),
		transferRepo:     repository.NewTransferRepository(db),
		settingRepo:      repository.NewSettingRepository(db),
		outboxRepo:       repository.NewOutboxRepository(db),
	}
}

type DonateRequest struct {
	RequestID  string `json:"request_id" binding:"required"`
	CampaignID int64  `json:"campaign_id" binding:"required"`
	DonorID    int64  `json:"donor_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
}

type DonateResponse struct {
	DonationNo    string `json:"donation_no"`
	CampaignID    int64  `json:"campaign_id"`
	Amount        int64  `json:"amount"`
	CampaignState string `json:"campaign_state"`
	Message       string `json:"message,omitempty"`
}

// Donate 向活动捐赠
//
// 【关键点】捐赠是系统最核心的写路径，需要保证：
// 1. 幂等性：相同的 request_id 只会落一笔捐赠
// 2. 原子性：账户扣款、台账累加、明细追加、活动筹款额更新同时成功或同时失败
// 3. 达标判定与捐赠在同一事务内：筹款额跨过目标金额的瞬间活动即流转为
//    SUCCESSFUL，不存在"已超额但未成功"的中间窗口
func (s *DonateService) Donate(ctx context.Context, req *DonateRequest) (*DonateResponse, error) {
	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询平台配置失败: %w", err)
	}
	if setting.Paused {
		return nil, ErrSystemPaused
	}

	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: 捐赠金额必须大于0", ErrInvalidArgument)
	}

	// 幂等校验
	existing, err := s.donationRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询捐赠记录失败: %w", err)
	}
	if existing != nil {
		return s.duplicateResponse(ctx, existing)
	}

	// 获取活动资金锁
	campaignLock := lock.NewCampaignLock(s.redisClient, req.CampaignID, req.RequestID)
	err = campaignLock.Lock(ctx, 100*time.Millisecond, 30)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer campaignLock.Unlock(ctx)

	// 获取锁后再次检查幂等
	existing, err = s.donationRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询捐赠记录失败: %w", err)
	}
	if existing != nil {
		return s.duplicateResponse(ctx, existing)
	}

	campaign, err := s.campaignRepo.GetByID(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if campaign.State != model.CampaignStateActive {
		return nil, fmt.Errorf("%w: 当前状态 %s", ErrInvalidState, campaign.State)
	}
	if !now.Before(campaign.Deadline) {
		return nil, fmt.Errorf("%w: 活动已过截止时间", ErrInvalidState)
	}

	account, err := s.accountRepo.GetByUserID(ctx, req.DonorID)
	if err != nil {
		return nil, fmt.Errorf("查询出资人账户失败: %w", err)
	}
	if account.Balance < req.Amount {
		return nil, repository.ErrBalanceNotEnough
	}

	donationNo := idgen.GenerateDonationNo()
	goalReached := false

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 出资人账户扣款，资金进入托管
		if err := s.accountRepo.Deduct(ctx, tx, req.DonorID, req.Amount, account.Version); err != nil {
			if errors.Is(err, repository.ErrBalanceNotEnough) {
				return err
			}
			if errors.Is(err, repository.ErrOptimisticLock) {
				return errors.New("系统繁忙，请重试")
			}
			return fmt.Errorf("扣款失败: %w", err)
		}

		// 追加捐赠明细
		record := &model.DonationRecord{
			DonationNo: donationNo,
			RequestID:  req.RequestID,
			CampaignID: req.CampaignID,
			DonorID:    req.DonorID,
			Amount:     req.Amount,
		}
		if err := s.donationRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("记录捐赠明细失败: %w", err)
		}

		// 累加出资台账
		if err := s.contributionRepo.Add(ctx, tx, req.CampaignID, req.DonorID, req.Amount); err != nil {
			return fmt.Errorf("更新出资台账失败: %w", err)
		}

		// 累加活动筹款额
		if err := s.campaignRepo.AddCollected(ctx, tx, req.CampaignID, req.Amount); err != nil {
			return fmt.Errorf("更新活动筹款额失败: %w", err)
		}

		// 记录资金流水
		transfer := &model.FundTransfer{
			TransferNo:    idgen.GenerateTransferNo(),
			UserID:        req.DonorID,
			CampaignID:    req.CampaignID,
			Amount:        -req.Amount,
			Type:          model.TransferTypeDonate,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance - req.Amount,
			Remark:        fmt.Sprintf("捐赠-%s", donationNo),
		}
		if err := s.transferRepo.Create(ctx, tx, transfer); err != nil {
			return fmt.Errorf("记录资金流水失败: %w", err)
		}

		if err := s.outboxRepo.Emit(ctx, tx, s.cfg.Kafka.Topic.CampaignEvent,
			donationNo, model.EventDonationReceived,
			map[string]interface{}{
				"campaign_id": req.CampaignID,
				"donor_id":    req.DonorID,
				"amount":      req.Amount,
				"donated_at":  now.Format(time.RFC3339),
			}); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		// 达标判定与捐赠同一事务：跨过目标金额立即结算为成功
		// 锁保证了没有并发写，读到的 AmountCollected 加上本笔就是最新值
		if campaign.AmountCollected+req.Amount >= campaign.TargetAmount {
			goalReached = true
			if err := s.campaignRepo.Finalize(ctx, tx, req.CampaignID, model.CampaignStateSuccessful); err != nil {
				return fmt.Errorf("活动结算失败: %w", err)
			}

			if err := s.outboxRepo.Emit(ctx, tx, s.cfg.Kafka.Topic.CampaignEvent,
				fmt.Sprintf("%d", req.CampaignID), model.EventGoalReached,
				map[string]interface{}{
					"campaign_id":      req.CampaignID,
					"target_amount":    campaign.TargetAmount,
					"amount_collected": campaign.AmountCollected + req.Amount,
				}); err != nil {
				return fmt.Errorf("写入消息失败: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	state := model.CampaignStateActive
	if goalReached {
		state = model.CampaignStateSuccessful
		log.Printf("活动达标: campaignID=%d, target=%d", req.CampaignID, campaign.TargetAmount)
	}

	log.Printf("捐赠成功: donationNo=%s, campaignID=%d, donorID=%d, amount=%d",
		donationNo, req.CampaignID, req.DonorID, req.Amount)

	return &DonateResponse{
		DonationNo:    donationNo,
		CampaignID:    req.CampaignID,
		Amount:        req.Amount,
		CampaignState: state,
		Message:       "捐赠成功",
	}, nil
}

// duplicateResponse 重复请求直接返回首次捐赠的结果
func (s *DonateService) duplicateResponse(ctx context.Context, record *model.DonationRecord) (*DonateResponse, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, record.CampaignID)
	if err != nil {
		return nil, err
	}
	return &DonateResponse{
		DonationNo:    record.DonationNo,
		CampaignID:    record.CampaignID,
		Amount:        record.Amount,
		CampaignState: campaign.State,
		Message:       "捐赠已存在",
	}, nil
}
