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

// CustodyService 托管资金的出口：提现、退款、批量退款
// 所有操作都先修改内部状态（活动状态、筹款额、出资台账），
// 再执行入账转账，且两步在同一个数据库事务里：转账被拒时整个
// 事务回滚，不会出现"账已清但钱没到"或"钱到了账没清"的中间态
type CustodyService struct {
	db               *gorm.DB
	redisClient      *redis.Client
	cfg              *config.Config
	campaignRepo     *repository.CampaignRepository
	contributionRepo *repository.ContributionRepository
	accountRepo      *repository.AccountRepository
	transferRepo     *repository.TransferRepository
	settingRepo      *repository.SettingRepository
	outboxRepo       *repository.OutboxRepository
}

func NewCustodyService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *CustodyService {
	return &CustodyService{
		db:               db,
		redisClient:      redisClient,
		cfg:              cfg,
		campaignRepo:     repository.NewCampaignRepository(db),
		contributionRepo: repository.NewContributionRepository(db),
		accountRepo:      repository.NewAccountRepository(db),
		transferRepo:     repository.NewTransferRepository(db),
		settingRepo:      repository.NewSettingRepository(db),
		outboxRepo:       repository.NewOutboxRepository(db),
	}
}

type WithdrawResponse struct {
	CampaignID  int64 `json:"campaign_id"`
	OwnerAmount int64 `json:"owner_amount"`
	Fee         int64 `json:"fee"`
}

// Withdraw 发起人提现
// 手续费 = 筹款额 × 费率 / 10000（整数除法），费率为0或未配置
// 收款人时不收费；手续费和剩余金额的入账任何一笔失败，整个提现
// 回滚，活动保持 SUCCESSFUL 可以重试
func (s *CustodyService) Withdraw(ctx context.Context, campaignID, callerID int64) (*WithdrawResponse, error) {
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

	if campaign.OwnerID != callerID {
		return nil, fmt.Errorf("%w: 只有发起人可以提现", ErrUnauthorized)
	}
	if campaign.State != model.CampaignStateSuccessful {
		return nil, fmt.Errorf("%w: 当前状态 %s", ErrInvalidState, campaign.State)
	}
	if campaign.AmountCollected <= 0 {
		return nil, fmt.Errorf("%w: 没有可提现的资金", ErrInvalidState)
	}

	collected := campaign.AmountCollected
	fee := setting.FeeFor(collected)
	ownerAmount := collected - fee

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 先流转状态并清零筹款额，再入账
		if err := s.campaignRepo.MarkWithdrawn(ctx, tx, campaignID, collected); err != nil {
			return fmt.Errorf("更新活动状态失败: %w", err)
		}

		if fee > 0 {
			if err := s.credit(ctx, tx, setting.FeeRecipientID, campaignID, fee,
				model.TransferTypeFee, fmt.Sprintf("手续费-活动%d", campaignID)); err != nil {
				return err
			}
		}

		if err := s.credit(ctx, tx, campaign.OwnerID, campaignID, ownerAmount,
			model.TransferTypeWithdraw, fmt.Sprintf("提现-活动%d", campaignID)); err != nil {
			return err
		}

		return s.outboxRepo.Emit(ctx, tx, s.cfg.Kafka.Topic.FundEvent,
			fmt.Sprintf("%d", campaignID), model.EventFundsWithdrawn,
			map[string]interface{}{
				"campaign_id":  campaignID,
				"owner_id":     campaign.OwnerID,
				"owner_amount": ownerAmount,
				"fee":          fee,
				"withdrawn_at": time.Now().Format(time.RFC3339),
			})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("提现成功: campaignID=%d, ownerID=%d, amount=%d, fee=%d",
		campaignID, campaign.OwnerID, ownerAmount, fee)

	return &WithdrawResponse{
		CampaignID:  campaignID,
		OwnerAmount: ownerAmount,
		Fee:         fee,
	}, nil
}

type RefundResponse struct {
	CampaignID int64 `json:"campaign_id"`
	DonorID    int64 `json:"donor_id"`
	Amount     int64 `json:"amount"`
}

// ClaimRefund 出资人在活动失败后领取退款
// 台账清零、筹款额扣减、账户入账在同一事务内；重复领取时台账
// 已经为零，返回无可退款错误
func (s *CustodyService) ClaimRefund(ctx context.Context, campaignID, callerID int64) (*RefundResponse, error) {
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
	if campaign.State != model.CampaignStateFailed {
		return nil, fmt.Errorf("%w: 当前状态 %s", ErrInvalidState, campaign.State)
	}

	amount, err := s.refundEntry(ctx, campaignID, callerID)
	if err != nil {
		return nil, err
	}

	log.Printf("退款成功: campaignID=%d, donorID=%d, amount=%d", campaignID, callerID, amount)

	return &RefundResponse{
		CampaignID: campaignID,
		DonorID:    callerID,
		Amount:     amount,
	}, nil
}

type BatchRefundResponse struct {
	CampaignID int64 `json:"campaign_id"`
	Refunded   int   `json:"refunded"`
	Skipped    int   `json:"skipped"`
}

// BatchRefund 管理员批量退款
// 管理员的应急通道，系统暂停时仍然可用。每个出资人独立一个事务：
// 某一笔入账失败只回滚并跳过这一笔，不会让整个批次失败，管理员
// 可以对跳过的出资人重新执行
func (s *CustodyService) BatchRefund(ctx context.Context, campaignID int64, donorIDs []int64, callerID int64) (*BatchRefundResponse, error) {
	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询平台配置失败: %w", err)
	}
	if callerID != setting.AdminUserID {
		return nil, fmt.Errorf("%w: 只有管理员可以批量退款", ErrUnauthorized)
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
	if campaign.State != model.CampaignStateFailed {
		return nil, fmt.Errorf("%w: 当前状态 %s", ErrInvalidState, campaign.State)
	}

	refunded, skipped := 0, 0
	for _, donorID := range donorIDs {
		amount, err := s.refundEntry(ctx, campaignID, donorID)
		if err != nil {
			skipped++
			log.Printf("批量退款跳过: campaignID=%d, donorID=%d, err=%v", campaignID, donorID, err)
			continue
		}
		refunded++
		log.Printf("批量退款成功: campaignID=%d, donorID=%d, amount=%d", campaignID, donorID, amount)
	}

	log.Printf("批量退款完成: campaignID=%d, refunded=%d, skipped=%d", campaignID, refunded, skipped)

	return &BatchRefundResponse{
		CampaignID: campaignID,
		Refunded:   refunded,
		Skipped:    skipped,
	}, nil
}

// refundEntry 退一个出资人的全部出资，单独一个事务
func (s *CustodyService) refundEntry(ctx context.Context, campaignID, donorID int64) (int64, error) {
	contribution, err := s.contributionRepo.Get(ctx, campaignID, donorID)
	if err != nil {
		if errors.Is(err, repository.ErrContributionNotFound) {
			return 0, ErrNothingToRefund
		}
		return 0, err
	}
	if contribution.Amount <= 0 {
		return 0, ErrNothingToRefund
	}

	amount := contribution.Amount

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 先清账再打款，打款失败整个事务回滚
		if err := s.contributionRepo.Zero(ctx, tx, campaignID, donorID, amount); err != nil {
			return fmt.Errorf("清零出资台账失败: %w", err)
		}

		if err := s.campaignRepo.SubCollected(ctx, tx, campaignID, amount); err != nil {
			return fmt.Errorf("扣减活动筹款额失败: %w", err)
		}

		if err := s.credit(ctx, tx, donorID, campaignID, amount,
			model.TransferTypeRefund, fmt.Sprintf("退款-活动%d", campaignID)); err != nil {
			return err
		}

		return s.outboxRepo.Emit(ctx, tx, s.cfg.Kafka.Topic.FundEvent,
			fmt.Sprintf("%d-%d", campaignID, donorID), model.EventRefundIssued,
			map[string]interface{}{
				"campaign_id": campaignID,
				"donor_id":    donorID,
				"amount":      amount,
				"refunded_at": time.Now().Format(time.RFC3339),
			})
	})

	if err != nil {
		return 0, err
	}
	return amount, nil
}

// credit 托管资金入账到用户账户并记录流水
// 账户不存在视为收款方拒收，返回转账失败让外层事务回滚
func (s *CustodyService) credit(ctx context.Context, tx *gorm.DB, userID, campaignID, amount int64, transferType, remark string) error {
	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return fmt.Errorf("%w: 账户 %d 不存在", ErrTransferFailed, userID)
		}
		return fmt.Errorf("查询账户失败: %w", err)
	}

	if err := s.accountRepo.Increase(ctx, tx, userID, amount); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return fmt.Errorf("%w: 账户 %d 不存在", ErrTransferFailed, userID)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	transfer := &model.FundTransfer{
		TransferNo:    idgen.GenerateTransferNo(),
		UserID:        userID,
		CampaignID:    campaignID,
		Amount:        amount,
		Type:          transferType,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance + amount,
		Remark:        remark,
	}
	if err := s.transferRepo.Create(ctx, tx, transfer); err != nil {
		return fmt.Errorf("记录资金流水失败: %w", err)
	}

	return nil
}
