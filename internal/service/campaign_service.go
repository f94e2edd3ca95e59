package service

import (
	"context"
	"fmt"
	"time"

	"crowdfund/internal/config"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"

	"gorm.io/gorm"
)

type CampaignService struct {
	db               *gorm.DB
	cfg              *config.Config
	campaignRepo     *repository.CampaignRepository
	contributionRepo *repository.ContributionRepository
	donationRepo     *repository.DonationRepository
	settingRepo      *repository.SettingRepository
	outboxRepo       *repository.OutboxRepository
}

func NewCampaignService(db *gorm.DB, cfg *config.Config) *CampaignService {
	return &CampaignService{
		db:               db,
		cfg:              cfg,
		campaignRepo:     repository.NewCampaignRepository(db),
		contributionRepo: repository.NewContributionRepository(db),
		donationRepo:     repository.NewDonationRepository(db),
		settingRepo:      repository.NewSettingRepository(db),
		outboxRepo:       repository.NewOutboxRepository(db),
	}
}

type CreateCampaignRequest struct {
	OwnerID      int64     `json:"owner_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"image_url"`
	TargetAmount int64     `json:"target_amount"`
	Deadline     time.Time `json:"deadline"`
}

// CreateCampaign 创建众筹活动
// 校验规则：发起人合法、目标金额为正、标题非空且不超长、
// 截止时间晚于当前时间且不超过一年
func (s *CampaignService) CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*model.Campaign, error) {
	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询平台配置失败: %w", err)
	}
	if setting.Paused {
		return nil, ErrSystemPaused
	}

	if req.OwnerID <= 0 {
		return nil, fmt.Errorf("%w: 发起人不能为空", ErrInvalidArgument)
	}
	if req.TargetAmount <= 0 {
		return nil, fmt.Errorf("%w: 目标金额必须大于0", ErrInvalidArgument)
	}
	if req.Title == "" {
		return nil, fmt.Errorf("%w: 标题不能为空", ErrInvalidArgument)
	}
	if len([]rune(req.Title)) > model.TitleMaxLen {
		return nil, fmt.Errorf("%w: 标题长度不能超过%d", ErrInvalidArgument, model.TitleMaxLen)
	}

	now := time.Now()
	if !req.Deadline.After(now) {
		return nil, fmt.Errorf("%w: 截止时间必须晚于当前时间", ErrInvalidArgument)
	}
	if req.Deadline.After(now.AddDate(0, 0, model.MaxDurationDays)) {
		return nil, fmt.Errorf("%w: 截止时间最多%d天", ErrInvalidArgument, model.MaxDurationDays)
	}

	campaign := &model.Campaign{
		OwnerID:      req.OwnerID,
		Title:        req.Title,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		TargetAmount: req.TargetAmount,
		Deadline:     req.Deadline,
		State:        model.CampaignStateActive,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.campaignRepo.Create(ctx, tx, campaign); err != nil {
			return fmt.Errorf("创建活动失败: %w", err)
		}

		return s.outboxRepo.Emit(ctx, tx, s.cfg.Kafka.Topic.CampaignEvent,
			fmt.Sprintf("%d", campaign.ID), model.EventCampaignCreated,
			map[string]interface{}{
				"campaign_id":   campaign.ID,
				"owner_id":      campaign.OwnerID,
				"title":         campaign.Title,
				"target_amount": campaign.TargetAmount,
				"deadline":      campaign.Deadline.Format(time.RFC3339),
			})
	})

	if err != nil {
		return nil, err
	}

	return campaign, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.campaignRepo.GetByID(ctx, id)
}

// ListCampaigns 按创建顺序分页查询活动列表
func (s *CampaignService) ListCampaigns(ctx context.Context, offset, limit int) ([]*model.Campaign, int64, error) {
	return s.campaignRepo.List(ctx, offset, limit)
}

// ListDonations 分页查询活动的捐赠明细
func (s *CampaignService) ListDonations(ctx context.Context, campaignID int64, offset, limit int) ([]*model.DonationRecord, int64, error) {
	if _, err := s.campaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, 0, err
	}
	return s.donationRepo.ListByCampaign(ctx, campaignID, offset, limit)
}

// GetContribution 查询出资人在某活动的累计出资额，没有出资过返回0
func (s *CampaignService) GetContribution(ctx context.Context, campaignID, donorID int64) (int64, error) {
	if _, err := s.campaignRepo.GetByID(ctx, campaignID); err != nil {
		return 0, err
	}

	contribution, err := s.contributionRepo.Get(ctx, campaignID, donorID)
	if err != nil {
		if err == repository.ErrContributionNotFound {
			return 0, nil
		}
		return 0, err
	}
	return contribution.Amount, nil
}

// TotalBalance 平台当前托管的资金总额
func (s *CampaignService) TotalBalance(ctx context.Context) (int64, error) {
	return s.campaignRepo.SumCollected(ctx)
}

// IsFinalized 活动是否已结算
func (s *CampaignService) IsFinalized(ctx context.Context, campaignID int64) (bool, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return false, err
	}
	return campaign.Finalized, nil
}
