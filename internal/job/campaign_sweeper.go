package job

import (
	"context"
	"errors"
	"log"
	"time"

	"crowdfund/internal/config"
	"crowdfund/internal/repository"
	"crowdfund/internal/service"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// CampaignSweeper 定时结算已过截止时间的活动
// 结算入口与手动结算完全相同，靠结算标记保证不会重复结算；
// 扫描和手动调用撞上时，后来者拿到已结算错误直接跳过
type CampaignSweeper struct {
	db           *gorm.DB
	campaignRepo *repository.CampaignRepository
	lifecycle    *service.LifecycleService
	cfg          *config.Config
	stopCh       chan struct{}
	interval     time.Duration
	batchSize    int
}

func NewCampaignSweeper(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *CampaignSweeper {
	interval := time.Duration(cfg.Business.SweepIntervalSecond) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batchSize := cfg.Business.SweepBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &CampaignSweeper{
		db:           db,
		campaignRepo: repository.NewCampaignRepository(db),
		lifecycle:    service.NewLifecycleService(db, redisClient, cfg),
		cfg:          cfg,
		stopCh:       make(chan struct{}),
		interval:     interval,
		batchSize:    batchSize,
	}
}

func (j *CampaignSweeper) Start(ctx context.Context) {
	log.Println("[CampaignSweeper] 活动结算任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[CampaignSweeper] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[CampaignSweeper] 任务停止")
			return
		case <-ticker.C:
			j.sweepExpiredCampaigns(ctx)
		}
	}
}

func (j *CampaignSweeper) Stop() {
	close(j.stopCh)
}

func (j *CampaignSweeper) sweepExpiredCampaigns(ctx context.Context) {
	campaigns, err := j.campaignRepo.GetExpiredActive(ctx, time.Now(), j.batchSize)
	if err != nil {
		log.Printf("[CampaignSweeper] 查询到期活动失败: %v", err)
		return
	}

	if len(campaigns) == 0 {
		return
	}

	log.Printf("[CampaignSweeper] 发现 %d 个到期未结算活动", len(campaigns))

	finalized := 0
	for _, campaign := range campaigns {
		result, err := j.lifecycle.Finalize(ctx, campaign.ID)
		if err != nil {
			if errors.Is(err, service.ErrAlreadyFinalized) || errors.Is(err, service.ErrSystemPaused) {
				continue
			}
			log.Printf("[CampaignSweeper] 结算活动失败: campaignID=%d, err=%v", campaign.ID, err)
			continue
		}
		finalized++
		log.Printf("[CampaignSweeper] 活动已结算: campaignID=%d, state=%s, collected=%d",
			campaign.ID, result.State, result.AmountCollected)
	}

	log.Printf("[CampaignSweeper] 本次结算 %d 个活动", finalized)
}
