package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"crowdfund/internal/config"
	"crowdfund/internal/model"
	"crowdfund/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAdminID int64 = 9999

// testEnv 测试环境：内存 sqlite + miniredis
type testEnv struct {
	db  *gorm.DB
	rdb *redis.Client
	cfg *config.Config

	campaigns *CampaignService
	donate    *DonateService
	lifecycle *LifecycleService
	custody   *CustodyService
	admin     *AdminService
	accounts  *AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// 用临时文件库代替 :memory:，连接池里的每个连接才能看到同一个库
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Campaign{},
		&model.Contribution{},
		&model.DonationRecord{},
		&model.Account{},
		&model.FundTransfer{},
		&model.OutboxMessage{},
		&model.PlatformSetting{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				CampaignEvent: "test_campaign_event",
				FundEvent:     "test_fund_event",
			},
		},
		Business: config.BusinessConfig{
			AdminUserID:   testAdminID,
			MaxRetryCount: 3,
		},
	}

	require.NoError(t, repository.NewSettingRepository(db).Seed(context.Background(), testAdminID))

	return &testEnv{
		db:        db,
		rdb:       rdb,
		cfg:       cfg,
		campaigns: NewCampaignService(db, cfg),
		donate:    NewDonateService(db, rdb, cfg),
		lifecycle: NewLifecycleService(db, rdb, cfg),
		custody:   NewCustodyService(db, rdb, cfg),
		admin:     NewAdminService(db, cfg),
		accounts:  NewAccountService(db),
	}
}

func timeInOneHour() time.Time {
	return time.Now().Add(time.Hour)
}

// fundAccount 给用户充值，账户不存在则创建
func (e *testEnv) fundAccount(t *testing.T, userID, amount int64) {
	t.Helper()
	require.NoError(t, e.accounts.Recharge(context.Background(), userID, amount))
}

// createCampaign 创建活动，默认截止时间一小时后
func (e *testEnv) createCampaign(t *testing.T, ownerID, target int64) *model.Campaign {
	t.Helper()
	campaign, err := e.campaigns.CreateCampaign(context.Background(), &CreateCampaignRequest{
		OwnerID:      ownerID,
		Title:        "测试活动",
		TargetAmount: target,
		Deadline:     time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return campaign
}

var requestSeq int64

// donateOnce 捐赠一笔，request_id 自动生成
func (e *testEnv) donateOnce(t *testing.T, campaignID, donorID, amount int64) *DonateResponse {
	t.Helper()
	requestSeq++
	resp, err := e.donate.Donate(context.Background(), &DonateRequest{
		RequestID:  fmt.Sprintf("req-%d-%d", time.Now().UnixNano(), requestSeq),
		CampaignID: campaignID,
		DonorID:    donorID,
		Amount:     amount,
	})
	require.NoError(t, err)
	return resp
}

// expireCampaign 把活动截止时间改到过去，模拟到期
func (e *testEnv) expireCampaign(t *testing.T, campaignID int64) {
	t.Helper()
	err := e.db.Model(&model.Campaign{}).
		Where("id = ?", campaignID).
		Update("deadline", time.Now().Add(-time.Minute)).Error
	require.NoError(t, err)
}

// reload 重新读取活动
func (e *testEnv) reload(t *testing.T, campaignID int64) *model.Campaign {
	t.Helper()
	campaign, err := e.campaigns.GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	return campaign
}

// balance 查询用户余额
func (e *testEnv) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	account, err := e.accounts.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return account.Balance
}
