package repository

import (
	"context"
	"testing"
	"time"

	"crowdfund/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Campaign{},
		&model.Contribution{},
	))
	return db
}

func activeCampaign(t *testing.T, repo *CampaignRepository, target int64) *model.Campaign {
	t.Helper()
	campaign := &model.Campaign{
		OwnerID:      1,
		Title:        "测试活动",
		TargetAmount: target,
		Deadline:     time.Now().Add(time.Hour),
		State:        model.CampaignStateActive,
	}
	require.NoError(t, repo.Create(context.Background(), nil, campaign))
	return campaign
}

func TestFinalizeIsOneShot(t *testing.T) {
	db := newTestDB(t)
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	campaign := activeCampaign(t, repo, 100)

	require.NoError(t, repo.Finalize(ctx, nil, campaign.ID, model.CampaignStateSuccessful))

	// 结算标记只会置位一次，第二次条件更新不命中
	err := repo.Finalize(ctx, nil, campaign.ID, model.CampaignStateFailed)
	assert.ErrorIs(t, err, ErrCampaignStateInvalid)

	reloaded, err := repo.GetByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStateSuccessful, reloaded.State)
	assert.True(t, reloaded.Finalized)
}

func TestFinalizeRejectsIllegalTarget(t *testing.T) {
	db := newTestDB(t)
	repo := NewCampaignRepository(db)

	campaign := activeCampaign(t, repo, 100)

	// ACTIVE 不能直接流转到 WITHDRAWN
	err := repo.Finalize(context.Background(), nil, campaign.ID, model.CampaignStateWithdrawn)
	assert.ErrorIs(t, err, ErrCampaignStateInvalid)
}

func TestAddCollectedOnlyWhenActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	campaign := activeCampaign(t, repo, 100)
	require.NoError(t, repo.AddCollected(ctx, nil, campaign.ID, 40))

	require.NoError(t, repo.Finalize(ctx, nil, campaign.ID, model.CampaignStateFailed))

	// 结算之后不能再累加
	err := repo.AddCollected(ctx, nil, campaign.ID, 10)
	assert.ErrorIs(t, err, ErrCampaignStateInvalid)

	reloaded, err := repo.GetByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), reloaded.AmountCollected)
}

func TestListClamping(t *testing.T) {
	db := newTestDB(t)
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		activeCampaign(t, repo, 100)
	}

	tests := []struct {
		name   string
		offset int
		limit  int
		want   int
	}{
		{"末尾截断", 4, 2, 1},
		{"offset等于总数", 5, 2, 0},
		{"offset超出总数", 9, 2, 0},
		{"中间一页", 2, 2, 2},
		{"负offset", -1, 2, 0},
		{"limit为0", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, total, err := repo.List(ctx, tt.offset, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, int64(5), total)
			assert.Len(t, list, tt.want)
		})
	}
}

func TestMarkWithdrawnChecksAmount(t *testing.T) {
	db := newTestDB(t)
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	campaign := activeCampaign(t, repo, 100)
	require.NoError(t, repo.AddCollected(ctx, nil, campaign.ID, 100))
	require.NoError(t, repo.Finalize(ctx, nil, campaign.ID, model.CampaignStateSuccessful))

	// 金额对不上时拒绝
	err := repo.MarkWithdrawn(ctx, nil, campaign.ID, 50)
	assert.ErrorIs(t, err, ErrCampaignStateInvalid)

	require.NoError(t, repo.MarkWithdrawn(ctx, nil, campaign.ID, 100))

	reloaded, err := repo.GetByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStateWithdrawn, reloaded.State)
	assert.Equal(t, int64(0), reloaded.AmountCollected)

	// 已提现的活动不能重复提现
	err = repo.MarkWithdrawn(ctx, nil, campaign.ID, 0)
	assert.ErrorIs(t, err, ErrCampaignStateInvalid)
}
