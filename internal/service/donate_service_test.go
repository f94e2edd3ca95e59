package service

import (
	"context"
	"testing"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonateHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	campaign := env.createCampaign(t, 1, 1000)
	env.fundAccount(t, 2, 500)

	resp := env.donateOnce(t, campaign.ID, 2, 100)
	assert.Equal(t, model.CampaignStateActive, resp.CampaignState)

	// 账户扣款、台账、筹款额同步更新
	assert.Equal(t, int64(400), env.balance(t, 2))

	reloaded := env.reload(t, campaign.ID)
	assert.Equal(t, int64(100), reloaded.AmountCollected)

	amount, err := env.campaigns.GetContribution(ctx, campaign.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(100), amount)
}

func TestDonateLedgerConsistency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	campaign := env.createCampaign(t, 1, 10000)
	env.fundAccount(t, 2, 500)
	env.fundAccount(t, 3, 500)

	env.donateOnce(t, campaign.ID, 2, 100)
	env.donateOnce(t, campaign.ID, 3, 250)
	env.donateOnce(t, campaign.ID, 2, 50)

	// 台账之和始终等于活动筹款额
	sum, err := repository.NewContributionRepository(env.db).SumByCampaign(ctx, campaign.ID)
	require.NoError(t, err)

	reloaded := env.reload(t, campaign.ID)
	assert.Equal(t, reloaded.AmountCollected, sum)
	assert.Equal(t, int64(400), sum)
}

func TestDonateGoalBoundary(t *testing.T) {
	env := newTestEnv(t)

	campaign := env.createCampaign(t, 1, 100)
	env.fundAccount(t, 2, 500)

	// 差1没到目标，状态不变
	resp := env.donateOnce(t, campaign.ID, 2, 99)
	assert.Equal(t, model.CampaignStateActive, resp.CampaignState)
	assert.False(t, env.reload(t, campaign.ID).Finalized)

	// 恰好到达目标，同一次调用内流转为成功
	resp = env.donateOnce(t, campaign.ID, 2, 1)
	assert.Equal(t, model.CampaignStateSuccessful, resp.CampaignState)

	reloaded := env.reload(t, campaign.ID)
	assert.Equal(t, model.CampaignStateSuccessful, reloaded.State)
	assert.True(t, reloaded.Finalized)
}

// 场景：一次捐赠直接达标，之后手动结算返回已结算
func TestDonateAutoSuccessThenFinalize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	campaign := env.createCampaign(t, 1, 100)
	env.fundAccount(t, 2, 500)

	resp := env.donateOnce(t, campaign.ID, 2, 100)
	assert.Equal(t, model.CampaignStateSuccessful, resp.CampaignState)

	finalized, err := env.campaigns.IsFinalized(ctx, campaign.ID)
	require.NoError(t, err)
	assert.True(t, finalized)

	// 达标事件已写入发件箱
	var count int64
	require.NoError(t, env.db.Model(&model.OutboxMessage{}).
		Where("payload LIKE ?", "%"+model.EventGoalReached+"%").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = env.lifecycle.Finalize(ctx, campaign.ID)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestDonateToExpiredCampaign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	campaign := env.createCampaign(t, 1, 1000)
	env.fundAccount(t, 2, 500)
	env.expireCampaign(t, campaign.ID)

	_, err := env.donate.Donate(ctx, &DonateRequest{
		RequestID:  "req-expired",
		CampaignID: campaign.ID,
		DonorID:    2,
		Amount:     100,
	})
	assert.ErrorIs(t, err, ErrInvalidState)

	// 扣款没有发生
	assert.Equal(t, int64(500), env.balance(t, 2))
}

func TestDonateToFinalizedCampaign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	campaign := env.createCampaign(t, 1, 100)
	env.fundAccount(t, 2, 500)
	env.donateOnce(t, campaign.ID, 2, 100) // 达标，流转为成功

	_, err := env.donate.Donate(ctx, &DonateRequest{
		RequestID:  "req-after-success",
		CampaignID: campaign.ID,
		DonorID:    2,
		Amount:     10,
	})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDonateIdempotency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	campaign := env.createCampaign(t, 1, 1000)
	env.fundAccount(t, 2, 500)

	req := &DonateRequest{
		RequestID:  "req-same",
		CampaignID: campaign.ID,
		DonorID:    2,
		Amount:     100,
	}

	first, err := env.donate.Donate(ctx, req)
	require.NoError(t, err)

	// 相同 request_id 重复提交不会二次扣款
	second, err := env.donate.Donate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.DonationNo, second.DonationNo)

	assert.Equal(t, int64(400), env.balance(t, 2))
	assert.Equal(t, int64(100), env.reload(t, campaign.ID).AmountCollected)
}

func TestDonateInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	campaign := env.createCampaign(t, 1, 1000)
	env.fundAccount(t, 2, 50)

	_, err := env.donate.Donate(ctx, &DonateRequest{
		RequestID:  "req-poor",
		CampaignID: campaign.ID,
		DonorID:    2,
		Amount:     100,
	})
	assert.ErrorIs(t, err, repository.ErrBalanceNotEnough)
}

func TestDonateMissingCampaign(t *testing.T) {
	env := newTestEnv(t)

	env.fundAccount(t, 2, 500)

	_, err := env.donate.Donate(context.Background(), &DonateRequest{
		RequestID:  "req-missing",
		CampaignID: 12345,
		DonorID:    2,
		Amount:     100,
	})
	assert.ErrorIs(t, err, repository.ErrCampaignNotFound)
}

func TestDonateWhenPaused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	campaign := env.createCampaign(t, 1, 1000)
	env.fundAccount(t, 2, 500)

	require.NoError(t, env.admin.Pause(ctx, testAdminID))

	_, err := env.donate.Donate(ctx, &DonateRequest{
		RequestID:  "req-paused",
		CampaignID: campaign.ID,
		DonorID:    2,
		Amount:     100,
	})
	assert.ErrorIs(t, err, ErrSystemPaused)

	require.NoError(t, env.admin.Unpause(ctx, testAdminID))
	env.donateOnce(t, campaign.ID, 2, 100)
}
