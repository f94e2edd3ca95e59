package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"crowdfund/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCampaignValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	valid := func() *CreateCampaignRequest {
		return &CreateCampaignRequest{
			OwnerID:      1,
			Title:        "校园图书角",
			TargetAmount: 100,
			Deadline:     time.Now().Add(time.Hour),
		}
	}

	tests := []struct {
		name   string
		mutate func(*CreateCampaignRequest)
	}{
		{"发起人为空", func(r *CreateCampaignRequest) { r.OwnerID = 0 }},
		{"目标金额为0", func(r *CreateCampaignRequest) { r.TargetAmount = 0 }},
		{"目标金额为负", func(r *CreateCampaignRequest) { r.TargetAmount = -1 }},
		{"标题为空", func(r *CreateCampaignRequest) { r.Title = "" }},
		{"标题超长", func(r *CreateCampaignRequest) { r.Title = strings.Repeat("a", 201) }},
		{"截止时间在过去", func(r *CreateCampaignRequest) { r.Deadline = time.Now().Add(-time.Minute) }},
		{"截止时间超过一年", func(r *CreateCampaignRequest) { r.Deadline = time.Now().AddDate(0, 0, 366) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			_, err := env.campaigns.CreateCampaign(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	// 合法请求成功，初始状态 ACTIVE，筹款额为0
	campaign, err := env.campaigns.CreateCampaign(ctx, valid())
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStateActive, campaign.State)
	assert.Equal(t, int64(0), campaign.AmountCollected)
	assert.False(t, campaign.Finalized)
}

func TestCampaignIDMonotonic(t *testing.T) {
	env := newTestEnv(t)

	first := env.createCampaign(t, 1, 100)
	second := env.createCampaign(t, 1, 100)
	third := env.createCampaign(t, 2, 200)

	assert.Greater(t, second.ID, first.ID)
	assert.Greater(t, third.ID, second.ID)
}

func TestListCampaignsPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, env.createCampaign(t, 1, 100).ID)
	}

	// offset 接近末尾时截断
	list, total, err := env.campaigns.ListCampaigns(ctx, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, list, 1)
	assert.Equal(t, ids[4], list[0].ID)

	// offset 超出总数返回空
	list, _, err = env.campaigns.ListCampaigns(ctx, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, list)

	// 中间一页按创建顺序返回
	list, _, err = env.campaigns.ListCampaigns(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[3], list[1].ID)
}

func TestListDonationsPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	campaign := env.createCampaign(t, 1, 1000)
	env.fundAccount(t, 2, 500)
	for i := 0; i < 3; i++ {
		env.donateOnce(t, campaign.ID, 2, 10)
	}

	records, total, err := env.campaigns.ListDonations(ctx, campaign.ID, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, records, 2)

	records, _, err = env.campaigns.ListDonations(ctx, campaign.ID, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, records)

	// 同一出资人在明细里出现多次，但台账聚合为一条
	amount, err := env.campaigns.GetContribution(ctx, campaign.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(30), amount)
}

func TestGetContributionWithoutDonation(t *testing.T) {
	env := newTestEnv(t)

	campaign := env.createCampaign(t, 1, 100)

	amount, err := env.campaigns.GetContribution(context.Background(), campaign.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), amount)
}

func TestTotalBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c1 := env.createCampaign(t, 1, 1000)
	c2 := env.createCampaign(t, 1, 1000)
	env.fundAccount(t, 2, 500)
	env.donateOnce(t, c1.ID, 2, 100)
	env.donateOnce(t, c2.ID, 2, 50)

	total, err := env.campaigns.TotalBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)
}
