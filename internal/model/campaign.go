package model

import (
	"time"
)

const (
	CampaignStateActive     = "ACTIVE"
	CampaignStateSuccessful = "SUCCESSFUL"
	CampaignStateFailed     = "FAILED"
	CampaignStateWithdrawn  = "WITHDRAWN"
)

// 状态只能沿 ACTIVE -> SUCCESSFUL/FAILED -> WITHDRAWN 单向流转，不允许回退
var ValidStateTransitions = map[string][]string{
	CampaignStateActive:     {CampaignStateSuccessful, CampaignStateFailed},
	CampaignStateSuccessful: {CampaignStateWithdrawn},
}

func CanTransitionTo(currentState, targetState string) bool {
	allowedStates, exists := ValidStateTransitions[currentState]
	if !exists {
		return false
	}
	for _, s := range allowedStates {
		if s == targetState {
			return true
		}
	}
	return false
}

const (
	// TitleMaxLen 活动标题最大长度
	TitleMaxLen = 200
	// MaxDurationDays 截止时间距创建时间最多一年
	MaxDurationDays = 365
)

// Campaign 众筹活动表
// 活动ID由数据库自增分配，全局唯一且永不复用
type Campaign struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID         int64     `gorm:"index;not null" json:"owner_id"`                    // 发起人用户ID
	Title           string    `gorm:"type:varchar(200);not null" json:"title"`           // 标题
	Description     string    `gorm:"type:text" json:"description"`                      // 描述
	ImageURL        string    `gorm:"type:varchar(512)" json:"image_url"`                // 封面图
	TargetAmount    int64     `gorm:"not null" json:"target_amount"`                     // 目标金额（硬币数）
	AmountCollected int64     `gorm:"not null;default:0" json:"amount_collected"`        // 已筹金额
	Deadline        time.Time `gorm:"not null" json:"deadline"`                          // 截止时间
	State           string    `gorm:"type:varchar(20);index;not null" json:"state"`      // 活动状态
	Finalized       bool      `gorm:"not null;default:false" json:"finalized"`           // 结算标记，离开 ACTIVE 时置位且不再清除
	Version         int       `gorm:"not null;default:0" json:"version"`                 // 乐观锁版本号
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaign"
}

// GoalReached 是否达到目标金额
func (c *Campaign) GoalReached() bool {
	return c.AmountCollected >= c.TargetAmount
}
