package model

import (
	"time"
)

// Contribution 出资台账表
// 按 (活动, 出资人) 聚合的累计出资额，活动进行中只增不减，
// 退款时一次性清零。任意时刻（单次资金操作的事务内部除外）
// 同一活动所有台账金额之和等于该活动的 amount_collected
type Contribution struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CampaignID int64     `gorm:"uniqueIndex:uk_campaign_donor;not null" json:"campaign_id"` // 活动ID
	DonorID    int64     `gorm:"uniqueIndex:uk_campaign_donor;not null" json:"donor_id"`    // 出资人用户ID
	Amount     int64     `gorm:"not null;default:0" json:"amount"`                          // 累计出资额
	Version    int       `gorm:"not null;default:0" json:"version"`                         // 乐观锁版本号
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contribution) TableName() string {
	return "contribution"
}
