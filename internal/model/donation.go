package model

import (
	"time"
)

// DonationRecord 捐赠明细表
// 与出资台账不同，这里是按时间追加的原始明细：同一出资人可以出现多条。
//
// 【重要】明细表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. request_id 全局唯一 —— 同一请求重复提交只落一条
// 3. 读取走分页接口 —— 明细无上限，不允许一次性全量返回
type DonationRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DonationNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"donation_no"` // 捐赠单号（全局唯一）
	RequestID  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"`  // 幂等ID，客户端生成
	CampaignID int64     `gorm:"index;not null" json:"campaign_id"`                        // 活动ID
	DonorID    int64     `gorm:"index;not null" json:"donor_id"`                           // 出资人用户ID
	Amount     int64     `gorm:"not null" json:"amount"`                                   // 本次捐赠金额
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (DonationRecord) TableName() string {
	return "donation_record"
}
