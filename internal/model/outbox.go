package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 事件类型，作为 Kafka 消息的 event 字段
const (
	EventCampaignCreated   = "CAMPAIGN_CREATED"   // 活动创建
	EventDonationReceived  = "DONATION_RECEIVED"  // 收到捐赠
	EventGoalReached       = "GOAL_REACHED"       // 达标自动成功
	EventCampaignFinalized = "CAMPAIGN_FINALIZED" // 活动结算（成功或失败）
	EventFundsWithdrawn    = "FUNDS_WITHDRAWN"    // 发起人提现
	EventRefundIssued      = "REFUND_ISSUED"      // 退款
	EventAdminTransferred  = "ADMIN_TRANSFERRED"  // 管理员变更
)

// OutboxMessage 事件通知先落库，由后台任务异步投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
