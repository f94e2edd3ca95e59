package model

import (
	"time"
)

// ============================================================================
// 资金流水类型常量
// ============================================================================

const (
	TransferTypeRecharge = "RECHARGE" // 充值
	TransferTypeDonate   = "DONATE"   // 捐赠（从出资人账户扣款，进入活动托管）
	TransferTypeWithdraw = "WITHDRAW" // 提现（托管资金结算给发起人）
	TransferTypeFee      = "FEE"      // 平台手续费
	TransferTypeRefund   = "REFUND"   // 退款（托管资金退回出资人）
)

// ============================================================================
// 资金流水实体
// ============================================================================

// FundTransfer 资金流水表
// 记录托管资金的每一笔进出，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 每笔流水必须关联活动ID —— 便于按活动对账
// 3. 记录交易前后余额 —— 便于校验账户余额一致性
type FundTransfer struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransferNo    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transfer_no"` // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`                            // 资金进出的用户ID
	CampaignID    int64     `gorm:"index;not null" json:"campaign_id"`                        // 关联活动ID（充值为0）
	Amount        int64     `gorm:"not null" json:"amount"`                                   // 金额（正数入账，负数出账）
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`                    // 流水类型
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`                           // 交易前账户余额
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`                            // 交易后账户余额
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`                          // 备注
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (FundTransfer) TableName() string {
	return "fund_transfer"
}
