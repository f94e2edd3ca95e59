package model

import (
	"time"
)

const (
	// SettingID 平台配置固定单行
	SettingID = 1
	// MaxFeeRateBps 手续费率上限（万分之一为单位，1000 = 10%）
	MaxFeeRateBps = 1000
)

// PlatformSetting 平台配置表（单行）
// 管理员身份、手续费配置、暂停开关都收敛到这一条记录，
// 变更走显式的管理操作，不使用进程内全局可变状态
type PlatformSetting struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	AdminUserID    int64     `gorm:"not null" json:"admin_user_id"`          // 管理员用户ID
	FeeRateBps     int64     `gorm:"not null;default:0" json:"fee_rate_bps"` // 手续费率（基点）
	FeeRecipientID int64     `gorm:"not null;default:0" json:"fee_recipient_id"` // 手续费收款用户ID，0 表示未配置
	Paused         bool      `gorm:"not null;default:false" json:"paused"`   // 全局暂停开关
	Version        int       `gorm:"not null;default:0" json:"version"`      // 乐观锁版本号
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PlatformSetting) TableName() string {
	return "platform_setting"
}

// FeeFor 按当前费率计算手续费，整数除法向下取整；
// 费率为0或未配置收款人时不收费
func (s *PlatformSetting) FeeFor(amount int64) int64 {
	if s.FeeRateBps == 0 || s.FeeRecipientID == 0 {
		return 0
	}
	return amount * s.FeeRateBps / 10000
}
