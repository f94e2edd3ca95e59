package service

import (
	"errors"
)

// 业务错误口径，handler 层按 errors.Is 映射为响应码。
// 前置条件不满足时整个操作原子回滚，不留下部分变更
var (
	ErrInvalidArgument  = errors.New("参数不合法")
	ErrInvalidState     = errors.New("活动状态不允许该操作")
	ErrUnauthorized     = errors.New("无权执行该操作")
	ErrAlreadyFinalized = errors.New("活动已结算")
	ErrTooEarly         = errors.New("活动尚未到截止时间")
	ErrNothingToRefund  = errors.New("没有可退款的出资")
	ErrTransferFailed   = errors.New("转账失败")
	ErrSystemPaused     = errors.New("系统已暂停")
)
