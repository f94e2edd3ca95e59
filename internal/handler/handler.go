package handler

import (
	"errors"
	"strconv"
	"time"

	"crowdfund/internal/config"
	"crowdfund/internal/repository"
	"crowdfund/internal/service"
	"crowdfund/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	campaignService  *service.CampaignService
	donateService    *service.DonateService
	lifecycleService *service.LifecycleService
	custodyService   *service.CustodyService
	adminService     *service.AdminService
	accountService   *service.AccountService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		campaignService:  service.NewCampaignService(db, cfg),
		donateService:    service.NewDonateService(db, rdb, cfg),
		lifecycleService: service.NewLifecycleService(db, rdb, cfg),
		custodyService:   service.NewCustodyService(db, rdb, cfg),
		adminService:     service.NewAdminService(db, cfg),
		accountService:   service.NewAccountService(db),
	}
}

// fail 把业务错误映射为响应码
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		response.ParamError(c, err.Error())
	case errors.Is(err, repository.ErrCampaignNotFound):
		response.BusinessError(c, response.CodeCampaignNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		response.BusinessError(c, response.CodeInvalidState, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		response.BusinessError(c, response.CodeUnauthorized, err.Error())
	case errors.Is(err, service.ErrAlreadyFinalized):
		response.BusinessError(c, response.CodeAlreadyFinalized, err.Error())
	case errors.Is(err, service.ErrTooEarly):
		response.BusinessError(c, response.CodeTooEarly, err.Error())
	case errors.Is(err, service.ErrNothingToRefund):
		response.BusinessError(c, response.CodeNothingToRefund, err.Error())
	case errors.Is(err, service.ErrTransferFailed):
		response.BusinessError(c, response.CodeTransferFailed, err.Error())
	case errors.Is(err, service.ErrSystemPaused):
		response.BusinessError(c, response.CodeSystemPaused, err.Error())
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	case errors.Is(err, repository.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 活动相关接口
// ============================================================

// CreateCampaignRequest 创建活动请求
type CreateCampaignRequest struct {
	OwnerID      int64  `json:"owner_id" binding:"required"`
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url"`
	TargetAmount int64  `json:"target_amount" binding:"required,gt=0"`
	Deadline     string `json:"deadline" binding:"required"` // RFC3339
}

// CreateCampaign 创建活动
// POST /api/v1/campaign/create
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	deadline, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		response.ParamError(c, "deadline 格式错误，需要 RFC3339")
		return
	}

	campaign, err := h.campaignService.CreateCampaign(c.Request.Context(), &service.CreateCampaignRequest{
		OwnerID:      req.OwnerID,
		Title:        req.Title,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		TargetAmount: req.TargetAmount,
		Deadline:     deadline,
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"campaign_id": campaign.ID,
		"state":       campaign.State,
	})
}

// GetCampaign 查询活动详情
// GET /api/v1/campaign/detail?id=xxx
func (h *Handler) GetCampaign(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	campaign, err := h.campaignService.GetCampaign(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, campaign)
}

// ListCampaigns 分页查询活动列表
// GET /api/v1/campaign/list?offset=0&limit=10
func (h *Handler) ListCampaigns(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	campaigns, total, err := h.campaignService.ListCampaigns(c.Request.Context(), offset, limit)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":   campaigns,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// ListDonations 分页查询活动捐赠明细
// GET /api/v1/campaign/donations?id=xxx&offset=0&limit=10
func (h *Handler) ListDonations(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	records, total, err := h.campaignService.ListDonations(c.Request.Context(), id, offset, limit)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":   records,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// GetContribution 查询出资人累计出资额
// GET /api/v1/campaign/contribution?id=xxx&donor_id=xxx
func (h *Handler) GetContribution(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}
	donorID, err := strconv.ParseInt(c.Query("donor_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "donor_id 参数错误")
		return
	}

	amount, err := h.campaignService.GetContribution(c.Request.Context(), id, donorID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"campaign_id": id,
		"donor_id":    donorID,
		"amount":      amount,
	})
}

// IsFinalized 查询活动是否已结算
// GET /api/v1/campaign/finalized?id=xxx
func (h *Handler) IsFinalized(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	finalized, err := h.campaignService.IsFinalized(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"campaign_id": id,
		"finalized":   finalized,
	})
}

// TotalBalance 查询平台托管资金总额
// GET /api/v1/ledger/balance
func (h *Handler) TotalBalance(c *gin.Context) {
	total, err := h.campaignService.TotalBalance(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"balance": total,
	})
}

// FinalizeCampaign 到期结算
// POST /api/v1/campaign/finalize
func (h *Handler) FinalizeCampaign(c *gin.Context) {
	var req struct {
		CampaignID int64 `json:"campaign_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.lifecycleService.Finalize(c.Request.Context(), req.CampaignID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 捐赠相关接口
// ============================================================

// DonateRequest 捐赠请求
type DonateRequest struct {
	RequestID  string `json:"request_id" binding:"required"` // 幂等ID，客户端生成
	CampaignID int64  `json:"campaign_id" binding:"required"`
	DonorID    int64  `json:"donor_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
}

// Donate 捐赠
// POST /api/v1/donate/execute
func (h *Handler) Donate(c *gin.Context) {
	var req DonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.donateService.Donate(c.Request.Context(), &service.DonateRequest{
		RequestID:  req.RequestID,
		CampaignID: req.CampaignID,
		DonorID:    req.DonorID,
		Amount:     req.Amount,
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 提现/退款相关接口
// ============================================================

// Withdraw 发起人提现
// POST /api/v1/withdraw/execute
func (h *Handler) Withdraw(c *gin.Context) {
	var req struct {
		CampaignID int64 `json:"campaign_id" binding:"required"`
		CallerID   int64 `json:"caller_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.custodyService.Withdraw(c.Request.Context(), req.CampaignID, req.CallerID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// ClaimRefund 出资人领取退款
// POST /api/v1/refund/claim
func (h *Handler) ClaimRefund(c *gin.Context) {
	var req struct {
		CampaignID int64 `json:"campaign_id" binding:"required"`
		CallerID   int64 `json:"caller_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.custodyService.ClaimRefund(c.Request.Context(), req.CampaignID, req.CallerID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// BatchRefund 管理员批量退款
// POST /api/v1/refund/batch
func (h *Handler) BatchRefund(c *gin.Context) {
	var req struct {
		CampaignID int64   `json:"campaign_id" binding:"required"`
		DonorIDs   []int64 `json:"donor_ids" binding:"required"`
		CallerID   int64   `json:"caller_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.custodyService.BatchRefund(c.Request.Context(), req.CampaignID, req.DonorIDs, req.CallerID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 账户相关接口
// ============================================================

// GetBalance 查询用户余额
// GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": account.UserID,
		"balance": account.Balance,
	})
}

// Recharge 充值接口（简化版，实际应该走支付渠道）
// POST /api/v1/account/recharge
func (h *Handler) Recharge(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
		Amount int64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.Recharge(c.Request.Context(), req.UserID, req.Amount); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "充值成功",
	})
}

// ============================================================
// 管理相关接口
// ============================================================

// SetFeeRate 设置手续费率
// POST /api/v1/admin/fee-rate
func (h *Handler) SetFeeRate(c *gin.Context) {
	var req struct {
		CallerID   int64 `json:"caller_id" binding:"required"`
		FeeRateBps int64 `json:"fee_rate_bps"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.adminService.SetFeeRate(c.Request.Context(), req.CallerID, req.FeeRateBps); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "费率已更新"})
}

// SetFeeRecipient 设置手续费收款人
// POST /api/v1/admin/fee-recipient
func (h *Handler) SetFeeRecipient(c *gin.Context) {
	var req struct {
		CallerID    int64 `json:"caller_id" binding:"required"`
		RecipientID int64 `json:"recipient_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.adminService.SetFeeRecipient(c.Request.Context(), req.CallerID, req.RecipientID); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "收款人已更新"})
}

// Pause 全局暂停
// POST /api/v1/admin/pause
func (h *Handler) Pause(c *gin.Context) {
	var req struct {
		CallerID int64 `json:"caller_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.adminService.Pause(c.Request.Context(), req.CallerID); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "系统已暂停"})
}

// Unpause 解除暂停
// POST /api/v1/admin/unpause
func (h *Handler) Unpause(c *gin.Context) {
	var req struct {
		CallerID int64 `json:"caller_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.adminService.Unpause(c.Request.Context(), req.CallerID); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "系统已恢复"})
}

// TransferAdmin 移交管理员
// POST /api/v1/admin/transfer
func (h *Handler) TransferAdmin(c *gin.Context) {
	var req struct {
		CallerID   int64 `json:"caller_id" binding:"required"`
		NewAdminID int64 `json:"new_admin_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.adminService.TransferAdmin(c.Request.Context(), req.CallerID, req.NewAdminID); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "管理员已移交"})
}
