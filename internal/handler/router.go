package handler

import (
	"crowdfund/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 活动相关
		campaign := api.Group("/campaign")
		{
			campaign.POST("/create", h.CreateCampaign)
			campaign.GET("/detail", h.GetCampaign)
			campaign.GET("/list", h.ListCampaigns)
			campaign.GET("/donations", h.ListDonations)
			campaign.GET("/contribution", h.GetContribution)
			campaign.GET("/finalized", h.IsFinalized)
			campaign.POST("/finalize", h.FinalizeCampaign)
		}

		// 捐赠相关
		donate := api.Group("/donate")
		{
			donate.POST("/execute", h.Donate)
		}

		// 提现相关
		withdraw := api.Group("/withdraw")
		{
			withdraw.POST("/execute", h.Withdraw)
		}

		// 退款相关
		refund := api.Group("/refund")
		{
			refund.POST("/claim", h.ClaimRefund)
			refund.POST("/batch", h.BatchRefund)
		}

		// 账户相关
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.POST("/recharge", h.Recharge)
		}

		// 托管资金总额
		api.GET("/ledger/balance", h.TotalBalance)

		// 管理相关
		admin := api.Group("/admin")
		{
			admin.POST("/fee-rate", h.SetFeeRate)
			admin.POST("/fee-recipient", h.SetFeeRecipient)
			admin.POST("/pause", h.Pause)
			admin.POST("/unpause", h.Unpause)
			admin.POST("/transfer", h.TransferAdmin)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
