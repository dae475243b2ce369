package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dormdesk/backend/config"
	"dormdesk/backend/internal/api/handler"
	"dormdesk/backend/internal/api/router"
	"dormdesk/backend/internal/repository"
	"dormdesk/backend/internal/scheduler"
	"dormdesk/backend/internal/service"
	"dormdesk/backend/pkg/database"
	applogger "dormdesk/backend/pkg/logger"
	"dormdesk/backend/pkg/mailer"
	"dormdesk/backend/pkg/redis"
	"dormdesk/backend/pkg/token"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，令牌黑名单与限流功能将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 邮件投递器（未启用时为 nil，发信降级为只记日志）
	var mail mailer.Mailer
	var smtpMailer *mailer.SMTPMailer
	if cfg.Mail.Enabled {
		smtpMailer = mailer.NewSMTPMailer(&cfg.Mail, logger)
		mail = smtpMailer
	} else {
		logger.Info("邮件投递未启用")
	}

	// 6. 初始化令牌管理器
	tokenMgr := token.NewManager(&cfg.Auth)

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, tokenMgr, rdb, mail, logger)
	h := handler.NewHandler(svc)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, tokenMgr, rdb, repo, logger)

	// 9. 启动过期邀请清理调度
	var sched *scheduler.Scheduler
	if cfg.Sweep.Enabled {
		sched, err = scheduler.New(&cfg.Sweep, svc.Sweep, logger)
		if err != nil {
			logger.Fatal("初始化定时任务失败", zap.Error(err))
		}
		sched.Start()
	} else {
		logger.Info("过期邀请清理调度未启用")
	}

	// 10. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 停止定时任务
	if sched != nil {
		sched.Stop()
	}

	// 清空邮件队列后退出
	if smtpMailer != nil {
		smtpMailer.Close()
	}

	// 关闭数据库连接
	closeDB, _ := db.DB()
	if closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
