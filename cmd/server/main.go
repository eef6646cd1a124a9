package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "bookmarker/docs"
	"bookmarker/internal/config"
	"bookmarker/internal/handler"
	"bookmarker/internal/repository"
	"bookmarker/internal/service"
	"bookmarker/internal/shortcode"
	"bookmarker/pkg/database"
	auth "bookmarker/pkg/jwt"
	"bookmarker/pkg/logger"
	"bookmarker/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// @title           Bookmarker API
// @version         1.0
// @description     书签服务：用户注册登录、书签管理、3 位短码重定向与访问统计
// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "配置加载失败:", err)
		os.Exit(1)
	}

	zapLogger := logger.InitLogger(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer func() {
		if err := zapLogger.Sync(); err != nil {
			fmt.Println("日志同步失败:", err)
		}
	}()
	sugaredLogger := zap.S()

	db, err := database.Open(database.Options{
		Driver:   cfg.Database.Driver,
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		Charset:  cfg.Database.Charset,
		LogLevel: gormlogger.Warn,
	})
	if err != nil {
		sugaredLogger.Fatalf("数据库初始化失败: %v", err)
	}
	sugaredLogger.Infow("✅ 数据库连接并迁移成功", "driver", cfg.Database.Driver)

	// 缓存可选，未配置或连接失败时重定向直接查库
	var linkCache service.LinkCache
	rdb, err := redis.NewClient(context.Background(), redis.Options{
		Host:        cfg.Cache.Host,
		Port:        cfg.Cache.Port,
		Password:    cfg.Cache.Password,
		DB:          cfg.Cache.DB,
		PoolSize:    cfg.Cache.PoolSize,
		DialTimeout: time.Duration(cfg.Cache.DialTimeout) * time.Second,
	})
	switch {
	case err != nil:
		sugaredLogger.Warnf("缓存连接失败: %v", err)
	case rdb != nil:
		defer func() {
			if err := rdb.Close(); err != nil {
				sugaredLogger.Errorf("关闭 Redis 连接失败: %v", err)
			}
		}()
		linkCache = redis.NewLinkCache(rdb, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
		sugaredLogger.Info("✅ 缓存连接成功")
	}

	generator := shortcode.NewGenerator(repository.NewShortCodeStore(db), cfg.Bookmarks.CodeMaxAttempts, sugaredLogger)
	if err := generator.Seed(context.Background()); err != nil {
		sugaredLogger.Fatalf("短码生成器初始化失败: %v", err)
	}
	sugaredLogger.Info("✅ 短码生成器已就绪")

	tokenManager := auth.NewManager(
		cfg.Auth.Secret,
		cfg.Auth.Issuer,
		time.Duration(cfg.Auth.ExpirationHours)*time.Hour,
		time.Duration(cfg.Auth.RefreshExpireHours)*time.Hour,
	)

	bookmarkService := service.NewBookmarkService(
		repository.NewBookmarkRepository(db, generator, cfg.Bookmarks.InsertMaxRetries),
		linkCache,
		service.BookmarkOptions{
			DefaultPerPage: cfg.Bookmarks.DefaultPerPage,
			MaxPerPage:     cfg.Bookmarks.MaxPerPage,
		},
		sugaredLogger,
	)
	authService := service.NewAuthService(repository.NewUserRepository(db), tokenManager, sugaredLogger)

	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	// 进程级开关：请求体出现未声明字段时绑定失败
	binding.EnableDecoderDisallowUnknownFields = true

	router := handler.NewEngine(zapLogger, &cfg.RateLimit)
	handler.RegisterRoutes(
		router,
		handler.NewBookmarkHandler(bookmarkService),
		handler.NewAuthHandler(authService),
		tokenManager,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		sugaredLogger.Infof("🚀 服务启动成功, 访问 http://localhost:%d", cfg.Server.Port)
		sugaredLogger.Infof("📚 Swagger 文档地址: http://localhost:%d/swagger/index.html", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugaredLogger.Fatalf("服务启动失败: %v", err)
		}
	}()

	<-ctx.Done()
	sugaredLogger.Info("收到退出信号，正在关闭服务")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sugaredLogger.Errorf("服务关闭失败: %v", err)
	}
}
