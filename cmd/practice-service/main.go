package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"practicelab/internal/common/cache"
	"practicelab/internal/common/db"
	commonmw "practicelab/internal/common/http/middleware"
	"practicelab/internal/common/storage"
	"practicelab/internal/practice/controller"
	"practicelab/internal/practice/fetcher"
	"practicelab/internal/practice/service"
	"practicelab/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/practice_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	datasetFetcher, closeFetcher, err := buildFetcher(appCfg.Fetch)
	if err != nil {
		logger.Error(context.Background(), "init dataset fetcher failed", zap.String("mode", appCfg.Fetch.Mode), zap.Error(err))
		return
	}
	defer closeFetcher()

	manager, err := service.NewManager(appCfg.Practice, datasetFetcher)
	if err != nil {
		logger.Error(context.Background(), "init session manager failed", zap.Error(err))
		return
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go manager.Run(shutdownCtx)

	httpServer := buildHTTPServer(appCfg.Server, manager)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "practice http server started",
			zap.String("addr", appCfg.Server.Addr), zap.String("fetch_mode", appCfg.Fetch.Mode))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	manager.Shutdown(ctx)
}

// buildFetcher returns the configured fetcher and a func releasing its
// connections.
func buildFetcher(cfg FetchConfig) (fetcher.Fetcher, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var f fetcher.Fetcher
	switch cfg.Mode {
	case FetchNone:
		return fetcher.Nop{}, func() {}, nil
	case FetchHTTP:
		h, err := fetcher.NewHTTP(cfg.HTTP)
		if err != nil {
			return nil, nil, err
		}
		f = h
	case FetchObject:
		store, err := storage.NewMinIOStorage(cfg.MinIO)
		if err != nil {
			return nil, nil, err
		}
		o, err := fetcher.NewObject(store, cfg.MinIO.Bucket, cfg.MinIO.Prefix)
		if err != nil {
			return nil, nil, err
		}
		f = o
	case FetchMySQL:
		mysqlDB, err := db.OpenMySQL(&cfg.MySQL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = mysqlDB.Close() })
		s, err := fetcher.NewSQL(mysqlDB)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		f = s
	default:
		return nil, nil, fmt.Errorf("unknown fetch mode %q", cfg.Mode)
	}

	if cfg.Redis.Addr == "" {
		return f, closeAll, nil
	}
	redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = redisCache.Close() })
	cached, err := fetcher.NewCached(f, redisCache, cfg.Cache)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return cached, closeAll, nil
}

func buildHTTPServer(cfg ServerConfig, manager *service.Manager) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	practiceController := controller.NewPracticeController(manager)
	router.GET("/healthz", practiceController.Health)
	practiceController.RegisterRoutes(router.Group("/api/v1/practice"))

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
