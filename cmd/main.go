package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/config"
	"github.com/lvdashuaibi/votely/internal/api/graph"
	"github.com/lvdashuaibi/votely/internal/api/rest"
	"github.com/lvdashuaibi/votely/internal/auth"
	intkafka "github.com/lvdashuaibi/votely/internal/kafka"
	"github.com/lvdashuaibi/votely/internal/lock"
	"github.com/lvdashuaibi/votely/internal/logger"
	"github.com/lvdashuaibi/votely/internal/realtime"
	"github.com/lvdashuaibi/votely/internal/repository"
	"github.com/lvdashuaibi/votely/internal/service"
)

const SchemaLockName = "votely:schema:migrate:lock"

var (
	configPath = flag.String("config", "config/config.yaml", "配置文件路径")
	instanceID = flag.Int("instance", 1, "实例ID，用于区分多个实例")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zl.Sync()
	zl = zl.With(zap.Int("instance", *instanceID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("服务异常退出", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// MySQL
	mysqlRepo, err := repository.NewMySQLRepository(ctx, cfg.MySQL, logger)
	if err != nil {
		return fmt.Errorf("初始化MySQL仓库失败: %w", err)
	}
	defer mysqlRepo.Close()

	// 多实例同时启动时只允许一个实例建表
	distributedLock, err := lock.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("初始化分布式锁失败: %w", err)
	}
	defer distributedLock.Close()

	if err := lock.WithLock(ctx, distributedLock, SchemaLockName, cfg.Lock, logger, mysqlRepo.EnsureSchema); err != nil {
		return fmt.Errorf("初始化数据库表失败: %w", err)
	}
	logger.Info("数据库表已就绪")

	// Redis
	redisClient := repository.NewRedisClient(cfg.Redis)
	redisRepo, err := repository.NewRedisRepository(ctx, redisClient)
	if err != nil {
		return fmt.Errorf("初始化Redis仓库失败: %w", err)
	}
	defer redisRepo.Close()

	// 实时推送
	registry := realtime.NewRegistry(nil)
	hub := realtime.NewHub(registry, logger)
	var publisher realtime.Publisher = hub
	if cfg.Redis.RelayChannel != "" {
		relay := realtime.NewRedisRelay(redisClient, cfg.Redis.RelayChannel, hub, logger)
		publisher = relay
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("跨实例广播中断", zap.Error(err))
			}
		}()
	}
	broadcaster := realtime.NewBroadcaster(publisher, logger)

	// 服务
	tally := service.NewTallyEngine(mysqlRepo, redisRepo, cfg.Results.CacheTTL, logger)
	elections := service.NewElectionService(mysqlRepo, tally, logger)

	var sink service.EventSink
	if cfg.Kafka.Enabled {
		producer := intkafka.NewProducer(cfg.Kafka, logger)
		defer producer.Close()
		sink = producer

		auditor := service.NewTallyAuditor(mysqlRepo, logger)
		consumer := intkafka.NewConsumer(cfg.Kafka, logger)
		consumer.Start(auditor.ProcessVoteEvent)
		defer consumer.Stop()
	}
	votes := service.NewVoteService(mysqlRepo, tally, broadcaster, sink, logger)

	// HTTP
	tokens := auth.NewTokenManager(cfg.Auth)
	users := service.NewUserService(mysqlRepo, tokens, cfg.Auth, logger)
	authenticator := auth.NewAuthenticator(tokens, mysqlRepo)
	gqlServer := graph.NewGraphQLServer(votes, elections, tally, logger)
	wsHandler := realtime.NewHandler(registry, authenticator.FromRequest, cfg.Realtime, logger)

	gin.SetMode(cfg.Server.Mode)
	router := rest.NewRouter(rest.RouterConfig{
		Handlers:     rest.NewHandlers(votes, elections, users, tally, logger),
		Auth:         authenticator,
		Realtime:     wsHandler,
		RealtimePath: cfg.Realtime.Path,
		GraphQL:      gqlServer.Handler(),
		GraphQLPath:  cfg.GraphQL.Path,
		Logger:       logger,
	})

	// 计算端口，支持多实例
	port := cfg.Server.Port + *instanceID - 1
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Votely 服务已启动", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP服务启动失败: %w", err)
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP服务关闭超时", zap.Error(err))
	}
	return nil
}

