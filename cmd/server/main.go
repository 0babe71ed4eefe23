// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"tutorverse-go/internal/agent"
	"tutorverse-go/internal/config"
	"tutorverse-go/internal/handler"
	"tutorverse-go/internal/middleware"
	"tutorverse-go/internal/model"
	"tutorverse-go/internal/pipeline"
	"tutorverse-go/internal/repository"
	"tutorverse-go/internal/service"
	"tutorverse-go/internal/tools"
	"tutorverse-go/pkg/database"
	"tutorverse-go/pkg/kafka"
	"tutorverse-go/pkg/llm"
	"tutorverse-go/pkg/log"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")
	if cfg.LLM.APIKey == "" {
		log.Warnf("未配置 LLM API Key，请设置环境变量 %s_LLM_API_KEY", config.EnvPrefix)
	}

	// 3. 初始化 Redis 和可选的 MySQL
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	defer database.RDB.Close()

	healthChecks := map[string]handler.Pinger{
		"redis": func(ctx context.Context) error { return database.RDB.Ping(ctx).Err() },
	}

	var turnRepo repository.TurnRepository
	var processor *pipeline.Processor
	if cfg.Database.MySQL.Enabled {
		database.InitMySQL(cfg.Database.MySQL.DSN, &model.TurnRecord{})
		defer database.CloseMySQL()
		turnRepo = repository.NewTurnRepository(database.DB)
		processor = pipeline.NewProcessor(turnRepo)
		healthChecks["mysql"] = func(ctx context.Context) error {
			sqlDB, err := database.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	// 4. 问答记录：启用 Kafka 时异步投递，否则直接写库
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	var recorder service.TurnRecorder
	switch {
	case cfg.Kafka.Enabled:
		kafka.InitProducer(cfg.Kafka)
		recorder = kafka.Publisher{}
		if processor != nil {
			go kafka.StartConsumer(consumerCtx, cfg.Kafka, database.RDB, processor)
		} else {
			log.Warnf("Kafka 已启用但 MySQL 未启用，本实例不消费问答记录")
		}
	case processor != nil:
		recorder = processor
	}

	// 5. 初始化 LLM 客户端、工具和 Agent
	llmClient := llm.NewClient(cfg.LLM)
	registry := tools.NewBuiltinRegistry()
	tutorService := service.NewTutorService(
		agent.NewClassifier(llmClient),
		agent.NewMathAgent(llmClient, registry, cfg.LLM.MaxToolRounds),
		agent.NewPhysicsAgent(llmClient, registry, cfg.LLM.MaxToolRounds),
		agent.NewGeneralAgent(llmClient),
		recorder,
		cfg.Tutor,
	)

	// 6. 初始化会话
	conversationRepo := repository.NewConversationRepository(database.RDB, cfg.Conversation.TTL)
	conversationService := service.NewConversationService(conversationRepo, tutorService, cfg.Conversation)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger("/chat/"), middleware.CORS(cfg.Server.AllowedOrigins), gin.Recovery())

	// 8. 注册路由
	r.GET("/healthz", handler.NewHealthHandler(healthChecks).Health)
	r.GET("/chat/:sessionId", handler.NewChatHandler(conversationService).Handle)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/tutor/query", handler.NewTutorHandler(tutorService).Query)

		conversations := apiV1.Group("/conversations")
		{
			conversationHandler := handler.NewConversationHandler(conversationService)
			conversations.POST("", conversationHandler.Create)
			conversations.GET("/:sessionId", conversationHandler.Get)
			conversations.POST("/:sessionId/messages", conversationHandler.Submit)
			conversations.DELETE("/:sessionId", conversationHandler.Reset)
		}

		// 问答流水只在启用 MySQL 时提供
		if turnRepo != nil {
			turns := apiV1.Group("/turns")
			turnHandler := handler.NewTurnHandler(turnRepo)
			turns.GET("/recent", turnHandler.Recent)
			turns.GET("/stats", turnHandler.Stats)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	stopConsumer()
	if err := kafka.Close(); err != nil {
		log.Errorf("关闭 Kafka 生产者失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
