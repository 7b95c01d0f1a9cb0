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

	"workout-mate-go/internal/config"
	"workout-mate-go/internal/handler"
	"workout-mate-go/internal/middleware"
	"workout-mate-go/internal/pipeline"
	"workout-mate-go/internal/repository"
	"workout-mate-go/internal/service"
	"workout-mate-go/pkg/database"
	"workout-mate-go/pkg/exercises"
	"workout-mate-go/pkg/kafka"
	"workout-mate-go/pkg/llm"
	"workout-mate-go/pkg/log"
	"workout-mate-go/pkg/storage"
	"workout-mate-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、MinIO 和 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepository := repository.NewUserRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB)
	equipmentRepo := repository.NewEquipmentRepository(cfg.Equipment.CSVPath)
	workoutLogRepo := repository.NewWorkoutLogRepository(cfg.WorkoutLog.Dir)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.LLM)
	exerciseClient := exercises.NewClient(cfg.ExerciseAPI)
	userService := service.NewUserService(userRepository, jwtManager)
	conversationService := service.NewConversationService(conversationRepo)
	chatService := service.NewChatService(llmClient, exerciseClient, equipmentRepo, conversationRepo)
	analysisService := service.NewAnalysisService(workoutLogRepo, llmClient)

	// 6. 初始化训练日志处理管道 (Processor)
	processor := pipeline.NewProcessor(workoutLogRepo)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
			}
		}

		// Equipment 路由组，需要认证
		equipment := apiV1.Group("/equipment")
		equipment.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			equipment.GET("", handler.NewEquipmentHandler(equipmentRepo).List)
			equipment.GET("/purpose", handler.NewEquipmentHandler(equipmentRepo).GetPurpose)
			// 重新加载器械目录，仅管理员
			equipment.POST("/reload", middleware.AdminMiddleware(), handler.NewEquipmentHandler(equipmentRepo).Reload)
		}

		// Workout 路由组，需要认证
		workouts := apiV1.Group("/workouts")
		workouts.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			workouts.POST("", handler.NewWorkoutHandler().LogWorkout)
		}

		// Analysis 路由组，需要认证
		analysis := apiV1.Group("/analysis")
		analysis.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			analysisHandler := handler.NewAnalysisHandler(analysisService)
			analysis.GET("/stats", analysisHandler.GetStats)
			analysis.GET("/charts", analysisHandler.GetCharts)
			analysis.GET("/history", analysisHandler.GetHistory)
			analysis.POST("/report", analysisHandler.GenerateReport)
			analysis.POST("/export", analysisHandler.ExportHistory)
		}

		// Conversation 路由组
		conversation := apiV1.Group("/users/conversation")
		conversation.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			conversation.GET("", handler.NewConversationHandler(conversationService).GetConversations)
		}

		// Chat 路由 (WebSocket)；停止令牌与连接处理共用同一个 handler 实例
		chatHandler := handler.NewChatHandler(chatService, userService, jwtManager)
		chatGroup := apiV1.Group("/chat")
		{
			chatGroup.GET("/websocket-token", chatHandler.GetWebsocketStopToken)
		}
		r.GET("/chat/:token", chatHandler.Handle)
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

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个循环，会在进程退出时自然结束；
	// 如需更精细的控制，可以在 StartConsumer 中实现一个关闭通道。
	log.Info("服务已优雅关闭")
}
