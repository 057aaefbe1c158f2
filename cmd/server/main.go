// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docsage-go/internal/chunker"
	"docsage-go/internal/config"
	"docsage-go/internal/detector"
	"docsage-go/internal/handler"
	"docsage-go/internal/memory"
	"docsage-go/internal/middleware"
	"docsage-go/internal/pipeline"
	"docsage-go/internal/prompt"
	"docsage-go/internal/repository"
	"docsage-go/internal/service"
	"docsage-go/pkg/database"
	"docsage-go/pkg/embedding"
	"docsage-go/pkg/es"
	"docsage-go/pkg/kafka"
	"docsage-go/pkg/llm"
	"docsage-go/pkg/log"
	"docsage-go/pkg/perf"
	"docsage-go/pkg/storage"
)

func main() {
	// 1. 加载并校验配置
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化基础设施
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	archive, err := storage.NewArchive(cfg.MinIO)
	if err != nil {
		log.Fatal("初始化 MinIO 失败", err)
	}
	index, err := es.Open(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatal("初始化 Elasticsearch 向量索引失败", err)
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository 与会话记忆
	docRepo := repository.NewDocumentRepository(database.DB)
	conversationStore := repository.NewConversationStore(database.RDB)
	sessions := memory.NewManager(cfg.Memory.MaxHistory, conversationStore)

	// 5. 初始化核心组件与 Service (依赖注入)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	genreDetector := detector.New()
	adaptiveChunker, err := chunker.New(chunker.Options{
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
		MaxKeywords:  cfg.Chunking.MaxKeywords,
	})
	if err != nil {
		log.Fatal("初始化分块器失败", err)
	}
	selector := prompt.NewSelector()
	monitor := perf.NewMonitor(0)

	ingestService := service.NewIngestService(
		genreDetector, adaptiveChunker, embeddingClient, index, docRepo,
		archive, kafka.ProduceIngestTask, cfg.Ingest,
	)
	retrievalService := service.NewRetrievalService(
		embeddingClient, index, selector, llmClient, sessions, monitor, cfg.Retrieval,
	)
	statusService := service.NewStatusService(docRepo, index, monitor)

	// 6. 启动后台 Kafka 消费者处理异步入库任务
	processor := pipeline.NewProcessor(archive, ingestService)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 6.1 初始化导入 seedfiles 目录下的文本文档（幂等，已导入则跳过）
	seedCtx, cancelSeed := context.WithCancel(context.Background())
	defer cancelSeed()
	go ingestSeedFiles(seedCtx, "seedfiles", ingestService, docRepo)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		ingestHandler := handler.NewIngestHandler(ingestService)
		documents := apiV1.Group("/documents")
		{
			documents.POST("", ingestHandler.Ingest)
			documents.POST("/batch", ingestHandler.IngestBatch)
			documents.GET("", handler.NewDocumentHandler(docRepo).List)
			documents.GET("/:id", handler.NewDocumentHandler(docRepo).Get)
		}

		apiV1.POST("/query", handler.NewQueryHandler(retrievalService).Query)
		apiV1.GET("/conversations/:session_id", handler.NewConversationHandler(sessions).History)
		apiV1.GET("/status", handler.NewStatusHandler(statusService).Status)
	}
	r.GET("/ws/chat", handler.NewChatHandler(retrievalService).Handle)

	// 9. 启动 HTTP 服务器并实现优雅停机
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// 初始化导入只认这些纯文本后缀，其余文件跳过。
var seedExtensions = map[string]bool{".txt": true, ".md": true}

// ingestSeedFiles 扫描目录下的文本文件并逐个入库（幂等）。
// 文档 ID 由文件名确定性派生，重复启动不会产生重复文档。
func ingestSeedFiles(ctx context.Context, dir string, ingestSvc service.IngestService, docRepo repository.DocumentRepository) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("ingestSeedFiles: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !seedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		fileName := info.Name()
		documentID := uuid.NewMD5(uuid.NameSpaceOID, []byte(fileName)).String()

		// 幂等检查：已入库则跳过
		if doc, err := docRepo.GetDocument(ctx, documentID); err == nil && doc != nil {
			log.Infof("ingestSeedFiles: 已存在，跳过: %s", fileName)
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("ingestSeedFiles: 读取文件失败: %s, err=%v", path, err)
			return nil
		}

		result, err := ingestSvc.IngestAs(ctx, documentID, fileName, string(content))
		if err != nil {
			log.Warnf("ingestSeedFiles: 入库失败: %s, err=%v", fileName, err)
			return nil
		}
		log.Infof("ingestSeedFiles: 导入完成: %s, genre=%s, chunks=%d", fileName, result.Genre, result.ChunkCount)
		return nil
	})
	if walkErr != nil {
		log.Warnf("ingestSeedFiles: 遍历目录发生错误: %v", walkErr)
	}
}
