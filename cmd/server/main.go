// Package main runs the clinical visit recorder HTTP server: PDF
// summarization, audio upload/playback, and live transcription sessions.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Priyankas007/appointment-recorder/config"
	"github.com/Priyankas007/appointment-recorder/internal/media"
	"github.com/Priyankas007/appointment-recorder/internal/middleware"
	"github.com/Priyankas007/appointment-recorder/internal/summarize"
	"github.com/Priyankas007/appointment-recorder/internal/transcribe"
	"github.com/Priyankas007/appointment-recorder/internal/visits"
	"github.com/Priyankas007/appointment-recorder/internal/worker"
	"github.com/Priyankas007/appointment-recorder/pkg/database"
	"github.com/Priyankas007/appointment-recorder/pkg/queue"
	"github.com/Priyankas007/appointment-recorder/pkg/redis"
	"github.com/Priyankas007/appointment-recorder/pkg/response"
	"github.com/Priyankas007/appointment-recorder/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	ctx := context.Background()

	// Optional S3 audio archive
	var s3Client *storage.S3
	if cfg.AWS.AudioBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AudioBucket:          cfg.AWS.AudioBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	// Optional visit archive (Postgres) and summary queue (Redis)
	var visitRepo *visits.Repository
	var visitHandler *visits.Handler
	if cfg.Database.URL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		visitRepo = visits.NewRepository(pool)
		visitHandler = visits.NewHandler(visitRepo, logger)
	}

	var jobQueue *queue.Queue
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		jobQueue = queue.NewQueue(rdb.Client, logger)
	}

	// Live transcription sessions
	registry := transcribe.NewRegistry(cfg.Transcribe, logger)
	if visitRepo != nil {
		archiver := visits.NewArchiver(visitRepo, jobQueue, logger)
		registry.SetEndedHook(archiver.SessionEnded)
	}
	transcribeHandler := transcribe.NewHandler(registry, logger)
	if cfg.Transcribe.StreamingConfigured() {
		logger.Info("streaming transcription configured", zap.String("endpoint", cfg.Transcribe.WSEndpoint))
	} else {
		logger.Info("no streaming credentials; sessions will run on the demo backend")
	}

	// PDF summarization
	summaryClient := summarize.NewClient(cfg.Summary.BaseURL, cfg.Summary.APIKey, cfg.Summary.Model, logger)
	summaryHandler := summarize.NewHandler(summaryClient, logger)

	// Audio upload/playback
	mediaStore, err := media.NewStore(cfg.Upload.AudioDir)
	if err != nil {
		logger.Fatal("media store", zap.Error(err))
	}
	mediaHandler := media.NewHandler(mediaStore, s3Client, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.MaxMultipartMemory = cfg.Upload.MaxUploadMB << 20

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// PDF summarization
	router.POST("/summarize", summaryHandler.Summarize)

	// Audio upload and playback
	router.POST("/upload-audio", mediaHandler.Upload)
	router.GET("/media/audio/:filename", mediaHandler.Serve)

	// Live transcription sessions
	router.POST("/transcribe/start", transcribeHandler.Start)
	router.POST("/transcribe/stream/:id", transcribeHandler.Stream)
	router.GET("/transcribe/poll/:id", transcribeHandler.Poll)
	router.GET("/transcribe/events/:id", transcribeHandler.Events)
	router.POST("/transcribe/end/:id", transcribeHandler.End)
	router.GET("/ws/transcribe", transcribe.ServeWs(registry, logger))

	// Archived visits
	if visitHandler != nil {
		router.GET("/visits", visitHandler.List)
		router.GET("/visits/:id", visitHandler.GetByID)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go registry.RunReaper(bgCtx)

	// In-process summary worker when both archive and queue are available
	if visitRepo != nil && jobQueue != nil {
		processor := worker.NewSummaryProcessor(visitRepo, summaryClient, jobQueue, logger)
		go processor.Run(bgCtx)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
