package api

import (
	"context"
	"encoding/json"
	"lead-newsletter/config"
	"lead-newsletter/internal/ai"
	"lead-newsletter/internal/models"
	"lead-newsletter/internal/newsletter"
	"lead-newsletter/internal/storage"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ObjectStore 是处理器依赖的对象存储能力
type ObjectStore interface {
	ListFiles(ctx context.Context, prefix string) ([]string, error)
	DownloadFile(ctx context.Context, objectName string) ([]byte, error)
	DeleteFile(ctx context.Context, objectName string) error
}

// PipelineRunner 是处理器依赖的生成管道能力
type PipelineRunner interface {
	Execute(ctx context.Context, req *models.GenerateRequest, emit newsletter.EmitFunc) (string, error)
}

// Server 是API服务器结构
type Server struct {
	config        *config.Config
	router        *gin.Engine
	store         ObjectStore
	pipeline      PipelineRunner
	isProcessing  bool
	lastRunID     string
	lastProcessed time.Time
}

// NewServer 创建一个新的API服务器
func NewServer(cfg *config.Config) (*Server, error) {
	// 创建MinIO客户端
	minioClient, err := storage.NewMinioClient(&cfg.MinIO)
	if err != nil {
		return nil, err
	}

	// 创建AI客户端和生成管道
	aiClient := ai.NewClient(&cfg.OpenAI)
	pipeline := newsletter.New(minioClient, aiClient, cfg.Newsletter.RunDocDir)

	return newServer(cfg, minioClient, pipeline), nil
}

// newServer 用给定的依赖组装服务器，测试时注入假实现
func newServer(cfg *config.Config, store ObjectStore, pipeline PipelineRunner) *Server {
	router := gin.Default()

	// 启用CORS
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	server := &Server{
		config:   cfg,
		router:   router,
		store:    store,
		pipeline: pipeline,
	}

	server.registerRoutes()

	return server
}

// registerRoutes 注册API路由
func (s *Server) registerRoutes() {
	// 健康检查
	s.router.GET("/health", s.healthHandler)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// 生成简报（NDJSON流式输出）
		v1.POST("/newsletter/generate", s.generateHandler)

		// 按日期列出可选的源文章
		v1.GET("/articles", s.listArticlesHandler)

		// 获取运行文档
		v1.GET("/newsletter/runs/:id", s.getRunHandler)

		// 删除一次运行的所有产物
		v1.DELETE("/newsletter/runs/:id", s.deleteRunHandler)

		// 获取处理状态
		v1.GET("/status", s.getStatusHandler)

		// 列出预定义语气
		v1.GET("/tones", s.listTonesHandler)
	}
}

// Run 启动API服务器
func (s *Server) Run() error {
	return s.router.Run(":" + s.config.Server.Port)
}

// healthHandler 健康检查处理程序
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// generateHandler 生成简报，以application/x-ndjson流式返回检查点事件
func (s *Server) generateHandler(c *gin.Context) {
	// 配置错误在任何运行开始前拦截
	if s.config.OpenAI.APIKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "未配置OPENAI_API_KEY",
		})
		return
	}

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的请求参数",
		})
		return
	}

	// 必填字段校验，不打开流
	if req.Date == "" || len(req.SelectedKeys) == 0 || req.Tone == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "date、selectedKeys和tone为必填字段",
		})
		return
	}

	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)

	emit := func(ev models.Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("序列化事件失败: %v", err)
			return
		}
		c.Writer.Write(data)
		c.Writer.Write([]byte("\n"))
		c.Writer.Flush()
	}

	s.isProcessing = true
	defer func() {
		s.isProcessing = false
		s.lastProcessed = time.Now()
	}()

	runID, err := s.pipeline.Execute(c.Request.Context(), &req, emit)
	if err != nil {
		// 运行级错误在这里统一转换为单个终止性事件
		log.Printf("运行 %s 失败: %v", runID, err)
		emit(models.Event{"error": err.Error()})
		return
	}
	s.lastRunID = runID
}

// listArticlesHandler 列出指定日期前缀下的源文章key
func (s *Server) listArticlesHandler(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	keys, err := s.store.ListFiles(c.Request.Context(), date+"/")
	if err != nil {
		log.Printf("列出文章失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "列出文章失败",
		})
		return
	}
	if keys == nil {
		keys = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"date": date,
		"keys": keys,
	})
}

// getRunHandler 获取一次运行的审计文档
func (s *Server) getRunHandler(c *gin.Context) {
	runID := c.Param("id")

	data, err := s.store.DownloadFile(c.Request.Context(), newsletter.RunDocObjectName(runID))
	if err != nil {
		log.Printf("获取运行文档失败: %v", err)
		c.JSON(http.StatusNotFound, gin.H{
			"error": "运行文档不存在",
		})
		return
	}

	c.Data(http.StatusOK, "text/markdown; charset=utf-8", data)
}

// deleteRunHandler 删除一次运行的所有产物（运行文档和配图）
func (s *Server) deleteRunHandler(c *gin.Context) {
	runID := c.Param("id")
	prefix := "newsletters/" + runID + "/"

	ctx := c.Request.Context()
	keys, err := s.store.ListFiles(ctx, prefix)
	if err != nil {
		log.Printf("列出运行产物失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "列出运行产物失败",
		})
		return
	}

	deleted := 0
	for _, key := range keys {
		if err := s.store.DeleteFile(ctx, key); err != nil {
			log.Printf("删除 %s 失败: %v", key, err)
			// 继续删除其余产物
			continue
		}
		deleted++
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "运行产物删除完成",
		"runId":   runID,
		"deleted": deleted,
	})
}

// getStatusHandler 获取处理状态
func (s *Server) getStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"isProcessing":  s.isProcessing,
		"lastRunId":     s.lastRunID,
		"lastProcessed": s.lastProcessed.Format(time.RFC3339),
	})
}

// listTonesHandler 列出预定义语气名称
func (s *Server) listTonesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tones":   ai.ToneNames(),
		"default": ai.DefaultToneName,
	})
}

// RunDailyDraft 生成当日草稿，供定时任务调用
//
// 列出当日前缀下的全部文章并用默认配置执行管道，事件只记日志。
func (s *Server) RunDailyDraft(date string) {
	ctx := context.Background()

	keys, err := s.store.ListFiles(ctx, date+"/")
	if err != nil {
		log.Printf("定时任务列出文章失败: %v", err)
		return
	}
	if len(keys) == 0 {
		log.Printf("日期 %s 没有可用的源文章，跳过定时生成", date)
		return
	}

	req := &models.GenerateRequest{
		Date:         date,
		SelectedKeys: keys,
		Tone:         s.config.Newsletter.DailyTone,
		ImageModel:   s.config.Newsletter.DefaultImageModel,
	}

	s.isProcessing = true
	defer func() {
		s.isProcessing = false
		s.lastProcessed = time.Now()
	}()

	runID, err := s.pipeline.Execute(ctx, req, func(ev models.Event) {
		if name, ok := ev["checkpoint"]; ok {
			log.Printf("定时生成检查点: %v", name)
		}
	})
	if err != nil {
		log.Printf("定时生成运行 %s 失败: %v", runID, err)
		return
	}
	s.lastRunID = runID
	log.Printf("定时生成完成，运行: %s", runID)
}
