package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

func init() {
	// 加载.env文件
	if err := godotenv.Load(); err != nil {
		log.Printf("警告: 无法加载.env文件: %v", err)
	}
}

// Config 应用配置
type Config struct {
	Server     ServerConfig
	OpenAI     OpenAIConfig
	MinIO      MinIOConfig
	Newsletter NewsletterConfig
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string
	Env  string
}

// OpenAIConfig OpenAI配置
type OpenAIConfig struct {
	BaseURL          string
	APIKey           string
	ContentModel     string
	HTMLModel        string
	MaxContentTokens int
	MaxHTMLTokens    int
}

// MinIOConfig MinIO存储配置
type MinIOConfig struct {
	Endpoint        string
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
}

// NewsletterConfig 新闻简报生成配置
type NewsletterConfig struct {
	DefaultImageModel string
	RunDocDir         string
	DailyCronSpec     string
	DailyTone         string
}

// LoadConfig 从环境变量加载配置
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvOrDefault("APP_PORT", "3001"),
			Env:  getEnvOrDefault("APP_ENV", "production"),
		},
		OpenAI: OpenAIConfig{
			BaseURL:          getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:           getEnvOrDefault("OPENAI_API_KEY", ""),
			ContentModel:     getEnvOrDefault("OPENAI_CONTENT_MODEL", "gpt-4o"),
			HTMLModel:        getEnvOrDefault("OPENAI_HTML_MODEL", "gpt-4o"),
			MaxContentTokens: getEnvIntOrDefault("OPENAI_MAX_CONTENT_TOKENS", 4096),
			MaxHTMLTokens:    getEnvIntOrDefault("OPENAI_MAX_HTML_TOKENS", 16384),
		},
		MinIO: MinIOConfig{
			Endpoint:        getEnvOrDefault("NEWSLETTER_BUCKET_URL", "http://localhost:9000"),
			BucketName:      getEnvOrDefault("NEWSLETTER_BUCKET_NAME", "lead-newsletter"),
			AccessKeyID:     getEnvOrDefault("MINIO_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnvOrDefault("MINIO_SECRET_KEY", "minioadmin"),
		},
		Newsletter: NewsletterConfig{
			DefaultImageModel: getEnvOrDefault("NEWSLETTER_IMAGE_MODEL", "dall-e-3"),
			RunDocDir:         getEnvOrDefault("NEWSLETTER_RUNDOC_DIR", "./rundocs"),
			DailyCronSpec:     getEnvOrDefault("NEWSLETTER_DAILY_CRON", "0 0 7 * * *"),
			DailyTone:         getEnvOrDefault("NEWSLETTER_DAILY_TONE", "Professional/No-Nonsense"),
		},
	}
}

// getEnvOrDefault 获取环境变量或默认值
func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvIntOrDefault 获取环境变量(整数)或默认值
func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}
