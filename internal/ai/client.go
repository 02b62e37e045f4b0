package ai

import (
	"context"
	"fmt"
	"lead-newsletter/config"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"
)

// 支持的图片生成模型
const (
	ImageModelDallE3    = "dall-e-3"
	ImageModelGPTImage1 = "gpt-image-1"
)

// NormalizeImageModel 校验图片模型标识，未识别时回退到dall-e-3
func NormalizeImageModel(model string) string {
	switch model {
	case ImageModelDallE3, ImageModelGPTImage1:
		return model
	default:
		return ImageModelDallE3
	}
}

// ImageResult 表示图片生成的原始结果，URL和B64最多只有一个非空
type ImageResult struct {
	URL string
	B64 string
}

// Client 是AI接口的客户端
type Client struct {
	client *openai.Client
	config *config.OpenAIConfig
}

// NewClient 创建一个新的AI客户端
func NewClient(cfg *config.OpenAIConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// GenerateContent 生成简报文案，要求模型返回JSON
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return c.generateText(ctx, c.config.ContentModel, prompt, c.config.MaxContentTokens, 2*time.Minute)
}

// GenerateHTML 生成最终的HTML邮件，输出token预算较大
func (c *Client) GenerateHTML(ctx context.Context, prompt string) (string, error) {
	return c.generateText(ctx, c.config.HTMLModel, prompt, c.config.MaxHTMLTokens, 5*time.Minute)
}

// generateText 发送单条消息的AI请求并获取生成的文本，不做重试
func (c *Client) generateText(ctx context.Context, model string, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	log.Printf("生成AI内容，模型: %s，提示词长度: %d", model, len(prompt))

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(timeoutCtx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("生成AI内容失败: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("AI响应中没有内容")
	}

	log.Printf("AI内容生成成功，使用tokens: %d", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage 生成一张配图
//
// 两个模型要求的请求参数不同：dall-e-3返回URL格式、1792x1024标准质量；
// gpt-image-1只返回base64、1536x1024高质量，且不允许设置response_format。
func (c *Client) GenerateImage(ctx context.Context, model string, prompt string) (*ImageResult, error) {
	log.Printf("生成配图，模型: %s", model)

	var req openai.ImageRequest
	switch NormalizeImageModel(model) {
	case ImageModelGPTImage1:
		req = openai.ImageRequest{
			Model:   openai.CreateImageModelGptImage1,
			Prompt:  prompt,
			Size:    openai.CreateImageSize1536x1024,
			Quality: openai.CreateImageQualityHigh,
			N:       1,
		}
	default:
		req = openai.ImageRequest{
			Model:          openai.CreateImageModelDallE3,
			Prompt:         prompt,
			Size:           openai.CreateImageSize1792x1024,
			Quality:        openai.CreateImageQualityStandard,
			ResponseFormat: openai.CreateImageResponseFormatURL,
			N:              1,
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	resp, err := c.client.CreateImage(timeoutCtx, req)
	if err != nil {
		return nil, fmt.Errorf("生成配图失败: %w", err)
	}

	if len(resp.Data) == 0 {
		return &ImageResult{}, nil
	}

	return &ImageResult{
		URL: resp.Data[0].URL,
		B64: resp.Data[0].B64JSON,
	}, nil
}
