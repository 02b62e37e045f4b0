package newsletter

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"lead-newsletter/internal/ai"
	"lead-newsletter/internal/models"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 流式输出的检查点名称，按管道顺序排列
const (
	CheckpointFilesFetched    = "files_fetched"
	CheckpointToneSelected    = "tone_selected"
	CheckpointContentSent     = "ai_content_sent"
	CheckpointContentResponse = "ai_content_response"
	CheckpointImagesGenerated = "images_generated"
	CheckpointHTMLSent        = "final_html_sent"
)

// storySeparator 用于在HTML提示词中分隔各故事的markdown段
const storySeparator = "\n<<<STORY>>>\n"

// ObjectStore 是管道依赖的对象存储能力
type ObjectStore interface {
	DownloadFile(ctx context.Context, objectName string) ([]byte, error)
	UploadFile(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// Generator 是管道依赖的AI生成能力
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	GenerateHTML(ctx context.Context, prompt string) (string, error)
	GenerateImage(ctx context.Context, model string, prompt string) (*ai.ImageResult, error)
}

// EmitFunc 接收一个流式事件
type EmitFunc func(models.Event)

// Pipeline 是简报生成管道
//
// 单次运行内严格顺序执行，检查点按管道顺序发出；
// 多个运行之间没有共享可变状态，可并发执行。
type Pipeline struct {
	store      ObjectStore
	gen        Generator
	httpClient *http.Client
	docDir     string
}

// New 创建一个新的简报生成管道
func New(store ObjectStore, gen Generator, docDir string) *Pipeline {
	return &Pipeline{
		store:      store,
		gen:        gen,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		docDir:     docDir,
	}
}

// newRunID 生成运行标识，时间戳加短uuid后缀
func newRunID() string {
	return fmt.Sprintf("run-%s-%s", time.Now().Format("20060102150405"), uuid.NewString()[:8])
}

// Execute 执行一次完整的生成运行
//
// 检查点事件通过emit按完成顺序发出，最后一个事件携带html、runDoc和runId。
// 返回的错误由调用方转换为终止性error事件，已发出的检查点不会回滚。
func (p *Pipeline) Execute(ctx context.Context, req *models.GenerateRequest, emit EmitFunc) (string, error) {
	runID := newRunID()
	log.Printf("开始生成简报，运行: %s，日期: %s，文章数: %d", runID, req.Date, len(req.SelectedKeys))

	// 步骤1: 加载源文章，任何一个key获取失败都终止整个运行
	articles := make([]models.SourceArticle, 0, len(req.SelectedKeys))
	for _, key := range req.SelectedKeys {
		data, err := p.store.DownloadFile(ctx, key)
		if err != nil {
			return runID, fmt.Errorf("获取文章 %s 失败: %w", key, err)
		}
		articles = append(articles, models.SourceArticle{Key: key, Body: string(data)})
	}
	emit(models.Event{
		"checkpoint": CheckpointFilesFetched,
		"fileCount":  len(articles),
		"files":      req.SelectedKeys,
	})

	// 步骤2: 解析语气，永不失败
	tone := ai.ResolveTone(req.Tone, req.CustomToneText)
	emit(models.Event{
		"checkpoint":  CheckpointToneSelected,
		"toneName":    tone.Name,
		"toneDetails": tone.Details,
	})

	// 步骤3: 生成简报文案
	contentPrompt := ai.BuildContentPrompt(ai.FormatArticles(articles))
	emit(models.Event{
		"checkpoint":  CheckpointContentSent,
		"promptChars": len(contentPrompt),
	})

	rawContent, err := p.gen.GenerateContent(ctx, contentPrompt)
	if err != nil {
		return runID, err
	}

	content, err := ParseContentResponse(rawContent)
	if err != nil {
		return runID, err
	}
	emit(models.Event{
		"checkpoint": CheckpointContentResponse,
		"content":    content,
	})

	if len(content.TopStories) == 0 {
		// 不终止运行，后续图片循环和故事区块会是空的
		log.Printf("警告: 运行 %s 的内容响应中没有top_stories", runID)
	}

	// 步骤4: 逐条生成配图，单条失败不影响其他故事
	imageModel := ai.NormalizeImageModel(req.ImageModel)
	artifacts := p.generateImages(ctx, runID, imageModel, req.CustomImagePrompt, content.TopStories)

	imageURLs := make([]string, 0, len(artifacts))
	imageTags := make([]string, 0, len(artifacts))
	imagePrompts := make([]string, 0, len(artifacts))
	for _, art := range artifacts {
		imageURLs = append(imageURLs, art.URL)
		imageTags = append(imageTags, art.Tag)
		imagePrompts = append(imagePrompts, art.Prompt)
	}
	emit(models.Event{
		"checkpoint":   CheckpointImagesGenerated,
		"imageUrls":    imageURLs,
		"imageTags":    imageTags,
		"imagePrompts": imagePrompts,
	})

	// 步骤5: 组装最终HTML
	var markdownSections []string
	for _, story := range content.TopStories {
		markdownSections = append(markdownSections, story.Markdown)
	}
	var usableTags []string
	for _, tag := range imageTags {
		if tag != "" {
			usableTags = append(usableTags, tag)
		}
	}

	htmlPrompt := ai.BuildHTMLPrompt(ai.HTMLPromptInput{
		Date:            req.Date,
		Headline:        content.NewsletterHeadline,
		SubjectLine:     content.SubjectLine,
		Preheader:       content.PreheaderText,
		StoriesMarkdown: strings.Join(markdownSections, storySeparator),
		ImageTags:       strings.Join(usableTags, "\n"),
		ToneName:        tone.Name,
		ToneDetails:     tone.Details,
		CustomTemplate:  req.CustomHtmlPrompt,
	})
	emit(models.Event{
		"checkpoint":  CheckpointHTMLSent,
		"promptChars": len(htmlPrompt),
	})

	rawHTML, err := p.gen.GenerateHTML(ctx, htmlPrompt)
	if err != nil {
		return runID, err
	}
	cleanedHTML := CleanHTML(rawHTML)

	// 生成并保存运行文档，保存是尽力而为的
	runDoc := BuildRunDocument(&RunRecord{
		RunID:              runID,
		Date:               req.Date,
		Tone:               tone,
		ImageModel:         imageModel,
		ContentPrompt:      contentPrompt,
		RawContentResponse: rawContent,
		Content:            content,
		Images:             artifacts,
		HTMLPrompt:         htmlPrompt,
		RawHTMLResponse:    rawHTML,
		CleanedHTML:        cleanedHTML,
	})
	p.saveRunDocument(ctx, runID, runDoc)

	emit(models.Event{
		"html":   cleanedHTML,
		"runDoc": runDoc,
		"runId":  runID,
	})

	log.Printf("简报生成完成，运行: %s", runID)
	return runID, nil
}

// generateImages 按顺序为每条故事生成配图
//
// 严格串行执行，保证检查点顺序确定并且对图片API限流友好。
// 任何一条的失败都只记录为空结果，绝不抛出。
func (p *Pipeline) generateImages(ctx context.Context, runID string, model string, customTemplate string, stories []models.TopStory) []models.ImageArtifact {
	artifacts := make([]models.ImageArtifact, 0, len(stories))

	for i, story := range stories {
		art := models.ImageArtifact{
			StoryNumber: i + 1,
			Prompt:      ai.BuildImagePrompt(story, customTemplate),
		}

		result, err := p.gen.GenerateImage(ctx, model, art.Prompt)
		if err != nil {
			log.Printf("故事 %d 配图生成失败: %v", i+1, err)
			artifacts = append(artifacts, art)
			continue
		}

		switch {
		case result.URL != "":
			art.URL = result.URL
		case result.B64 != "":
			art.URL = "data:image/png;base64," + result.B64
		default:
			log.Printf("故事 %d 的配图响应中既没有URL也没有base64数据", i+1)
			artifacts = append(artifacts, art)
			continue
		}

		// 尽力持久化到对象存储，失败时保留模型返回的原始URL
		if finalURL, ok := p.persistImage(ctx, runID, i+1, result); ok {
			art.URL = finalURL
		}

		art.Tag = fmt.Sprintf(`<img src=%q alt=%q style="width:100%%;display:block;border:0;">`,
			art.URL, html.EscapeString(story.Title))
		artifacts = append(artifacts, art)
	}

	return artifacts
}

// persistImage 尝试把配图字节上传到对象存储
//
// 返回(url, true)表示持久化成功；返回("", false)表示放弃，
// 调用方保留之前的URL。这条路径上的任何错误都不是致命的。
func (p *Pipeline) persistImage(ctx context.Context, runID string, storyNumber int, result *ai.ImageResult) (string, bool) {
	var data []byte

	if result.B64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(result.B64)
		if err != nil {
			log.Printf("解码故事 %d 的base64图片失败: %v", storyNumber, err)
			return "", false
		}
		data = decoded
	} else {
		downloaded, err := p.downloadImage(ctx, result.URL)
		if err != nil {
			log.Printf("下载故事 %d 的图片失败: %v", storyNumber, err)
			return "", false
		}
		data = downloaded
	}

	objectName := fmt.Sprintf("newsletters/%s/images/story-%d.png", runID, storyNumber)
	url, err := p.store.UploadFile(ctx, objectName, data, "image/png")
	if err != nil {
		log.Printf("上传故事 %d 的图片失败: %v", storyNumber, err)
		return "", false
	}

	return url, true
}

// downloadImage 下载模型返回的图片
func (p *Pipeline) downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载图片失败，状态码: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
