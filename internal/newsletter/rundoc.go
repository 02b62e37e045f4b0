package newsletter

import (
	"context"
	"encoding/json"
	"fmt"
	"lead-newsletter/internal/models"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RunRecord 是一次运行的完整审计数据
type RunRecord struct {
	RunID              string
	Date               string
	Tone               models.ToneProfile
	ImageModel         string
	ContentPrompt      string
	RawContentResponse string
	Content            *models.NewsletterContent
	Images             []models.ImageArtifact
	HTMLPrompt         string
	RawHTMLResponse    string
	CleanedHTML        string
}

// BuildRunDocument 把运行记录渲染为一份markdown审计文档
func BuildRunDocument(rec *RunRecord) string {
	var sb strings.Builder

	sb.WriteString("# Newsletter Run " + rec.RunID + "\n\n")
	sb.WriteString("- Date: " + rec.Date + "\n")
	sb.WriteString("- Tone: " + rec.Tone.Name + "\n")
	sb.WriteString("- Image model: " + rec.ImageModel + "\n\n")

	sb.WriteString("## Tone Details\n\n" + rec.Tone.Details + "\n\n")

	sb.WriteString("## Content Prompt\n\n")
	sb.WriteString(codeBlock(rec.ContentPrompt))
	sb.WriteString("## Raw Content Response\n\n")
	sb.WriteString(codeBlock(rec.RawContentResponse))

	sb.WriteString("## Parsed Content\n\n")
	if parsed, err := json.MarshalIndent(rec.Content, "", "  "); err == nil {
		sb.WriteString(codeBlock(string(parsed)))
	}

	sb.WriteString("## Story Images\n\n")
	if len(rec.Images) == 0 {
		sb.WriteString("(none)\n\n")
	}
	for _, img := range rec.Images {
		sb.WriteString(fmt.Sprintf("### Story %d\n\n", img.StoryNumber))
		sb.WriteString("- URL: " + img.URL + "\n\n")
		sb.WriteString("Prompt:\n\n")
		sb.WriteString(codeBlock(img.Prompt))
	}

	sb.WriteString("## HTML Prompt\n\n")
	sb.WriteString(codeBlock(rec.HTMLPrompt))
	sb.WriteString("## Raw HTML Response\n\n")
	sb.WriteString(codeBlock(rec.RawHTMLResponse))
	sb.WriteString("## Final HTML\n\n")
	sb.WriteString(codeBlock(rec.CleanedHTML))

	// 可追溯性统计
	title, imgCount := htmlStats(rec.CleanedHTML)
	sb.WriteString("## Stats\n\n")
	sb.WriteString(fmt.Sprintf("- Stories: %d\n", len(rec.Content.TopStories)))
	sb.WriteString(fmt.Sprintf("- Content prompt chars: %d\n", len(rec.ContentPrompt)))
	sb.WriteString(fmt.Sprintf("- Raw content response chars: %d\n", len(rec.RawContentResponse)))
	sb.WriteString(fmt.Sprintf("- HTML prompt chars: %d\n", len(rec.HTMLPrompt)))
	sb.WriteString(fmt.Sprintf("- Final HTML chars: %d\n", len(rec.CleanedHTML)))
	sb.WriteString(fmt.Sprintf("- Embedded images: %d\n", imgCount))
	if title != "" {
		sb.WriteString("- Document title: " + title + "\n")
	}

	return sb.String()
}

// codeBlock 把文本包进markdown代码块
func codeBlock(text string) string {
	return "```\n" + text + "\n```\n\n"
}

// htmlStats 从最终HTML中提取文档标题和内嵌图片数量
func htmlStats(cleanedHTML string) (string, int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleanedHTML))
	if err != nil {
		return "", 0
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return title, doc.Find("img").Length()
}

// RunDocObjectName 返回运行文档在对象存储中的键
func RunDocObjectName(runID string) string {
	return "newsletters/" + runID + "/run.md"
}

// saveRunDocument 保存运行文档
//
// 本地写入和对象存储上传都是尽力而为的，失败只记录日志，
// 不影响流式输出中携带的runDoc内容。
func (p *Pipeline) saveRunDocument(ctx context.Context, runID string, doc string) {
	if p.docDir != "" {
		if err := os.MkdirAll(p.docDir, 0755); err != nil {
			log.Printf("创建运行文档目录失败: %v", err)
		} else {
			path := filepath.Join(p.docDir, runID+".md")
			if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
				log.Printf("写入运行文档失败: %v", err)
			} else {
				log.Printf("运行文档已写入 %s", path)
			}
		}
	}

	if _, err := p.store.UploadFile(ctx, RunDocObjectName(runID), []byte(doc), "text/markdown"); err != nil {
		log.Printf("上传运行文档失败: %v", err)
	}
}
