package newsletter

import (
	"encoding/json"
	"fmt"
	"lead-newsletter/internal/models"
	"strings"
)

// StripCodeFence 去掉模型响应外层的markdown代码围栏
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```html") {
		s = strings.TrimPrefix(s, "```html")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}

	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(s[:len(s)-3])
	}

	return s
}

// ParseContentResponse 解析内容生成模型的原始响应
//
// 解析失败对整个运行是致命的，不做重试也不做部分提取；
// 模型响应缺失的字段保持零值（top_stories缺失即空列表）。
func ParseContentResponse(raw string) (*models.NewsletterContent, error) {
	cleaned := StripCodeFence(raw)

	var content models.NewsletterContent
	if err := json.Unmarshal([]byte(cleaned), &content); err != nil {
		return nil, fmt.Errorf("解析内容JSON失败: %w", err)
	}

	return &content, nil
}

// CleanHTML 清理HTML生成模型的原始响应
//
// 去掉首尾围栏，并截断最后一个</html>之后的所有内容，
// 防止模型在有效标记后追加说明文字。不做任何HTML校验。
func CleanHTML(raw string) string {
	s := StripCodeFence(raw)

	if idx := strings.LastIndex(s, "</html>"); idx != -1 {
		s = s[:idx+len("</html>")]
	}

	return s
}
