package ai

import (
	"fmt"
	"lead-newsletter/internal/models"
	"strings"
	"time"
)

// 语气档案相关常量
const (
	DefaultToneName = "Professional/No-Nonsense"
	ToneCustom      = "CUSTOM"
)

// toneTable 是进程级只读的语气档案表，条目在运行期不会变化
var toneTable = map[string]string{
	"Professional/No-Nonsense": "Clean corporate design. White background, navy and charcoal text, a single restrained accent color. Clear hierarchy, compact spacing, no decorative flourishes. Reads like a briefing from a trusted analyst.",
	"Minimalist/Zen":           "Generous whitespace and a calm, airy layout. Light gray background, thin divider lines, muted sage or stone accents. Small refined typography, no heavy borders, no loud buttons. Everything breathes.",
	"Bold/Disruptive":          "High contrast and high energy. Black or deep ink background sections, oversized headlines, electric accent colors (lime, magenta or cyan). Thick rules, punchy buttons, confident uppercase labels.",
	"Warm/Community":           "Friendly and human. Cream or soft beige background, rounded corners, warm terracotta and amber accents. Conversational typography with comfortable line height, feels like a letter from a colleague.",
	"Data-Driven/Analyst":      "Dense, information-forward layout. White background with slate blue accents, monospace touches for numbers, subtle table borders and small-caps section labels. Charts-and-figures aesthetic without actual charts.",
}

// ResolveTone 解析语气选择
//
// CUSTOM且自定义文本非空时按原文合成；未识别的名称回退到默认语气，永不失败。
func ResolveTone(name string, customText string) models.ToneProfile {
	if name == ToneCustom {
		if text := strings.TrimSpace(customText); text != "" {
			return models.ToneProfile{Name: ToneCustom, Details: text}
		}
	}

	if details, ok := toneTable[name]; ok {
		return models.ToneProfile{Name: name, Details: details}
	}

	return models.ToneProfile{Name: DefaultToneName, Details: toneTable[DefaultToneName]}
}

// ToneNames 返回所有预定义的语气名称
func ToneNames() []string {
	names := make([]string, 0, len(toneTable))
	for name := range toneTable {
		names = append(names, name)
	}
	return names
}

const (
	storyBorder = "=================================================="
	storyRule   = "--------------------------------------------------"
)

// FormatArticles 将源文章渲染为定宽边框文本块并按输入顺序拼接
func FormatArticles(items []models.SourceArticle) string {
	var sb strings.Builder
	for i, item := range items {
		sb.WriteString(storyBorder + "\n")
		sb.WriteString(fmt.Sprintf("STORY %d\n", i+1))
		sb.WriteString(storyRule + "\n")
		sb.WriteString("Title: " + item.Key + "\n")
		sb.WriteString("Source: " + item.Key + "\n\n")
		sb.WriteString(item.Body + "\n")
		sb.WriteString(storyRule + "\n\n")
	}
	return sb.String()
}

// ReplaceTokens 对模板做字面量{{token}}白名单替换
//
// 不是模板引擎：没有条件和循环，未知token原样保留。
func ReplaceTokens(template string, vars map[string]string) string {
	result := template
	for name, value := range vars {
		result = strings.ReplaceAll(result, "{{"+name+"}}", value)
	}
	return result
}

// FormatLongDate 将YYYY-MM-DD格式化为长日期，解析失败时原样返回
func FormatLongDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}

// contentPromptPreamble 是内容生成提示词的固定前导部分
const contentPromptPreamble = `You are the senior editor of a daily B2B lead-generation newsletter read by sales and marketing operators. You will be given today's source articles. Select the strongest stories and write the copy for today's edition.

SOURCE ARTICLES:

`

// contentPromptPostamble 描述模型必须返回的JSON结构，下游解析依赖这份契约
const contentPromptPostamble = `
INSTRUCTIONS:

1. Read every source article above in full.
2. Select the 3 strongest stories for a B2B sales and marketing audience. Prefer stories with concrete numbers, named companies, and insight an operator can act on this week.
3. Write the newsletter copy exactly as specified below.

Respond with ONLY a JSON object, no surrounding text, in exactly this shape:

{
  "newsletter_headline": "5-8 words, punchy, no trailing punctuation",
  "subject_line": "7-9 words, written as an email subject",
  "preheader_text": "at most 20 words and it MUST start with the word PLUS:",
  "top_stories": [
    {
      "story_number": 1,
      "title": "story title",
      "summary": "one sentence summary",
      "selection_reason": "why this story made the cut",
      "source_files": ["identifiers of the source articles used"],
      "source_links": ["external links referenced by those sources"],
      "markdown": "the full story section in markdown, structure below"
    }
  ],
  "selection_reasoning": {
    "rejected": [
      { "title": "candidate story title", "reason": "one line on why it was not selected" }
    ]
  }
}

RULES:
- "top_stories" MUST contain exactly 3 entries ordered strongest first, numbered 1 to 3.
- Every "markdown" section MUST follow this exact structure:
  **Recap**: one short paragraph recapping the story.
  **Unpacked**: exactly 3 bullet points with the key details.
  **Bottom line**: exactly 2 sentences on why this matters to the reader.
- "selection_reasoning.rejected" MUST enumerate every candidate story you did not select.
- Do not wrap the JSON in markdown code fences.
- Do not invent facts that are not present in the source articles.
`

// BuildContentPrompt 拼接固定前导、已格式化的文章和固定后导
func BuildContentPrompt(formattedArticles string) string {
	return contentPromptPreamble + formattedArticles + contentPromptPostamble
}

// DefaultImagePromptTemplate 是内置的配图提示词模板
const DefaultImagePromptTemplate = `Editorial section header illustration for a business newsletter story titled "{{title}}". Story summary: {{summary}}. Wide banner composition, clean modern flat vector style, muted navy and warm amber palette, generous negative space. Absolutely no text, no letters, no numbers, no watermarks, no logos in the image.`

// BuildImagePrompt 构建某条故事的配图提示词
func BuildImagePrompt(story models.TopStory, customTemplate string) string {
	template := customTemplate
	if strings.TrimSpace(template) == "" {
		template = DefaultImagePromptTemplate
	}

	return ReplaceTokens(template, map[string]string{
		"title":   story.Title,
		"summary": story.Summary,
	})
}

// HTMLPromptInput 是HTML组装提示词的全部变量
type HTMLPromptInput struct {
	Date            string
	Headline        string
	SubjectLine     string
	Preheader       string
	StoriesMarkdown string
	ImageTags       string
	ToneName        string
	ToneDetails     string
	CustomTemplate  string
}

// defaultHTMLPromptTemplate 是内置的HTML组装提示词
const defaultHTMLPromptTemplate = `You are an expert email developer. Build the complete HTML email for today's edition of a B2B lead-generation newsletter.

Newsletter date: {{date}}
Headline: {{headline}}
Subject line: {{subjectLine}}
Preheader: {{preheader}}

STORY SECTIONS (markdown, separated by <<<STORY>>>):
{{storiesMarkdown}}

SECTION IMAGES (use each tag exactly once, in order, one per story section; skip gracefully if there are fewer tags than stories):
{{imageTags}}

DESIGN TONE: {{toneName}}
{{toneDetails}}

REQUIREMENTS:
- Output one complete HTML document, starting with <!DOCTYPE html> and ending with </html>.
- Use table-based layout with inline CSS only. Maximum content width 600px. Must render in Outlook, Gmail and Apple Mail.
- Render each markdown story section into styled HTML, preserving the Recap / Unpacked / Bottom line structure.
- Put the preheader as hidden preview text at the very top of the body.
- Show the headline prominently at the top, the long-form date under it, and a simple footer with an unsubscribe placeholder link.
- Respond with ONLY the HTML document. No explanations, no markdown code fences, no text after the closing html tag.`

// BuildHTMLPrompt 构建HTML组装提示词
//
// 提供自定义模板时完全绕过内置提示词，所有变量通过字面量{{varName}}替换。
func BuildHTMLPrompt(input HTMLPromptInput) string {
	template := input.CustomTemplate
	if strings.TrimSpace(template) == "" {
		template = defaultHTMLPromptTemplate
	}

	return ReplaceTokens(template, map[string]string{
		"date":            FormatLongDate(input.Date),
		"headline":        input.Headline,
		"subjectLine":     input.SubjectLine,
		"preheader":       input.Preheader,
		"storiesMarkdown": input.StoriesMarkdown,
		"imageTags":       input.ImageTags,
		"toneName":        input.ToneName,
		"toneDetails":     input.ToneDetails,
	})
}
