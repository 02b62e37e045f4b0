package models

import "encoding/json"

// GenerateRequest 表示一次简报生成请求
type GenerateRequest struct {
	Date              string   `json:"date"`
	SelectedKeys      []string `json:"selectedKeys"`
	Tone              string   `json:"tone"`
	CustomToneText    string   `json:"customToneText,omitempty"`
	CustomImagePrompt string   `json:"customImagePrompt,omitempty"`
	CustomHtmlPrompt  string   `json:"customHtmlPrompt,omitempty"`
	ImageModel        string   `json:"imageModel,omitempty"`
}

// SourceArticle 表示一篇已获取的源文章
type SourceArticle struct {
	Key  string `json:"key"`
	Body string `json:"body"`
}

// ToneProfile 表示一个命名的设计风格
type ToneProfile struct {
	Name    string `json:"toneName"`
	Details string `json:"toneDetails"`
}

// NewsletterContent 表示内容生成模型返回的简报文案
type NewsletterContent struct {
	NewsletterHeadline string          `json:"newsletter_headline"`
	SubjectLine        string          `json:"subject_line"`
	PreheaderText      string          `json:"preheader_text"`
	TopStories         []TopStory      `json:"top_stories"`
	SelectionReasoning json.RawMessage `json:"selection_reasoning,omitempty"`
}

// TopStory 表示简报中的一条头条故事
type TopStory struct {
	StoryNumber     int      `json:"story_number"`
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	SelectionReason string   `json:"selection_reason"`
	SourceFiles     []string `json:"source_files"`
	SourceLinks     []string `json:"source_links"`
	Markdown        string   `json:"markdown"`
}

// ImageArtifact 表示某条故事生成的配图
type ImageArtifact struct {
	StoryNumber int    `json:"storyNumber"`
	Prompt      string `json:"prompt"`
	URL         string `json:"url"`
	Tag         string `json:"tag"`
}

// Event 表示流式输出中的一个NDJSON对象
type Event map[string]interface{}
