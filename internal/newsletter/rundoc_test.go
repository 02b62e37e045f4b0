package newsletter

import (
	"strings"
	"testing"

	"lead-newsletter/internal/models"

	"github.com/go-playground/assert/v2"
)

func TestBuildRunDocument(t *testing.T) {
	rec := &RunRecord{
		RunID:      "run-20260114080000-abcd1234",
		Date:       "2026-01-14",
		Tone:       models.ToneProfile{Name: "Minimalist/Zen", Details: "airy and calm"},
		ImageModel: "dall-e-3",
		ContentPrompt:      "content prompt text",
		RawContentResponse: `{"newsletter_headline":"X"}`,
		Content: &models.NewsletterContent{
			NewsletterHeadline: "X",
			TopStories: []models.TopStory{
				{StoryNumber: 1, Title: "Story One", Markdown: "**Recap**: one"},
			},
		},
		Images: []models.ImageArtifact{
			{StoryNumber: 1, Prompt: "paint something", URL: "https://cdn.test/s1.png"},
		},
		HTMLPrompt:      "html prompt text",
		RawHTMLResponse: "raw html",
		CleanedHTML:     `<html><head><title>Daily Brief</title></head><body><img src="a"><img src="b"></body></html>`,
	}

	doc := BuildRunDocument(rec)

	assert.Equal(t, true, strings.Contains(doc, "# Newsletter Run run-20260114080000-abcd1234"))
	assert.Equal(t, true, strings.Contains(doc, "- Tone: Minimalist/Zen"))
	assert.Equal(t, true, strings.Contains(doc, "content prompt text"))
	assert.Equal(t, true, strings.Contains(doc, "https://cdn.test/s1.png"))
	assert.Equal(t, true, strings.Contains(doc, "paint something"))
	assert.Equal(t, true, strings.Contains(doc, "- Stories: 1"))
	// 统计信息来自最终HTML
	assert.Equal(t, true, strings.Contains(doc, "- Embedded images: 2"))
	assert.Equal(t, true, strings.Contains(doc, "- Document title: Daily Brief"))
}

func TestBuildRunDocument_NoImages(t *testing.T) {
	rec := &RunRecord{
		RunID:   "run-x",
		Content: &models.NewsletterContent{},
	}

	doc := BuildRunDocument(rec)

	assert.Equal(t, true, strings.Contains(doc, "(none)"))
	assert.Equal(t, true, strings.Contains(doc, "- Stories: 0"))
}

func TestRunDocObjectName(t *testing.T) {
	assert.Equal(t, "newsletters/run-x/run.md", RunDocObjectName("run-x"))
}
