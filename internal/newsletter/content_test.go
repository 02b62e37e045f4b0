package newsletter

import (
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"无围栏", `{"a":1}`, `{"a":1}`},
		{"json围栏", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"裸围栏", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"只有前围栏", "```json\n{\"a\":1}", `{"a":1}`},
		{"前后空白", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripCodeFence(tc.in))
		})
	}
}

func TestParseContentResponse_Fenced(t *testing.T) {
	content, err := ParseContentResponse("```json\n{\"newsletter_headline\":\"X\"}\n```")

	assert.Equal(t, nil, err)
	assert.Equal(t, "X", content.NewsletterHeadline)
	// 缺失的top_stories是空列表，不是错误
	assert.Equal(t, 0, len(content.TopStories))
}

func TestParseContentResponse_Invalid(t *testing.T) {
	content, err := ParseContentResponse("not json")

	if err == nil {
		t.Fatal("期望解析失败")
	}
	assert.Equal(t, true, content == nil)
}

func TestParseContentResponse_Full(t *testing.T) {
	raw := `{
		"newsletter_headline": "Pipeline Signals Turn Positive",
		"subject_line": "Three shifts your pipeline cannot ignore",
		"preheader_text": "PLUS: the ICP scoring trick nobody uses",
		"top_stories": [
			{
				"story_number": 1,
				"title": "Story One",
				"summary": "One sentence.",
				"selection_reason": "strongest numbers",
				"source_files": ["2026-01-14/a.md"],
				"source_links": ["https://example.com/a"],
				"markdown": "**Recap**: one"
			}
		],
		"selection_reasoning": {"rejected": [{"title": "Meh", "reason": "no numbers"}]}
	}`

	content, err := ParseContentResponse(raw)

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(content.TopStories))
	assert.Equal(t, "Story One", content.TopStories[0].Title)
	assert.Equal(t, []string{"2026-01-14/a.md"}, content.TopStories[0].SourceFiles)
	// selection_reasoning原样透传
	assert.Equal(t, true, strings.Contains(string(content.SelectionReasoning), "no numbers"))
}

func TestCleanHTML_FencesAndTrailingText(t *testing.T) {
	raw := "```html\n<html><body>hi</body></html>\nSure! Here is a summary of what I did.\n```"

	got := CleanHTML(raw)

	assert.Equal(t, "<html><body>hi</body></html>", got)
}

func TestCleanHTML_TruncatesAfterLastCloseTag(t *testing.T) {
	raw := "<!DOCTYPE html>\n<html><body>x</body></html>\n\nNote: adjust colors as needed."

	got := CleanHTML(raw)

	assert.Equal(t, true, strings.HasPrefix(got, "<!DOCTYPE html>"))
	assert.Equal(t, true, strings.HasSuffix(got, "</html>"))
	assert.Equal(t, false, strings.Contains(got, "Note:"))
}

func TestCleanHTML_NoCloseTagPassesThrough(t *testing.T) {
	assert.Equal(t, "<div>x</div>", CleanHTML("<div>x</div>"))
}
