package newsletter

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lead-newsletter/internal/ai"
	"lead-newsletter/internal/models"

	"github.com/go-playground/assert/v2"
)

type fakeStore struct {
	objects   map[string]string
	uploads   map[string][]byte
	uploadErr error
}

func (f *fakeStore) DownloadFile(ctx context.Context, objectName string) ([]byte, error) {
	if body, ok := f.objects[objectName]; ok {
		return []byte(body), nil
	}
	return nil, errors.New("对象不存在: " + objectName)
}

func (f *fakeStore) UploadFile(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[objectName] = data
	return "https://cdn.test/" + objectName, nil
}

type fakeGenerator struct {
	contentResp  string
	contentErr   error
	htmlResp     string
	htmlErr      error
	imageResults []*ai.ImageResult
	imageErr     error

	contentCalls int
	htmlCalls    int
	imageCalls   int
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	f.contentCalls++
	return f.contentResp, f.contentErr
}

func (f *fakeGenerator) GenerateHTML(ctx context.Context, prompt string) (string, error) {
	f.htmlCalls++
	return f.htmlResp, f.htmlErr
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, model string, prompt string) (*ai.ImageResult, error) {
	i := f.imageCalls
	f.imageCalls++
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	if i < len(f.imageResults) {
		return f.imageResults[i], nil
	}
	return &ai.ImageResult{}, nil
}

const twoStoryContent = `{
	"newsletter_headline": "Pipeline Signals Turn Positive",
	"subject_line": "Three shifts your pipeline cannot ignore",
	"preheader_text": "PLUS: the scoring trick nobody uses",
	"top_stories": [
		{"story_number": 1, "title": "Story One", "summary": "s1", "markdown": "**Recap**: one"},
		{"story_number": 2, "title": "Story Two", "summary": "s2", "markdown": "**Recap**: two"}
	]
}`

const fencedHTMLResp = "```html\n<html><head><title>Daily Brief</title></head><body>ok</body></html>\n```"

func testRequest() *models.GenerateRequest {
	return &models.GenerateRequest{
		Date:         "2026-01-14",
		SelectedKeys: []string{"2026-01-14/story1.md", "2026-01-14/story2.md"},
		Tone:         "Minimalist/Zen",
	}
}

func testStore() *fakeStore {
	return &fakeStore{objects: map[string]string{
		"2026-01-14/story1.md": "first article body",
		"2026-01-14/story2.md": "second article body",
	}}
}

func collectEvents(events *[]models.Event) EmitFunc {
	return func(ev models.Event) {
		*events = append(*events, ev)
	}
}

func checkpointNames(events []models.Event) []string {
	var names []string
	for _, ev := range events {
		if name, ok := ev["checkpoint"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

func TestExecute_CheckpointOrder(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("fake png bytes"))
	store := testStore()
	gen := &fakeGenerator{
		contentResp: twoStoryContent,
		htmlResp:    fencedHTMLResp,
		imageResults: []*ai.ImageResult{
			{B64: b64},
			{B64: b64},
		},
	}
	docDir := t.TempDir()
	p := New(store, gen, docDir)

	var events []models.Event
	runID, err := p.Execute(context.Background(), testRequest(), collectEvents(&events))

	assert.Equal(t, nil, err)
	assert.Equal(t, true, strings.HasPrefix(runID, "run-"))

	// 检查点顺序不可重排、不可重复
	assert.Equal(t, []string{
		CheckpointFilesFetched,
		CheckpointToneSelected,
		CheckpointContentSent,
		CheckpointContentResponse,
		CheckpointImagesGenerated,
		CheckpointHTMLSent,
	}, checkpointNames(events))

	// 最终事件同时携带html、runDoc和runId
	final := events[len(events)-1]
	assert.Equal(t, runID, final["runId"])
	assert.Equal(t, "<html><head><title>Daily Brief</title></head><body>ok</body></html>", final["html"])
	assert.Equal(t, true, strings.Contains(final["runDoc"].(string), runID))

	// 语气事件
	assert.Equal(t, "Minimalist/Zen", events[1]["toneName"])

	// 每条故事一张图，且已持久化到按运行和故事编号的路径
	assert.Equal(t, 2, gen.imageCalls)
	urls := events[4]["imageUrls"].([]string)
	assert.Equal(t, 2, len(urls))
	assert.Equal(t, "https://cdn.test/newsletters/"+runID+"/images/story-1.png", urls[0])
	assert.Equal(t, "https://cdn.test/newsletters/"+runID+"/images/story-2.png", urls[1])

	// 运行文档已上传并写入本地
	if _, ok := store.uploads[RunDocObjectName(runID)]; !ok {
		t.Fatal("运行文档未上传")
	}
	if _, err := os.Stat(filepath.Join(docDir, runID+".md")); err != nil {
		t.Fatalf("运行文档未写入本地: %v", err)
	}
}

func TestExecute_FetchErrorFatal(t *testing.T) {
	store := &fakeStore{objects: map[string]string{}}
	gen := &fakeGenerator{contentResp: twoStoryContent, htmlResp: fencedHTMLResp}
	p := New(store, gen, t.TempDir())

	var events []models.Event
	_, err := p.Execute(context.Background(), testRequest(), collectEvents(&events))

	// 缺失的key直接终止运行，不跳过、不重试
	if err == nil {
		t.Fatal("期望获取失败终止运行")
	}
	assert.Equal(t, 0, len(events))
	assert.Equal(t, 0, gen.contentCalls)
}

func TestExecute_ParseFailureFatal(t *testing.T) {
	store := testStore()
	gen := &fakeGenerator{contentResp: "not json", htmlResp: fencedHTMLResp}
	p := New(store, gen, t.TempDir())

	var events []models.Event
	_, err := p.Execute(context.Background(), testRequest(), collectEvents(&events))

	if err == nil {
		t.Fatal("期望解析失败终止运行")
	}

	// 解析失败后不再执行任何阶段
	assert.Equal(t, 0, gen.imageCalls)
	assert.Equal(t, 0, gen.htmlCalls)
	assert.Equal(t, []string{
		CheckpointFilesFetched,
		CheckpointToneSelected,
		CheckpointContentSent,
	}, checkpointNames(events))
}

func TestExecute_ImageFallbackNeverFatal(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("fake png bytes"))
	store := testStore()
	gen := &fakeGenerator{
		contentResp: twoStoryContent,
		htmlResp:    fencedHTMLResp,
		imageResults: []*ai.ImageResult{
			{}, // 既没有URL也没有base64
			{B64: b64},
		},
	}
	p := New(store, gen, t.TempDir())

	var events []models.Event
	_, err := p.Execute(context.Background(), testRequest(), collectEvents(&events))

	assert.Equal(t, nil, err)

	// 第一条故事降级为空结果，第二条仍正常处理
	tags := events[4]["imageTags"].([]string)
	urls := events[4]["imageUrls"].([]string)
	assert.Equal(t, 2, len(tags))
	assert.Equal(t, "", tags[0])
	assert.Equal(t, "", urls[0])
	assert.NotEqual(t, "", tags[1])
	assert.Equal(t, 2, gen.imageCalls)
}

func TestExecute_ImageAPIErrorNeverFatal(t *testing.T) {
	store := testStore()
	gen := &fakeGenerator{
		contentResp: twoStoryContent,
		htmlResp:    fencedHTMLResp,
		imageErr:    errors.New("rate limited"),
	}
	p := New(store, gen, t.TempDir())

	var events []models.Event
	_, err := p.Execute(context.Background(), testRequest(), collectEvents(&events))

	assert.Equal(t, nil, err)
	assert.Equal(t, 2, gen.imageCalls)
	assert.Equal(t, []string{"", ""}, events[4]["imageUrls"].([]string))
	assert.Equal(t, 1, gen.htmlCalls)
}

func TestExecute_PersistFailureKeepsOriginal(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("fake png bytes"))
	store := testStore()
	store.uploadErr = errors.New("存储只读")
	gen := &fakeGenerator{
		contentResp:  twoStoryContent,
		htmlResp:     fencedHTMLResp,
		imageResults: []*ai.ImageResult{{B64: b64}, {B64: b64}},
	}
	p := New(store, gen, t.TempDir())

	var events []models.Event
	_, err := p.Execute(context.Background(), testRequest(), collectEvents(&events))

	// 持久化失败不致命，保留模型返回的base64数据URI
	assert.Equal(t, nil, err)
	urls := events[4]["imageUrls"].([]string)
	assert.Equal(t, true, strings.HasPrefix(urls[0], "data:image/png;base64,"))
}

func TestExecute_PersistRewritesRemoteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote png bytes"))
	}))
	defer srv.Close()

	store := testStore()
	gen := &fakeGenerator{
		contentResp:  twoStoryContent,
		htmlResp:     fencedHTMLResp,
		imageResults: []*ai.ImageResult{{URL: srv.URL + "/img1.png"}, {URL: srv.URL + "/img2.png"}},
	}
	p := New(store, gen, t.TempDir())

	var events []models.Event
	runID, err := p.Execute(context.Background(), testRequest(), collectEvents(&events))

	assert.Equal(t, nil, err)
	urls := events[4]["imageUrls"].([]string)
	assert.Equal(t, "https://cdn.test/newsletters/"+runID+"/images/story-1.png", urls[0])
	assert.Equal(t, []byte("remote png bytes"), store.uploads["newsletters/"+runID+"/images/story-1.png"])
}

func TestExecute_EmptyTopStories(t *testing.T) {
	store := testStore()
	gen := &fakeGenerator{
		contentResp: `{"newsletter_headline":"X"}`,
		htmlResp:    fencedHTMLResp,
	}
	p := New(store, gen, t.TempDir())

	var events []models.Event
	_, err := p.Execute(context.Background(), testRequest(), collectEvents(&events))

	// top_stories缺失不终止运行：零次图片生成，空数组照常发出
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, gen.imageCalls)
	assert.Equal(t, 0, len(events[4]["imageUrls"].([]string)))
	assert.Equal(t, 0, len(events[4]["imageTags"].([]string)))
	assert.Equal(t, 1, gen.htmlCalls)
}

func TestExecute_CustomToneBlankFallsBack(t *testing.T) {
	store := testStore()
	gen := &fakeGenerator{contentResp: twoStoryContent, htmlResp: fencedHTMLResp}
	p := New(store, gen, t.TempDir())

	req := testRequest()
	req.Tone = "CUSTOM"
	req.CustomToneText = ""

	var events []models.Event
	_, err := p.Execute(context.Background(), req, collectEvents(&events))

	assert.Equal(t, nil, err)
	assert.Equal(t, "Professional/No-Nonsense", events[1]["toneName"])
}

func TestExecute_HTMLErrorFatal(t *testing.T) {
	store := testStore()
	gen := &fakeGenerator{
		contentResp: twoStoryContent,
		htmlErr:     errors.New("model unavailable"),
	}
	p := New(store, gen, t.TempDir())

	var events []models.Event
	_, err := p.Execute(context.Background(), testRequest(), collectEvents(&events))

	if err == nil {
		t.Fatal("期望HTML生成失败终止运行")
	}
	names := checkpointNames(events)
	assert.Equal(t, CheckpointHTMLSent, names[len(names)-1])
}
