package server

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/stretchr/testify/require"

	"github.com/valluvarai/valluvarai/internal/history"
	"github.com/valluvarai/valluvarai/internal/kural"
	"github.com/valluvarai/valluvarai/internal/pipeline"
	"github.com/valluvarai/valluvarai/internal/pipeline/artifact"
)

type fakeGenerator struct {
	outcome pipeline.Outcome
	err     error
	lastReq pipeline.GenerationRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req pipeline.GenerationRequest) (pipeline.Outcome, error) {
	f.lastReq = req
	return f.outcome, f.err
}

func (f *fakeGenerator) Search(keyword string) (kural.Verse, bool) {
	if keyword == "forgiveness" {
		return kural.Verse{ID: 152, ChapterEnglish: "Forgiveness"}, true
	}
	return kural.Verse{}, false
}

type fakeLog struct {
	appended []pipeline.Outcome
	records  []history.Record
}

func (f *fakeLog) Append(_ context.Context, _ string, outcome pipeline.Outcome) error {
	f.appended = append(f.appended, outcome)
	return nil
}

func (f *fakeLog) Recent(_ context.Context, limit int) ([]history.Record, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func newExpect(t *testing.T, generator Generator, log GenerationLog) *httpexpect.Expect {
	t.Helper()
	handler := NewHandler(generator, log, nil, nil)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return httpexpect.Default(t, srv.URL)
}

func completedOutcome() pipeline.Outcome {
	story := artifact.StoryResult{TextEnglish: "a story", Source: artifact.SourceProvider}
	return pipeline.Outcome{
		State: pipeline.StateCompleted,
		Verse: kural.Verse{ID: 152},
		Story: &story,
		Statuses: []artifact.StageStatus{
			{Stage: artifact.StageStory, State: artifact.StageSucceeded},
		},
	}
}

func TestGenerateEndpointReturnsOutcome(t *testing.T) {
	gen := &fakeGenerator{outcome: completedOutcome()}
	log := &fakeLog{}
	e := newExpect(t, gen, log)

	obj := e.POST("/generate").
		WithJSON(map[string]any{"keyword": "forgiveness", "include_images": false}).
		Expect().
		Status(200).
		JSON().Object()

	obj.HasValue("state", "completed")
	obj.Value("verse").Object().HasValue("id", 152)
	obj.Value("story").Object().HasValue("text_en", "a story")

	require.Equal(t, "forgiveness", gen.lastReq.Keyword)
	require.Len(t, log.appended, 1)
}

func TestGenerateEndpointRejectsBadBody(t *testing.T) {
	e := newExpect(t, &fakeGenerator{}, nil)

	e.POST("/generate").
		WithText("{not json").
		Expect().
		Status(400).
		JSON().Object().ContainsKey("error")
}

func TestGenerateEndpointMapsPipelineErrors(t *testing.T) {
	e := newExpect(t, &fakeGenerator{err: pipeline.ErrVerseNotFound}, nil)
	e.POST("/generate").
		WithJSON(map[string]any{"keyword": "nothing"}).
		Expect().
		Status(404)

	e = newExpect(t, &fakeGenerator{err: pipeline.ErrEmptyRequest}, nil)
	e.POST("/generate").
		WithJSON(map[string]any{}).
		Expect().
		Status(400)
}

func TestSearchEndpoint(t *testing.T) {
	e := newExpect(t, &fakeGenerator{}, nil)

	e.GET("/search").
		WithQuery("keyword", "forgiveness").
		Expect().
		Status(200).
		JSON().Object().HasValue("id", 152)

	e.GET("/search").
		WithQuery("keyword", "unknown").
		Expect().
		Status(404)

	e.GET("/search").
		Expect().
		Status(400)
}

func TestHistoryEndpoint(t *testing.T) {
	log := &fakeLog{records: []history.Record{
		{ID: 2, Keyword: "gratitude", State: "completed"},
		{ID: 1, Keyword: "forgiveness", State: "completed"},
	}}
	e := newExpect(t, &fakeGenerator{}, log)

	e.GET("/history").
		Expect().
		Status(200).
		JSON().Array().Length().IsEqual(2)

	e.GET("/history").
		WithQuery("limit", "1").
		Expect().
		Status(200).
		JSON().Array().Length().IsEqual(1)

	e.GET("/history").
		WithQuery("limit", "nope").
		Expect().
		Status(400)
}

func TestHistoryEndpointDisabled(t *testing.T) {
	e := newExpect(t, &fakeGenerator{}, nil)

	e.GET("/history").
		Expect().
		Status(503)
}

func TestHealthEndpoint(t *testing.T) {
	e := newExpect(t, &fakeGenerator{}, nil)

	e.GET("/healthz").
		Expect().
		Status(200).
		JSON().Object().HasValue("status", "ok")
}
