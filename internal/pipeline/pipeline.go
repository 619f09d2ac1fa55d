// Package pipeline runs the verse-to-video generation flow: verse matching,
// story, scene images, narration and final assembly. Stages run in
// dependency order; a failed story aborts the request, while failed images or
// narration only block the video.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/valluvarai/valluvarai/internal/kural"
	"github.com/valluvarai/valluvarai/internal/metrics"
	"github.com/valluvarai/valluvarai/internal/pipeline/artifact"
	"github.com/valluvarai/valluvarai/internal/pipeline/stage"
)

// ErrVerseNotFound reports that neither the keyword nor the verse id matched
// anything in the corpus.
var ErrVerseNotFound = errors.New("pipeline: no matching verse")

// ErrEmptyRequest reports a request with no keyword and no verse id.
var ErrEmptyRequest = errors.New("pipeline: keyword or verse id required")

// GenerationRequest describes one generation run.
type GenerationRequest struct {
	Keyword          string            `json:"keyword"`
	VerseID          int               `json:"verse_id,omitempty"`
	Language         artifact.Language `json:"language,omitempty"`
	IncludeImages    bool              `json:"include_images"`
	IncludeNarration bool              `json:"include_narration"`
	IncludeVideo     bool              `json:"include_video"`
	// BestEffort keeps partial results when the request deadline cuts the
	// pipeline short instead of discarding them.
	BestEffort bool `json:"best_effort,omitempty"`
}

// State summarizes how a run ended.
type State string

const (
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Outcome is the aggregate result of one generation run.
type Outcome struct {
	State        State                     `json:"state"`
	Verse        kural.Verse               `json:"verse"`
	Story        *artifact.StoryResult     `json:"story,omitempty"`
	Images       *artifact.ImageResult     `json:"images,omitempty"`
	Narration    *artifact.NarrationResult `json:"narration,omitempty"`
	Video        *artifact.VideoResult     `json:"video,omitempty"`
	Statuses     []artifact.StageStatus    `json:"statuses"`
	AbortedStage artifact.Stage            `json:"aborted_stage,omitempty"`
	AbortReason  string                    `json:"abort_reason,omitempty"`
	DurationMS   int64                     `json:"duration_ms"`
}

// Orchestrator sequences the stage executors for each request.
type Orchestrator struct {
	retriever      *kural.Retriever
	story          *stage.StoryExecutor
	image          *stage.ImageExecutor
	narration      *stage.NarrationExecutor
	video          *stage.VideoExecutor
	metrics        *metrics.Recorder
	logger         *slog.Logger
	requestTimeout time.Duration
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(retriever *kural.Retriever, story *stage.StoryExecutor, image *stage.ImageExecutor, narration *stage.NarrationExecutor, video *stage.VideoExecutor, rec *metrics.Recorder, logger *slog.Logger, requestTimeout time.Duration) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		retriever:      retriever,
		story:          story,
		image:          image,
		narration:      narration,
		video:          video,
		metrics:        rec,
		logger:         logger.With(slog.String("component", "pipeline")),
		requestTimeout: requestTimeout,
	}
}

// Search returns the best-matching verse for a keyword without running the
// pipeline.
func (o *Orchestrator) Search(keyword string) (kural.Verse, bool) {
	return o.retriever.Find(keyword)
}

// Generate runs the pipeline for req. The returned Outcome is valid even
// when err is non-nil for verse matching problems; stage failures below the
// story are folded into statuses rather than returned.
func (o *Orchestrator) Generate(ctx context.Context, req GenerationRequest) (Outcome, error) {
	start := time.Now()
	outcome, err := o.generate(ctx, req)
	outcome.DurationMS = time.Since(start).Milliseconds()
	o.metrics.ObserveRequest(string(outcome.State), time.Since(start))
	return outcome, err
}

func (o *Orchestrator) generate(ctx context.Context, req GenerationRequest) (Outcome, error) {
	if strings.TrimSpace(req.Keyword) == "" && req.VerseID <= 0 {
		return Outcome{State: StateAborted, AbortReason: "empty request"}, ErrEmptyRequest
	}
	lang := req.Language
	if lang == "" {
		lang = artifact.LanguageBoth
	}
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	verse, ok := o.lookupVerse(req)
	if !ok {
		return Outcome{State: StateAborted, AbortReason: "no matching verse"}, ErrVerseNotFound
	}
	log := o.logger.With(slog.Int("verse", verse.ID), slog.String("keyword", req.Keyword))

	outcome := Outcome{State: StateCompleted, Verse: verse}

	// Story is the root of the dependency tree: without it nothing else can run.
	stageStart := time.Now()
	story, status, err := o.story.Generate(ctx, verse, req.Keyword, lang)
	if err != nil {
		o.observeStage(artifact.StageStatus{Stage: artifact.StageStory, State: artifact.StageFailed}, "", stageStart)
		return o.aborted(outcome, req, artifact.StageStory, err)
	}
	outcome.Story = &story
	outcome.Statuses = append(outcome.Statuses, status)
	o.observeStage(status, story.Source, stageStart)
	log.Info("story stage finished", slog.String("state", string(status.State)), slog.String("source", string(story.Source)))

	needImages := req.IncludeImages || req.IncludeVideo
	needNarration := req.IncludeNarration || req.IncludeVideo
	videoBlocked := ""

	if needImages {
		stageStart = time.Now()
		images, status, err := o.image.Generate(ctx, storyTextForScenes(story), verse.English)
		switch {
		case err != nil && ctx.Err() != nil:
			return o.aborted(outcome, req, artifact.StageImage, err)
		case err != nil:
			outcome.Statuses = append(outcome.Statuses, status)
			o.observeStage(status, "", stageStart)
			videoBlocked = "scene images unavailable"
			log.Warn("image stage failed", slog.Any("error", err))
		default:
			outcome.Images = &images
			outcome.Statuses = append(outcome.Statuses, status)
			o.observeStage(status, images.Source, stageStart)
			log.Info("image stage finished", slog.String("state", string(status.State)))
		}
	}

	if needNarration {
		stageStart = time.Now()
		narration, status, err := o.narration.Generate(ctx, story, lang)
		switch {
		case err != nil && ctx.Err() != nil:
			return o.aborted(outcome, req, artifact.StageNarration, err)
		case err != nil:
			outcome.Statuses = append(outcome.Statuses, status)
			o.observeStage(status, "", stageStart)
			if videoBlocked == "" {
				videoBlocked = "narration unavailable"
			}
			log.Warn("narration stage failed", slog.Any("error", err))
		default:
			outcome.Narration = &narration
			outcome.Statuses = append(outcome.Statuses, status)
			o.observeStage(status, narration.Source, stageStart)
			log.Info("narration stage finished", slog.String("state", string(status.State)))
		}
	}

	if req.IncludeVideo {
		switch {
		case videoBlocked != "":
			skipped := artifact.StageStatus{
				Stage:  artifact.StageVideo,
				State:  artifact.StageSkipped,
				Reason: videoBlocked,
			}
			outcome.Statuses = append(outcome.Statuses, skipped)
			o.observeStage(skipped, "", time.Now())
		default:
			stageStart = time.Now()
			video, status, err := o.video.Assemble(ctx, *outcome.Images, *outcome.Narration, subtitleLines(story))
			switch {
			case err != nil && ctx.Err() != nil:
				return o.aborted(outcome, req, artifact.StageVideo, err)
			case err != nil:
				outcome.Statuses = append(outcome.Statuses, status)
				o.observeStage(status, "", stageStart)
				log.Warn("video stage failed", slog.Any("error", err))
			default:
				outcome.Video = &video
				outcome.Statuses = append(outcome.Statuses, status)
				o.observeStage(status, video.Source, stageStart)
				log.Info("video stage finished", slog.String("state", string(status.State)))
			}
		}
	}

	return outcome, nil
}

func (o *Orchestrator) observeStage(status artifact.StageStatus, source artifact.Source, start time.Time) {
	o.metrics.ObserveStage(string(status.Stage), string(source), string(status.State), time.Since(start))
}

func (o *Orchestrator) lookupVerse(req GenerationRequest) (kural.Verse, bool) {
	if req.VerseID > 0 {
		return o.retriever.ByID(req.VerseID)
	}
	return o.retriever.Find(req.Keyword)
}

// aborted finalizes a run cut short at stage. A deadline abort keeps partial
// results only when the caller asked for best effort.
func (o *Orchestrator) aborted(outcome Outcome, req GenerationRequest, at artifact.Stage, err error) (Outcome, error) {
	outcome.State = StateAborted
	outcome.AbortedStage = at
	if errors.Is(err, context.DeadlineExceeded) {
		outcome.AbortReason = "timeout"
		if !req.BestEffort {
			outcome = Outcome{
				State:        StateAborted,
				Verse:        outcome.Verse,
				AbortedStage: at,
				AbortReason:  "timeout",
			}
		}
		return outcome, nil
	}
	if errors.Is(err, context.Canceled) {
		outcome.AbortReason = "canceled"
		return outcome, err
	}
	outcome.AbortReason = err.Error()
	outcome.Statuses = append(outcome.Statuses, artifact.StageStatus{
		Stage:  at,
		State:  artifact.StageFailed,
		Reason: err.Error(),
	})
	return outcome, nil
}

// storyTextForScenes prefers the English text for prompt building since the
// image models follow English best, falling back to Tamil.
func storyTextForScenes(story artifact.StoryResult) string {
	if story.TextEnglish != "" {
		return story.TextEnglish
	}
	return story.TextTamil
}

// subtitleLines splits the narrated text into sentence-sized subtitle lines.
func subtitleLines(story artifact.StoryResult) []string {
	text := storyTextForScenes(story)
	var lines []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			line := strings.TrimSpace(current.String())
			if line != "" {
				lines = append(lines, line)
			}
			current.Reset()
		}
	}
	if line := strings.TrimSpace(current.String()); line != "" {
		lines = append(lines, line)
	}
	return lines
}
