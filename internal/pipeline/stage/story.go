package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/valluvarai/valluvarai/internal/config"
	"github.com/valluvarai/valluvarai/internal/kural"
	"github.com/valluvarai/valluvarai/internal/pipeline/artifact"
	"github.com/valluvarai/valluvarai/internal/pipeline/cache"
	"github.com/valluvarai/valluvarai/internal/pipeline/provider"
	"github.com/valluvarai/valluvarai/internal/templates"
)

const storySystemPrompt = "You are a master Tamil storyteller. You write short, warm, morally grounded stories that bring a Thirukkural couplet to life for a modern audience."

// StoryExecutor produces the bilingual story for a matched verse. When the
// text provider fails and template fallback is enabled, a themed template
// story stands in and the stage reports degraded.
type StoryExecutor struct {
	rt       *Runtime
	gateway  *provider.Gateway
	text     provider.TextProvider
	renderer *templates.Renderer
	cfg      config.TextGenerationConfig
}

// NewStoryExecutor wires the story stage. text may be nil when no provider is
// configured, in which case every request takes the template path.
func NewStoryExecutor(rt *Runtime, gateway *provider.Gateway, text provider.TextProvider, renderer *templates.Renderer, cfg config.TextGenerationConfig) *StoryExecutor {
	return &StoryExecutor{rt: rt, gateway: gateway, text: text, renderer: renderer, cfg: cfg}
}

// Generate returns the story for verse in the requested language(s).
func (e *StoryExecutor) Generate(ctx context.Context, verse kural.Verse, keyword string, lang artifact.Language) (artifact.StoryResult, artifact.StageStatus, error) {
	providerName := "none"
	if e.text != nil {
		providerName = e.text.Name()
	}
	key := cache.Fingerprint{
		Stage:    string(artifact.StageStory),
		Provider: providerName,
		Model:    e.cfg.Model,
		Input:    fmt.Sprintf("%s|%d|%s", keyword, verse.ID, lang),
	}.Key()

	payload, source, err := e.rt.fetch(ctx, artifact.StageStory, key, func(ctx context.Context) ([]byte, error) {
		result, err := e.compose(ctx, verse, lang)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	if err == nil {
		var result artifact.StoryResult
		if uerr := json.Unmarshal(payload, &result); uerr != nil {
			return artifact.StoryResult{}, failedStatus(artifact.StageStory, "corrupt cached story"),
				&Error{Stage: artifact.StageStory, Reason: "corrupt cached story", Err: uerr}
		}
		result.Source = source
		return result, artifact.StageStatus{Stage: artifact.StageStory, State: artifact.StageSucceeded}, nil
	}
	if ctx.Err() != nil {
		return artifact.StoryResult{}, artifact.StageStatus{}, ctx.Err()
	}

	if e.cfg.FallbackToTemplate {
		result, ferr := e.templateStory(verse, keyword, lang)
		if ferr == nil {
			reason := fmt.Sprintf("template fallback: %v", err)
			return result, artifact.StageStatus{Stage: artifact.StageStory, State: artifact.StageDegraded, Reason: reason}, nil
		}
		err = errors.Join(err, ferr)
	}
	return artifact.StoryResult{}, failedStatus(artifact.StageStory, "story generation failed"),
		&Error{Stage: artifact.StageStory, Reason: "story generation failed", Err: err}
}

func (e *StoryExecutor) compose(ctx context.Context, verse kural.Verse, lang artifact.Language) (artifact.StoryResult, error) {
	if e.text == nil {
		return artifact.StoryResult{}, provider.Permanent("none", "text", errors.New("no text provider configured"))
	}

	result := artifact.StoryResult{Source: artifact.SourceProvider}
	if lang.Includes(artifact.LanguageEnglish) {
		text, err := e.gateway.Text(ctx, e.text, provider.TextRequest{
			System:      storySystemPrompt,
			Prompt:      storyPrompt(verse, artifact.LanguageEnglish),
			Model:       e.cfg.Model,
			Temperature: e.cfg.Temperature,
			MaxTokens:   e.cfg.MaxTokens,
		})
		if err != nil {
			return artifact.StoryResult{}, err
		}
		result.TextEnglish = text
	}
	if lang.Includes(artifact.LanguageTamil) {
		text, err := e.gateway.Text(ctx, e.text, provider.TextRequest{
			System:      storySystemPrompt,
			Prompt:      storyPrompt(verse, artifact.LanguageTamil),
			Model:       e.cfg.Model,
			Temperature: e.cfg.Temperature,
			MaxTokens:   e.cfg.MaxTokens,
		})
		if err != nil {
			return artifact.StoryResult{}, err
		}
		result.TextTamil = text
	}
	return result, nil
}

func (e *StoryExecutor) templateStory(verse kural.Verse, keyword string, lang artifact.Language) (artifact.StoryResult, error) {
	data := templates.StoryData{
		Keyword:        keyword,
		VerseID:        verse.ID,
		VerseTamil:     verse.Tamil,
		VerseEnglish:   verse.English,
		Chapter:        verse.Chapter,
		ChapterEnglish: verse.ChapterEnglish,
	}
	theme := templates.ThemeFor(verse.ChapterEnglish)

	result := artifact.StoryResult{Source: artifact.SourcePlaceholder}
	if lang.Includes(artifact.LanguageEnglish) {
		text, err := e.renderer.RenderStory(theme, "en", data)
		if err != nil {
			return artifact.StoryResult{}, err
		}
		result.TextEnglish = text
	}
	if lang.Includes(artifact.LanguageTamil) {
		text, err := e.renderer.RenderStory(theme, "ta", data)
		if err != nil {
			return artifact.StoryResult{}, err
		}
		result.TextTamil = text
	}
	return result, nil
}

// storyPrompt asks for a short story grounded in the verse, in one language.
func storyPrompt(verse kural.Verse, lang artifact.Language) string {
	if lang == artifact.LanguageTamil {
		return fmt.Sprintf(
			"பின்வரும் திருக்குறளை மையமாகக் கொண்டு, சுமார் 200 சொற்களில் ஒரு சிறுகதை தமிழில் எழுதுக.\n\nகுறள் %d (%s):\n%s\n\nகதை எளிய நடையில், நேர்மறை முடிவுடன் இருக்க வேண்டும்.",
			verse.ID, verse.Chapter, verse.Tamil)
	}
	return fmt.Sprintf(
		"Write a short story of about 200 words in English inspired by this Thirukkural couplet.\n\nKural %d (%s):\n%s\nMeaning: %s\n\nThe story should feature everyday characters, a clear moral arc, and an uplifting ending that reflects the couplet's teaching.",
		verse.ID, verse.ChapterEnglish, verse.Tamil, verse.English)
}

func failedStatus(stage artifact.Stage, reason string) artifact.StageStatus {
	return artifact.StageStatus{Stage: stage, State: artifact.StageFailed, Reason: reason}
}
