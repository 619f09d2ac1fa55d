package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/valluvarai/valluvarai/internal/config"
	"github.com/valluvarai/valluvarai/internal/pipeline/artifact"
	"github.com/valluvarai/valluvarai/internal/pipeline/cache"
	"github.com/valluvarai/valluvarai/internal/pipeline/provider"
)

// NarrationExecutor synthesizes one narration track per requested language,
// concurrently. When the primary provider fails and a fallback is wired the
// track is retried there, degrading the stage.
type NarrationExecutor struct {
	rt       *Runtime
	gateway  *provider.Gateway
	primary  provider.AudioProvider
	fallback provider.AudioProvider
	cfg      config.AudioGenerationConfig
}

// NewNarrationExecutor wires the narration stage. fallback may be nil.
func NewNarrationExecutor(rt *Runtime, gateway *provider.Gateway, primary, fallback provider.AudioProvider, cfg config.AudioGenerationConfig) *NarrationExecutor {
	return &NarrationExecutor{rt: rt, gateway: gateway, primary: primary, fallback: fallback, cfg: cfg}
}

type trackOutcome struct {
	ref      artifact.AudioRef
	source   artifact.Source
	fellBack bool
	err      error
}

// Generate synthesizes narration for every language the story carries text
// for, restricted to the requested language selection.
func (e *NarrationExecutor) Generate(ctx context.Context, story artifact.StoryResult, lang artifact.Language) (artifact.NarrationResult, artifact.StageStatus, error) {
	type track struct {
		language artifact.Language
		text     string
		voice    string
	}
	var tracks []track
	if lang.Includes(artifact.LanguageTamil) && story.TextTamil != "" {
		tracks = append(tracks, track{artifact.LanguageTamil, story.TextTamil, e.cfg.TamilVoiceID})
	}
	if lang.Includes(artifact.LanguageEnglish) && story.TextEnglish != "" {
		tracks = append(tracks, track{artifact.LanguageEnglish, story.TextEnglish, e.cfg.EnglishVoiceID})
	}
	if len(tracks) == 0 {
		return artifact.NarrationResult{}, failedStatus(artifact.StageNarration, "no narratable text"),
			&Error{Stage: artifact.StageNarration, Reason: "no narratable text", Err: errors.New("story carries no text for the requested languages")}
	}

	outcomes := make([]trackOutcome, len(tracks))
	var wg sync.WaitGroup
	for i, tr := range tracks {
		wg.Add(1)
		go func(idx int, tr track) {
			defer wg.Done()
			outcomes[idx] = e.synthesize(ctx, tr.language, tr.text, tr.voice)
		}(i, tr)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return artifact.NarrationResult{}, artifact.StageStatus{}, ctx.Err()
	}

	result := artifact.NarrationResult{Source: artifact.SourceCache}
	fellBack := 0
	for _, outcome := range outcomes {
		if outcome.err != nil {
			return artifact.NarrationResult{}, failedStatus(artifact.StageNarration, "narration synthesis failed"),
				&Error{Stage: artifact.StageNarration, Reason: "narration synthesis failed", Err: outcome.err}
		}
		if outcome.fellBack {
			fellBack++
			result.Source = artifact.SourcePlaceholder
		} else if outcome.source != artifact.SourceCache && result.Source == artifact.SourceCache {
			result.Source = artifact.SourceProvider
		}
		result.Audio = append(result.Audio, outcome.ref)
	}

	if fellBack > 0 {
		result.Source = artifact.SourcePlaceholder
		reason := fmt.Sprintf("%d of %d tracks used the fallback voice service", fellBack, len(outcomes))
		return result, artifact.StageStatus{Stage: artifact.StageNarration, State: artifact.StageDegraded, Reason: reason}, nil
	}
	return result, artifact.StageStatus{Stage: artifact.StageNarration, State: artifact.StageSucceeded}, nil
}

func (e *NarrationExecutor) synthesize(ctx context.Context, language artifact.Language, text, voice string) trackOutcome {
	providerName := "none"
	if e.primary != nil {
		providerName = e.primary.Name()
	}
	key := cache.Fingerprint{
		Stage:    string(artifact.StageNarration),
		Provider: providerName,
		Model:    voice,
		Input:    fmt.Sprintf("%s|lang=%s", text, language),
	}.Key()

	req := provider.AudioRequest{Text: text, LanguageCode: string(language), VoiceID: voice}
	payload, source, err := e.rt.fetch(ctx, artifact.StageNarration, key, func(ctx context.Context) ([]byte, error) {
		if e.primary == nil {
			return nil, provider.Permanent("none", "audio", errors.New("no audio provider configured"))
		}
		generated, err := e.gateway.Audio(ctx, e.primary, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(artifact.AudioRef{Language: language, URI: generated.URI, DurationSeconds: generated.DurationSeconds})
	})
	if err == nil {
		var ref artifact.AudioRef
		if uerr := json.Unmarshal(payload, &ref); uerr != nil {
			return trackOutcome{err: uerr}
		}
		return trackOutcome{ref: ref, source: source}
	}
	if ctx.Err() != nil {
		return trackOutcome{err: ctx.Err()}
	}

	// Fallback tracks are never cached; an identical request retries the
	// primary voice service first.
	if e.fallback != nil {
		generated, ferr := e.gateway.Audio(ctx, e.fallback, req)
		if ferr != nil {
			return trackOutcome{err: errors.Join(err, ferr)}
		}
		return trackOutcome{
			ref:      artifact.AudioRef{Language: language, URI: generated.URI, DurationSeconds: generated.DurationSeconds},
			source:   artifact.SourcePlaceholder,
			fellBack: true,
		}
	}
	return trackOutcome{err: err}
}
