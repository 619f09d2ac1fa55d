// Package artifact defines the typed results produced by the generation
// stages and the status vocabulary the orchestrator aggregates.
package artifact

import "strings"

// Stage identifies one unit of the generation pipeline.
type Stage string

const (
	StageStory     Stage = "story"
	StageImage     Stage = "image"
	StageNarration Stage = "narration"
	StageVideo     Stage = "video"
)

// Language selects the output language(s) for a generation request.
type Language string

const (
	LanguageTamil   Language = "ta"
	LanguageEnglish Language = "en"
	LanguageBoth    Language = "both"
)

// NormalizeLanguage maps user-facing spellings onto the canonical codes.
// Unknown values fall back to both languages.
func NormalizeLanguage(raw string) Language {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ta", "tamil":
		return LanguageTamil
	case "en", "english":
		return LanguageEnglish
	default:
		return LanguageBoth
	}
}

// Includes reports whether the language selection covers lang.
func (l Language) Includes(lang Language) bool {
	return l == LanguageBoth || l == lang
}

// Source tags where a stage result came from, for observability.
type Source string

const (
	SourceCache       Source = "cache_hit"
	SourceProvider    Source = "provider"
	SourcePlaceholder Source = "placeholder"
)

// StageState describes how a stage concluded.
type StageState string

const (
	StageSucceeded StageState = "succeeded"
	StageDegraded  StageState = "degraded"
	StageFailed    StageState = "failed"
	StageSkipped   StageState = "skipped"
)

// StageStatus is the per-stage entry surfaced in every pipeline outcome.
type StageStatus struct {
	Stage  Stage      `json:"stage"`
	State  StageState `json:"state"`
	Reason string     `json:"reason,omitempty"`
}

// StoryResult carries the bilingual story text.
type StoryResult struct {
	TextTamil   string `json:"text_ta,omitempty"`
	TextEnglish string `json:"text_en,omitempty"`
	Source      Source `json:"source"`
}

// ImageRef identifies one generated (or placeholder) scene image.
type ImageRef struct {
	SceneIndex  int    `json:"scene_index"`
	Prompt      string `json:"prompt"`
	URI         string `json:"uri"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// ImageResult carries the ordered scene images. Source is placeholder when at
// least one scene fell back, provider when every scene came from the gateway.
type ImageResult struct {
	Images []ImageRef `json:"images"`
	Source Source     `json:"source"`
}

// AudioRef identifies one narration track.
type AudioRef struct {
	Language        Language `json:"language"`
	URI             string   `json:"uri"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
}

// NarrationResult carries one narration track per requested language.
type NarrationResult struct {
	Audio  []AudioRef `json:"audio"`
	Source Source     `json:"source"`
}

// VideoResult carries the assembled video reference.
type VideoResult struct {
	URI    string `json:"uri"`
	Source Source `json:"source"`
}
