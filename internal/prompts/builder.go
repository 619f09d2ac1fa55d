// Package prompts turns a generated story into the ordered scene prompts the
// image stage fans out over.
package prompts

import (
	"fmt"
	"strings"
)

// artisticStyles mirrors the style vocabulary the prompt curators settled on.
var artisticStyles = map[string]string{
	"traditional":    "traditional Tamil painting style, rich colors, detailed ornamentation, flat perspective",
	"modern":         "modern digital art with Tamil cultural elements, vibrant colors, clean lines",
	"watercolor":     "delicate watercolor painting with Tamil cultural elements, soft colors, flowing brushstrokes",
	"cinematic":      "cinematic scene with dramatic lighting, Tamil cultural setting, movie-like composition",
	"illustration":   "detailed illustration with Tamil cultural elements, storybook quality, expressive characters",
	"photorealistic": "photorealistic rendering, highly detailed, perfect lighting, Tamil cultural setting",
}

var timePeriods = map[string]string{
	"ancient":    "ancient Tamil kingdom, historical accuracy, traditional architecture and clothing",
	"medieval":   "medieval Tamil period, Chola dynasty influence, temple towns, traditional dress",
	"colonial":   "colonial-era Tamil Nadu, blend of traditional and British influence",
	"modern":     "modern-day Tamil Nadu, contemporary setting with traditional cultural elements",
	"futuristic": "futuristic Tamil society, advanced technology blended with preserved cultural traditions",
}

// Builder composes scene prompts with a consistent style and period suffix.
type Builder struct {
	style  string
	period string
}

// NewBuilder validates the style and period selections, substituting the
// defaults for unknown values.
func NewBuilder(style, period string) *Builder {
	if _, ok := artisticStyles[strings.ToLower(style)]; !ok {
		style = "photorealistic"
	}
	if _, ok := timePeriods[strings.ToLower(period)]; !ok {
		period = "modern"
	}
	return &Builder{style: strings.ToLower(style), period: strings.ToLower(period)}
}

// ScenePrompts segments the story into count scene prompts. Paragraphs are the
// preferred segmentation unit; shorter stories fall back to sentence groups.
// The verse translation anchors every prompt so scenes stay on theme.
func (b *Builder) ScenePrompts(story, verseEnglish string, count int) []string {
	if count <= 0 {
		count = 3
	}
	segments := segment(story, count)

	prompts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var excerpt string
		if i < len(segments) {
			excerpt = segments[i]
		} else if len(segments) > 0 {
			excerpt = segments[len(segments)-1]
		}
		prompt := fmt.Sprintf("Scene %d of a Tamil moral story: %s", i+1, condense(excerpt, 320))
		if verseEnglish != "" {
			prompt += fmt.Sprintf(" The story illustrates the teaching: %s", condense(verseEnglish, 160))
		}
		prompt += fmt.Sprintf(" %s, %s.", artisticStyles[b.style], timePeriods[b.period])
		prompts = append(prompts, prompt)
	}
	return prompts
}

// segment splits a story into up to want narrative chunks.
func segment(story string, want int) []string {
	paragraphs := splitNonEmpty(story, "\n\n")
	if len(paragraphs) >= want {
		return paragraphs
	}

	sentences := splitSentences(story)
	if len(sentences) <= want {
		if len(paragraphs) > 0 {
			return paragraphs
		}
		return sentences
	}

	per := (len(sentences) + want - 1) / want
	chunks := make([]string, 0, want)
	for start := 0; start < len(sentences); start += per {
		end := start + per
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, strings.Join(sentences[start:end], " "))
	}
	return chunks
}

func splitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitSentences(s string) []string {
	var (
		sentences []string
		current   strings.Builder
	)
	for _, r := range strings.TrimSpace(s) {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
				sentences = append(sentences, trimmed)
			}
			current.Reset()
		}
	}
	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		sentences = append(sentences, trimmed)
	}
	return sentences
}

func condense(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
