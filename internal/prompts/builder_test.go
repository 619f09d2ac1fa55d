package prompts

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleStory = `In a small village near Madurai lived an elderly farmer named Raman. He was known for his patience.

One day a young man stole crops from his field. The villagers expected punishment.

Instead Raman offered him work. Years later the families shared every festival.`

func TestScenePromptsCountAndOrder(t *testing.T) {
	b := NewBuilder("photorealistic", "modern")
	prompts := b.ScenePrompts(sampleStory, "Bear with those who wrong you.", 3)

	require.Len(t, prompts, 3)
	for i, p := range prompts {
		require.Contains(t, p, fmt.Sprintf("Scene %d", i+1))
		require.Contains(t, p, "photorealistic rendering")
		require.Contains(t, p, "modern-day Tamil Nadu")
		require.Contains(t, p, "Bear with those who wrong you.")
	}
	require.Contains(t, prompts[0], "Raman")
}

func TestScenePromptsShortStoryStillFillsCount(t *testing.T) {
	b := NewBuilder("cinematic", "ancient")
	prompts := b.ScenePrompts("A single short line.", "", 4)
	require.Len(t, prompts, 4)
	for _, p := range prompts {
		require.NotEmpty(t, p)
	}
}

func TestScenePromptsDeterministic(t *testing.T) {
	b := NewBuilder("watercolor", "medieval")
	a := b.ScenePrompts(sampleStory, "verse", 3)
	c := b.ScenePrompts(sampleStory, "verse", 3)
	require.Equal(t, a, c)
}

func TestNewBuilderUnknownSelectionsUseDefaults(t *testing.T) {
	b := NewBuilder("vaporwave", "jurassic")
	prompts := b.ScenePrompts(sampleStory, "", 1)
	require.Len(t, prompts, 1)
	require.True(t, strings.Contains(prompts[0], "photorealistic rendering"))
	require.True(t, strings.Contains(prompts[0], "modern-day Tamil Nadu"))
}
