package cache

import (
	"strings"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint{Stage: "story", Provider: "openai", Model: "gpt-4", Input: "kural 152 both"}
	b := Fingerprint{Stage: "story", Provider: "openai", Model: "gpt-4", Input: "kural 152 both"}
	if a.Key() != b.Key() {
		t.Fatalf("identical fingerprints produced different keys: %s vs %s", a.Key(), b.Key())
	}
}

func TestFingerprintNormalizesInput(t *testing.T) {
	a := Fingerprint{Stage: "story", Provider: "openai", Model: "gpt-4", Input: "  Kural   152  BOTH "}
	b := Fingerprint{Stage: "story", Provider: "openai", Model: "gpt-4", Input: "kural 152 both"}
	if a.Key() != b.Key() {
		t.Fatalf("normalization failed: %s vs %s", a.Key(), b.Key())
	}
}

func TestFingerprintDistinguishesComponents(t *testing.T) {
	base := Fingerprint{Stage: "image", Provider: "openai", Model: "dall-e-3", Input: "scene of forgiveness|scene=0"}
	variants := []Fingerprint{
		{Stage: "story", Provider: "openai", Model: "dall-e-3", Input: "scene of forgiveness|scene=0"},
		{Stage: "image", Provider: "stability", Model: "dall-e-3", Input: "scene of forgiveness|scene=0"},
		{Stage: "image", Provider: "openai", Model: "dall-e-2", Input: "scene of forgiveness|scene=0"},
		{Stage: "image", Provider: "openai", Model: "dall-e-3", Input: "scene of forgiveness|scene=1"},
	}
	for _, v := range variants {
		if v.Key() == base.Key() {
			t.Fatalf("fingerprint %+v collided with base", v)
		}
	}
}

func TestFingerprintKeyCarriesStagePrefix(t *testing.T) {
	f := Fingerprint{Stage: "narration", Provider: "elevenlabs", Model: "", Input: "story text|lang=ta"}
	if !strings.HasPrefix(f.Key(), "valluvarai:narration:") {
		t.Fatalf("unexpected key shape: %s", f.Key())
	}
}
