package generation

import (
	"strings"
	"testing"

	"policy-rag/internal/retrieval"
)

func TestBuildPrompt(t *testing.T) {
	results := []retrieval.Result{
		{ChunkID: "chunk-1", Text: "[Alcohol]\n\nAlcohol ads are restricted."},
		{ChunkID: "chunk-2", Text: "[Alcohol > Wine]\n\nWine has extra rules."},
	}

	prompt := buildPrompt("can I advertise wine", results)

	checks := []string{
		"You are a policy compliance assistant for Google Ads.",
		"Question: can I advertise wine",
		"SOURCE chunk-1:\n[Alcohol]\n\nAlcohol ads are restricted.",
		"SOURCE chunk-2:\n[Alcohol > Wine]\n\nWine has extra rules.",
		"Cite sources using this exact format: [SOURCE:<chunk_id>]",
		"respond with exactly: REFUSE",
	}
	for _, want := range checks {
		if !strings.Contains(prompt, want) {
			t.Errorf("buildPrompt() missing %q", want)
		}
	}

	if !strings.HasSuffix(prompt, "Answer:") {
		t.Error("buildPrompt() should end with the answer cue")
	}
}

func TestFormatSources(t *testing.T) {
	results := []retrieval.Result{
		{ChunkID: "a", Text: "Text A"},
		{ChunkID: "b", Text: "Text B"},
	}

	got := formatSources(results)
	want := "SOURCE a:\nText A\n\nSOURCE b:\nText B\n"
	if got != want {
		t.Errorf("formatSources() = %q, want %q", got, want)
	}
}

func TestFormatSources_Single(t *testing.T) {
	got := formatSources([]retrieval.Result{{ChunkID: "only", Text: "Body"}})
	want := "SOURCE only:\nBody\n"
	if got != want {
		t.Errorf("formatSources() = %q, want %q", got, want)
	}
}
