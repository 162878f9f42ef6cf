package prompt

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
	"github.com/mygads/genovaai-server-sub000/internal/domain/service"
)

// fakeKnowledge 可脚本化的知识装配器
type fakeKnowledge struct {
	blocks []service.KnowledgeBlock
	err    error
	calls  int
}

func (f *fakeKnowledge) Load(_ context.Context, _ string, _ []string) ([]service.KnowledgeBlock, error) {
	f.calls++
	return f.blocks, f.err
}

func newSession(mutate func(*entity.QASession)) *entity.QASession {
	s := entity.NewQASession("user-1", entity.RequestModeFreePool, entity.VerbosityMedium)
	s.Model = "gemini-2.0-flash"
	if mutate != nil {
		mutate(s)
	}
	return s
}

func TestComposeSelectsVerbosityTemplate(t *testing.T) {
	cases := []struct {
		verbosity entity.VerbosityLevel
		marker    string
	}{
		{entity.VerbositySingle, "Do not explain, justify, or elaborate"},
		{entity.VerbosityShort, "one short supporting sentence"},
		{entity.VerbosityMedium, "short paragraph (2-4 sentences)"},
		{entity.VerbosityLong, "each rejected alternative"},
	}

	c := NewComposer(&fakeKnowledge{})
	for _, tc := range cases {
		t.Run(string(tc.verbosity), func(t *testing.T) {
			session := newSession(func(s *entity.QASession) { s.Verbosity = tc.verbosity })
			result, err := c.Compose(context.Background(), &ComposeInput{Session: session, Question: "q"})
			if err != nil {
				t.Fatalf("compose: %v", err)
			}
			if !strings.Contains(result.SystemPrompt, tc.marker) {
				t.Errorf("system prompt for %s missing %q", tc.verbosity, tc.marker)
			}
		})
	}
}

func TestComposeCustomPromptOverridesTemplate(t *testing.T) {
	c := NewComposer(&fakeKnowledge{})
	session := newSession(func(s *entity.QASession) {
		s.UseCustomPrompt = true
		s.CustomSystemPrompt = "You are a pirate."
	})

	result, err := c.Compose(context.Background(), &ComposeInput{Session: session, Question: "q"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if result.SystemPrompt != "You are a pirate." {
		t.Errorf("system prompt = %q, want custom prompt", result.SystemPrompt)
	}
}

func TestComposeCustomPromptFlagWithoutTextFallsBack(t *testing.T) {
	c := NewComposer(&fakeKnowledge{})
	session := newSession(func(s *entity.QASession) {
		s.UseCustomPrompt = true
		s.CustomSystemPrompt = "   "
	})

	result, err := c.Compose(context.Background(), &ComposeInput{Session: session, Question: "q"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !strings.Contains(result.SystemPrompt, "helpful answering assistant") {
		t.Errorf("blank custom prompt should fall back to the verbosity template")
	}
}

func TestComposeUserTurnSectionOrder(t *testing.T) {
	knowledge := &fakeKnowledge{blocks: []service.KnowledgeBlock{
		{Name: "notes.txt", FileType: "text", Content: "water boils at 100C"},
	}}
	c := NewComposer(knowledge)
	session := newSession(func(s *entity.QASession) {
		s.ManualContext = "chapter 3 covers thermodynamics"
		s.KnowledgeFileIDs = entity.StringArray{"file-1"}
	})

	result, err := c.Compose(context.Background(), &ComposeInput{
		Session:      session,
		Question:     "At what temperature does water boil?",
		Examples:     []Example{{Question: "Freezing point?", Answer: "0C"}},
		OutputFormat: "Celsius only",
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	prompt := result.UserPrompt
	sections := []string{
		"=== Reference material ===",
		"chapter 3 covers thermodynamics",
		"[File: notes.txt (text)]\nwater boils at 100C",
		"=== Examples ===",
		"Q: Freezing point?\nA: 0C",
		"=== Output format ===",
		"Celsius only",
		"=== Question ===",
		"At what temperature does water boil?",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(prompt, s)
		if idx < 0 {
			t.Fatalf("user prompt missing section %q:\n%s", s, prompt)
		}
		if idx < last {
			t.Fatalf("section %q out of order:\n%s", s, prompt)
		}
		last = idx
	}
}

func TestComposeManualContextJoinedWithFiles(t *testing.T) {
	knowledge := &fakeKnowledge{blocks: []service.KnowledgeBlock{
		{Name: "a.md", FileType: "markdown", Content: "alpha"},
		{Name: "b.md", FileType: "markdown", Content: "beta"},
	}}
	c := NewComposer(knowledge)
	session := newSession(func(s *entity.QASession) {
		s.ManualContext = "manual"
		s.KnowledgeFileIDs = entity.StringArray{"f1", "f2"}
	})

	result, err := c.Compose(context.Background(), &ComposeInput{Session: session, Question: "q"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	want := "manual\n\n[File: a.md (markdown)]\nalpha\n\n[File: b.md (markdown)]\nbeta"
	if !strings.Contains(result.UserPrompt, want) {
		t.Errorf("knowledge block not joined as expected:\n%s", result.UserPrompt)
	}
}

func TestComposeEmptyKnowledgeOmitsReferenceSection(t *testing.T) {
	c := NewComposer(&fakeKnowledge{})
	session := newSession(nil)

	result, err := c.Compose(context.Background(), &ComposeInput{Session: session, Question: "q"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if strings.Contains(result.UserPrompt, "=== Reference material ===") {
		t.Errorf("reference section must be omitted when there is no knowledge")
	}
}

func TestComposeSkipsEmptyFileContent(t *testing.T) {
	knowledge := &fakeKnowledge{blocks: []service.KnowledgeBlock{
		{Name: "empty.txt", FileType: "text", Content: "  \n "},
	}}
	c := NewComposer(knowledge)
	session := newSession(func(s *entity.QASession) {
		s.KnowledgeFileIDs = entity.StringArray{"f1"}
	})

	result, err := c.Compose(context.Background(), &ComposeInput{Session: session, Question: "q"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if strings.Contains(result.UserPrompt, "empty.txt") {
		t.Errorf("blank file content must be skipped")
	}
}

func TestComposeDegradesWhenKnowledgeFails(t *testing.T) {
	knowledge := &fakeKnowledge{err: fmt.Errorf("storage offline")}
	c := NewComposer(knowledge)
	session := newSession(func(s *entity.QASession) {
		s.KnowledgeFileIDs = entity.StringArray{"f1"}
	})

	result, err := c.Compose(context.Background(), &ComposeInput{Session: session, Question: "still answer me"})
	if err != nil {
		t.Fatalf("compose must not fail on knowledge errors: %v", err)
	}
	if strings.Contains(result.UserPrompt, "=== Reference material ===") {
		t.Errorf("failed knowledge load must degrade to a plain question")
	}
	if !strings.Contains(result.UserPrompt, "still answer me") {
		t.Errorf("question must survive degradation")
	}
}

func TestFamilyOf(t *testing.T) {
	cases := []struct {
		model string
		want  ModelFamily
	}{
		{"gemini-2.0-flash", FamilyGeminiFlash},
		{"gemini-1.5-pro", FamilyGeminiPro},
		{"openai/gpt-4o-mini", FamilyGPT},
		{"o3-mini", FamilyGPT},
		{"anthropic/claude-3.5-sonnet", FamilyClaude},
		{"deepseek/deepseek-chat", FamilyDeepSeek},
		{"mistral-large", FamilyGeneric},
	}
	for _, tc := range cases {
		if got := FamilyOf(tc.model); got != tc.want {
			t.Errorf("FamilyOf(%q) = %s, want %s", tc.model, got, tc.want)
		}
	}
}

func TestReasoningEffortFor(t *testing.T) {
	cases := []struct {
		family    ModelFamily
		verbosity entity.VerbosityLevel
		want      string
	}{
		{FamilyGeminiFlash, entity.VerbositySingle, "low"},
		{FamilyGeminiFlash, entity.VerbosityShort, "low"},
		{FamilyGPT, entity.VerbosityMedium, "medium"},
		{FamilyClaude, entity.VerbosityLong, "high"},
		{FamilyDeepSeek, entity.VerbosityLong, ""},
		{FamilyGeneric, entity.VerbosityMedium, ""},
	}
	for _, tc := range cases {
		if got := ReasoningEffortFor(tc.family, tc.verbosity); got != tc.want {
			t.Errorf("ReasoningEffortFor(%s, %s) = %q, want %q", tc.family, tc.verbosity, got, tc.want)
		}
	}
}

func TestCacheEligible(t *testing.T) {
	if CacheEligible(FamilyGeminiFlash, 1023) {
		t.Errorf("below threshold must not be cache eligible")
	}
	if !CacheEligible(FamilyGeminiFlash, 1024) {
		t.Errorf("at threshold must be cache eligible")
	}
	if CacheEligible(FamilyGeminiPro, 1024) {
		t.Errorf("pro threshold is higher")
	}
	if !CacheEligible(FamilyGeminiPro, 2048) {
		t.Errorf("pro at threshold must be cache eligible")
	}
	if CacheEligible(FamilyDeepSeek, 1<<20) {
		t.Errorf("deepseek does not support caching")
	}
}

func TestComposeHintsForLargeKnowledge(t *testing.T) {
	knowledge := &fakeKnowledge{blocks: []service.KnowledgeBlock{
		{Name: "big.txt", FileType: "text", Content: strings.Repeat("x", 5000)},
	}}
	c := NewComposer(knowledge)
	session := newSession(func(s *entity.QASession) {
		s.Verbosity = entity.VerbosityLong
		s.KnowledgeFileIDs = entity.StringArray{"f1"}
	})

	result, err := c.Compose(context.Background(), &ComposeInput{Session: session, Question: "q"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if result.Hints.ReasoningEffort != "high" {
		t.Errorf("reasoning effort = %q, want high", result.Hints.ReasoningEffort)
	}
	if !result.Hints.CacheEligible {
		t.Errorf("5000 chars of knowledge should clear the flash cache threshold")
	}
	if result.Hints.CacheTTL <= 0 {
		t.Errorf("cache ttl must be positive")
	}
}
