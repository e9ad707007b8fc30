package rlmconfig

import (
	"os"
	"testing"

	"github.com/rlmcore/rlmcore/configs"
)

func TestEngineParamsDefaults(t *testing.T) {
	loader := configs.NewLoader(nil, "")
	m := Module{}
	params := m.EngineParams(loader)
	if params.MaxIterations != 15 {
		t.Fatalf("got %d", params.MaxIterations)
	}
	if params.MinCodeExecutions != 3 {
		t.Fatalf("got %d", params.MinCodeExecutions)
	}
	if params.MinAnswerLen != 150 {
		t.Fatalf("got %d", params.MinAnswerLen)
	}
	if params.ParallelLoops != 1 {
		t.Fatalf("got %d", params.ParallelLoops)
	}
}

func TestBaseURLFallsBackToDefault(t *testing.T) {
	os.Unsetenv("LLM_BASE_URL")
	m := Module{}
	if m.BaseURL() != "https://api.openai.com" {
		t.Fatalf("got %v", m.BaseURL())
	}
}

func TestBaseURLFromEnv(t *testing.T) {
	t.Setenv("LLM_BASE_URL", "https://custom.example/v1")
	m := Module{}
	if m.BaseURL() != "https://custom.example/v1" {
		t.Fatalf("got %v", m.BaseURL())
	}
}
