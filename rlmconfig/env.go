package rlmconfig

import (
	"os"

	"github.com/rlmcore/rlmcore/configs"
	"github.com/rlmcore/rlmcore/llmclient"
	"github.com/rlmcore/rlmcore/vars"
)

// BaseURL, APIKey, PrimaryModel and SubModel override llmclient's
// default providers, sourced purely from the environment per the
// core's external-interfaces contract: LLM_BASE_URL, LLM_MODEL,
// LLM_SUB_MODEL, LLM_API_KEY.

func (Module) BaseURL() llmclient.BaseURL {
	return llmclient.BaseURL(vars.FirstNonZero(
		os.Getenv("LLM_BASE_URL"),
		"https://api.openai.com",
	))
}

func (Module) APIKey() llmclient.APIKey {
	return llmclient.APIKey(os.Getenv("LLM_API_KEY"))
}

func (Module) PrimaryModel() llmclient.PrimaryModel {
	return llmclient.PrimaryModel(vars.FirstNonZero(
		os.Getenv("LLM_MODEL"),
		"gpt-4o",
	))
}

func (Module) SubModel() llmclient.SubModel {
	return llmclient.SubModel(vars.FirstNonZero(
		os.Getenv("LLM_SUB_MODEL"),
		"gpt-4o-mini",
	))
}

// EngineParams holds the RlmEngine's operator-overridable knobs, loaded
// from the cue config file. A knob that is unset or not positive falls back
// to its default (15, 3, 150, 1); any positive configured value is used
// as-is, even when it is below that default.
type EngineParams struct {
	MaxIterations     int
	MinCodeExecutions int
	MinAnswerLen      int
	ParallelLoops     int
}

var _ configs.Configurable = EngineParams{}

func (EngineParams) ConfigExpr() string { return "EngineParams" }

func (Module) EngineParams(loader configs.Loader) EngineParams {
	return EngineParams{
		MaxIterations: firstPositive(
			configs.First[int](loader, "max_iterations"), 15),
		MinCodeExecutions: firstPositive(
			configs.First[int](loader, "min_code_executions"), 3),
		MinAnswerLen: firstPositive(
			configs.First[int](loader, "min_answer_len"), 150),
		ParallelLoops: firstPositive(
			configs.First[int](loader, "parallel_loops"), 1),
	}
}

func firstPositive(configured, fallback int) int {
	if configured > 0 {
		return configured
	}
	return fallback
}
