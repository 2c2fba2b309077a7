// Package engines builds the analyzer engine set from configuration.
package engines

import (
	"fmt"

	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/analyzer/gemini"
	"leaf-doctor/api/internal/analyzer/openai"
	"leaf-doctor/api/internal/analyzer/remote"
	"leaf-doctor/api/internal/analyzer/stub"
	"leaf-doctor/api/internal/config"
)

// Build registers every engine that has credentials, plus the offline stub,
// and makes cfg.DefaultEngine the default.
func Build(cfg *config.Config) (*analyzer.Manager, error) {
	all := []analyzer.Engine{stub.New(cfg.StubLatency)}
	if cfg.GeminiAPIKey != "" {
		all = append(all, gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel))
	}
	if cfg.OpenAIAPIKey != "" {
		all = append(all, openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel))
	}
	if cfg.RemoteURL != "" {
		all = append(all, remote.New(cfg.RemoteURL, cfg.RemoteEngine, cfg.AnalysisTimeout))
	}

	var def analyzer.Engine
	for _, e := range all {
		if e.Name() == cfg.DefaultEngine {
			def = e
		}
	}
	if def == nil {
		return nil, fmt.Errorf("engine %q is not configured", cfg.DefaultEngine)
	}
	return analyzer.NewManager(def, all...), nil
}
