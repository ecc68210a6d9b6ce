package analysis

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
)

// NewEngine creates the analysis engine selected by configuration.
func NewEngine(cfg *common.AnalysisConfig, logger arbor.ILogger) (interfaces.AnalysisEngine, error) {
	logger.Info().Str("provider", cfg.Provider).Msg("Initializing analysis engine")

	switch cfg.Provider {
	case "offline", "":
		return NewOfflineEngine(logger), nil
	case "claude":
		return NewClaudeEngine(&cfg.Claude, logger)
	case "gemini":
		return NewGeminiEngine(&cfg.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown analysis provider '%s': must be offline, claude, or gemini", cfg.Provider)
	}
}
