package pipeline

import (
	"github.com/dd0wney/cluso-corrnet/pkg/algorithms"
	"github.com/dd0wney/cluso-corrnet/pkg/correlation"
	"github.com/dd0wney/cluso-corrnet/pkg/market"
	"github.com/dd0wney/cluso-corrnet/pkg/network"
	"github.com/dd0wney/cluso-corrnet/pkg/validation"
)

// Config holds the settings of every stage
type Config struct {
	Returns     market.ReturnsOptions
	Correlation correlation.EngineOptions
	// Window keeps only the last Window return rows; 0 uses the full history
	Window    int
	Network   network.Policy
	Community algorithms.LouvainOptions
	PageRank  algorithms.PageRankOptions
}

// DefaultConfig returns the defaults of every stage
func DefaultConfig() Config {
	return Config{
		Returns:     market.DefaultReturnsOptions(),
		Correlation: correlation.DefaultEngineOptions(),
		Network:     network.DefaultPolicy(),
		Community:   algorithms.DefaultLouvainOptions(),
		PageRank:    algorithms.DefaultPageRankOptions(),
	}
}

// Validate checks every stage and reports all problems at once
func (c Config) Validate() error {
	return validation.NewConfigValidator("pipeline").
		Merge(c.Returns.Validate()).
		Merge(c.Correlation.Validate()).
		NonNegative("Window", c.Window).
		Merge(c.Network.Validate()).
		Merge(c.Community.Validate()).
		Merge(c.PageRank.Validate()).
		Validate()
}
