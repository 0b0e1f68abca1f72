package config

import "time"

type Limits struct {
	MaxConcurrentGenerators int             `yaml:"max_concurrent_generators" validate:"required,min=1,max=100"`
	MaxContextTokens        int             `yaml:"max_context_tokens" validate:"required,min=500,max=200000"`
	KeepTailSegments        int             `yaml:"keep_tail_segments" validate:"required,min=1,max=50"`
	MaxClarifyTurns         int             `yaml:"max_clarify_turns" validate:"required,min=1,max=10"`
	ItemTimeout             time.Duration   `yaml:"item_timeout" validate:"required,min=10s,max=1h"`
	MaxRetries              int             `yaml:"max_retries" validate:"min=0,max=10"`
	RateLimit               RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxConcurrentGenerators: 5,
		MaxContextTokens:        8000,
		KeepTailSegments:        4,
		MaxClarifyTurns:         3,
		ItemTimeout:             3 * time.Minute,
		MaxRetries:              3,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         10,
		},
	}
}
