// internal/workers/assignment/index-recommendations/config.go
package indexrecommendations

import "time"

type Config struct {
	Timeout time.Duration
	Index   string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
		Index:   "assignment-recommendations",
	}
}
