// internal/workers/assignment/recommend-assignments/config.go
package recommendassignments

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
