package recitation

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/usecases"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// Config holds the recitation module configuration.
type Config struct {
	LavalinkAddress  string `env:"LAVALINK_ADDRESS,notEmpty"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD,notEmpty"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE"`

	QuranAPIBaseURL      string `env:"QURAN_API_BASE_URL" envDefault:"https://api.alquran.cloud/v1"`
	APIRequestsPerMinute int    `env:"API_REQUESTS_PER_MINUTE" envDefault:"120"`

	AudioCDNBaseURL   string `env:"AUDIO_CDN_BASE_URL" envDefault:"https://cdn.islamic.network/quran/audio/128"`
	AudioCDNExtension string `env:"AUDIO_CDN_EXTENSION" envDefault:"mp3"`

	// RecordingsDir enables the user-recordings reciter when set.
	RecordingsDir string `env:"RECORDINGS_DIR"`

	DefaultReciter string            `env:"DEFAULT_RECITER" envDefault:"ar.alafasy"`
	Reciters       map[string]string `env:"RECITERS" envDefault:"ar.alafasy:Mishary Alafasy,ar.husary:Mahmoud Khalil Al-Husary,ar.minshawi:Mohamed Siddiq al-Minshawi"`

	InfiniteVerseRepeatCap int `env:"INFINITE_VERSE_REPEAT_CAP" envDefault:"10"`

	RetryAttempts int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	RetryTimeout  time.Duration `env:"RETRY_TIMEOUT" envDefault:"5s"`
	RetryBackoff  time.Duration `env:"RETRY_BACKOFF" envDefault:"250ms"`

	AudioCacheSize int `env:"AUDIO_CACHE_SIZE" envDefault:"512"`
}

// LoadConfig parses the module configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := c.Reciters[c.DefaultReciter]; !ok && !domain.IsUserRecordingsID(c.DefaultReciter) {
		errs = append(errs, fmt.Errorf("DEFAULT_RECITER %q is not listed in RECITERS", c.DefaultReciter))
	}
	if domain.IsUserRecordingsID(c.DefaultReciter) && c.RecordingsDir == "" {
		errs = append(errs, errors.New("DEFAULT_RECITER is the user reciter but RECORDINGS_DIR is not set"))
	}
	if c.InfiniteVerseRepeatCap < 1 {
		errs = append(errs, fmt.Errorf("INFINITE_VERSE_REPEAT_CAP must be at least 1, got %d", c.InfiniteVerseRepeatCap))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("RETRY_ATTEMPTS must be at least 1, got %d", c.RetryAttempts))
	}
	if c.RetryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RETRY_TIMEOUT must be positive, got %s", c.RetryTimeout))
	}
	if c.APIRequestsPerMinute < 1 {
		errs = append(errs, fmt.Errorf("API_REQUESTS_PER_MINUTE must be at least 1, got %d", c.APIRequestsPerMinute))
	}

	return errors.Join(errs...)
}

// RetryPolicy returns the retry policy for audio resolution and playback.
func (c *Config) RetryPolicy() usecases.RetryPolicy {
	policy := usecases.DefaultRetryPolicy()
	policy.Attempts = c.RetryAttempts
	policy.Timeout = c.RetryTimeout
	policy.Backoff = c.RetryBackoff
	return policy
}
