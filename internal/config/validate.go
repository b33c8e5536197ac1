package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Paths.MinFreeGiB < 0 {
		return errors.New("paths.min_free_gib must be >= 0")
	}
	if c.Fetch.TimeoutSeconds < 0 {
		return errors.New("fetch.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.VideoCRF < 0 || c.Encoding.VideoCRF > 51 {
		return fmt.Errorf("encoding.video_crf must be between 0 and 51, got %d", c.Encoding.VideoCRF)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendLocal:
	case StorageBackendHTTP:
		if c.Storage.BaseURL == "" {
			return errors.New("storage.base_url must be set when storage.backend is \"http\"")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q", c.Storage.Backend)
	}
	if c.Storage.BaseURL != "" {
		parsed, err := url.Parse(c.Storage.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("storage.base_url must be an absolute URL, got %q", c.Storage.BaseURL)
		}
	}
	if c.Storage.TimeoutSeconds < 0 {
		return errors.New("storage.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
