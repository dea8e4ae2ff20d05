package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the config for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}

	if c.Server.URL == "" {
		errs = append(errs, fmt.Errorf("server.url is required"))
	} else if err := checkURL(c.Server.URL); err != nil {
		errs = append(errs, fmt.Errorf("server.url: %w", err))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, fmt.Errorf("server.timeout must not be negative, got %s", c.Server.Timeout))
	}

	if c.Poll.Interval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("poll.interval must be at least 100ms, got %s", c.Poll.Interval))
	}
	if c.UI.NotifyDuration <= 0 {
		errs = append(errs, fmt.Errorf("ui.notify_duration must be positive, got %s", c.UI.NotifyDuration))
	}

	if !logLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error; got %q", c.Log.Level))
	}

	return errs
}

func checkURL(raw string) error {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
