// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/audiographus/internal/validation"
)

// Validate checks that the loaded configuration is coherent. Struct-tag rules
// run first through the shared validator, then the cross-field checks tags
// cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateSources(); err != nil {
		return err
	}

	if err := c.validateClients(); err != nil {
		return err
	}

	if err := c.validateRouting(); err != nil {
		return err
	}

	return c.validateNotifier()
}

// validateSources checks source entries for duplicate names and empty types.
// Adapter-specific data (API keys, URLs, slugs) is validated by the adapter
// itself during initialization, where a failure can be marked fatal.
func (c *Config) validateSources() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if strings.TrimSpace(s.Type) == "" {
			return fmt.Errorf("source %q: type is required", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("source %q: duplicate name", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// validateClients checks client entries for duplicate names and empty types.
func (c *Config) validateClients() error {
	seen := make(map[string]bool, len(c.Clients))
	for i, cl := range c.Clients {
		if strings.TrimSpace(cl.Name) == "" {
			return fmt.Errorf("clients[%d]: name is required", i)
		}
		if strings.TrimSpace(cl.Type) == "" {
			return fmt.Errorf("client %q: type is required", cl.Name)
		}
		if seen[cl.Name] {
			return fmt.Errorf("client %q: duplicate name", cl.Name)
		}
		seen[cl.Name] = true
	}
	return nil
}

// validateRouting checks that every client named in a source's clients list
// actually exists. A typo here would silently drop scrobbles.
func (c *Config) validateRouting() error {
	known := make(map[string]bool, len(c.Clients))
	for _, cl := range c.Clients {
		known[cl.Name] = true
	}

	for _, s := range c.Sources {
		for _, target := range s.Clients {
			if !known[target] {
				return fmt.Errorf("source %q routes to unknown client %q", s.Name, target)
			}
		}
	}
	return nil
}

// validateNotifier checks the webhook notifier when enabled.
func (c *Config) validateNotifier() error {
	w := c.Notifier.Webhook
	if !w.Enabled {
		return nil
	}
	if w.URL == "" {
		return fmt.Errorf("notifier.webhook.url is required when the webhook notifier is enabled")
	}
	return validateHTTPURL(w.URL, "notifier.webhook.url")
}

// validateHTTPURL checks that a URL parses and uses an http or https scheme.
func validateHTTPURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", field)
	}
	return nil
}
