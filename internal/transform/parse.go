// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package transform

import (
	"fmt"
)

// LogMode controls transform diff logging.
type LogMode int

const (
	// LogOff emits nothing.
	LogOff LogMode = iota
	// LogSummary emits one before/after diff per stage invocation.
	LogSummary
	// LogAll emits one diff per hook in a stage's array.
	LogAll
)

// Config is the normalized rule tree for one source or client. The zero
// value is a valid no-op configuration.
type Config struct {
	PreCompare       []Hook
	CompareCandidate []Hook
	CompareExisting  []Hook
	PostCompare      []Hook
	Log              LogMode
}

// Empty reports whether no stage carries any hook.
func (c *Config) Empty() bool {
	if c == nil {
		return true
	}
	return len(c.PreCompare) == 0 && len(c.CompareCandidate) == 0 &&
		len(c.CompareExisting) == 0 && len(c.PostCompare) == 0
}

// Parse normalizes a raw playTransform mapping (as decoded from JSON or
// YAML config) into a Config. A nil mapping yields a no-op Config.
// Malformed shapes and uncompilable regexes are configuration errors:
// the owning component must fail initialization rather than run with a
// partial transform.
func Parse(raw map[string]interface{}) (*Config, error) {
	cfg := &Config{}
	if raw == nil {
		return cfg, nil
	}

	for key, val := range raw {
		var err error
		switch key {
		case "preCompare":
			cfg.PreCompare, err = parseHooks(val)
		case "postCompare":
			cfg.PostCompare, err = parseHooks(val)
		case "compare":
			err = parseCompare(val, cfg)
		case "log":
			cfg.Log, err = parseLogMode(val)
		default:
			return nil, fmt.Errorf("playTransform: unknown key %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("playTransform.%s: %w", key, err)
		}
	}
	return cfg, nil
}

func parseCompare(v interface{}, cfg *Config) error {
	m, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Errorf("expected {candidate, existing} mapping, got %T", v)
	}
	for key, val := range m {
		var err error
		switch key {
		case "candidate":
			cfg.CompareCandidate, err = parseHooks(val)
		case "existing":
			cfg.CompareExisting, err = parseHooks(val)
		default:
			return fmt.Errorf("unknown key %q", key)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// parseHooks accepts a single hook mapping or a list of them.
func parseHooks(v interface{}) ([]Hook, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		h, err := parseHook(t)
		if err != nil {
			return nil, err
		}
		return []Hook{h}, nil
	case []interface{}:
		hooks := make([]Hook, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("hook %d: expected mapping, got %T", i, item)
			}
			h, err := parseHook(m)
			if err != nil {
				return nil, fmt.Errorf("hook %d: %w", i, err)
			}
			hooks = append(hooks, h)
		}
		return hooks, nil
	default:
		return nil, fmt.Errorf("expected hook or hook list, got %T", v)
	}
}

func parseHook(m map[string]interface{}) (Hook, error) {
	var h Hook
	for key, val := range m {
		var err error
		switch key {
		case "when":
			h.When, err = parseWhen(val)
		case "title":
			h.Title, err = parseRules(val)
		case "artists":
			h.Artists, err = parseRules(val)
		case "album":
			h.Album, err = parseRules(val)
		default:
			return Hook{}, fmt.Errorf("unknown key %q", key)
		}
		if err != nil {
			return Hook{}, fmt.Errorf("%s: %w", key, err)
		}
	}
	return h, nil
}

// parseRules accepts a single rule or a list. Each rule is a bare string
// (match and remove) or a {search, replace, when} mapping.
func parseRules(v interface{}) ([]Rule, error) {
	items, ok := v.([]interface{})
	if !ok {
		items = []interface{}{v}
	}
	rules := make([]Rule, 0, len(items))
	for i, item := range items {
		r, err := parseRule(item)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func parseRule(v interface{}) (Rule, error) {
	switch t := v.(type) {
	case string:
		p, err := ParsePattern(t)
		if err != nil {
			return Rule{}, err
		}
		return Rule{Search: p}, nil
	case map[string]interface{}:
		var r Rule
		sawSearch := false
		for key, val := range t {
			switch key {
			case "search":
				s, ok := val.(string)
				if !ok {
					return Rule{}, fmt.Errorf("search: expected string, got %T", val)
				}
				p, err := ParsePattern(s)
				if err != nil {
					return Rule{}, err
				}
				r.Search = p
				sawSearch = true
			case "replace":
				s, ok := val.(string)
				if !ok {
					return Rule{}, fmt.Errorf("replace: expected string, got %T", val)
				}
				r.Replace = translateReplacement(s)
			case "when":
				w, err := parseWhen(val)
				if err != nil {
					return Rule{}, err
				}
				r.When = w
			default:
				return Rule{}, fmt.Errorf("unknown key %q", key)
			}
		}
		if !sawSearch {
			return Rule{}, fmt.Errorf("rule object requires a search field")
		}
		return r, nil
	default:
		return Rule{}, fmt.Errorf("expected string or {search, replace} mapping, got %T", v)
	}
}

// parseWhen accepts a single clause mapping or a list of them.
func parseWhen(v interface{}) ([]WhenClause, error) {
	items, ok := v.([]interface{})
	if !ok {
		items = []interface{}{v}
	}
	clauses := make([]WhenClause, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("when %d: expected mapping, got %T", i, item)
		}
		var c WhenClause
		for key, val := range m {
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("when %d.%s: expected string, got %T", i, key, val)
			}
			p, err := ParsePattern(s)
			if err != nil {
				return nil, fmt.Errorf("when %d.%s: %w", i, key, err)
			}
			switch key {
			case "artist":
				c.Artist = &p
			case "album":
				c.Album = &p
			case "title":
				c.Title = &p
			default:
				return nil, fmt.Errorf("when %d: unknown key %q", i, key)
			}
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

func parseLogMode(v interface{}) (LogMode, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return LogSummary, nil
		}
		return LogOff, nil
	case string:
		switch t {
		case "all":
			return LogAll, nil
		case "true":
			return LogSummary, nil
		case "false", "":
			return LogOff, nil
		}
		return LogOff, fmt.Errorf("expected bool or \"all\", got %q", t)
	default:
		return LogOff, fmt.Errorf("expected bool or \"all\", got %T", v)
	}
}
