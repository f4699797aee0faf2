package common

import (
	"regexp"
	"strings"
	"sync/atomic"
)

// MaskedValue replaces any value considered sensitive.
const MaskedValue = "***MASKED***"

// SensitivePattern describes how to detect one kind of secret.
type SensitivePattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Keys        []string // attribute/header names masked wholesale (case-insensitive)
}

// DefaultSensitivePatterns covers credentials that commonly show up in
// request headers, query strings and JSON bodies of verified calls.
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "password",
		Regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)(["']?\s*[:=]\s*["']?)([^"'&,}\]\s]+)`),
		Replacement: "${1}${2}" + MaskedValue,
		Keys:        []string{"password", "passwd", "pwd"},
	},
	{
		Name:        "api_key",
		Regex:       regexp.MustCompile(`(?i)(api[_-]?key)(["']?\s*[:=]\s*["']?)([^"'&,}\]\s]+)`),
		Replacement: "${1}${2}" + MaskedValue,
		Keys:        []string{"api_key", "apikey", "api-key", "x-api-key"},
	},
	{
		Name:        "token",
		Regex:       regexp.MustCompile(`(?i)((?:access|auth|refresh)?[_-]?token)(["']?\s*[:=]\s*["']?)([^"'&,}\]\s]+)`),
		Replacement: "${1}${2}" + MaskedValue,
		Keys:        []string{"token", "access_token", "auth_token", "refresh_token"},
	},
	{
		Name:        "secret",
		Regex:       regexp.MustCompile(`(?i)((?:client[_-]?)?secret)(["']?\s*[:=]\s*["']?)([^"'&,}\]\s]+)`),
		Replacement: "${1}${2}" + MaskedValue,
		Keys:        []string{"secret", "client_secret"},
	},
	{
		Name:        "bearer",
		Regex:       regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "Bearer " + MaskedValue,
	},
	{
		Name:        "basic",
		Regex:       regexp.MustCompile(`(?i)Basic\s+[A-Za-z0-9+/]+=*`),
		Replacement: "Basic " + MaskedValue,
	},
	{
		Name: "authorization",
		Keys: []string{"authorization", "proxy-authorization", "cookie", "set-cookie"},
	},
}

// Masker hides sensitive values before they reach log output.
type Masker struct {
	patterns []SensitivePattern
	enabled  atomic.Bool
}

// NewMasker creates a masker with DefaultSensitivePatterns.
func NewMasker() *Masker {
	return NewMaskerWithPatterns(DefaultSensitivePatterns)
}

// NewMaskerWithPatterns creates a masker with custom patterns
func NewMaskerWithPatterns(patterns []SensitivePattern) *Masker {
	m := &Masker{patterns: patterns}
	m.enabled.Store(true)
	return m
}

// SetEnabled enables or disables masking
func (m *Masker) SetEnabled(enabled bool) { m.enabled.Store(enabled) }

// IsEnabled returns whether masking is enabled
func (m *Masker) IsEnabled() bool { return m.enabled.Load() }

// IsSensitiveKey reports whether values stored under key are always masked.
func (m *Masker) IsSensitiveKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, p := range m.patterns {
		for _, sk := range p.Keys {
			if k == sk {
				return true
			}
		}
	}
	return false
}

// MaskString masks sensitive fragments inside s.
func (m *Masker) MaskString(s string) string {
	if !m.IsEnabled() || s == "" {
		return s
	}
	for _, p := range m.patterns {
		if p.Regex == nil {
			continue
		}
		s = p.Regex.ReplaceAllString(s, p.Replacement)
	}
	return s
}

// MaskValue masks value wholesale when key is sensitive, otherwise masks
// fragments inside it.
func (m *Masker) MaskValue(key, value string) string {
	if !m.IsEnabled() {
		return value
	}
	if m.IsSensitiveKey(key) {
		return MaskedValue
	}
	return m.MaskString(value)
}

var globalMasker = NewMasker()

// GetGlobalMasker returns the process wide masker.
func GetGlobalMasker() *Masker { return globalMasker }

// MaskSensitiveData masks s with the global masker.
func MaskSensitiveData(s string) string { return globalMasker.MaskString(s) }

// EnableMasking toggles the global masker.
func EnableMasking(enabled bool) { globalMasker.SetEnabled(enabled) }
