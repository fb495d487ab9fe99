// Package sanitize provides HTML sanitization for rendered markdown.
// Uses bluemonday to strip dangerous HTML (script tags, event handlers,
// javascript: URLs) from the goldmark output before it is sent to the
// browser for innerHTML-style rendering.
package sanitize

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton bluemonday policy for sanitizing rendered HTML.
// Initialized once via sync.Once for thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared sanitization policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()

		// goldmark emits class="language-*" on fenced code blocks; the
		// viewer's highlighter keys off it.
		policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")

		// Tables from the GFM extension.
		policy.AllowElements("table", "thead", "tbody", "tfoot", "tr", "td", "th")
		policy.AllowAttrs("align").OnElements("td", "th")

		// Task list checkboxes render as disabled inputs.
		policy.AllowAttrs("type", "checked", "disabled").OnElements("input")
	})
	return policy
}

// HTML sanitizes rendered markdown HTML by stripping dangerous elements
// while preserving safe formatting tags.
//
// This MUST be called on every rendered document before it leaves the
// server. The upstream repository is only password-gated, not trusted.
func HTML(input string) string {
	if input == "" {
		return ""
	}
	return getPolicy().Sanitize(input)
}
