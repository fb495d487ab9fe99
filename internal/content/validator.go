// Package content implements the markdown safety pipeline and the
// authenticated content endpoints. Every document fetched from the
// mirrored repository passes through validation before it is served;
// nothing is ever served partially.
package content

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Size caps for a single document.
const (
	maxFileSize      = 1 << 20 // 1 MiB of UTF-8 bytes
	maxContentLength = 500000  // characters
)

// Code spans are stripped before the security scan so documentation ABOUT
// dangerous HTML does not trip the scanner.
var (
	codeBlockPattern  = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern = regexp.MustCompile("`[^`]*`")
)

// dangerousPattern pairs a scanner regex with the error it produces.
type dangerousPattern struct {
	pattern *regexp.Regexp
	message string
}

var dangerousPatterns = []dangerousPattern{
	{regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`), "Script tags are not allowed"},
	{regexp.MustCompile(`(?i)<iframe[^>]*src\s*=\s*["'][^"']*javascript:`), "JavaScript iframes are not allowed"},
	{regexp.MustCompile(`(?i)<object[^>]*>`), "Object embeds are not allowed"},
	{regexp.MustCompile(`(?i)<embed[^>]*>`), "Embed tags are not allowed"},
}

var (
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)

	suspiciousURLPrefixes = []string{"javascript:", "data:", "vbscript:", "file:"}

	// Sanitizer passes run on the ORIGINAL content, code spans included.
	scriptTagPattern    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	eventHandlerPattern = regexp.MustCompile(`(?i)on\w+\s*=\s*["'][^"']*["']`)
	hrefJSPattern       = regexp.MustCompile(`(?i)href\s*=\s*["']javascript:[^"']*["']`)
	srcDataHTMLPattern  = regexp.MustCompile(`(?i)src\s*=\s*["']data:text/html[^"']*["']`)

	dangerousFilenameChars = regexp.MustCompile(`[<>:"|?*\x00-\x1f]`)
)

// Frontmatter keys that are rejected outright.
var dangerousFrontmatterKeys = []string{"script", "javascript", "eval", "function"}

// ValidationResult is the outcome of the full pipeline. Errors make the
// document unservable; warnings ride along with a served document.
type ValidationResult struct {
	IsValid          bool           `json:"isValid"`
	Errors           []string       `json:"errors"`
	Warnings         []string       `json:"warnings"`
	SanitizedContent string         `json:"sanitizedContent,omitempty"`
	Frontmatter      map[string]any `json:"frontmatter,omitempty"`
}

// markdownParser is the shared goldmark instance used for the syntax
// check. GFM matches what the viewer renders.
var markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Validate runs the full safety pipeline on a markdown document. The
// filename is optional; when given it gets its own checks.
//
// Pipeline order matters: a size failure short-circuits everything else,
// and sanitization only runs on documents with zero errors.
func Validate(input, filename string) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []string{}, Warnings: []string{}}

	if !validateSize(input, &result) {
		result.IsValid = false
		return result
	}

	frontmatter, body := splitFrontmatter(input)
	result.Frontmatter = frontmatter

	validateFrontmatter(frontmatter, &result)
	validateSecurity(body, &result)
	validateSyntax(body, &result)
	if filename != "" {
		validateFilename(filename, &result)
	}

	result.IsValid = len(result.Errors) == 0
	if result.IsValid {
		result.SanitizedContent = sanitizeContent(input)
	}
	return result
}

// QuickValidate is the cheap pre-check used before the full pipeline is
// worth running. Unlike Validate it does not exclude code spans, so it can
// reject documentation that the full pipeline would accept.
func QuickValidate(input string) (bool, string) {
	if strings.TrimSpace(input) == "" {
		return false, "Content is empty"
	}
	if len(input) > maxFileSize {
		return false, "File too large"
	}
	lowered := strings.ToLower(input)
	for _, needle := range []string{"<script", "javascript:", "data:text/html"} {
		if strings.Contains(lowered, needle) {
			return false, "Content contains potentially dangerous elements"
		}
	}
	return true, ""
}

func validateSize(input string, result *ValidationResult) bool {
	if len(input) > maxFileSize {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"File too large: %dKB (max: %dKB)", len(input)/1024, maxFileSize/1024))
		return false
	}
	if chars := len([]rune(input)); chars > maxContentLength {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"Content too long: %d characters (max: %d)", chars, maxContentLength))
		return false
	}
	if strings.TrimSpace(input) == "" {
		result.Errors = append(result.Errors, "Content cannot be empty")
		return false
	}
	return true
}

func validateSecurity(body string, result *ValidationResult) {
	stripped := codeBlockPattern.ReplaceAllString(body, "")
	stripped = inlineCodePattern.ReplaceAllString(stripped, "")

	for _, dp := range dangerousPatterns {
		if dp.pattern.MatchString(stripped) {
			result.Errors = append(result.Errors, dp.message)
		}
	}

	// Link targets are scanned across the whole body, code spans included,
	// since a javascript: link is worth a warning even in an example.
	for _, match := range markdownLinkPattern.FindAllStringSubmatch(body, -1) {
		target := strings.TrimSpace(match[2])
		if isSuspiciousURL(target) {
			result.Warnings = append(result.Warnings,
				"Potentially suspicious URL detected: "+target)
		}
	}
}

func isSuspiciousURL(target string) bool {
	lowered := strings.ToLower(target)
	for _, prefix := range suspiciousURLPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

// validateSyntax runs the document through the markdown parser and records
// a conversion failure as an error.
func validateSyntax(body string, result *ValidationResult) {
	if err := markdownParser.Convert([]byte(body), io.Discard); err != nil {
		result.Errors = append(result.Errors, "Markdown syntax error: "+err.Error())
	}
}

func validateFrontmatter(frontmatter map[string]any, result *ValidationResult) {
	if len(frontmatter) == 0 {
		return
	}

	if title, ok := frontmatter["title"]; ok {
		if _, isString := title.(string); !isString {
			result.Warnings = append(result.Warnings, "Frontmatter title should be a string")
		}
	}
	if order, ok := frontmatter["order"]; ok {
		if !isNonNegativeNumber(order) {
			result.Warnings = append(result.Warnings, "Frontmatter order should be a positive number")
		}
	}
	if hidden, ok := frontmatter["hidden"]; ok {
		if _, isBool := hidden.(bool); !isBool {
			result.Warnings = append(result.Warnings, "Frontmatter hidden should be a boolean")
		}
	}
	if tags, ok := frontmatter["tags"]; ok {
		if _, isList := tags.([]any); !isList {
			result.Warnings = append(result.Warnings, "Frontmatter tags should be an array")
		}
	}

	for _, key := range dangerousFrontmatterKeys {
		if _, present := frontmatter[key]; present {
			result.Errors = append(result.Errors, "Dangerous frontmatter field: "+key)
		}
	}
}

func isNonNegativeNumber(v any) bool {
	switch n := v.(type) {
	case int:
		return n >= 0
	case int64:
		return n >= 0
	case float64:
		return n >= 0
	default:
		return false
	}
}

func validateFilename(filename string, result *ValidationResult) {
	lowered := strings.ToLower(filename)
	if !strings.HasSuffix(lowered, ".md") && !strings.HasSuffix(lowered, ".markdown") {
		result.Warnings = append(result.Warnings, "File should have .md or .markdown extension")
	}
	if dangerousFilenameChars.MatchString(filename) {
		result.Errors = append(result.Errors, "Filename contains invalid characters")
	}
	if len(filename) > 255 {
		result.Errors = append(result.Errors, "Filename is too long")
	}
}

// sanitizeContent strips the dangerous constructs that survive in valid
// documents. It runs on the original content, frontmatter and code spans
// included, so even a fenced script tag is gone from what gets served.
func sanitizeContent(input string) string {
	out := scriptTagPattern.ReplaceAllString(input, "")
	out = eventHandlerPattern.ReplaceAllString(out, "")
	out = hrefJSPattern.ReplaceAllString(out, "")
	out = srcDataHTMLPattern.ReplaceAllString(out, "")
	return out
}
