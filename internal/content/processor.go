package content

import (
	"regexp"
	"strings"
)

// Extraction helpers for the document metadata returned alongside content.
// All of them tolerate malformed input and fall back to something sensible
// rather than erroring.

const (
	defaultDescriptionLength = 160
	wordsPerMinute           = 200
)

var (
	firstHeadingPattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	mdExtensionPattern  = regexp.MustCompile(`(?i)\.(md|markdown)$`)

	headingLinePattern = regexp.MustCompile(`(?m)^#.+$`)
	boldPattern        = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern      = regexp.MustCompile(`\*(.+?)\*`)
	inlineSpanPattern  = regexp.MustCompile("`(.+?)`")
	linkTextPattern    = regexp.MustCompile(`\[(.+?)\]\(.+?\)`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
)

// ExtractTitle returns the document title: frontmatter title first, then
// the first level-one heading, then a cleaned-up filename, then "Untitled".
func ExtractTitle(input, filename string) string {
	frontmatter, body := splitFrontmatter(input)

	if title, ok := frontmatter["title"].(string); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if match := firstHeadingPattern.FindStringSubmatch(body); match != nil {
		return strings.TrimSpace(match[1])
	}
	if filename != "" {
		name := mdExtensionPattern.ReplaceAllString(filename, "")
		name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
		return name
	}
	return "Untitled"
}

// ExtractDescription returns a plain-text summary of the body, truncated
// at a word boundary near maxLength. Zero maxLength uses the default.
func ExtractDescription(input string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = defaultDescriptionLength
	}
	_, body := splitFrontmatter(input)

	plain := headingLinePattern.ReplaceAllString(body, "")
	plain = boldPattern.ReplaceAllString(plain, "$1")
	plain = italicPattern.ReplaceAllString(plain, "$1")
	plain = inlineSpanPattern.ReplaceAllString(plain, "$1")
	plain = linkTextPattern.ReplaceAllString(plain, "$1")
	plain = strings.TrimSpace(whitespaceRun.ReplaceAllString(plain, " "))

	runes := []rune(plain)
	if len(runes) <= maxLength {
		return plain
	}

	truncated := string(runes[:maxLength])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > maxLength*8/10 {
		return truncated[:lastSpace] + "..."
	}
	return truncated + "..."
}

// ExtractTags returns the frontmatter tags list, keeping only non-empty
// string entries.
func ExtractTags(input string) []string {
	frontmatter, _ := splitFrontmatter(input)

	raw, ok := frontmatter["tags"].([]any)
	if !ok {
		return []string{}
	}
	tags := make([]string, 0, len(raw))
	for _, entry := range raw {
		if tag, ok := entry.(string); ok {
			if trimmed := strings.TrimSpace(tag); trimmed != "" {
				tags = append(tags, trimmed)
			}
		}
	}
	return tags
}

// ReadingTime estimates reading time in whole minutes, never below one.
func ReadingTime(input string) int {
	_, body := splitFrontmatter(input)
	words := len(strings.Fields(body))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
