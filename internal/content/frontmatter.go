package content

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// splitFrontmatter separates an optional leading YAML frontmatter block
// from the markdown body. Documents without a frontmatter block return an
// empty map and the input unchanged.
//
// A block that opens but never closes is not frontmatter; the whole input
// is treated as body. A closed block with invalid YAML yields an empty map
// and the body after the closing delimiter, so one bad header never blocks
// the document itself.
func splitFrontmatter(input string) (map[string]any, string) {
	normalized := strings.ReplaceAll(input, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontmatterDelimiter+"\n") {
		return map[string]any{}, input
	}

	rest := normalized[len(frontmatterDelimiter)+1:]
	closing := strings.Index(rest, "\n"+frontmatterDelimiter)
	if closing < 0 {
		return map[string]any{}, input
	}

	yamlBlock := rest[:closing]
	body := rest[closing+len(frontmatterDelimiter)+1:]
	body = strings.TrimPrefix(body, "\n")

	fields := map[string]any{}
	if err := yaml.Unmarshal([]byte(yamlBlock), &fields); err != nil || fields == nil {
		return map[string]any{}, body
	}
	return fields, body
}
