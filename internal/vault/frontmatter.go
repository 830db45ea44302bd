package vault

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// Article review statuses stamped into frontmatter. An article that exhausted
// its revision budget carries StatusNeedsReview so a human pass can find it.
const (
	StatusGenerated   = "generated"
	StatusNeedsReview = "needs-review"
)

// Frontmatter is the YAML header stamped onto every generated article.
type Frontmatter struct {
	Title     string   `yaml:"title"`
	Category  string   `yaml:"category,omitempty"`
	Tier      int      `yaml:"tier,omitempty"`
	Status    string   `yaml:"status"`
	Tags      []string `yaml:"tags,omitempty"`
	Generated string   `yaml:"generated"`
}

// Stamp prepends (or replaces) a frontmatter block on the article body.
func Stamp(body string, fm Frontmatter) (string, error) {
	if fm.Generated == "" {
		fm.Generated = time.Now().UTC().Format(time.RFC3339)
	}
	if fm.Status == "" {
		fm.Status = StatusGenerated
	}
	sort.Strings(fm.Tags)

	header, err := yaml.Marshal(&fm)
	if err != nil {
		return "", types.WrapError(types.VAULT_WRITE_FAILED, "failed to serialize frontmatter", err)
	}

	body = stripFrontmatter(body)
	return fmt.Sprintf("---\n%s---\n\n%s", header, strings.TrimLeft(body, "\n")), nil
}

// ParseFrontmatter extracts the frontmatter block from an article, returning
// the parsed header and the remaining body. Articles without frontmatter
// return a zero Frontmatter and the full content.
func ParseFrontmatter(content string) (Frontmatter, string) {
	var fm Frontmatter
	if !strings.HasPrefix(content, "---\n") {
		return fm, content
	}
	rest := content[4:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return fm, content
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return Frontmatter{}, content
	}
	body := strings.TrimLeft(rest[end+4:], "\n")
	return fm, body
}

// stripFrontmatter removes an existing frontmatter block, if any.
func stripFrontmatter(content string) string {
	if !strings.HasPrefix(content, "---\n") {
		return content
	}
	rest := content[4:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return content
	}
	return strings.TrimLeft(rest[end+4:], "\n")
}
