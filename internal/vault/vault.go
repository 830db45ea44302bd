package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// Vault is the on-disk markdown workspace generated articles are written
// into. All writes go through SafeJoin so model-derived names can never
// escape the vault root.
type Vault struct {
	root string
}

// New creates a Vault rooted at the given directory. The root is resolved to
// an absolute path so traversal checks are unambiguous.
func New(root string) (*Vault, error) {
	if root == "" {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED, "vault root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, types.WrapError(types.VAULT_WRITE_FAILED, "failed to resolve vault root", err)
	}
	return &Vault{root: abs}, nil
}

// Root returns the absolute vault root.
func (v *Vault) Root() string {
	return v.root
}

// SafeJoin joins relative path elements onto the vault root and rejects any
// result that resolves outside it. Entity names come from model output, so
// this check runs before every write.
func (v *Vault) SafeJoin(elems ...string) (string, error) {
	joined := filepath.Join(append([]string{v.root}, elems...)...)
	cleaned := filepath.Clean(joined)

	if cleaned != v.root && !strings.HasPrefix(cleaned, v.root+string(filepath.Separator)) {
		return "", types.NewError(types.PATH_TRAVERSAL_REJECTED,
			fmt.Sprintf("path escapes vault root: %s", filepath.Join(elems...)))
	}
	return cleaned, nil
}

// SafeWrite writes content to a vault-relative path, creating parent
// directories and using a temp-file rename so readers never see a partial
// article.
func (v *Vault) SafeWrite(relPath string, content []byte) (string, error) {
	path, err := v.SafeJoin(relPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", types.WrapError(types.VAULT_WRITE_FAILED, "failed to create vault directory", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", types.WrapError(types.VAULT_WRITE_FAILED, "failed to write article", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", types.WrapError(types.VAULT_WRITE_FAILED, "failed to finalize article", err)
	}

	return path, nil
}

// Read returns the content of a vault-relative path.
func (v *Vault) Read(relPath string) ([]byte, error) {
	path, err := v.SafeJoin(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.VAULT_WRITE_FAILED, "failed to read article", err)
	}
	return data, nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9 _-]+`)
var slugSpaces = regexp.MustCompile(`[\s_]+`)

// Slug converts an entity name into a stable filename stem: lowercase,
// punctuation stripped, spaces collapsed to hyphens.
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "untitled"
	}
	return s
}

// ArticlePath returns the vault-relative path for an entity's article,
// grouped by category directory.
func ArticlePath(category, name string) string {
	if category == "" {
		return Slug(name) + ".md"
	}
	return filepath.Join(Slug(category), Slug(name)+".md")
}
