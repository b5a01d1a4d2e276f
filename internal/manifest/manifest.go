// Package manifest defines the package manifest shape distributed with a
// veneer package and validates it before any file is touched.
//
// A manifest is consumed verbatim from the package archive as manifest.json.
// Validation is fail-fast: every declared source must resolve to a regular
// file inside the extracted package root before the first copy begins.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CommandKindMaintenance is the only post-install command kind currently
// defined. Commands are threaded through to the caller, never executed.
const CommandKindMaintenance = "maintenance-command"

// Manifest describes a versioned set of file overlays.
type Manifest struct {
	Version       string        `json:"version"`
	Compatibility Compatibility `json:"compatibility"`
	Files         []FileEntry   `json:"files"`
	PostInstall   []Command     `json:"post_install,omitempty"`
}

// Compatibility bounds the panel versions a package supports.
// Empty strings mean unbounded.
type Compatibility struct {
	PanelMin string `json:"panel_min,omitempty"`
	PanelMax string `json:"panel_max,omitempty"`
}

// FileEntry maps one file from the package root to the installation root.
type FileEntry struct {
	// Source is a relative path within the extracted package.
	Source string `json:"source"`
	// Target is a relative path within the installation root.
	Target string `json:"target"`
	// SHA256 is an optional hex digest of the source contents. When empty
	// the entry is trusted without verification.
	SHA256 string `json:"sha256,omitempty"`
}

// Command is post-install guidance surfaced to the operator.
type Command struct {
	Kind string `json:"type"`
	Text string `json:"command"`
}

// ValidationError reports which manifest field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "manifest validation failed for " + e.Field + ": " + e.Message
	}
	return "manifest validation failed: " + e.Message
}

// Parse decodes a manifest from raw JSON and validates its structure.
// Filesystem checks against a package root are done separately by
// ValidateSources.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Load reads and parses manifest.json from the extracted package root.
func Load(packageRoot string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(packageRoot, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Validate performs structural validation on the manifest.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return &ValidationError{Field: "version", Message: "version cannot be empty"}
	}

	if len(m.Files) == 0 {
		return &ValidationError{Field: "files", Message: "manifest declares no files"}
	}

	for i, f := range m.Files {
		if f.Source == "" {
			return &ValidationError{Field: fmt.Sprintf("files[%d].source", i), Message: "source cannot be empty"}
		}
		if f.Target == "" {
			return &ValidationError{Field: fmt.Sprintf("files[%d].target", i), Message: "target cannot be empty"}
		}
		if err := validateRelativePath(f.Source); err != nil {
			return &ValidationError{Field: fmt.Sprintf("files[%d].source", i), Message: err.Error()}
		}
		if err := validateRelativePath(f.Target); err != nil {
			return &ValidationError{Field: fmt.Sprintf("files[%d].target", i), Message: err.Error()}
		}
		if f.SHA256 != "" && !isHexDigest(f.SHA256) {
			return &ValidationError{Field: fmt.Sprintf("files[%d].sha256", i), Message: "digest must be 64 hex characters"}
		}
	}

	for i, c := range m.PostInstall {
		if c.Kind != CommandKindMaintenance {
			return &ValidationError{Field: fmt.Sprintf("post_install[%d].type", i), Message: fmt.Sprintf("unknown command kind %q", c.Kind)}
		}
		if c.Text == "" {
			return &ValidationError{Field: fmt.Sprintf("post_install[%d].command", i), Message: "command cannot be empty"}
		}
	}

	return nil
}

// ValidateSources verifies that every declared source resolves to an
// existing regular file under the package root. This runs before any
// mutation of the installation root.
func (m *Manifest) ValidateSources(packageRoot string) error {
	for i, f := range m.Files {
		path := filepath.Join(packageRoot, filepath.FromSlash(f.Source))
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return &ValidationError{
					Field:   fmt.Sprintf("files[%d].source", i),
					Message: fmt.Sprintf("source file not found: %s", f.Source),
				}
			}
			return fmt.Errorf("stat source %s: %w", f.Source, err)
		}
		if !info.Mode().IsRegular() {
			return &ValidationError{
				Field:   fmt.Sprintf("files[%d].source", i),
				Message: fmt.Sprintf("source is not a regular file: %s", f.Source),
			}
		}
	}
	return nil
}

// validateRelativePath rejects absolute paths and traversal outside the
// root the path will be joined to.
func validateRelativePath(path string) error {
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return fmt.Errorf("absolute paths not allowed: %s", path)
	}

	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("path traversal not allowed: %s", path)
	}

	return nil
}

// isHexDigest reports whether s looks like a SHA-256 hex digest.
func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
