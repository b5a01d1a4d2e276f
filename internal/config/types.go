// Package config resolves the operator-supplied veneer configuration from
// a sandboxed Lua file.
//
// The config names the installation root, the licensing identity
// (owner/app/license key) and optional hardening knobs. It is parsed with
// gopher-lua in a restricted VM so config files stay declarative and cannot
// touch the filesystem or run commands.
package config

import (
	"fmt"
	"net/url"
)

// Config is the resolved veneer configuration. Owner and app identifiers
// are carried here explicitly and handed to the orchestrator at
// construction; nothing in the engine reads them from package-level state.
type Config struct {
	// Panel is the installation root the overlay is applied to.
	Panel string `json:"panel"`

	// Owner and App identify the package distribution to the licensing API.
	Owner string `json:"owner"`
	App   string `json:"app"`

	// LicenseKey authorizes the fetch.
	LicenseKey string `json:"license_key"`

	// EncryptionKey, HWID and Token are optional licensing inputs. An empty
	// HWID is filled in from the local hardware id at run time.
	EncryptionKey string `json:"encryption_key,omitempty"`
	HWID          string `json:"hwid,omitempty"`
	Token         string `json:"token,omitempty"`

	// API is the base URL of the licensing endpoint. Must be https.
	API string `json:"api"`

	Options Options `json:"options,omitempty"`
}

// Options contains engine tuning knobs.
type Options struct {
	// StrictChecksums selects the file-mapper failure policy: when true
	// (the default) any digest mismatch aborts the whole apply before any
	// file is copied; when false mismatching files are skipped per-file.
	StrictChecksums bool `json:"strict_checksums"`

	// BackupRetention is the number of pre-update backup bundles to keep.
	// Zero keeps all bundles.
	BackupRetention int `json:"backup_retention,omitempty"`

	// VerifySignatures enables OpenPGP verification of API response bodies
	// against Keyring.
	VerifySignatures bool `json:"verify_signatures,omitempty"`

	// Keyring is the path to the armored public keyring used when
	// VerifySignatures is set.
	Keyring string `json:"keyring,omitempty"`
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

// Validate performs basic validation on a Config.
func (c *Config) Validate() error {
	if c.Panel == "" {
		return &ValidationError{Field: "panel", Message: "panel path cannot be empty"}
	}
	if c.Owner == "" {
		return &ValidationError{Field: "owner", Message: "owner id cannot be empty"}
	}
	if c.App == "" {
		return &ValidationError{Field: "app", Message: "app name cannot be empty"}
	}
	if c.LicenseKey == "" {
		return &ValidationError{Field: "license_key", Message: "license key cannot be empty"}
	}

	if c.API == "" {
		return &ValidationError{Field: "api", Message: "api base URL cannot be empty"}
	}
	u, err := url.Parse(c.API)
	if err != nil {
		return &ValidationError{Field: "api", Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	if u.Scheme != "https" {
		return &ValidationError{Field: "api", Message: fmt.Sprintf("api URL must use https:// (got: %s)", u.Scheme)}
	}

	if c.Options.BackupRetention < 0 {
		return &ValidationError{Field: "options.backup_retention", Message: "backup retention cannot be negative"}
	}
	if c.Options.VerifySignatures && c.Options.Keyring == "" {
		return &ValidationError{Field: "options.keyring", Message: "keyring path required when verify_signatures is enabled"}
	}

	return nil
}
