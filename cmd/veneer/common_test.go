package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/AnsgarHolmDietrichson/veneer/internal/testutil"
)

func TestParseFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := parseFlags(nil)
		if err != nil {
			t.Fatalf("parseFlags failed: %v", err)
		}
		if opts.configPath != defaultConfigPath {
			t.Errorf("expected default config path, got %s", opts.configPath)
		}
		if opts.verbose || opts.showHelp {
			t.Error("expected verbose and help off by default")
		}
	})

	t.Run("config path", func(t *testing.T) {
		opts, err := parseFlags([]string{"--config", "/etc/veneer.lua", "--verbose"})
		if err != nil {
			t.Fatalf("parseFlags failed: %v", err)
		}
		if opts.configPath != "/etc/veneer.lua" {
			t.Errorf("expected /etc/veneer.lua, got %s", opts.configPath)
		}
		if !opts.verbose {
			t.Error("expected verbose on")
		}
	})

	t.Run("config without a value", func(t *testing.T) {
		if _, err := parseFlags([]string{"--config"}); err == nil {
			t.Error("expected error for dangling --config")
		}
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := parseFlags([]string{"--confg", "x"})
		if err == nil || !strings.Contains(err.Error(), "unknown flag") {
			t.Errorf("expected unknown-flag error, got %v", err)
		}
	})
}

func TestRunStatus(t *testing.T) {
	t.Run("reports not installed", func(t *testing.T) {
		configPath := testutil.WriteConfig(t, t.TempDir())
		code, err := runStatus([]string{"--config", configPath})
		if err != nil {
			t.Fatalf("runStatus failed: %v", err)
		}
		if code != 1 {
			t.Errorf("expected exit code 1 when nothing is installed, got %d", code)
		}
	})

	t.Run("help exits clean", func(t *testing.T) {
		code, err := runStatus([]string{"--help"})
		if err != nil || code != 0 {
			t.Errorf("expected clean help, got code=%d err=%v", code, err)
		}
	})

	t.Run("missing config is an error", func(t *testing.T) {
		code, err := runStatus([]string{"--config", filepath.Join(t.TempDir(), "absent.lua")})
		if err == nil || code != 1 {
			t.Errorf("expected config error, got code=%d err=%v", code, err)
		}
	})
}
