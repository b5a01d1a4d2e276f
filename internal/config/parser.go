package config

import (
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ParseError represents a config parsing error with a friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// ParseFile parses a veneer.lua config file.
func ParseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseString(string(data))
}

// ParseString parses a Lua config from a string. This is useful for
// testing and in-memory config generation.
func ParseString(luaCode string) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractConfig(L)
}

// extractConfig extracts the config from a Lua state. It expects a global
// "veneer" table with the config structure.
func extractConfig(L *lua.LState) (*Config, error) {
	veneerTable := L.GetGlobal("veneer")
	if veneerTable.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'veneer' table",
			Detail:  fmt.Sprintf("expected table, got %s", veneerTable.Type()),
		}
	}

	table := veneerTable.(*lua.LTable)
	config := &Config{
		// Strict checksum policy is the default; the config may relax it.
		Options: Options{StrictChecksums: true},
	}

	config.Panel = stringField(table, "panel")
	config.Owner = stringField(table, "owner")
	config.App = stringField(table, "app")
	config.LicenseKey = stringField(table, "license_key")
	config.EncryptionKey = stringField(table, "encryption_key")
	config.HWID = stringField(table, "hwid")
	config.Token = stringField(table, "token")
	config.API = stringField(table, "api")

	if optionsVal := table.RawGetString("options"); optionsVal.Type() == lua.LTTable {
		extractOptions(optionsVal.(*lua.LTable), &config.Options)
	}

	if err := config.Validate(); err != nil {
		return nil, &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}

	return config, nil
}

// extractOptions extracts the options table, leaving defaults in place for
// absent fields.
func extractOptions(table *lua.LTable, options *Options) {
	if strictVal := table.RawGetString("strict_checksums"); strictVal.Type() == lua.LTBool {
		options.StrictChecksums = bool(strictVal.(lua.LBool))
	}

	if retentionVal := table.RawGetString("backup_retention"); retentionVal.Type() == lua.LTNumber {
		options.BackupRetention = int(lua.LVAsNumber(retentionVal))
	}

	if sigVal := table.RawGetString("verify_signatures"); sigVal.Type() == lua.LTBool {
		options.VerifySignatures = bool(sigVal.(lua.LBool))
	}

	if keyringVal := table.RawGetString("keyring"); keyringVal.Type() == lua.LTString {
		options.Keyring = keyringVal.String()
	}
}

// stringField reads a string field from a Lua table, returning "" when the
// field is absent or not a string.
func stringField(table *lua.LTable, name string) string {
	if val := table.RawGetString(name); val.Type() == lua.LTString {
		return val.String()
	}
	return ""
}

// FormatError formats a ParseError for user display. In verbose mode, show
// the raw Lua error. Otherwise, show the friendly message.
func FormatError(err error, verbose bool) string {
	if parseErr, ok := err.(*ParseError); ok {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
