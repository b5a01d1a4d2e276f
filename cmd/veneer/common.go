package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/AnsgarHolmDietrichson/veneer/internal/config"
	"github.com/AnsgarHolmDietrichson/veneer/internal/installer"
	"github.com/AnsgarHolmDietrichson/veneer/internal/manifest"
	"github.com/AnsgarHolmDietrichson/veneer/internal/remote"
	"github.com/AnsgarHolmDietrichson/veneer/internal/verify"
)

const defaultConfigPath = "veneer.lua"

// options holds the flags shared by every subcommand.
type options struct {
	configPath string
	verbose    bool
	showHelp   bool
}

// parseFlags walks the argument list; an unknown flag is an error so a typo
// never silently changes behavior.
func parseFlags(args []string) (*options, error) {
	opts := &options{configPath: defaultConfigPath}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--help", "-h":
			opts.showHelp = true
		case "--verbose", "-v":
			opts.verbose = true
		case "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--config requires a path argument")
			}
			i++
			opts.configPath = args[i]
		default:
			return nil, fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	return opts, nil
}

// slogLogger adapts log/slog to the engine's Logger interface.
type slogLogger struct {
	inner *slog.Logger
}

func (l *slogLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, keysAndValues...)
}

func (l *slogLogger) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

func (l *slogLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l *slogLogger) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Error(msg, keysAndValues...)
}

func newLogger(verbose bool) config.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &slogLogger{inner: slog.New(handler)}
}

// loadConfig parses and validates the Lua configuration file.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// newInstaller wires the configured API client (with an optional response
// signature verifier) into an installer.
func newInstaller(cfg *config.Config, logger config.Logger) (*installer.Installer, error) {
	var verifier *verify.SignatureVerifier
	if cfg.Options.VerifySignatures {
		v, err := verify.NewSignatureVerifier(cfg.Options.Keyring)
		if err != nil {
			return nil, fmt.Errorf("load keyring: %w", err)
		}
		verifier = v
	}

	client, err := remote.NewClient(cfg, verifier)
	if err != nil {
		return nil, err
	}

	return installer.New(cfg, client, logger), nil
}

// reportResult prints the outcome of an apply-style operation and returns
// the process exit code for its status.
func reportResult(result *installer.Result) int {
	if result == nil {
		return 1
	}

	for _, target := range result.Applied {
		fmt.Printf("✓ %s\n", target)
	}
	for _, failure := range result.Failed {
		fmt.Printf("✗ %s (%s)\n", failure.Target, failure.Reason)
	}

	printPostInstall(result.PostInstall)

	switch result.Status {
	case installer.StatusOK:
		return 0
	case installer.StatusPartial:
		fmt.Println()
		fmt.Printf("⚠  %d file(s) failed; successes were kept.\n", len(result.Failed))
		return 2
	default:
		return 1
	}
}

// printPostInstall surfaces the manifest's maintenance guidance. The
// commands are never executed; the operator runs them.
func printPostInstall(commands []manifest.Command) {
	if len(commands) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Post-install steps (run these yourself):")
	for _, cmd := range commands {
		fmt.Printf("  %s\n", cmd.Text)
	}
}

// reportError translates operation errors into exit codes, giving the
// applied-but-unrecorded case a loud, distinct message.
func reportError(err error) (int, error) {
	if errors.Is(err, installer.ErrAppliedUnrecorded) {
		fmt.Fprintln(os.Stderr, "╔══════════════════════════════════════════════════════════════╗")
		fmt.Fprintln(os.Stderr, "║  WARNING: files were applied but the installation record     ║")
		fmt.Fprintln(os.Stderr, "║  could not be saved. The installation root has changed and   ║")
		fmt.Fprintln(os.Stderr, "║  veneer no longer knows what it applied. Reconcile manually  ║")
		fmt.Fprintln(os.Stderr, "║  before running any further operations.                      ║")
		fmt.Fprintln(os.Stderr, "╚══════════════════════════════════════════════════════════════╝")
		return 1, err
	}
	if errors.Is(err, installer.ErrNotInstalled) {
		return 1, fmt.Errorf("nothing is installed here (no installation record found)")
	}
	return 1, err
}
