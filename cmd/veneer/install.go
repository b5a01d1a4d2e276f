package main

import (
	"context"
	"fmt"

	"github.com/AnsgarHolmDietrichson/veneer/internal/remote"
)

// runInstall handles the `veneer install` subcommand.
// Returns an exit code (0 = installed, 1 = failed, 2 = partial) and an error.
func runInstall(args []string) (int, error) {
	opts, err := parseFlags(args)
	if err != nil {
		return 1, err
	}
	if opts.showHelp {
		printInstallHelp()
		return 0, nil
	}

	// Downloads dominate the runtime; match the HTTP client's ceiling.
	ctx, cancel := context.WithTimeout(context.Background(), remote.DefaultTimeout)
	defer cancel()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return 1, err
	}

	logger := newLogger(opts.verbose)
	in, err := newInstaller(cfg, logger)
	if err != nil {
		return 1, err
	}

	fmt.Printf("Installing %s for owner %s into %s...\n", cfg.App, cfg.Owner, cfg.Panel)

	result, err := in.Install(ctx)
	if err != nil {
		return reportError(err)
	}

	code := reportResult(result)
	if code == 0 {
		fmt.Printf("\n✓ Installed version %s (%d files)\n", result.Version, len(result.Applied))
	}
	return code, nil
}

func printInstallHelp() {
	fmt.Println("Usage: veneer install [options]")
	fmt.Println()
	fmt.Println("Authorizes against the configured API, downloads the package, and")
	fmt.Println("applies its files onto the installation root. Existing files are")
	fmt.Println("backed up before they are overwritten.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>  Path to veneer.lua (default: ./veneer.lua)")
	fmt.Println("  --verbose, -v    Enable debug logging")
	fmt.Println("  --help, -h       Show this help")
}
