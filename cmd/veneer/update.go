package main

import (
	"context"
	"fmt"

	"github.com/AnsgarHolmDietrichson/veneer/internal/remote"
)

// runUpdate handles the `veneer update` subcommand.
func runUpdate(args []string) (int, error) {
	opts, err := parseFlags(args)
	if err != nil {
		return 1, err
	}
	if opts.showHelp {
		printUpdateHelp()
		return 0, nil
	}

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

	fmt.Printf("Checking %s for updates...\n", cfg.App)

	result, err := in.Update(ctx)
	if err != nil {
		return reportError(err)
	}

	if result.NoOp {
		fmt.Printf("✓ Already up to date (version %s)\n", result.Version)
		return 0, nil
	}

	if result.BundlePath != "" {
		fmt.Printf("Archived current installation to %s\n", result.BundlePath)
	}

	code := reportResult(result)
	if code == 0 {
		fmt.Printf("\n✓ Updated to version %s (%d files)\n", result.Version, len(result.Applied))
	}
	return code, nil
}

func printUpdateHelp() {
	fmt.Println("Usage: veneer update [options]")
	fmt.Println()
	fmt.Println("Offers the installed version to the API; if a newer package exists,")
	fmt.Println("the current files are archived into a dated bundle and the new")
	fmt.Println("version is applied. A current installation is a no-op.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>  Path to veneer.lua (default: ./veneer.lua)")
	fmt.Println("  --verbose, -v    Enable debug logging")
	fmt.Println("  --help, -h       Show this help")
}
