package main

import (
	"context"
	"fmt"
	"time"
)

// runUninstall handles the `veneer uninstall` subcommand.
func runUninstall(args []string) (int, error) {
	opts, err := parseFlags(args)
	if err != nil {
		return 1, err
	}
	if opts.showHelp {
		printUninstallHelp()
		return 0, nil
	}

	// Purely local; no downloads involved.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
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

	fmt.Printf("Uninstalling %s from %s...\n", cfg.App, cfg.Panel)

	result, err := in.Uninstall(ctx)
	if err != nil {
		return reportError(err)
	}

	for _, target := range result.Applied {
		fmt.Printf("✓ removed %s\n", target)
	}
	for _, failure := range result.Failed {
		fmt.Printf("✗ %s (%s)\n", failure.Target, failure.Reason)
	}

	if len(result.Failed) > 0 {
		fmt.Printf("\n⚠  %d file(s) could not be removed or restored.\n", len(result.Failed))
		return 2, nil
	}

	fmt.Printf("\n✓ Uninstalled version %s; pre-install backups restored\n", result.Version)
	return 0, nil
}

func printUninstallHelp() {
	fmt.Println("Usage: veneer uninstall [options]")
	fmt.Println()
	fmt.Println("Removes every file the installation record lists and restores the")
	fmt.Println("backups taken when those files were overwritten. The record is")
	fmt.Println("emptied, not deleted.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>  Path to veneer.lua (default: ./veneer.lua)")
	fmt.Println("  --verbose, -v    Enable debug logging")
	fmt.Println("  --help, -h       Show this help")
}
