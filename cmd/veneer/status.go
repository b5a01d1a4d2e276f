package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/AnsgarHolmDietrichson/veneer/internal/state"
)

// runStatus handles the `veneer status` subcommand. Purely read-only: no
// lock is taken and nothing is contacted over the network.
func runStatus(args []string) (int, error) {
	opts, err := parseFlags(args)
	if err != nil {
		return 1, err
	}
	if opts.showHelp {
		printStatusHelp()
		return 0, nil
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return 1, err
	}

	rec, err := state.Load(cfg.Panel)
	if err != nil {
		if errors.Is(err, state.ErrNotInstalled) {
			fmt.Printf("%s: not installed at %s\n", cfg.App, cfg.Panel)
			return 1, nil
		}
		return 1, err
	}

	installedAt := time.Unix(rec.InstalledAt, 0).UTC().Format(time.RFC3339)

	fmt.Printf("App:          %s (owner %s)\n", cfg.App, cfg.Owner)
	fmt.Printf("Root:         %s\n", cfg.Panel)
	fmt.Printf("Version:      %s\n", rec.Version)
	fmt.Printf("Installed at: %s\n", installedAt)
	fmt.Printf("Files:        %d\n", len(rec.Files))
	fmt.Printf("Backups:      %d\n", len(rec.Backups))

	if len(rec.Files) == 0 {
		fmt.Println()
		fmt.Println("The record is empty: the last operation was an uninstall.")
	}

	return 0, nil
}

func printStatusHelp() {
	fmt.Println("Usage: veneer status [options]")
	fmt.Println()
	fmt.Println("Shows the installation record for the configured root.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>  Path to veneer.lua (default: ./veneer.lua)")
	fmt.Println("  --help, -h       Show this help")
}
