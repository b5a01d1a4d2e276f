package main

import (
	"fmt"
	"os"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	// Handle subcommands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version":
			fmt.Printf("veneer %s\n", Version)
			fmt.Println("Manifest-driven delta installer")
			return
		case "install":
			exit(runInstall(os.Args[2:]))
		case "update":
			exit(runUpdate(os.Args[2:]))
		case "uninstall":
			exit(runUninstall(os.Args[2:]))
		case "status":
			exit(runStatus(os.Args[2:]))
		}
	}

	// Default: show help
	fmt.Println("veneer - manifest-driven delta installer")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  veneer --version             Show version information")
	fmt.Println("  veneer install [options]     Install the package onto the configured root")
	fmt.Println("  veneer update [options]      Update an existing installation")
	fmt.Println("  veneer uninstall [options]   Remove installed files and restore backups")
	fmt.Println("  veneer status [options]      Show the current installation record")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>              Path to veneer.lua (default: ./veneer.lua)")
	fmt.Println("  --verbose                    Enable debug logging")
}

// exit maps a command result to the process exit code: 0 on success, 1 on
// hard failure, 2 when some files failed but others were applied.
func exit(code int, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}
