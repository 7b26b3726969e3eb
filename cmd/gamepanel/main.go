// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/wingedpig/gamepanel/internal/app"
	"github.com/wingedpig/gamepanel/internal/config"
)

var (
	version = "0.1"
)

func main() {
	// Check for subcommands before flag parsing
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		configPath  string
		host        string
		port        int
		noBoot      bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "HTTP server host (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flag.BoolVar(&noBoot, "no-boot", false, "Do not auto-start instances")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("gamepanel %s\n", version)
		os.Exit(0)
	}

	// Find config file if not specified; run with defaults if there is none
	if configPath == "" {
		if found, err := config.NewLoader().FindConfig(); err == nil {
			configPath = found
		}
	}
	if configPath != "" {
		log.Printf("Using config: %s", configPath)
	} else {
		log.Printf("No config file found, using defaults")
	}

	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		NoBoot:     noBoot,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatalf("App error: %v", err)
	}
}
