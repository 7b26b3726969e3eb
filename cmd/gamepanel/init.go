// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"
	"text/template"
)

const configFile = "gamepanel.hjson"

var configTemplate = template.Must(template.New("config").Parse(`// gamepanel configuration
{
  version: "1"

  server: {
    host: "{{.Host}}"
    port: {{.Port}}
    // tls_cert: "~/.gamepanel/cert.pem"
    // tls_key: "~/.gamepanel/key.pem"
    // tailscale_tls: true
  }

  // Instance definitions. driver is "file" (JSON) or "sqlite".
  storage: {
    driver: "{{.Driver}}"
    flush_delay: "1s"
  }

  terminal: {
    cols: 120
    rows: 30
  }

  // Runtimes are found under root/<version>/bin/java.
  java: {
    root: "data/java"
    watch: true
    // environments: [
    //   { version: "17", path: "/usr/lib/jvm/java-17-openjdk/bin/java" }
    // ]
  }

  lifecycle: {
    ready_timeout: "5s"
    settle_delay: "1s"
    stop_timeout: "10s"
    restart_poll: "500ms"
    restart_settle: "2s"
  }

  // Auto-start instances one at a time while the host has headroom.
  boot: {
    enabled: true
    gap: "2s"
    memory_limit: 90
    cpu_limit: 90
    cpu_resume: 85
  }
}
`))

type initOptions struct {
	Host   string
	Port   int
	Driver string
}

// runInit handles the "gamepanel init" command.
func runInit(args []string) error {
	opts := initOptions{}
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	fs.StringVar(&opts.Host, "host", "127.0.0.1", "HTTP server host")
	fs.IntVar(&opts.Port, "port", 23333, "HTTP server port")
	fs.StringVar(&opts.Driver, "storage", "file", "Storage driver (file or sqlite)")
	force := fs.Bool("force", false, "Overwrite an existing config file")
	fs.Parse(args)

	if opts.Driver != "file" && opts.Driver != "sqlite" {
		return fmt.Errorf("storage must be file or sqlite, got %q", opts.Driver)
	}

	if _, err := os.Stat(configFile); err == nil && !*force {
		return fmt.Errorf("%s already exists; remove it first or pass -force", configFile)
	}

	f, err := os.Create(configFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", configFile, err)
	}
	defer f.Close()

	if err := configTemplate.Execute(f, opts); err != nil {
		return fmt.Errorf("write %s: %w", configFile, err)
	}

	fmt.Printf("Created %s\n", configFile)
	fmt.Printf("Run ./gamepanel and open http://%s:%d/api/v1/instances\n", opts.Host, opts.Port)
	return nil
}
