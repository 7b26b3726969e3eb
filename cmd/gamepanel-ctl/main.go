// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// gamepanel-ctl is a command-line tool for controlling a running gamepanel.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wingedpig/gamepanel/pkg/client"
)

var (
	version    = "0.1.0"
	apiURL     = "http://localhost:23333"
	jsonOutput = false

	// API client instance
	apiClient *client.Client
)

func main() {
	if env := os.Getenv("GAMEPANEL_API"); env != "" {
		apiURL = strings.TrimSuffix(env, "/")
	}

	// Parse global flags and filter them out
	var filteredArgs []string
	for _, arg := range os.Args[1:] {
		if arg == "-json" {
			jsonOutput = true
		} else {
			filteredArgs = append(filteredArgs, arg)
		}
	}

	// Starts block until the instance is up.
	apiClient = client.New(apiURL, client.WithTimeout(2*time.Minute))

	if len(filteredArgs) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := filteredArgs[0]
	args := filteredArgs[1:]

	var err error
	switch cmd {
	case "list", "status":
		err = cmdStatus(args)
	case "start":
		err = cmdAction("start", args)
	case "stop":
		err = cmdAction("stop", args)
	case "restart":
		err = cmdAction("restart", args)
	case "close":
		err = cmdAction("close", args)
	case "send":
		err = cmdSend(args)
	case "delete":
		err = cmdDelete(args)
	case "java":
		err = cmdJava()
	case "events":
		err = cmdEvents(args)
	case "version", "-v", "--version":
		err = cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`gamepanel-ctl - Control a running gamepanel

Usage:
  gamepanel-ctl [-json] <command> [arguments]

Global Flags:
  -json          Output in JSON format

Environment:
  GAMEPANEL_API  Base URL of the panel API (default: http://localhost:23333)

Commands:
  status [instance]        Show all instances or one instance (alias: list)
  start <instance>         Start an instance and wait until it is running
  stop <instance>          Send the instance's stop command
  restart <instance>       Stop and start an instance
  close <instance>         Force-close the instance's terminal
  delete <instance>        Delete an instance, stopping it first

  send <instance> <text>   Type a line into the instance's terminal
    -raw                   Send text as-is, without a line ending

  java                     List Java runtimes
  events [options]         Show recent events
    -n N                   Number of events (default: 50)
    -instance <instance>   Only events for this instance

  version                  Show client and server versions
  help                     Show this help

Instances may be given by ID or by name.`)
}

// printJSON outputs any value as formatted JSON
func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

// resolveID maps a name to an instance ID. Arguments that already match an
// ID are returned unchanged.
func resolveID(ctx context.Context, ref string) (string, error) {
	instances, err := apiClient.Instances.List(ctx)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, inst := range instances {
		if inst.ID == ref {
			return ref, nil
		}
		if inst.Name == ref {
			matches = append(matches, inst.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no instance named %q", ref)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%d instances are named %q; use the ID", len(matches), ref)
}

func formatPID(pid int) string {
	if pid > 0 {
		return strconv.Itoa(pid)
	}
	return "-"
}

func formatSince(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func printInstanceTable(instances []client.Instance) {
	fmt.Printf("%-10s %-20s %-10s %-8s %-20s %s\n", "ID", "NAME", "STATE", "PID", "LAST STARTED", "TYPE")
	fmt.Println(strings.Repeat("-", 90))
	for _, inst := range instances {
		id := inst.ID
		if len(id) > 8 {
			id = id[:8]
		}
		name := inst.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Printf("%-10s %-20s %-10s %-8s %-20s %s\n",
			id,
			name,
			inst.Status,
			formatPID(inst.PID),
			formatSince(inst.LastStarted),
			inst.Type,
		)
	}
}

func cmdStatus(args []string) error {
	ctx := context.Background()

	if len(args) > 0 {
		id, err := resolveID(ctx, args[0])
		if err != nil {
			return err
		}
		inst, err := apiClient.Instances.Get(ctx, id)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(inst)
			return nil
		}

		fmt.Printf("ID:          %s\n", inst.ID)
		fmt.Printf("Name:        %s\n", inst.Name)
		fmt.Printf("State:       %s\n", inst.Status)
		fmt.Printf("PID:         %s\n", formatPID(inst.PID))
		fmt.Printf("Directory:   %s\n", inst.WorkingDirectory)
		fmt.Printf("Command:     %s\n", inst.StartCommand)
		fmt.Printf("Stop with:   %s\n", inst.StopCommand)
		fmt.Printf("Auto start:  %t\n", inst.AutoStart)
		fmt.Printf("Started:     %s\n", formatSince(inst.LastStarted))
		fmt.Printf("Stopped:     %s\n", formatSince(inst.LastStopped))
		return nil
	}

	instances, err := apiClient.Instances.List(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(instances)
		return nil
	}

	printInstanceTable(instances)
	return nil
}

func cmdAction(action string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: gamepanel-ctl %s <instance>", action)
	}

	ctx := context.Background()
	id, err := resolveID(ctx, args[0])
	if err != nil {
		return err
	}

	var inst *client.Instance
	var verb string
	switch action {
	case "start":
		inst, err = apiClient.Instances.Start(ctx, id)
		verb = "Started"
	case "stop":
		inst, err = apiClient.Instances.Stop(ctx, id)
		verb = "Stopping"
	case "restart":
		inst, err = apiClient.Instances.Restart(ctx, id)
		verb = "Restarted"
	case "close":
		inst, err = apiClient.Instances.CloseTerminal(ctx, id)
		verb = "Closed terminal of"
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(inst)
		return nil
	}

	fmt.Printf("%s %s (state: %s)\n", verb, inst.Name, inst.Status)
	return nil
}

func cmdDelete(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: gamepanel-ctl delete <instance>")
	}

	ctx := context.Background()
	id, err := resolveID(ctx, args[0])
	if err != nil {
		return err
	}
	if err := apiClient.Instances.Delete(ctx, id); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]string{"id": id})
		return nil
	}
	fmt.Printf("Deleted %s\n", id)
	return nil
}

func cmdSend(args []string) error {
	line := true
	var rest []string
	for _, arg := range args {
		if arg == "-raw" {
			line = false
		} else {
			rest = append(rest, arg)
		}
	}
	if len(rest) < 2 {
		return fmt.Errorf("usage: gamepanel-ctl send <instance> <text>")
	}

	ctx := context.Background()
	id, err := resolveID(ctx, rest[0])
	if err != nil {
		return err
	}

	n, err := apiClient.Instances.Input(ctx, id, strings.Join(rest[1:], " "), line)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]int{"bytes": n})
		return nil
	}
	fmt.Printf("Sent %d bytes\n", n)
	return nil
}

func cmdJava() error {
	envs, err := apiClient.Java.List(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(envs)
		return nil
	}

	fmt.Printf("%-10s %-10s %-8s %s\n", "VERSION", "INSTALLED", "SOURCE", "PATH")
	fmt.Println(strings.Repeat("-", 70))
	for _, env := range envs {
		installed := "no"
		if env.Installed {
			installed = "yes"
		}
		fmt.Printf("%-10s %-10s %-8s %s\n", env.Version, installed, env.Source, env.ExecutablePath)
	}
	return nil
}

func cmdEvents(args []string) error {
	opts := &client.ListOptions{Limit: 50}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-n":
			if i+1 < len(args) {
				if n, err := strconv.Atoi(args[i+1]); err == nil && n > 0 {
					opts.Limit = n
				}
				i++
			}
		case "-instance":
			if i+1 < len(args) {
				opts.Instance = args[i+1]
				i++
			}
		}
	}

	ctx := context.Background()
	if opts.Instance != "" {
		id, err := resolveID(ctx, opts.Instance)
		if err != nil {
			return err
		}
		opts.Instance = id
	}

	events, err := apiClient.Events.List(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(events)
		return nil
	}

	fmt.Printf("%-20s %-25s %-10s %s\n", "TIME", "TYPE", "INSTANCE", "DETAILS")
	fmt.Println(strings.Repeat("-", 90))
	for _, evt := range events {
		fmt.Printf("%-20s %-25s %-10s %s\n",
			evt.Timestamp.Local().Format("2006-01-02 15:04:05"),
			evt.Type,
			evt.Instance,
			formatPayload(evt.Payload),
		)
	}
	return nil
}

// formatPayload renders scalar payload fields as sorted key=value pairs.
// Nested objects, such as a full instance record, are skipped.
func formatPayload(payload map[string]interface{}) string {
	keys := make([]string, 0, len(payload))
	for k, v := range payload {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, payload[k]))
	}
	return strings.Join(parts, " ")
}

func cmdVersion() error {
	fmt.Printf("gamepanel-ctl %s\n", version)
	build, api, err := apiClient.ServerVersion(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("gamepanel %s (API %s)\n", build, api)
	return nil
}
