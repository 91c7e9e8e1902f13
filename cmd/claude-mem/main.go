package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Pamacea/claude-mem/internal/client"
	"github.com/Pamacea/claude-mem/internal/config"
	"github.com/Pamacea/claude-mem/internal/dashboard"
	"github.com/Pamacea/claude-mem/internal/endpoint"
	"github.com/Pamacea/claude-mem/internal/hooks"
	"github.com/Pamacea/claude-mem/internal/logging"
	"github.com/Pamacea/claude-mem/internal/version"
	"github.com/Pamacea/claude-mem/internal/worker"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "worker":
		runWorker()
	case "hook":
		runHook()
	case "status":
		runStatus()
	case "sessions":
		runSessions()
	case "version", "--version":
		fmt.Println(version.Version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: claude-mem <command>

commands:
  worker     run the memory worker
  hook       run a lifecycle hook (session-start, user-prompt-submit,
             post-tool-use, pre-compact, session-end)
  status     print worker status
  sessions   open the sessions dashboard
  version    print the version`)
}

func runWorker() {
	dataDir := config.DataDir()
	log := logging.ForWorker(dataDir)

	svc := worker.New(dataDir, log)
	if err := svc.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
		os.Exit(1)
	}
}

func runHook() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: claude-mem hook <event>")
		os.Exit(2)
	}
	event := os.Args[2]

	dataDir := config.DataDir()
	log := logging.ForHook(dataDir, event)
	c := client.New(endpoint.NewCache(dataDir), nil, log)
	h := hooks.NewHandler(c, log)

	var fn func(*hooks.Input) (*hooks.Outcome, error)
	switch event {
	case "session-start":
		fn = h.SessionStart
	case "user-prompt-submit":
		fn = h.PromptSubmit
	case "post-tool-use":
		fn = h.PostToolUse
	case "pre-compact":
		fn = h.PreCompact
	case "session-end":
		fn = h.SessionEnd
	default:
		fmt.Fprintf(os.Stderr, "unknown hook event: %s\n", event)
		os.Exit(2)
	}

	hooks.Run(fn)
}

func runStatus() {
	dataDir := config.DataDir()
	log := logging.ForHook(dataDir, "status")
	c := client.New(endpoint.NewCache(dataDir), nil, log)

	health, err := c.Health()
	if err != nil {
		fmt.Println("worker: offline")
		return
	}
	fmt.Printf("worker: %s (version %s)\n", health.Status, health.Version)

	sessions, err := c.Sessions()
	if err != nil {
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(sessions)
}

func runSessions() {
	dataDir := config.DataDir()
	log := logging.ForHook(dataDir, "dashboard")
	c := client.New(endpoint.NewCache(dataDir), nil, log)

	p := tea.NewProgram(dashboard.NewModel(c))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard error: %v\n", err)
		os.Exit(1)
	}
}
