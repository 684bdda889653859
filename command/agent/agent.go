// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/cli"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/marlin/agent"
	"github.com/hashicorp/marlin/agent/config"
)

func New(ui cli.Ui) *cmd {
	c := &cmd{UI: ui}
	c.init()
	return c
}

type cmd struct {
	UI    cli.Ui
	flags *flag.FlagSet

	configFile string
	logLevel   string
}

func (c *cmd) init() {
	c.flags = flag.NewFlagSet("agent", flag.ContinueOnError)
	c.flags.StringVar(&c.configFile, "config", "",
		"Path to a configuration file. Defaults apply for any unset value.")
	c.flags.StringVar(&c.logLevel, "log-level", "",
		"Log level override: TRACE, DEBUG, INFO, WARN or ERROR.")
}

func (c *cmd) Run(args []string) int {
	if err := c.flags.Parse(args); err != nil {
		return 1
	}

	cfg := config.DefaultConfig()
	if c.configFile != "" {
		loaded, err := config.Load(c.configFile)
		if err != nil {
			c.UI.Error(fmt.Sprintf("Error loading configuration: %s", err))
			return 1
		}
		cfg = loaded
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		c.UI.Error(fmt.Sprintf("Invalid configuration: %s", err))
		return 1
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "marlin",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: os.Stderr,
	})

	a, err := agent.New(cfg, logger)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error creating agent: %s", err))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		c.UI.Error(fmt.Sprintf("Error starting agent: %s", err))
		return 1
	}
	c.UI.Output("Marlin agent running!")
	c.UI.Info(fmt.Sprintf("    Node name: %q", cfg.NodeName))
	c.UI.Info(fmt.Sprintf("    HTTP addr: %s", a.HTTPAddr()))

	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalCh:
		c.UI.Output(fmt.Sprintf("Caught signal: %v", sig))
	case <-a.ShutdownCh():
	}

	cancel()
	a.Shutdown()
	return 0
}

func (c *cmd) Synopsis() string {
	return "Runs a marlin agent"
}

func (c *cmd) Help() string {
	return `Usage: marlin agent [options]

  Starts a marlin agent: the node-local state store, the read/write
  concern defaults cache with its periodic refresher, and the HTTP
  introspection endpoint. The agent runs until it receives an interrupt
  or termination signal.

Options:

  -config=<path>      Path to a configuration file.
  -log-level=<level>  Log level override.
`
}
