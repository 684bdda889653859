// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"os"

	"github.com/hashicorp/cli"

	agentcmd "github.com/hashicorp/marlin/command/agent"
	versioncmd "github.com/hashicorp/marlin/command/version"
)

// Commands is the mapping of all available marlin commands.
func Commands() map[string]cli.CommandFactory {
	ui := &cli.BasicUi{Writer: os.Stdout, ErrorWriter: os.Stderr}

	return map[string]cli.CommandFactory{
		"agent": func() (cli.Command, error) {
			return agentcmd.New(ui), nil
		},
		"version": func() (cli.Command, error) {
			return versioncmd.New(ui), nil
		},
	}
}
