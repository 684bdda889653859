// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/cli"

	"github.com/hashicorp/marlin/command"
	"github.com/hashicorp/marlin/version"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	c := cli.NewCLI("marlin", version.GetHumanVersion())
	c.Args = os.Args[1:]
	c.Commands = command.Commands()
	c.HelpFunc = cli.BasicHelpFunc("marlin")

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %s\n", err)
		return 1
	}
	return exitCode
}
