// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package version

import (
	"fmt"

	"github.com/hashicorp/cli"

	"github.com/hashicorp/marlin/version"
)

func New(ui cli.Ui) *cmd {
	return &cmd{UI: ui}
}

type cmd struct {
	UI cli.Ui
}

func (c *cmd) Run(_ []string) int {
	c.UI.Output(fmt.Sprintf("Marlin %s", version.GetHumanVersion()))
	return 0
}

func (c *cmd) Synopsis() string {
	return "Prints the marlin version"
}

func (c *cmd) Help() string {
	return "Usage: marlin version\n\n  Prints the version of this marlin binary."
}
