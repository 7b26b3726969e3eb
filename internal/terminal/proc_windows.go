// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package terminal

import (
	"fmt"
	"os"
	"os/exec"
)

func runAs(cmd *exec.Cmd, username string) error {
	return fmt.Errorf("running as another user is not supported on windows")
}

func killTree(p *os.Process) error {
	return p.Kill()
}
