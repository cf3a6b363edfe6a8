// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/modsolve/modsolve/cmd/modsolve"

func main() {
	cmd.Execute()
}
