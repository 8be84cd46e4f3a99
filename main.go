// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/invowk/scriptwrap/cmd/scriptwrap"

func main() {
	cmd.Execute()
}
