// SPDX-License-Identifier: MPL-2.0

package main

import cmd "cargo-pod/cmd/cargopod"

func main() {
	cmd.Execute()
}
