package main

import "github.com/microx-shell/microx/cmd"

func main() {
	cmd.Execute()
}
