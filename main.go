package main

import "github.com/dmbotnet/dmbn/cmd"

func main() {
	cmd.Execute()
}
