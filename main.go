package main

import "github.com/slinkylib/slinky/cmd"

func main() {
	cmd.Execute()
}
