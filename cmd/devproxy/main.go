package main

import "github.com/codegene/devproxy/cmd/devproxy/cmd"

func main() {
	cmd.Execute()
}
