package main

import "github.com/alec-rabold/obbyspy/cmd"

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cmd.Execute(version)
}
