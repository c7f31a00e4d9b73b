package main

import "github.com/testforge/e2ekit/internal/cli"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cli.Execute(version)
}
