package main

import (
	_ "github.com/devfans/envconf/dotenv"

	"xano-mcp/cmd"
)

// Version is stamped at build time via -ldflags.
var Version = "0.1.0"

func main() {
	cmd.SetVersion(Version)
	cmd.Execute()
}
