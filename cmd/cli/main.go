// cmd/cli/main.go
package main

import (
	"os"

	"github.com/keshon/cordhost/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(nil).Execute(); err != nil {
		os.Exit(1)
	}
}
