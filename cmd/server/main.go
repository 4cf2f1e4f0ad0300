// Command server runs the tenantgate HTTP service: multi-provider request
// authentication in front of a tenant membership gate.
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "tenantgate:", err)
		os.Exit(1)
	}
}
