// candorctl runs case inference offline against text or YAML fixtures.
//
// Usage:
//
//	candorctl scan <text>
//	candorctl classify -f <fixture.yaml>
//	candorctl progress -f <fixture.yaml> [--create-after=N]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
