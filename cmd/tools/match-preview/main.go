// Command match-preview runs the matching engine offline against JSON
// fixtures: score a pair, run selection over a pool, print the embedding
// text of a profile, or check the activity registry.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
