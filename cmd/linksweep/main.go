// Package main provides the entry point for the linksweep orphan cleaner CLI.
package main

import (
	"os"
)

func main() {
	os.Exit(Execute())
}
