// Ipscope looks up IP address and ASN metadata from a remote API, caching
// results in memory. It runs as a one-shot CLI or as an HTTP service.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
