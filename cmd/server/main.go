// Command server runs the Dutch learning paragraph HTTP API.
//
//	server          start the HTTP server (same as "server serve")
//	server ingest   re-download and re-embed every knowledge source
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
