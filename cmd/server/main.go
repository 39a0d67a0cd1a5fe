// Command server runs the OpenID provider: the HTTP API, schema migrations
// and the audit outbox relay.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
