// Command quicmigrate-demo drives a migration.Manager against real UDP
// sockets and a scripted sequence of network-change notifications, for
// exercising the engine end to end without a full QUIC stack.
package main

import (
	"os"

	"github.com/marmos91/quicmigrate/cmd/quicmigrate-demo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
