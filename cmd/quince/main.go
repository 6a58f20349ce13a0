package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the main command for the 'quince' binary.
var rootCmd = &cobra.Command{
	Use:   "quince",
	Short: "quince drives the transport package's reliability engine outside of a real connection",
	Long: "quince is a demonstration harness for this module's packet-number-space " +
		"and stream-sender core: it wires two in-process endpoints together over a " +
		"simulated, lossy link so the send/ack/loss-detection loop can be observed " +
		"without a TLS handshake or a UDP socket.",
}

func init() {
	rootCmd.AddCommand(clientCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
