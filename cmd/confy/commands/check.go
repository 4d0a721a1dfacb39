package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"confy/internal/domain"
	"confy/internal/relay"
)

// checkCmd probes the relay for a name, useful before picking a username or
// dialing a peer.
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <name>",
		Short: "Check whether a name is connected to the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if relayURL == "" {
				return fmt.Errorf("no relay configured. use --relay")
			}
			name := domain.PeerID(args[0])
			taken, err := relay.CheckUsername(relayURL, name)
			if err != nil {
				return err
			}
			if taken {
				fmt.Printf("%s is connected\n", name)
			} else {
				fmt.Printf("%s is not connected\n", name)
			}
			return nil
		},
	}
}
