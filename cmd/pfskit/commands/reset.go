package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove all sessions and key material for the identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := unlock()
			if err != nil {
				return err
			}
			acct.Sessions.GentleReset()
			fmt.Println("All sessions and keys removed.")
			return nil
		},
	}
}
