package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func rotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Run a key rotation pass: cleanup, pool check, replenish",
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := unlock()
			if err != nil {
				return err
			}
			if err := acct.Rotation.Rotate(cmd.Context(), cfg.DesiredNumberOfCards); err != nil {
				return err
			}
			fmt.Println("Rotation complete.")
			return nil
		},
	}
}
