package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pfskit/internal/crypto"
)

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := unlock()
			if err != nil {
				return err
			}
			all, err := acct.Registry.GetAllSessionsStates()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println("No sessions.")
				return nil
			}
			now := time.Now()
			for _, ps := range all {
				state := "active"
				if ps.State.IsExpired(now) {
					state = "expired"
				}
				fmt.Printf("%s  %s  created %s  expires %s  (%s)\n",
					ps.ParticipantID,
					crypto.B64(ps.State.SessionID),
					ps.State.CreationDate.Format(time.RFC3339),
					ps.State.ExpirationDate.Format(time.RFC3339),
					state)
			}
			return nil
		},
	}
}
