package commands

import (
	"github.com/spf13/cobra"

	"github.com/IliyaBaranov/agora/internal/errors"
)

func meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Print the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user := domain.CurrentUser()
			if user == nil {
				return errors.NewNotSignedInError("me")
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
}
