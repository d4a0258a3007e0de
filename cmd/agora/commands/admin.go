package commands

import (
	"github.com/spf13/cobra"

	"github.com/IliyaBaranov/agora/internal/types"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Marketplace administration",
	}
	cmd.AddCommand(
		decideCmd("approve", "Approve a producer application", func(cmd *cobra.Command, mid, uid string) error {
			return domain.ApproveProducer(cmd.Context(), mid, uid)
		}),
		decideCmd("reject", "Reject a producer application", func(cmd *cobra.Command, mid, uid string) error {
			return domain.RejectProducer(cmd.Context(), mid, uid)
		}),
		setRoleCmd(),
	)
	return cmd
}

func decideCmd(use, short string, decide func(*cobra.Command, string, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <marketplace-id> <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := decide(cmd, args[0], args[1]); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), domain.MembersOf(args[0]))
		},
	}
}

func setRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <marketplace-id> <user-id> <ADMIN|PRODUCER|CUSTOMER>",
		Short: "Assign a member role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := domain.SetAdminRole(cmd.Context(), args[0], args[1], types.UserRole(args[2])); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), domain.MembersOf(args[0]))
		},
	}
}
