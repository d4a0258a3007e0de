package commands

import (
	"github.com/spf13/cobra"

	"github.com/IliyaBaranov/agora/internal/types"
)

func producerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "producer",
		Short: "Apply as a producer and manage your availability",
	}
	cmd.AddCommand(registerProducerCmd(), producerStatusCmd())
	return cmd
}

func registerProducerCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "register <marketplace-id>",
		Short: "Apply to work as a producer in a marketplace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := domain.RegisterAsProducer(cmd.Context(), args[0], description); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), domain.ProducersByApproval(args[0], types.ApprovalPending))
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "experience and services offered")
	return cmd
}

func producerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <marketplace-id> <ONLINE|OFFLINE|WORKING>",
		Short: "Set your producer status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := domain.UpdateProducerStatus(cmd.Context(), args[0], types.ProducerStatus(args[1])); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"marketplaceId": args[0],
				"status":        domain.ProducerStatusIn(args[0]),
			})
		},
	}
}
