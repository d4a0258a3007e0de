package commands

import (
	"github.com/spf13/cobra"

	"github.com/IliyaBaranov/agora/internal/adapter"
	"github.com/IliyaBaranov/agora/internal/errors"
)

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Post, take and settle jobs",
	}
	cmd.AddCommand(
		listJobsCmd(),
		openJobsCmd(),
		createJobCmd(),
		jobActionCmd("take", "Take an open job as a producer", thenPrintJob(func(c *cobra.Command, id string) error {
			return domain.TakeJob(c.Context(), id)
		})),
		jobActionCmd("complete", "Mark a job completed", thenPrintJob(func(c *cobra.Command, id string) error {
			return domain.CompleteJob(c.Context(), id)
		})),
		jobActionCmd("pay", "Pay for a job from your credits", thenPrintJob(func(c *cobra.Command, id string) error {
			_, err := domain.PayForJob(c.Context(), id)
			return err
		})),
	)
	return cmd
}

func listJobsCmd() *cobra.Command {
	var mine bool
	cmd := &cobra.Command{
		Use:   "list <marketplace-id>",
		Short: "List the jobs of a marketplace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mine {
				return printJSON(cmd.OutOrStdout(), domain.CustomerJobs(args[0]))
			}
			return printJSON(cmd.OutOrStdout(), domain.JobsIn(args[0]))
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "only jobs you posted")
	return cmd
}

func openJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <marketplace-id>",
		Short: "List jobs waiting for a producer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), domain.OpenJobs(args[0]))
		},
	}
}

func createJobCmd() *cobra.Command {
	var in adapter.JobInput
	cmd := &cobra.Command{
		Use:   "create <marketplace-id>",
		Short: "Post a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.MarketplaceID = args[0]
			job, err := domain.CreateJob(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "job title")
	cmd.Flags().StringVar(&in.Description, "description", "", "what needs doing")
	cmd.Flags().StringVar(&in.Address, "address", "", "where")
	cmd.Flags().StringVar(&in.PreferredTime, "when", "", "preferred time")
	cmd.Flags().Int64Var(&in.Price, "price", 0, "price in credits")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

// thenPrintJob adapts an action on a job id into a RunE that prints the job afterwards
func thenPrintJob(action func(*cobra.Command, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := action(cmd, args[0]); err != nil {
			return err
		}
		job, ok := domain.JobByID(args[0])
		if !ok {
			return errors.NewNotFoundError("job", args[0])
		}
		return printJSON(cmd.OutOrStdout(), job)
	}
}

func jobActionCmd(use, short string, run func(*cobra.Command, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
}
