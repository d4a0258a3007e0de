package commands

import (
	"github.com/spf13/cobra"

	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/types"
)

// marketplaceView is what "marketplaces show" prints
type marketplaceView struct {
	Marketplace   models.Marketplace  `json:"marketplace"`
	Members       []models.MemberView `json:"members"`
	Jobs          []models.Job        `json:"jobs"`
	Role          *types.UserRole     `json:"role,omitempty"`
	IsFavorite    bool                `json:"isFavorite"`
	OpenJobsCount int                 `json:"openJobs"`
}

func marketplacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "marketplaces",
		Aliases: []string{"mp"},
		Short:   "Browse and create marketplaces",
	}
	cmd.AddCommand(listMarketplacesCmd(), createMarketplaceCmd(), showMarketplaceCmd())
	return cmd
}

func listMarketplacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all marketplaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), domain.Marketplaces())
		},
	}
}

func createMarketplaceCmd() *cobra.Command {
	var name, slug, city string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a marketplace you administer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := domain.CreateMarketplace(cmd.Context(), name, slug, city)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "marketplace name")
	cmd.Flags().StringVar(&city, "city", "", "city served")
	cmd.Flags().StringVar(&slug, "slug", "", "URL slug (derived from the name when empty)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("city")
	return cmd
}

func showMarketplaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <slug>",
		Short: "Show a marketplace with its members and jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, ok := domain.MarketplaceBySlug(args[0])
			if !ok {
				return errors.NewNotFoundError("marketplace", args[0])
			}
			return printJSON(cmd.OutOrStdout(), marketplaceView{
				Marketplace:   m,
				Members:       domain.MembersOf(m.ID),
				Jobs:          domain.JobsIn(m.ID),
				Role:          domain.EffectiveRole(m.ID),
				IsFavorite:    domain.IsFavorite(m.ID),
				OpenJobsCount: len(domain.OpenJobs(m.ID)),
			})
		},
	}
}
