package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories",
		Run:   runList,
	}

	cmd.Flags().String("tiers", "", "Filter by tiers (comma-separated)")
	cmd.Flags().StringP("tags", "t", "", "Filter by tags (comma-separated)")
	cmd.Flags().IntP("limit", "l", memory.DefaultSearchLimit, "Max results")
	cmd.Flags().Bool("ids-only", false, "Only output tier/id pairs")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	tiersStr, _ := cmd.Flags().GetString("tiers")
	tagsStr, _ := cmd.Flags().GetString("tags")
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	s := openManager(cmd, false)
	defer s.close()

	// An empty query matches everything.
	items, err := s.mgr.Search(cmd.Context(), "", memory.SearchOptions{
		Tiers: splitList(tiersStr),
		Tags:  splitList(tagsStr),
		Limit: limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	if idsOnly {
		for _, it := range items {
			fmt.Printf("%s/%s\n", it.Tier, it.ID)
		}
		return
	}
	printJSON(items)
}
