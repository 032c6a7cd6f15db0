package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by substring",
		Long:  "Case-insensitive substring match over memory content, newest first. Does not count as an access.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().String("tiers", "", "Comma-separated tiers to scan (default: all)")
	cmd.Flags().StringP("tags", "t", "", "Only memories carrying all these tags (comma-separated)")
	cmd.Flags().IntP("limit", "l", memory.DefaultSearchLimit, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	tiersStr, _ := cmd.Flags().GetString("tiers")
	tagsStr, _ := cmd.Flags().GetString("tags")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	s := openManager(cmd, false)
	defer s.close()

	results, err := s.mgr.Search(cmd.Context(), query, memory.SearchOptions{
		Tiers: splitList(tiersStr),
		Tags:  splitList(tagsStr),
		Limit: limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if formatFlag == "text" {
		for _, it := range results {
			fmt.Printf("%s\t%s\t%s\n", it.Tier, it.ID, oneLine(it))
		}
		return
	}
	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(results)
}
