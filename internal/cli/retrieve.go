package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/memory"
	"github.com/rcliao/tiered-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Retrieve memories ranked by relevance",
		Long:  "Score every memory in the selected tiers against the query and return the best matches.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRetrieve,
	}

	cmd.Flags().String("tiers", "", "Comma-separated tiers to scan (default: all)")
	cmd.Flags().IntP("limit", "l", memory.DefaultRetrievalLimit, "Max results")
	cmd.Flags().Float64("threshold", memory.DefaultRetrievalThreshold, "Minimum relevance (exclusive)")

	RootCmd.AddCommand(cmd)
}

func runRetrieve(cmd *cobra.Command, args []string) {
	tiersStr, _ := cmd.Flags().GetString("tiers")
	limit, _ := cmd.Flags().GetInt("limit")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	query := strings.Join(args, " ")

	s := openManager(cmd, false)
	defer s.close()

	results, err := s.mgr.Retrieve(cmd.Context(), query, memory.RetrieveOptions{
		Tiers:     splitList(tiersStr),
		Limit:     limit,
		Threshold: &threshold,
	})
	if err != nil {
		exitErr("retrieve", err)
	}

	if formatFlag == "text" {
		for _, r := range results {
			fmt.Printf("%.3f\t%s\t%s\t%s\n", r.Relevance, r.Tier, r.ID, oneLine(r.Item))
		}
		return
	}
	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(results)
}

func oneLine(it *model.Item) string {
	return strings.Join(strings.Fields(it.Content.String()), " ")
}
