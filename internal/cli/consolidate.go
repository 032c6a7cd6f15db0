package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Run one consolidation sweep, then one forgetting sweep",
		Run:   runConsolidate,
	}

	cmd.Flags().Bool("skip-forgetting", false, "Only consolidate")

	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	skip, _ := cmd.Flags().GetBool("skip-forgetting")

	s := openManager(cmd, false)
	defer s.close()

	out := struct {
		Consolidation memory.ConsolidationResult `json:"consolidation"`
		Forgetting    *memory.ForgettingResult   `json:"forgetting,omitempty"`
	}{}

	var err error
	out.Consolidation, err = s.mgr.Consolidate(cmd.Context())
	if err != nil {
		exitErr("consolidate", err)
	}
	if !skip {
		res, err := s.mgr.ApplyForgetting(cmd.Context())
		if err != nil {
			exitErr("forgetting", err)
		}
		out.Forgetting = &res
	}
	printJSON(out)
}
