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
		Use:   "update <id> [content]",
		Short: "Update a memory in place",
		Long:  "Replace the content, importance, tags or metadata of a memory. The memory stays in its tier.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runUpdate,
	}

	cmd.Flags().Float64P("importance", "i", 0, "New importance in [0,1]")
	cmd.Flags().StringP("tags", "t", "", "Replace tags (comma-separated)")
	cmd.Flags().String("meta", "", "Metadata keys to set (JSON)")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	id := args[0]

	var p memory.UpdateParams
	if len(args) > 1 {
		c := model.TextContent(strings.Join(args[1:], " "))
		p.Content = &c
	}
	if cmd.Flags().Changed("importance") {
		v, _ := cmd.Flags().GetFloat64("importance")
		p.Importance = &v
	}
	if cmd.Flags().Changed("tags") {
		tagsStr, _ := cmd.Flags().GetString("tags")
		p.Tags = splitList(tagsStr)
		if p.Tags == nil {
			p.Tags = []string{}
		}
	}
	if cmd.Flags().Changed("meta") {
		meta, _ := cmd.Flags().GetString("meta")
		p.Metadata = parseMeta(meta)
	}
	if p.Content == nil && p.Importance == nil && p.Tags == nil && p.Metadata == nil {
		exitErr("update", fmt.Errorf("nothing to update"))
	}

	s := openManager(cmd, false)
	defer s.close()

	item, err := s.mgr.Update(cmd.Context(), id, p)
	if err != nil {
		exitErr("update", err)
	}
	printJSON(item)
}
