package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/memory"
	"github.com/rcliao/tiered-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "store [content]",
		Short: "Store a memory",
		Long: "Store a memory. Content can be a positional arg or piped via stdin. " +
			"The tier is chosen by the classifier unless --tier is given.",
		Run: runStore,
	}

	cmd.Flags().String("tier", "", "Force a tier: working, short_term, long_term, episodic, semantic")
	cmd.Flags().Float64P("importance", "i", 0, "Importance in [0,1] (default: estimated from content)")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().String("meta", "", "JSON metadata")
	cmd.Flags().Bool("structured", false, "Parse content as a JSON object")

	RootCmd.AddCommand(cmd)
}

func runStore(cmd *cobra.Command, args []string) {
	tierName, _ := cmd.Flags().GetString("tier")
	tagsStr, _ := cmd.Flags().GetString("tags")
	meta, _ := cmd.Flags().GetString("meta")
	structured, _ := cmd.Flags().GetBool("structured")

	raw := strings.TrimSpace(readContent(args))
	if raw == "" {
		exitErr("store", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	content := model.TextContent(raw)
	if structured {
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			exitErr("parse structured content", err)
		}
		content = model.StructuredContent(data)
	}

	opts := memory.StoreOptions{
		Tier:     tierName,
		Tags:     splitList(tagsStr),
		Metadata: parseMeta(meta),
	}
	if cmd.Flags().Changed("importance") {
		v, _ := cmd.Flags().GetFloat64("importance")
		opts.Importance = &v
	}

	s := openManager(cmd, false)
	defer s.close()

	item, err := s.mgr.Store(cmd.Context(), content, opts)
	if err != nil {
		exitErr("store", err)
	}
	printJSON(item)
}
