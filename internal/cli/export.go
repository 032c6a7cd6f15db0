package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the durable tiers as a snapshot",
		Long:  "Print the long-term, semantic and episodic tiers in snapshot format. The output can be fed back to import.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	s := openManager(cmd, false)
	defer s.close()

	data, err := s.mgr.Snapshot()
	if err != nil {
		exitErr("export", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		exitErr("export", err)
	}
	fmt.Println(buf.String())
}
