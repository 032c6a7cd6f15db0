package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Replace the durable tiers from a snapshot",
		Long:  "Import a snapshot (file or stdin) in the format produced by export. The long-term, semantic and episodic tiers are replaced, not merged.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read snapshot", err)
	}

	s := openManager(cmd, false)
	defer s.close()

	if err := s.mgr.Restore(data); err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d}`+"\n", s.mgr.Stats().DurableItems)
}
