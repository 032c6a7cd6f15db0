package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch a memory by id",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	s := openManager(cmd, false)
	defer s.close()

	item, err := s.mgr.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}
	printJSON(item)
}
