package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "forget <id>",
		Short: "Delete a memory from every tier",
		Args:  cobra.ExactArgs(1),
		Run:   runForget,
	}

	RootCmd.AddCommand(cmd)
}

func runForget(cmd *cobra.Command, args []string) {
	s := openManager(cmd, false)
	defer s.close()

	if err := s.mgr.Forget(cmd.Context(), args[0]); err != nil {
		exitErr("forget", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q}`+"\n", args[0])
}
