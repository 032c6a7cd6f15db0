package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/processor"
)

func init() {
	cmd := &cobra.Command{
		Use:   "process [input]",
		Short: "Run input through the memory processor",
		Long: "Pick a memory operation from trigger words in the input (remember, recall, forget, search) " +
			"or from an explicit --op, run it, and print the result envelope. Input without a trigger " +
			"is stored and answered with related memories.",
		Run: runProcess,
	}

	cmd.Flags().String("op", "", `Explicit operation as JSON, e.g. {"type":"retrieve","query":"paris"}`)

	RootCmd.AddCommand(cmd)
}

func runProcess(cmd *cobra.Command, args []string) {
	opStr, _ := cmd.Flags().GetString("op")
	input := strings.TrimSpace(readContent(args))

	var pc processor.Context
	if opStr != "" {
		var op processor.Operation
		if err := json.Unmarshal([]byte(opStr), &op); err != nil {
			exitErr("parse --op", err)
		}
		pc.Operation = &op
	}
	if input == "" && pc.Operation == nil {
		exitErr("process", fmt.Errorf("input is required (positional arg, stdin or --op)"))
	}

	s := openManager(cmd, false)
	defer s.close()

	res := processor.New(s.mgr, s.logger).Process(cmd.Context(), input, pc)
	printJSON(res)
}
