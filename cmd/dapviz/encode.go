package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/dapviz/internal/debug/command"
)

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "encode ACTION THREAD",
		Short:   "Print the hex command frame for an action and thread id",
		Example: "  dapviz encode step-in 42",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := command.ParseAction(args[0])
			if err != nil {
				return err
			}
			thread, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid thread id %q: %w", args[1], err)
			}
			frame := command.Encode(action, thread)
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(frame[:]))
			return nil
		},
	}
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "decode HEX",
		Short:   "Decode a hex command frame",
		Example: "  dapviz decode 2a0000000000000002",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}
			action, thread, err := command.Decode(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s thread=%d\n", action, thread)
			return nil
		},
	}
}
