package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/dapviz/internal/debug"
	"github.com/dshills/dapviz/internal/debug/command"
)

// newStepCmd builds one of the stepping commands. name doubles as the
// action name.
func newStepCmd(opts *globalOptions, name, short string) *cobra.Command {
	var (
		thread  int64
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			action, err := command.ParseAction(name)
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := opts.logger(cfg)
			if err != nil {
				return err
			}
			sc, err := debug.SessionConfigFromConfig(cfg, logger)
			if err != nil {
				return err
			}

			s := debug.NewSession(sc)
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			sender, err := awaitSender(ctx, s)
			if err != nil {
				return err
			}
			if !sender.Send(action, thread) {
				return errors.New("connection closed before the command was sent")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s thread=%d\n", action, thread)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&thread, "thread", "t", 1, "Thread id")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the connection")
	return cmd
}

// awaitSender connects s and waits until a sender is available.
func awaitSender(ctx context.Context, s *debug.Session) (*debug.Sender, error) {
	changed := make(chan struct{}, 1)
	unsubscribe := s.Subscribe(func(debug.View) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	for {
		if sender := s.Sender(); sender != nil {
			return sender, nil
		}
		if s.State() == debug.StateDisconnected {
			return nil, errors.New("could not connect to the bridge")
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for connection: %w", ctx.Err())
		}
	}
}
