package main

import (
	"fmt"

	"github.com/purposeinplay/notifier/notification"
	"github.com/purposeinplay/notifier/pubsub/amqpw"
	"github.com/purposeinplay/notifier/worker"
	workeramqpw "github.com/purposeinplay/notifier/worker/amqpw"
	"github.com/spf13/cobra"
)

func newEnqueueCommand(opts *rootOptions) *cobra.Command {
	var in notification.Input

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a notification for the leader to deliver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := in.Validate(); err != nil {
				return fmt.Errorf("invalid notification: %w", err)
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}

			conn, err := amqpw.Dial(&amqpw.Config{
				URL:        cfg.AMQP.URL,
				MaxRetries: cfg.AMQP.MaxRetries,
			})
			if err != nil {
				return fmt.Errorf("dial amqp: %w", err)
			}

			defer func() { _ = conn.Close() }()

			q, err := workeramqpw.New(workeramqpw.Options{
				Connection: conn,
				Name:       cfg.Service,
			})
			if err != nil {
				return fmt.Errorf("new worker: %w", err)
			}

			defer func() { _ = q.Close() }()

			if err := q.Perform(worker.Job{Handler: cfg.Queue.Name, Args: in.Args()}); err != nil {
				return fmt.Errorf("perform: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "queued notification for %s on %s\n", in.UserEmail, cfg.Queue.Name)

			return nil
		},
	}

	cmd.Flags().StringVar(&in.Subject, "subject", "", "notification subject")
	cmd.Flags().StringVar(&in.Message, "message", "", "notification body")
	cmd.Flags().StringVar(&in.UserEmail, "to", "", "recipient e-mail address")

	return cmd
}
