package notification

import (
	"github.com/purposeinplay/notifier/worker"
	"go.uber.org/zap"
)

// Handler adapts sender to a worker.Handler. Inputs that can never be
// delivered are logged and acknowledged; send failures are returned so
// the job is requeued.
func Handler(sender Sender, logger *zap.Logger) worker.Handler {
	return func(args worker.Args) error {
		in, err := FromArgs(args)
		if err != nil {
			logger.Warn("undecodable notification", zap.Error(err))
			return nil
		}

		if err := in.Validate(); err != nil {
			logger.Warn("dropping notification",
				zap.String("subject", in.Subject),
				zap.Error(err),
			)

			return nil
		}

		return sender.Send(in)
	}
}
