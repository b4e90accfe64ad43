package kafka

import (
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func debugLogger(log *zap.Logger) kafka.Logger {
	return kafka.LoggerFunc(log.Named("kafka").Sugar().Debugf)
}

func errorLogger(log *zap.Logger) kafka.Logger {
	return kafka.LoggerFunc(log.Named("kafka").Sugar().Errorf)
}
