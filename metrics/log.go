package metrics

import (
	"log"
)

// LogSink Writes every value as a log line. Values are logged every 'every' steps (all of them if every <= 1)
type LogSink struct {
	logger *log.Logger
	every  int
}

// NewLogSink Creates sink writing to logger. If logger is nil then standard logger is used
func NewLogSink(logger *log.Logger, every int) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger, every: every}
}

func (s *LogSink) Emit(name string, value float64, step int) error {
	if s.every > 1 && step%s.every != 0 {
		return nil
	}
	s.logger.Printf("step=%d %s=%.6f", step, name, value)
	return nil
}
