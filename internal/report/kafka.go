package report

import (
	"context"

	"github.com/cx-tal-miterani/flightpulse/internal/kafka"
	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
)

// KafkaReporter delivers failure reports to a dead-letter topic and mirrors
// them to the log. If the topic write fails the report still lands in the
// log; the engine is never taken down by its own alerting path.
type KafkaReporter struct {
	producer *kafka.Producer
	topic    string
	log      logger.Logger
}

// NewKafkaReporter creates a Reporter publishing to topic.
func NewKafkaReporter(producer *kafka.Producer, topic string, log logger.Logger) *KafkaReporter {
	return &KafkaReporter{producer: producer, topic: topic, log: log}
}

func (r *KafkaReporter) Report(ctx context.Context, rep Report) {
	r.log.Error("workflow step failed",
		"workflow", rep.Workflow,
		"step", rep.Step,
		"errorKind", rep.ErrorKind,
		"cause", rep.Cause,
		"executionId", rep.ExecutionID,
	)

	if err := r.producer.Publish(ctx, r.topic, rep.ExecutionID, rep); err != nil {
		r.log.Error("failed to deliver failure report", "topic", r.topic, "error", err)
	}
}
