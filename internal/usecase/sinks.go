package usecase

import "github.com/semmidev/custos/internal/domain"

// NopSink discards every event.
type NopSink struct{}

func (NopSink) RecordJobStarted(jobID, strategy string)                                    {}
func (NopSink) RecordJobCompleted(jobID string, durationSeconds float64, totalBytes int64) {}
func (NopSink) RecordJobFailed(jobID, errorMessage string)                                 {}

// Sinks fans events out to several sinks in order.
type Sinks []domain.MetricsSink

func (s Sinks) RecordJobStarted(jobID, strategy string) {
	for _, sink := range s {
		sink.RecordJobStarted(jobID, strategy)
	}
}

func (s Sinks) RecordJobCompleted(jobID string, durationSeconds float64, totalBytes int64) {
	for _, sink := range s {
		sink.RecordJobCompleted(jobID, durationSeconds, totalBytes)
	}
}

func (s Sinks) RecordJobFailed(jobID, errorMessage string) {
	for _, sink := range s {
		sink.RecordJobFailed(jobID, errorMessage)
	}
}
