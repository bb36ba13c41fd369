package quiz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	answerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brainbolt_answer_submissions_total",
		Help: "Answer submissions by outcome.",
	}, []string{"outcome"})

	answerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brainbolt_answer_submission_seconds",
		Help:    "Latency of answer submissions including replays.",
		Buckets: prometheus.DefBuckets,
	})

	questionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brainbolt_questions_issued_total",
		Help: "Questions issued through next.",
	})

	postCommitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brainbolt_post_commit_failures_total",
		Help: "Best-effort steps that failed after an answer was committed.",
	}, []string{"step"})
)

func outcomeLabel(err error, replayed bool) string {
	switch {
	case err == nil && replayed:
		return "replayed"
	case err == nil:
		return "committed"
	default:
		for _, c := range errorCodes {
			if c.matches(err) {
				return c.code
			}
		}
		return "error"
	}
}
