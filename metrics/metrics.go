package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_events_parsed_total",
			Help: "Total number of events parsed from input batches",
		},
		[]string{"source"},
	)

	ParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_parse_failures_total",
			Help: "Total number of input batches rejected as malformed",
		},
	)

	RulesCompiled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_rules_compiled_total",
			Help: "Total number of rule definitions compiled successfully",
		},
	)

	RuleCompileFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_rule_compile_failures_total",
			Help: "Total number of rule definitions rejected at compile time",
		},
	)

	MatchInvocations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_match_invocations_total",
			Help: "Total number of sequence matcher invocations",
		},
	)

	MatchesEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_matches_emitted_total",
			Help: "Total number of sequence matches emitted",
		},
	)

	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_match_duration_seconds",
			Help:    "Time taken by one sequence matcher invocation",
			Buckets: prometheus.DefBuckets,
		},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_api_requests_total",
			Help: "Total number of API requests by route and status code",
		},
		[]string{"route", "code"},
	)
)
