package scrape

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalFetches tracks pages fetched across all providers.
	TotalFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_fetches_total",
		Help: "The total number of pages fetched, by provider.",
	}, []string{"provider"})
	// TotalFetchErrors tracks fetches that resulted in an error.
	TotalFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_fetch_errors_total",
		Help: "The total number of failed fetches, by provider.",
	}, []string{"provider"})
	// TotalChallenges tracks anti-bot interstitials encountered.
	TotalChallenges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_challenges_total",
		Help: "The total number of challenge pages encountered.",
	})
	// TotalChallengesSolved tracks challenges waited out successfully.
	TotalChallengesSolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_challenges_solved_total",
		Help: "The total number of challenges resolved with an earned session.",
	})
	// TotalFailovers tracks how often the chain advanced past a provider.
	TotalFailovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_provider_failovers_total",
		Help: "The total number of provider failovers within the chain.",
	})
	// TotalUpserts tracks stored vehicles by upsert action.
	TotalUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_vehicle_upserts_total",
		Help: "The total number of vehicle upserts, by action.",
	}, []string{"action"})
)
