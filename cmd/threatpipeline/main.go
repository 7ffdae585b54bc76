package main

import (
	"context"
	"log"
	"time"

	"github.com/phishguard/threatpipeline/internal/adapters/collector"
	"github.com/phishguard/threatpipeline/internal/adapters/storage"
	"github.com/phishguard/threatpipeline/internal/config"
	"github.com/phishguard/threatpipeline/internal/domain"
	"github.com/phishguard/threatpipeline/internal/domain/scoring"
	"github.com/phishguard/threatpipeline/internal/forwarder"
	"github.com/phishguard/threatpipeline/internal/ports"
)

// samplePage pairs page context with the signals its producers reported.
// In a deployment, signals arrive from the URL analyzer, the signature
// matcher, the ML classifier and the DOM extractor; this demo hard-codes
// representative outputs of each.
type samplePage struct {
	url     string
	title   string
	signals domain.ThreatSignals
}

func main() {
	log.Println("Starting threat pipeline demo...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.StorageBackend, err)
	}
	defer store.Close()

	log.Printf("Using %s storage backend", cfg.StorageBackend)

	// Wire the pipeline: pure scorer, durable forwarder, HTTP transport
	scorer := scoring.NewScorer(nil)
	transport := collector.NewHTTPClient(collector.DefaultTimeout)
	fwd := forwarder.New(store, transport, cfg.CollectorEndpoint, cfg.EnterpriseEnabled)

	ctx := context.Background()

	for _, page := range samplePages() {
		assessment := scorer.Assess(page.signals)
		log.Printf("Assessed %s: score=%d level=%s confidence=%.2f signals=%d",
			page.url, assessment.Score, assessment.Level, assessment.Confidence,
			len(assessment.TriggeredSignals))

		// Only verdicts worth acting on reach the console
		if assessment.Level == domain.LevelLikelyPhishing || assessment.Level == domain.LevelConfirmedPhishing {
			alert := domain.NewThreatAlert(assessment, page.url, page.title)
			n, err := fwd.QueueAlert(ctx, alert)
			if err != nil {
				log.Fatalf("Failed to queue alert: %v", err)
			}
			log.Printf("Queued alert for %s (queue length now %d)", alert.Domain, n)
		}
	}

	// One manual flush, then hand delivery over to the scheduler briefly
	if err := fwd.Flush(ctx); err != nil {
		log.Fatalf("Flush failed: %v", err)
	}
	log.Printf("Flush complete, forwarder status: %s", fwd.Status())

	sched, err := forwarder.NewFlushScheduler(fwd, cfg.FlushSchedule)
	if err != nil {
		log.Fatalf("Failed to build flush scheduler: %v", err)
	}
	sched.Start()
	time.Sleep(2 * time.Second)
	sched.Stop()

	remaining, err := fwd.QueueLength(ctx)
	if err != nil {
		log.Fatalf("Failed to read queue length: %v", err)
	}
	log.Printf("Demo complete: %d alerts still queued, status %s", remaining, fwd.Status())
}

// openStore builds the configured ports.KeyValueStore implementation
func openStore(cfg config.Config) (ports.KeyValueStore, error) {
	switch cfg.StorageBackend {
	case "postgres":
		store, err := storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.InitSchema(); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case "redis":
		return storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return storage.NewMemoryStore(), nil
	}
}

func samplePages() []samplePage {
	return []samplePage{
		{
			url:   "https://docs.example.com/welcome",
			title: "Welcome to Example Docs",
			signals: domain.ThreatSignals{
				URLAnalysis: domain.URLAnalysis{Score: 0, RiskLevel: domain.RiskLow, Signals: []string{}},
				MLInference: domain.MLInference{
					Classification: domain.MLSafe,
					Confidence:     0.95,
					Reasoning:      "Content matches known documentation patterns",
				},
			},
		},
		{
			url:   "https://paypa1-secure.example-login.com/verify?email=victim@example.com",
			title: "PayPal - Confirm Your Account Now",
			signals: domain.ThreatSignals{
				URLAnalysis: domain.URLAnalysis{
					Score:     82,
					RiskLevel: domain.RiskHigh,
					Signals:   []string{"homoglyph", "suspicious_tld"},
				},
				SignatureMatch: domain.SignatureMatch{
					Matched:         true,
					ContentPatterns: []string{"credential_harvest"},
					URLPatterns:     []string{"brand_spoof"},
				},
				MLInference: domain.MLInference{
					Classification: domain.MLLikelyPhishing,
					Confidence:     0.88,
					Reasoning:      "Login form mimics PayPal branding on unrelated domain",
				},
				DOMHeuristics: domain.DOMHeuristics{
					HasPasswordForm:     true,
					BrandDomainMismatch: true,
					LinkMismatchCount:   3,
					UrgencySignals:      2,
				},
			},
		},
		{
			url:   "https://known-bad.example.net/login",
			title: "Account Suspended",
			signals: domain.ThreatSignals{
				URLAnalysis: domain.URLAnalysis{Score: 65, RiskLevel: domain.RiskCritical, Signals: []string{"homoglyph"}},
				SignatureMatch: domain.SignatureMatch{
					Matched:     true,
					Blocklisted: true,
				},
				MLInference: domain.MLInference{
					Classification: domain.MLConfirmedPhishing,
					Confidence:     0.99,
					Reasoning:      "Exact match against known phishing kit",
				},
			},
		},
	}
}
