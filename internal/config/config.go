package config

import (
	"os"
	"strconv"
)

// Config is the Pricing Engine's process configuration, read once at
// startup. Grounded on the teacher's FromEnv-with-defaults style, expanded
// from two PDF paths to the full set of knobs the pipeline orchestrator and
// its HTTP-facing collaborators need.
type Config struct {
	DBDriver string
	DBDSN    string

	HTTPPort string

	CalcVersion   string
	EngineVersion string

	// OffersAPIBaseURL and UsageAPIBaseURL point at the internal services
	// the live OfferSource and UsageBucketsSource collaborators call.
	OffersAPIBaseURL string
	UsageAPIBaseURL  string

	// TdspRatesPath is the JSON reference file FileTdspRatesSource loads at
	// startup (spec §6's TdspRatesSource).
	TdspRatesPath string

	AutoMigrate bool

	DefaultMaxTemplateOffers int
	DefaultMaxEstimatePlans  int
	DefaultTimeBudgetMs      int

	// AdminDigestEmail, when set, is where the batch sweep sends its
	// review-queue digest (spec §4.11): a summary of EFL_PARSE and
	// PLAN_CALC_QUARANTINE rows the sweep added, via internal/notification.
	// Empty disables the digest.
	AdminDigestEmail string
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	driver := os.Getenv("PLANENGINE_DB_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	dsn := os.Getenv("PLANENGINE_DB_DSN")
	if dsn == "" {
		dsn = "planengine.db"
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	calcVersion := os.Getenv("PLANENGINE_CALC_VERSION")
	if calcVersion == "" {
		calcVersion = "v1"
	}
	engineVersion := os.Getenv("PLANENGINE_ENGINE_VERSION")
	if engineVersion == "" {
		engineVersion = "v1"
	}
	offersURL := os.Getenv("PLANENGINE_OFFERS_API_BASE_URL")
	if offersURL == "" {
		offersURL = "http://localhost:9001/internal"
	}
	usageURL := os.Getenv("PLANENGINE_USAGE_API_BASE_URL")
	if usageURL == "" {
		usageURL = "http://localhost:9002/internal"
	}

	return Config{
		DBDriver:      driver,
		DBDSN:         dsn,
		HTTPPort:      port,
		CalcVersion:   calcVersion,
		EngineVersion: engineVersion,

		OffersAPIBaseURL: offersURL,
		UsageAPIBaseURL:  usageURL,
		TdspRatesPath:    os.Getenv("PLANENGINE_TDSP_RATES_PATH"),

		AutoMigrate: os.Getenv("PLANENGINE_AUTO_MIGRATE") == "true",

		DefaultMaxTemplateOffers: envInt("PLANENGINE_MAX_TEMPLATE_OFFERS", 8),
		DefaultMaxEstimatePlans:  envInt("PLANENGINE_MAX_ESTIMATE_PLANS", 8),
		DefaultTimeBudgetMs:      envInt("PLANENGINE_TIME_BUDGET_MS", 12000),

		AdminDigestEmail: os.Getenv("PLANENGINE_ADMIN_DIGEST_EMAIL"),
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
