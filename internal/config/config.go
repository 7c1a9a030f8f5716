package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

// TierPrices maps a seat tier to its list price. Unknown or empty
// tiers price at zero.
type TierPrices map[string]int64

func (p TierPrices) PriceFor(tier string) int64 {
	if tier == "" {
		return 0
	}
	return p[tier]
}

func defaultTierPrices() TierPrices {
	return TierPrices{
		"VIP": 1680,
		"A":   1280,
		"B":   880,
		"C":   580,
		"E":   380,
	}
}

// Config is built once at startup and treated as immutable afterwards;
// components receive it (or single fields) by injection.
type Config struct {
	HTTPAddr      string
	CRDBDSN       string
	MongoURI      string
	RedisAddr     string
	RabbitURL     string
	AdminToken    string
	HoldTTL       time.Duration
	SweepInterval time.Duration
	SweepEnabled  bool
	TierPrices    TierPrices
	SeatsJSONPath string
	OTLPEndpoint  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	holdTTL, _ := time.ParseDuration(os.Getenv("HOLD_TTL"))
	if holdTTL == 0 {
		holdTTL = 120 * time.Second
	}

	sweepInterval, _ := time.ParseDuration(os.Getenv("SWEEP_INTERVAL"))
	if sweepInterval == 0 {
		sweepInterval = 5 * time.Second
	}

	cfg := &Config{
		HTTPAddr:      envOr("HTTP_ADDR", ":8080"),
		CRDBDSN:       os.Getenv("CRDB_DSN"),
		MongoURI:      os.Getenv("MONGO_URI"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RabbitURL:     os.Getenv("RABBIT_URL"),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		HoldTTL:       holdTTL,
		SweepInterval: sweepInterval,
		SweepEnabled:  parseBool(envOr("SWEEP_ENABLED", "true")),
		TierPrices:    ParseTierPrices(os.Getenv("TIER_PRICE_MAP")),
		SeatsJSONPath: envOr("SEATS_JSON_PATH", "data/seats.json"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.CRDBDSN == "" {
		return nil, errors.New("CRDB_DSN is required")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// ParseTierPrices accepts either a JSON object ({"VIP":1680,...}) or a
// comma list (VIP=1680,A=1280). Malformed input, or input that parses
// to nothing, falls back to the built-in defaults; individual bad
// entries are skipped.
func ParseTierPrices(raw string) TierPrices {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultTierPrices()
	}

	if strings.HasPrefix(raw, "{") {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		var byTier map[string]any
		if err := dec.Decode(&byTier); err != nil {
			return defaultTierPrices()
		}
		prices := TierPrices{}
		for tier, value := range byTier {
			switch v := value.(type) {
			case json.Number:
				if n, err := v.Int64(); err == nil {
					prices[tier] = n
				}
			case string:
				if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
					prices[tier] = n
				}
			}
		}
		if len(prices) == 0 {
			return defaultTierPrices()
		}
		return prices
	}

	prices := TierPrices{}
	for _, part := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			continue
		}
		prices[strings.TrimSpace(key)] = v
	}
	if len(prices) == 0 {
		return defaultTierPrices()
	}
	return prices
}
