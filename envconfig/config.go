package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

var (
	// Set via PIXFEED_ORIGINS in the environment
	AllowOrigins []string
	// Set via PIXFEED_DEBUG in the environment
	Debug bool
	// Set via PIXFEED_HOST in the environment
	Host string
	// Set via PIXFEED_NUM_THREADS in the environment
	NumThreads int
	// Set via PIXFEED_MAX_QUEUE in the environment
	MaxQueuedRequests int
	// Set via PIXFEED_SEED in the environment
	Seed int64
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"PIXFEED_DEBUG":       {"PIXFEED_DEBUG", Debug, "Show additional debug information (e.g. PIXFEED_DEBUG=1)"},
		"PIXFEED_HOST":        {"PIXFEED_HOST", Host, "IP address for the pixfeed server (default 127.0.0.1:11435)"},
		"PIXFEED_NUM_THREADS": {"PIXFEED_NUM_THREADS", NumThreads, "Default decode worker count (default 1)"},
		"PIXFEED_MAX_QUEUE":   {"PIXFEED_MAX_QUEUE", MaxQueuedRequests, "Maximum number of queued fetch requests"},
		"PIXFEED_ORIGINS":     {"PIXFEED_ORIGINS", AllowOrigins, "A comma separated list of allowed origins"},
		"PIXFEED_SEED":        {"PIXFEED_SEED", Seed, "Augmentation RNG seed, 0 seeds from the clock"},
	}
}

var defaultAllowOrigins = []string{
	"localhost",
	"127.0.0.1",
	"0.0.0.0",
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	NumThreads = 1
	MaxQueuedRequests = 512
	Host = "127.0.0.1:11435"

	LoadConfig()
}

func LoadConfig() {
	if debug := clean("PIXFEED_DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	if host := clean("PIXFEED_HOST"); host != "" {
		Host = host
	}

	if nt := clean("PIXFEED_NUM_THREADS"); nt != "" {
		val, err := strconv.Atoi(nt)
		if err != nil || val <= 0 {
			slog.Error("invalid setting must be greater than zero", "PIXFEED_NUM_THREADS", nt, "error", err)
		} else {
			NumThreads = val
		}
	}

	if mq := clean("PIXFEED_MAX_QUEUE"); mq != "" {
		p, err := strconv.Atoi(mq)
		if err != nil || p <= 0 {
			slog.Error("invalid setting", "PIXFEED_MAX_QUEUE", mq, "error", err)
		} else {
			MaxQueuedRequests = p
		}
	}

	AllowOrigins = AllowOrigins[:0]
	if origins := clean("PIXFEED_ORIGINS"); origins != "" {
		AllowOrigins = strings.Split(origins, ",")
	}
	for _, allowOrigin := range defaultAllowOrigins {
		AllowOrigins = append(AllowOrigins,
			fmt.Sprintf("http://%s", allowOrigin),
			fmt.Sprintf("https://%s", allowOrigin),
			fmt.Sprintf("http://%s:*", allowOrigin),
			fmt.Sprintf("https://%s:*", allowOrigin),
		)
	}

	if seed := clean("PIXFEED_SEED"); seed != "" {
		s, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			slog.Error("invalid setting", "PIXFEED_SEED", seed, "error", err)
		} else {
			Seed = s
		}
	}
}

func LogLevel() slog.Level {
	if Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
