package utils

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultNetworkTargets are probed at startup before the first fetch.
var DefaultNetworkTargets = []string{
	"api.met.no:443",
	"api.netatmo.com:443",
	"8.8.8.8:53",
	"1.1.1.1:53",
}

// WaitForNetwork blocks until one of the targets accepts a TCP connection or
// max has elapsed. Hostnames must resolve before a dial is tried. It reports
// whether the network came up; a timeout only logs, the caches cover the gap.
func WaitForNetwork(ctx context.Context, targets []string, max time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	dialer := net.Dialer{Timeout: 3 * time.Second}
	start := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		for _, target := range targets {
			if reachable(ctx, &dialer, target) {
				log.Info().Str("target", target).Dur("after", time.Since(start)).Msg("Network is available")
				return true
			}
		}

		select {
		case <-ctx.Done():
			log.Warn().Dur("waited", max).Msg("Network not available, continuing with cached data")
			return false
		case <-ticker.C:
		}
	}
}

func reachable(ctx context.Context, dialer *net.Dialer, target string) bool {
	host, _, err := net.SplitHostPort(target)
	if err != nil {
		return false
	}
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return false
		}
	}

	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
