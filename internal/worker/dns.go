package worker

import (
	"context"
	"time"

	"github.com/rs/dnscache"
)

// DNSRefresher keeps the upstream DNS cache warm and drops hosts that were
// not used since the previous refresh.
type DNSRefresher struct {
	resolver *dnscache.Resolver
	interval time.Duration
}

// NewDNSRefresher creates a DNSRefresher.
func NewDNSRefresher(resolver *dnscache.Resolver, interval time.Duration) *DNSRefresher {
	return &DNSRefresher{resolver: resolver, interval: interval}
}

// Run refreshes the resolver on every tick until ctx is cancelled.
func (w *DNSRefresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.resolver.Refresh(true)
		case <-ctx.Done():
			return nil
		}
	}
}
