package gateway

import (
	"context"
	"sync"
	"time"

	"igate/aprs"
)

// BeaconPacket is the gateway's own position report.
func (g *Gateway) BeaconPacket() string {
	return g.header() + "=" + g.position + g.cfg.BeaconText
}

// StatusPacket is the status bulletin. Once something has been gated it
// carries the live counters instead of the configured text.
func (g *Gateway) StatusPacket(now time.Time) string {
	text := g.cfg.BulletinText
	if s, ok := g.stations.StatusText(now); ok {
		text = s
	}
	return g.header() + aprs.FormatMessage("BLN1", text)
}

// Announce sends the status bulletin right away and every StatusPeriod,
// and the beacon after BeaconDelay and every BeaconPeriod, until ctx is
// done. Each timer is rearmed only after its send completes.
func (g *Gateway) Announce(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		g.every(ctx, 0, g.cfg.StatusPeriod, EventStatus, g.StatusPacket)
	}()
	go func() {
		defer wg.Done()
		g.every(ctx, g.cfg.BeaconDelay, g.cfg.BeaconPeriod, EventBeacon, func(time.Time) string {
			return g.BeaconPacket()
		})
	}()
	wg.Wait()
}

func (g *Gateway) every(ctx context.Context, first, period time.Duration, kind EventKind, build func(time.Time) string) {
	t := time.NewTimer(first)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		g.announce(ctx, kind, build(g.now()))
		t.Reset(period)
	}
}

func (g *Gateway) announce(ctx context.Context, kind EventKind, pkt string) {
	ev := Event{Kind: kind, Routing: g.header(), Payload: pkt[len(g.header()):]}
	if err := g.session.Send(ctx, []byte(pkt+"\r\n")); err != nil {
		g.log.Warn("announcement not sent", "kind", kind, "err", err)
		ev.Reason = ReasonNoNetwork
	} else {
		ev.Gated = true
	}
	g.report(ev)
}
