package checks

import (
	"context"

	"github.com/MarcosLauremiro/miKan-api/internal/monitoring"
)

// Pinger is satisfied by cache.RedisStore and events.AMQPBus.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Redis returns an optional probe for the shared rate-limit store. Requests
// keep flowing when Redis is down, so failures only degrade the report.
func Redis(client Pinger) monitoring.Check {
	return monitoring.Check{Name: "redis", Probe: client.Ping}
}

// Broker returns a critical probe for the AMQP event transport.
func Broker(client Pinger) monitoring.Check {
	return monitoring.Check{Name: "broker", Critical: true, Probe: client.Ping}
}
