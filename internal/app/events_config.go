package app

import (
	"strings"

	"github.com/MarcosLauremiro/miKan-api/internal/events"
)

// UsesAMQP reports whether events travel through RabbitMQ.
func (c EventsConfig) UsesAMQP() bool {
	return strings.EqualFold(strings.TrimSpace(c.Driver), "amqp")
}

// AMQPBusConfig converts EventsConfig into the events package representation.
func (c EventsConfig) AMQPBusConfig() events.AMQPConfig {
	return events.AMQPConfig{
		URL:      strings.TrimSpace(c.AMQP.URL),
		Queue:    strings.TrimSpace(c.AMQP.Queue),
		Prefetch: c.AMQP.Prefetch,
	}
}
