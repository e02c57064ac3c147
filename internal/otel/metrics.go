package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all orchestrator metrics instruments.
type Metrics struct {
	GatewayRequestDuration metric.Float64Histogram
	ReconcileTickDuration  metric.Float64Histogram
	HubPublishDuration     metric.Float64Histogram
	DeliveryJobDuration    metric.Float64Histogram
	DeliveryJobErrors      metric.Int64Counter
	MessagesTotal          metric.Int64Counter
	ActiveAgents           metric.Int64UpDownCounter
	ActiveSessions         metric.Int64UpDownCounter
	RateLimitRejects       metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.GatewayRequestDuration, err = meter.Float64Histogram("botcrew.gateway.request.duration",
		metric.WithDescription("Gateway request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ReconcileTickDuration, err = meter.Float64Histogram("botcrew.reconciler.tick.duration",
		metric.WithDescription("Reconciler tick duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.HubPublishDuration, err = meter.Float64Histogram("botcrew.hub.publish.duration",
		metric.WithDescription("Communication Hub bus-publish duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.DeliveryJobDuration, err = meter.Float64Histogram("botcrew.delivery.job.duration",
		metric.WithDescription("Delivery queue job processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.DeliveryJobErrors, err = meter.Int64Counter("botcrew.delivery.job.errors",
		metric.WithDescription("Delivery queue job failure count"),
	)
	if err != nil {
		return nil, err
	}

	m.MessagesTotal, err = meter.Int64Counter("botcrew.messages.total",
		metric.WithDescription("Total messages persisted across all channels"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveAgents, err = meter.Int64UpDownCounter("botcrew.agents.active",
		metric.WithDescription("Number of agents currently in a live status"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveSessions, err = meter.Int64UpDownCounter("botcrew.sessions.active",
		metric.WithDescription("Number of live WebSocket sessions attached to the Session Registry"),
	)
	if err != nil {
		return nil, err
	}

	m.RateLimitRejects, err = meter.Int64Counter("botcrew.ratelimit.rejects",
		metric.WithDescription("Requests rejected by the gateway rate limiter"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
