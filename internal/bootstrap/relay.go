package bootstrap

import (
	"log/slog"
	"net/http"

	"github.com/target/txalert/config"
	"github.com/target/txalert/internal/notify"
	"github.com/target/txalert/internal/notify/pagerduty"
	"github.com/target/txalert/internal/notify/slack"
	"github.com/target/txalert/internal/notify/twitter"
	"github.com/target/txalert/internal/observability/statsd"
	"github.com/target/txalert/internal/service/failurenotifier"
	"github.com/target/txalert/internal/service/relay"
)

// RelayDeps are optional overrides for NewRelay.
type RelayDeps struct {
	Logger *slog.Logger
	// HTTPClient is the base transport for Twitter calls; nil uses http.DefaultClient.
	HTTPClient *http.Client
	// Metrics overrides the StatsD client built from configuration.
	Metrics statsd.Sink
}

// Relay is a wired relay together with the resources it owns.
type Relay struct {
	*relay.Relay
	metrics *statsd.Client
}

// Close releases the metrics connection, if any.
func (r *Relay) Close() error {
	return r.metrics.Close()
}

// NewRelay wires the relay to Twitter and, when enabled, StatsD and the
// operator failure sinks.
func NewRelay(cfg config.AppConfig, deps RelayDeps) (*Relay, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := &Relay{}
	sink := deps.Metrics
	if sink == nil && cfg.Observability.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Observability.Metrics.StatsdAddress,
			Prefix:  cfg.Observability.Metrics.Prefix,
			Logger:  logger.With("component", "statsd"),
		})
		if err != nil {
			// Metrics are best effort; the relay still runs without them.
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.metrics = client
			sink = client
		}
	}

	r, err := relay.New(relay.Options{
		Vars:         cfg.Vars,
		NewPublisher: TwitterPublisherFactory(cfg.Twitter, deps.HTTPClient, logger),
		Logger:       logger,
		Metrics:      sink,
		Failures:     newFailureNotifier(cfg.Observability.Notifications, logger),
	})
	if err != nil {
		_ = out.metrics.Close()
		return nil, err
	}
	out.Relay = r
	return out, nil
}

// TwitterPublisherFactory builds a Twitter client per delivery from the
// credentials resolved at that moment.
func TwitterPublisherFactory(cfg config.TwitterConfig, base *http.Client, logger *slog.Logger) relay.PublisherFactory {
	return func(creds twitter.Credentials) (notify.Publisher, error) {
		return twitter.NewClient(twitter.Config{
			Credentials: creds,
			BaseURL:     cfg.BaseURL,
			Timeout:     cfg.Timeout,
			Client:      base,
			Logger:      logger,
		})
	}
}

// newFailureNotifier builds the enabled Slack and PagerDuty sinks. It returns
// nil when none are usable.
func newFailureNotifier(cfg config.ObservabilityNotificationsConfig, logger *slog.Logger) relay.FailureNotifier {
	if !cfg.Enabled {
		return nil
	}

	var sinks []failurenotifier.SinkRegistration
	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}
	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Endpoint:   cfg.PagerDuty.Endpoint,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	svc := failurenotifier.NewService(failurenotifier.Options{Logger: logger, Sinks: sinks})
	if !svc.Enabled() {
		return nil
	}
	return svc
}
