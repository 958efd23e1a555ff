// Package relay turns one anomalous-transaction event into at most one Twitter post.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/target/txalert/config"
	"github.com/target/txalert/internal/domain/alert"
	apperrors "github.com/target/txalert/internal/errors"
	"github.com/target/txalert/internal/notify"
	"github.com/target/txalert/internal/notify/twitter"
	obserrors "github.com/target/txalert/internal/observability/errors"
	"github.com/target/txalert/internal/observability/metrics"
	"github.com/target/txalert/internal/observability/statsd"
)

// Outcome describes what an invocation did with its event.
type Outcome string

// Invocation outcomes that are not errors.
const (
	OutcomeDelivered           Outcome = metrics.ResultDelivered
	OutcomeSkippedInvalid      Outcome = metrics.ResultSkippedInvalid
	OutcomeSkippedUnrecognized Outcome = metrics.ResultSkippedUnrecognized
)

// Invocation is one event handed to the relay by a harness.
type Invocation struct {
	// ID correlates logs; a random one is assigned when empty.
	ID string
	// Data is the base64 encoded JSON payload.
	Data string
}

// Result reports how an invocation was handled.
type Result struct {
	InvocationID string         `json:"invocation_id"`
	Outcome      Outcome        `json:"outcome,omitempty"`
	EventType    string         `json:"event_type,omitempty"`
	Target       string         `json:"target,omitempty"`
	Message      string         `json:"message,omitempty"`
	Receipt      notify.Receipt `json:"-"`
}

// PublisherFactory builds a publisher from credentials resolved at delivery time.
type PublisherFactory func(creds twitter.Credentials) (notify.Publisher, error)

// FailureNotifier tells operators about invocations that returned an error.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, payload notify.FailurePayload)
}

// Options configures a Relay.
type Options struct {
	Vars         config.Vars
	NewPublisher PublisherFactory
	Logger       *slog.Logger
	Metrics      statsd.Sink
	// Failures is optional.
	Failures FailureNotifier
}

// Relay decodes, classifies, renders and delivers events. It holds no
// per-invocation state and is safe for concurrent use.
type Relay struct {
	vars         config.Vars
	newPublisher PublisherFactory
	logger       *slog.Logger
	metrics      statsd.Sink
	failures     FailureNotifier
}

var errPublisherFactoryRequired = errors.New("relay: publisher factory is required")

// New constructs a Relay.
func New(opts Options) (*Relay, error) {
	if opts.NewPublisher == nil {
		return nil, errPublisherFactoryRequired
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	vars := opts.Vars
	if vars == nil {
		vars = config.Vars{}
	}
	return &Relay{
		vars:         vars,
		newPublisher: opts.NewPublisher,
		logger:       logger.With("component", "relay"),
		metrics:      opts.Metrics,
		failures:     opts.Failures,
	}, nil
}

// Handle processes a single invocation. Invalid and unrecognized events are
// skipped without error; decode, configuration and delivery failures are returned.
func (r *Relay) Handle(ctx context.Context, inv Invocation) (Result, error) {
	id := strings.TrimSpace(inv.ID)
	if id == "" {
		id = uuid.NewString()
	}
	res := Result{InvocationID: id}
	logger := r.logger.With("invocation_id", id)

	ev, err := alert.Parse(inv.Data)
	if err != nil {
		if apperrors.IsValidation(err) {
			res.Outcome = OutcomeSkippedInvalid
			logger.WarnContext(ctx, "skipping invalid event",
				"field", apperrors.GetField(err),
				"error", err,
			)
			r.emit(res, 0, nil)
			return res, nil
		}
		logger.ErrorContext(ctx, "failed to decode event payload", "error", err)
		r.emit(res, 0, err)
		r.notifyFailure(ctx, res, "", err)
		return res, err
	}

	text, ok := alert.Render(ev)
	if !ok {
		res.Outcome = OutcomeSkippedUnrecognized
		logger.DebugContext(ctx, "ignoring unrecognized event type", "event_type", string(ev.Type()))
		r.emit(res, 0, nil)
		return res, nil
	}
	res.EventType = string(ev.Type())
	res.Message = text
	logger = logger.With("event_type", res.EventType, "tx_hash", ev.TxHash())

	target, err := r.resolveTarget()
	if err != nil {
		logger.ErrorContext(ctx, "failed to resolve delivery target", "error", err)
		r.emit(res, 0, err)
		r.notifyFailure(ctx, res, ev.TxHash(), err)
		return res, err
	}
	res.Target = target.String()
	logger = logger.With("target", res.Target)

	publisher, err := r.publisher()
	if err != nil {
		logger.ErrorContext(ctx, "failed to prepare publisher", "error", err)
		r.emit(res, 0, err)
		r.notifyFailure(ctx, res, ev.TxHash(), err)
		return res, err
	}

	start := time.Now()
	receipt, err := publisher.Publish(ctx, target, text)
	elapsed := time.Since(start)
	if err != nil {
		logger.ErrorContext(ctx, "alert delivery failed",
			"status", apperrors.GetStatus(err),
			"error", err,
		)
		r.emit(res, elapsed, err)
		r.notifyFailure(ctx, res, ev.TxHash(), err)
		return res, err
	}

	res.Outcome = OutcomeDelivered
	res.Receipt = receipt
	logger.InfoContext(ctx, "alert delivered",
		"outcome", string(res.Outcome),
		"status", receipt.Status,
		"duration_ms", elapsed.Milliseconds(),
	)
	r.emit(res, elapsed, nil)
	return res, nil
}

// resolveTarget picks a direct message when a recipient is configured and a
// public post otherwise.
func (r *Relay) resolveTarget() (notify.Target, error) {
	raw, err := r.vars.Get(config.VarDirectMessageRecipientID, "")
	if err != nil {
		return notify.Target{}, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return notify.PublicPost(), nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return notify.Target{}, apperrors.InvalidVariable(config.VarDirectMessageRecipientID, err)
	}
	return notify.DirectMessage(id), nil
}

func (r *Relay) publisher() (notify.Publisher, error) {
	creds, err := r.credentials()
	if err != nil {
		return nil, err
	}
	pub, err := r.newPublisher(creds)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfiguration, "build twitter client")
	}
	return pub, nil
}

func (r *Relay) credentials() (twitter.Credentials, error) {
	var creds twitter.Credentials
	fields := []struct {
		name string
		dst  *string
	}{
		{config.VarAppKey, &creds.ConsumerKey},
		{config.VarAppSecret, &creds.ConsumerSecret},
		{config.VarToken, &creds.Token},
		{config.VarTokenSecret, &creds.TokenSecret},
	}
	for _, f := range fields {
		v, err := r.vars.Get(f.name)
		if err != nil {
			return twitter.Credentials{}, err
		}
		*f.dst = v
	}
	return creds, nil
}

func (r *Relay) emit(res Result, elapsed time.Duration, err error) {
	result := string(res.Outcome)
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitInvocation(r.metrics, metrics.InvocationMetric{
		EventType: res.EventType,
		Target:    targetTag(res.Target),
		Result:    result,
		Duration:  elapsed,
		Err:       err,
	})
}

// notifyFailure reports err to operators. Malformed payloads are the
// producer's fault and go out as warnings; everything else is critical.
func (r *Relay) notifyFailure(ctx context.Context, res Result, txHash string, err error) {
	if r.failures == nil {
		return
	}
	severity := notify.SeverityCritical
	if apperrors.IsDecode(err) {
		severity = notify.SeverityWarning
	}
	var metadata map[string]string
	if status := apperrors.GetStatus(err); status != 0 {
		metadata = map[string]string{"status": strconv.Itoa(status)}
	}
	// Sinks still run when the invocation context was canceled.
	r.failures.NotifyFailure(context.WithoutCancel(ctx), notify.FailurePayload{
		InvocationID: res.InvocationID,
		EventType:    res.EventType,
		TxHash:       txHash,
		Target:       res.Target,
		Error:        err.Error(),
		ErrorClass:   obserrors.Classify(err),
		Severity:     severity,
		OccurredAt:   time.Now().UTC(),
		Metadata:     metadata,
	})
}

// targetTag drops the recipient ID to keep metric cardinality bounded.
func targetTag(target string) string {
	kind, _, _ := strings.Cut(target, ":")
	return kind
}
