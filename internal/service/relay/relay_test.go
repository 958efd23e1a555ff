package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/txalert/config"
	apperrors "github.com/target/txalert/internal/errors"
	"github.com/target/txalert/internal/mocks"
	"github.com/target/txalert/internal/notify"
	"github.com/target/txalert/internal/notify/twitter"
	"go.uber.org/mock/gomock"
)

const ethValueMessage = "Transaction with an unusually high value of 1.50 ETH: https://etherscan.io/tx/0xabc. " +
	"Only one transaction had a comparable value in the last 7 days."

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func credentialVars(extra map[string]string) config.Vars {
	vars := config.Vars{
		config.VarAppKey:      "app-key",
		config.VarAppSecret:   "app-secret",
		config.VarToken:       "token",
		config.VarTokenSecret: "token-secret",
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticFactory(pub notify.Publisher) PublisherFactory {
	return func(twitter.Credentials) (notify.Publisher, error) { return pub, nil }
}

func failingFactory(t *testing.T) PublisherFactory {
	return func(twitter.Credentials) (notify.Publisher, error) {
		t.Errorf("publisher must not be built")
		return nil, errors.New("unexpected")
	}
}

func newTestRelay(t *testing.T, opts Options) *Relay {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func TestNewRequiresFactory(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestHandleDeliversPublicPost(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().
		Publish(gomock.Any(), notify.PublicPost(), ethValueMessage).
		Return(notify.Receipt{Status: http.StatusOK}, nil).
		Times(1)

	var gotCreds twitter.Credentials
	r := newTestRelay(t, Options{
		Vars: credentialVars(nil),
		NewPublisher: func(c twitter.Credentials) (notify.Publisher, error) {
			gotCreds = c
			return pub, nil
		},
	})

	res, err := r.Handle(context.Background(), Invocation{
		ID:   "msg-1",
		Data: encode(`{"type":"ethereum_anomalous_value","transaction":{"value":1500000000000000000,"hash":"0xabc"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", res.InvocationID)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, "ethereum_anomalous_value", res.EventType)
	assert.Equal(t, "public", res.Target)
	assert.Equal(t, ethValueMessage, res.Message)
	assert.Equal(t, http.StatusOK, res.Receipt.Status)
	assert.Equal(t, twitter.Credentials{
		ConsumerKey:    "app-key",
		ConsumerSecret: "app-secret",
		Token:          "token",
		TokenSecret:    "token-secret",
	}, gotCreds)
}

func TestHandleDeliversDirectMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().
		Publish(gomock.Any(), notify.DirectMessage(42), gomock.Any()).
		Return(notify.Receipt{Status: http.StatusOK}, nil)

	r := newTestRelay(t, Options{
		Vars:         credentialVars(map[string]string{config.VarDirectMessageRecipientID: "42"}),
		NewPublisher: staticFactory(pub),
	})

	res, err := r.Handle(context.Background(), Invocation{
		Data: encode(`{"type":"bitcoin_anomalous_value","transaction":{"input_value":12345678901,"hash":"h"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "direct:42", res.Target)
	assert.Contains(t, res.Message, "123.46 BTC")
	assert.Contains(t, res.Message, "https://www.blockchain.com/btc/tx/h")
}

func TestHandleSkipsInvalidEvents(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "missing type", payload: `{"transaction":{"value":1,"hash":"h"}}`},
		{name: "eth value without value", payload: `{"type":"ethereum_anomalous_value","transaction":{"hash":"h"}}`},
		{name: "gas cost without gas_cost", payload: `{"type":"ethereum_anomalous_gas_cost","transaction":{"hash":"h"}}`},
		{name: "btc without input_value", payload: `{"type":"bitcoin_anomalous_value","transaction":{"hash":"h"}}`},
		{name: "non numeric amount", payload: `{"type":"ethereum_anomalous_value","transaction":{"value":"lots","hash":"h"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			pub := mocks.NewMockPublisher(ctrl)
			pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			r := newTestRelay(t, Options{
				Vars:         credentialVars(nil),
				NewPublisher: staticFactory(pub),
			})
			res, err := r.Handle(context.Background(), Invocation{Data: encode(tt.payload)})
			require.NoError(t, err)
			assert.Equal(t, OutcomeSkippedInvalid, res.Outcome)
			assert.Empty(t, res.Message)
		})
	}
}

func TestHandleIgnoresUnrecognizedWithoutConfiguration(t *testing.T) {
	// No credentials configured: an unrecognized type must not look them up.
	r := newTestRelay(t, Options{
		Vars:         config.Vars{},
		NewPublisher: failingFactory(t),
	})

	res, err := r.Handle(context.Background(), Invocation{Data: encode(`{"type":"dogecoin_anomalous_value"}`)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedUnrecognized, res.Outcome)
	assert.Empty(t, res.Target)
}

func TestHandleDecodeErrors(t *testing.T) {
	for name, data := range map[string]string{
		"not base64": "!!!not base64!!!",
		"not json":   encode("definitely not json"),
		"json array": encode(`[1,2,3]`),
	} {
		t.Run(name, func(t *testing.T) {
			r := newTestRelay(t, Options{
				Vars:         credentialVars(nil),
				NewPublisher: failingFactory(t),
			})
			res, err := r.Handle(context.Background(), Invocation{Data: data})
			require.Error(t, err)
			assert.True(t, apperrors.IsDecode(err), "got %v", err)
			assert.Empty(t, res.Outcome)
			assert.Empty(t, res.Message)
		})
	}
}

func TestHandleMissingCredential(t *testing.T) {
	vars := credentialVars(nil)
	delete(vars, config.VarToken)

	r := newTestRelay(t, Options{Vars: vars, NewPublisher: failingFactory(t)})
	_, err := r.Handle(context.Background(), Invocation{
		Data: encode(`{"type":"ethereum_anomalous_gas_cost","gas_cost":"2000000000000000000","transaction":{"hash":"h"}}`),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
	assert.Equal(t, config.VarToken, apperrors.GetField(err))
}

func TestHandleEmptyCredentialCountsAsSet(t *testing.T) {
	var (
		gotCreds  twitter.Credentials
		published int
	)
	r := newTestRelay(t, Options{
		Vars: credentialVars(map[string]string{config.VarTokenSecret: ""}),
		NewPublisher: func(c twitter.Credentials) (notify.Publisher, error) {
			gotCreds = c
			return notify.PublisherFunc(func(context.Context, notify.Target, string) (notify.Receipt, error) {
				published++
				return notify.Receipt{Status: http.StatusOK}, nil
			}), nil
		},
	})
	res, err := r.Handle(context.Background(), Invocation{
		Data: encode(`{"type":"ethereum_anomalous_value","transaction":{"value":1,"hash":"h"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, 1, published)
	assert.Empty(t, gotCreds.TokenSecret)
	assert.Equal(t, "token", gotCreds.Token)
}

func TestHandleNilPublisherFuncFails(t *testing.T) {
	r := newTestRelay(t, Options{
		Vars: credentialVars(nil),
		NewPublisher: func(twitter.Credentials) (notify.Publisher, error) {
			return notify.PublisherFunc(nil), nil
		},
	})
	res, err := r.Handle(context.Background(), Invocation{
		Data: encode(`{"type":"ethereum_anomalous_value","transaction":{"value":1,"hash":"h"}}`),
	})
	require.ErrorIs(t, err, notify.ErrNilPublisher)
	assert.Empty(t, res.Outcome)
}

func TestHandleInvalidRecipient(t *testing.T) {
	r := newTestRelay(t, Options{
		Vars:         credentialVars(map[string]string{config.VarDirectMessageRecipientID: "not-a-number"}),
		NewPublisher: failingFactory(t),
	})
	_, err := r.Handle(context.Background(), Invocation{
		Data: encode(`{"type":"ethereum_anomalous_value","transaction":{"value":1,"hash":"h"}}`),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
	assert.Equal(t, config.VarDirectMessageRecipientID, apperrors.GetField(err))
}

func TestHandlePropagatesDeliveryError(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().
		Publish(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(notify.Receipt{}, apperrors.Delivery(http.StatusForbidden, "twitter statuses/update 403 Forbidden"))

	r := newTestRelay(t, Options{Vars: credentialVars(nil), NewPublisher: staticFactory(pub)})
	res, err := r.Handle(context.Background(), Invocation{
		Data: encode(`{"type":"ethereum_anomalous_value","transaction":{"value":1,"hash":"h"}}`),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsDelivery(err))
	assert.Equal(t, http.StatusForbidden, apperrors.GetStatus(err))
	assert.Empty(t, res.Outcome)
	assert.NotEmpty(t, res.Message)
}

func TestHandleFactoryErrorIsConfiguration(t *testing.T) {
	r := newTestRelay(t, Options{
		Vars: credentialVars(nil),
		NewPublisher: func(twitter.Credentials) (notify.Publisher, error) {
			return nil, errors.New("bad base url")
		},
	})
	_, err := r.Handle(context.Background(), Invocation{
		Data: encode(`{"type":"ethereum_anomalous_value","transaction":{"value":1,"hash":"h"}}`),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestHandleAssignsInvocationID(t *testing.T) {
	r := newTestRelay(t, Options{NewPublisher: failingFactory(t)})
	res, err := r.Handle(context.Background(), Invocation{Data: encode(`{"type":"other"}`)})
	require.NoError(t, err)
	_, parseErr := uuid.Parse(res.InvocationID)
	assert.NoError(t, parseErr)
}

func TestHandleEmitsMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().
		Publish(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, notify.Target, string) (notify.Receipt, error) {
			time.Sleep(time.Millisecond)
			return notify.Receipt{Status: http.StatusOK}, nil
		})

	wantTags := map[string]string{
		"result":     "delivered",
		"event_type": "ethereum_anomalous_value",
		"target":     "direct",
	}
	sink := mocks.NewMockSink(ctrl)
	sink.EXPECT().Count("relay.invocation", int64(1), wantTags)
	sink.EXPECT().Timing("relay.delivery.duration", gomock.Any(), wantTags)

	r := newTestRelay(t, Options{
		Vars:         credentialVars(map[string]string{config.VarDirectMessageRecipientID: "7"}),
		NewPublisher: staticFactory(pub),
		Metrics:      sink,
	})
	_, err := r.Handle(context.Background(), Invocation{
		Data: encode(`{"type":"ethereum_anomalous_value","transaction":{"value":1,"hash":"h"}}`),
	})
	require.NoError(t, err)
}

func TestHandleEmitsSkipMetric(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)
	sink.EXPECT().Count("relay.invocation", int64(1), map[string]string{"result": "skipped_invalid"})

	r := newTestRelay(t, Options{NewPublisher: failingFactory(t), Metrics: sink})
	_, err := r.Handle(context.Background(), Invocation{Data: encode(`{}`)})
	require.NoError(t, err)
}

type failureRecorder struct {
	mu       sync.Mutex
	payloads []notify.FailurePayload
}

func (f *failureRecorder) NotifyFailure(_ context.Context, payload notify.FailurePayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
}

func (f *failureRecorder) snapshot() []notify.FailurePayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.FailurePayload(nil), f.payloads...)
}

func TestHandleNotifiesOperatorsOfDeliveryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().
		Publish(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(notify.Receipt{}, apperrors.Delivery(http.StatusServiceUnavailable, "twitter unavailable"))

	failures := &failureRecorder{}
	r := newTestRelay(t, Options{
		Vars:         credentialVars(map[string]string{config.VarDirectMessageRecipientID: "9"}),
		NewPublisher: staticFactory(pub),
		Failures:     failures,
	})
	res, err := r.Handle(context.Background(), Invocation{
		ID:   "inv-1",
		Data: encode(`{"type":"ethereum_anomalous_value","transaction":{"value":1,"hash":"0xdead"}}`),
	})
	require.Error(t, err)

	got := failures.snapshot()
	require.Len(t, got, 1)
	p := got[0]
	assert.Equal(t, res.InvocationID, p.InvocationID)
	assert.Equal(t, "ethereum_anomalous_value", p.EventType)
	assert.Equal(t, "0xdead", p.TxHash)
	assert.Equal(t, "direct:9", p.Target)
	assert.Equal(t, "delivery", p.ErrorClass)
	assert.Equal(t, notify.SeverityCritical, p.Severity)
	assert.Equal(t, map[string]string{"status": "503"}, p.Metadata)
	assert.Contains(t, p.Error, "twitter unavailable")
	assert.False(t, p.OccurredAt.IsZero())
}

func TestHandleNotifiesOperatorsOfDecodeFailureAsWarning(t *testing.T) {
	failures := &failureRecorder{}
	r := newTestRelay(t, Options{NewPublisher: failingFactory(t), Failures: failures})

	_, err := r.Handle(context.Background(), Invocation{Data: "%%%"})
	require.Error(t, err)

	got := failures.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "decode", got[0].ErrorClass)
	assert.Equal(t, notify.SeverityWarning, got[0].Severity)
	assert.Empty(t, got[0].TxHash)
	assert.Nil(t, got[0].Metadata)
}

func TestHandleDoesNotNotifyOperatorsOfSkips(t *testing.T) {
	failures := &failureRecorder{}
	r := newTestRelay(t, Options{NewPublisher: failingFactory(t), Failures: failures})

	for _, payload := range []string{`{}`, `{"type":"other"}`} {
		_, err := r.Handle(context.Background(), Invocation{Data: encode(payload)})
		require.NoError(t, err)
	}
	assert.Empty(t, failures.snapshot())
}

// twitterRecorder stands in for the Twitter API.
type twitterRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

type recordedCall struct {
	path   string
	status string
	auth   string
	body   []byte
}

func (tr *twitterRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	tr.mu.Lock()
	tr.calls = append(tr.calls, recordedCall{
		path:   r.URL.Path,
		status: r.URL.Query().Get("status"),
		auth:   r.Header.Get("Authorization"),
		body:   body,
	})
	tr.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{}`)
}

func (tr *twitterRecorder) snapshot() []recordedCall {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]recordedCall(nil), tr.calls...)
}

func twitterRelay(t *testing.T, vars config.Vars) (*Relay, *twitterRecorder) {
	t.Helper()
	rec := &twitterRecorder{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	r := newTestRelay(t, Options{
		Vars: vars,
		NewPublisher: func(creds twitter.Credentials) (notify.Publisher, error) {
			return twitter.NewClient(twitter.Config{
				Credentials: creds,
				BaseURL:     srv.URL,
				Client:      srv.Client(),
				Logger:      discardLogger(),
			})
		},
	})
	return r, rec
}

func TestEndToEndPublicPost(t *testing.T) {
	r, rec := twitterRelay(t, credentialVars(map[string]string{config.VarDirectMessageRecipientID: ""}))

	_, err := r.Handle(context.Background(), Invocation{
		Data: encode(`{"type":"ethereum_anomalous_value","transaction":{"value":"1500000000000000000","hash":"0xabc"}}`),
	})
	require.NoError(t, err)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "/1.1/statuses/update.json", calls[0].path)
	assert.Equal(t, ethValueMessage, calls[0].status)
	assert.True(t, strings.HasPrefix(calls[0].auth, "OAuth "))
	assert.Contains(t, calls[0].auth, `oauth_consumer_key="app-key"`)
}

func TestEndToEndDirectMessage(t *testing.T) {
	r, rec := twitterRelay(t, credentialVars(map[string]string{config.VarDirectMessageRecipientID: "42"}))

	_, err := r.Handle(context.Background(), Invocation{
		Data: encode(`{"type":"ethereum_anomalous_value","transaction":{"value":1500000000000000000,"hash":"0xabc"}}`),
	})
	require.NoError(t, err)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "/1.1/direct_messages/events/new.json", calls[0].path)

	var body struct {
		Event struct {
			Type          string `json:"type"`
			MessageCreate struct {
				Target struct {
					RecipientID json.Number `json:"recipient_id"`
				} `json:"target"`
				MessageData struct {
					Text string `json:"text"`
				} `json:"message_data"`
			} `json:"message_create"`
		} `json:"event"`
	}
	require.NoError(t, json.Unmarshal(calls[0].body, &body))
	assert.Equal(t, "message_create", body.Event.Type)
	assert.Equal(t, json.Number("42"), body.Event.MessageCreate.Target.RecipientID)
	assert.Equal(t, ethValueMessage, body.Event.MessageCreate.MessageData.Text)
	assert.NotContains(t, string(calls[0].body), `"42"`)
}

func TestEndToEndInvalidPayloadMakesNoCall(t *testing.T) {
	r, rec := twitterRelay(t, credentialVars(nil))

	res, err := r.Handle(context.Background(), Invocation{
		Data: encode(`{"type":"ethereum_anomalous_value","transaction":{"hash":"0xabc"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedInvalid, res.Outcome)
	assert.Empty(t, rec.snapshot())
}
