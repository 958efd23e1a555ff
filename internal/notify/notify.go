package notify

import (
	"context"
	"errors"
	"strconv"
)

// TargetKind selects how a rendered alert is delivered.
type TargetKind string

// Delivery modes.
const (
	TargetPublic TargetKind = "public"
	TargetDirect TargetKind = "direct"
)

// Target is where one alert goes: a public post, or a direct message to one recipient.
type Target struct {
	Kind        TargetKind
	RecipientID int64
}

// PublicPost targets the account's public timeline.
func PublicPost() Target {
	return Target{Kind: TargetPublic}
}

// DirectMessage targets a single recipient by numeric user ID.
func DirectMessage(recipientID int64) Target {
	return Target{Kind: TargetDirect, RecipientID: recipientID}
}

// String renders the target for logs, e.g. "public" or "direct:42".
func (t Target) String() string {
	if t.Kind == TargetDirect {
		return string(TargetDirect) + ":" + strconv.FormatInt(t.RecipientID, 10)
	}
	return string(t.Kind)
}

// Receipt is the raw upstream response to a successful delivery.
type Receipt struct {
	Status int
	Body   []byte
}

// Publisher delivers rendered alert text to a social platform.
type Publisher interface {
	Publish(ctx context.Context, target Target, text string) (Receipt, error)
}

// ErrNilPublisher is returned when a nil PublisherFunc is asked to publish.
var ErrNilPublisher = errors.New("notify: nil publisher")

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, target Target, text string) (Receipt, error)

// Publish implements the Publisher interface.
func (f PublisherFunc) Publish(ctx context.Context, target Target, text string) (Receipt, error) {
	if f == nil {
		return Receipt{}, ErrNilPublisher
	}
	return f(ctx, target, text)
}
