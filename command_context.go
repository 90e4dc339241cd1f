package management

import (
	"context"
	"time"

	"github.com/goliatone/go-featuregate/gate"
)

const commandTimeout = 10 * time.Second

// HandlerOption configures the collaborators shared by the lifecycle
// command handlers.
type HandlerOption func(*handlerContext)

type handlerContext struct {
	config      Config
	activity    ActivitySink
	search      SearchIndexer
	notifier    Notifier
	logger      Logger
	now         func() time.Time
	featureGate gate.FeatureGate
	codec       TokenCodec
	actor       ActorRef
}

// WithActivitySink sets where audit events are recorded.
func WithActivitySink(sink ActivitySink) HandlerOption {
	return func(hc *handlerContext) {
		hc.activity = normalizeActivitySink(sink)
	}
}

// WithSearchIndexer sets the search index kept in sync with identities.
func WithSearchIndexer(indexer SearchIndexer) HandlerOption {
	return func(hc *handlerContext) {
		hc.search = normalizeSearchIndexer(indexer)
	}
}

// WithNotifier sets the notification collaborator.
func WithNotifier(notifier Notifier) HandlerOption {
	return func(hc *handlerContext) {
		hc.notifier = normalizeNotifier(notifier)
	}
}

func WithLogger(logger Logger) HandlerOption {
	return func(hc *handlerContext) {
		if logger != nil {
			hc.logger = logger
		}
	}
}

// WithClock injects the time source. Unless a codec is provided too, the
// token codec shares it.
func WithClock(now func() time.Time) HandlerOption {
	return func(hc *handlerContext) {
		if now != nil {
			hc.now = now
		}
	}
}

// WithFeatureGate overrides the configuration backed registration gate.
func WithFeatureGate(featureGate gate.FeatureGate) HandlerOption {
	return func(hc *handlerContext) {
		hc.featureGate = featureGate
	}
}

func WithTokenCodec(codec TokenCodec) HandlerOption {
	return func(hc *handlerContext) {
		hc.codec = codec
	}
}

func newHandlerContext(config Config, opts ...HandlerOption) handlerContext {
	hc := handlerContext{
		config:   config,
		activity: noopActivitySink{},
		search:   noopSearchIndexer{},
		notifier: noopNotifier{},
		logger:   defLogger{},
		now:      time.Now,
		actor:    SystemActor,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&hc)
		}
	}

	if hc.featureGate == nil {
		hc.featureGate = NewConfigFeatureGate(config)
	}

	if hc.codec == nil {
		hc.codec = NewTokenCodecFromConfig(config,
			WithTokenClock(hc.now),
			WithTokenLogger(hc.logger),
		)
	}

	return hc
}

func (hc handlerContext) issuer() *ActionTokenIssuer {
	return NewActionTokenIssuer(hc.config, hc.codec)
}

// withActor returns a copy attributing recorded events to actor.
func (hc handlerContext) withActor(actor ActorRef) handlerContext {
	if actor != (ActorRef{}) {
		hc.actor = actor
	}
	return hc
}

func (hc handlerContext) record(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = hc.actor
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = hc.now()
	}
	if err := hc.activity.Record(ctx, event); err != nil {
		hc.logger.Warn("activity sink error for %s: %v", event.EventType, err)
	}
}

func (hc handlerContext) index(ctx context.Context, user *User) {
	if err := hc.search.Index(ctx, user); err != nil {
		hc.logger.Warn("failed to index user %s: %v", user.ID, err)
	}
}

func (hc handlerContext) unindex(ctx context.Context, user *User) {
	if err := hc.search.Delete(ctx, user); err != nil {
		hc.logger.Warn("failed to remove user %s from index: %v", user.ID, err)
	}
}

func (hc handlerContext) notify(ctx context.Context, notification Notification) {
	dispatchNotification(ctx, hc.notifier, hc.logger, notification)
}
