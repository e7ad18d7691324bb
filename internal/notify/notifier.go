package notify

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rules/internal/rules"
	"github.com/nerrad567/gray-logic-rules/internal/scheduler"
)

// captureTimeout bounds a single image capture.
const captureTimeout = 2 * time.Second

// Publisher sends JSON payloads. *mqtt.Client implements it.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// ImageSource captures an image to attach to notifications.
type ImageSource interface {
	Capture(ctx context.Context) (data []byte, contentType string, err error)
}

// Logger is the logging surface used by the notifier.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// ChainEvent is the payload published on grayrules/chain/{scene}/{event}.
type ChainEvent struct {
	ChainID    string    `json:"chain_id"`
	Scene      string    `json:"scene"`
	Trigger    string    `json:"trigger,omitempty"`
	Event      string    `json:"event"`
	Expression string    `json:"expression,omitempty"`
	Operations int       `json:"operations"`
	Success    *bool     `json:"success,omitempty"`
	Stopped    bool      `json:"stopped,omitempty"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// Notification is the payload published on grayrules/notify.
type Notification struct {
	ChainID   string           `json:"chain_id"`
	Scene     string           `json:"scene"`
	When      rules.NotifyWhen `json:"when"`
	Message   string           `json:"message"`
	Error     string           `json:"error,omitempty"`
	Image     []byte           `json:"image,omitempty"`
	ImageType string           `json:"image_type,omitempty"`
	Time      time.Time        `json:"time"`
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithImageSource enables SendImage attachments.
func WithImageSource(src ImageSource) Option {
	return func(n *Notifier) { n.images = src }
}

// WithChainEvents also publishes every dispatch and completion.
func WithChainEvents(enabled bool) Option {
	return func(n *Notifier) { n.events = enabled }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// Notifier turns scheduler events into MQTT messages.
type Notifier struct {
	pub    Publisher
	images ImageSource
	logger Logger
	events bool
	now    func() time.Time
}

// New creates a Notifier publishing through pub.
func New(pub Publisher, opts ...Option) *Notifier {
	n := &Notifier{pub: pub, logger: noopLogger{}, now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Attach subscribes the notifier to s.
func (n *Notifier) Attach(s *scheduler.Scheduler) {
	s.Subscribe(n.Handle)
}

// Handle processes one scheduler event. Publish failures are logged.
func (n *Notifier) Handle(e scheduler.Event) {
	now := n.now().UTC()

	if n.events {
		n.publish(mqtt.Topics{}.ChainEvent(e.Info.Scene, string(e.Kind)), chainEvent(e, now))
	}

	var image []byte
	var imageType string
	captured := false
	for _, rule := range e.Info.Notify {
		if !Fires(rule.When, e) {
			continue
		}
		msg := Notification{
			ChainID: e.Info.ID,
			Scene:   e.Info.Scene,
			When:    rule.When,
			Message: rule.Message,
			Time:    now,
		}
		if e.Err != nil {
			msg.Error = e.Err.Error()
		}
		if rule.SendImage && n.images != nil {
			// One capture per event, shared by every rule that asks for it.
			if !captured {
				image, imageType = n.capture()
				captured = true
			}
			msg.Image, msg.ImageType = image, imageType
		}
		n.publish(mqtt.Topics{}.Notification(), msg)
	}
}

// Fires reports whether a rule with the given moment fires for e.
func Fires(when rules.NotifyWhen, e scheduler.Event) bool {
	switch e.Kind {
	case scheduler.EventDispatched:
		return when == rules.NotifyStart
	case scheduler.EventCompleted:
		switch when {
		case rules.NotifyAlways:
			return true
		case rules.NotifySuccess:
			return e.Success
		case rules.NotifyFailure:
			return !e.Success && !e.Stopped
		}
	}
	return false
}

func (n *Notifier) capture() ([]byte, string) {
	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()

	data, contentType, err := n.images.Capture(ctx)
	if err != nil {
		n.logger.Warn("image capture failed", "error", err)
		return nil, ""
	}
	return data, contentType
}

func (n *Notifier) publish(topic string, v any) {
	if err := n.pub.PublishJSON(topic, v); err != nil {
		n.logger.Warn("notification publish failed", "topic", topic, "error", err)
		return
	}
	n.logger.Debug("notification published", "topic", topic)
}

func chainEvent(e scheduler.Event, now time.Time) ChainEvent {
	ce := ChainEvent{
		ChainID:    e.Info.ID,
		Scene:      e.Info.Scene,
		Trigger:    e.Info.Trigger,
		Event:      string(e.Kind),
		Expression: e.Info.Expression,
		Operations: len(e.Info.Operations),
		Time:       now,
	}
	if e.Kind == scheduler.EventCompleted {
		success := e.Success
		ce.Success = &success
		ce.Stopped = e.Stopped
		if e.Err != nil {
			ce.Error = e.Err.Error()
		}
	}
	return ce
}
