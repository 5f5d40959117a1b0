package client

import (
	evbus "github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

// TopicNotifyError is the bus topic BusNotifier publishes on. Subscribers
// receive a single string argument.
const TopicNotifyError = "notify:error"

// Notifier surfaces a human readable failure message to the user.
type Notifier interface {
	NotifyError(message string)
}

type NotifierFunc func(message string)

func (f NotifierFunc) NotifyError(message string) { f(message) }

type NopNotifier struct{}

func (NopNotifier) NotifyError(string) {}

// LogNotifier writes notifications to a zap logger at warn level.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) NotifyError(message string) {
	if n.Logger == nil {
		return
	}
	n.Logger.Warn("[notify] " + message)
}

// BusNotifier publishes notifications on an event bus so any number of
// front ends can render them.
type BusNotifier struct {
	bus evbus.Bus
}

func NewBusNotifier(bus evbus.Bus) *BusNotifier {
	if bus == nil {
		bus = evbus.New()
	}
	return &BusNotifier{bus: bus}
}

func (n *BusNotifier) Bus() evbus.Bus { return n.bus }

func (n *BusNotifier) NotifyError(message string) {
	n.bus.Publish(TopicNotifyError, message)
}
