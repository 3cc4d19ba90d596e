package broker

import (
	"context"
	"fmt"

	"github.com/keenpaul29/secure-chat/events"
	"github.com/keenpaul29/secure-chat/modules/auth"
	"github.com/keenpaul29/secure-chat/modules/message"
	"github.com/keenpaul29/secure-chat/modules/room"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module wires the connection broker into the application: it builds
// the broker over the auth, room and message modules and runs the
// liveness sweep.
type Module struct {
	broker  *Broker
	handler *Handler
	sweeper *Sweeper

	authPort    auth.AuthPort
	roomPort    room.RoomPort
	messagePort message.MessagePort
	eventBus    mono.EventBus

	sweepCancel context.CancelFunc
	logger      types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new broker module.
func NewModule(moduleLogger types.Logger) *Module {
	return &Module{logger: moduleLogger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broker"
}

// Dependencies returns the modules the broker calls into.
func (m *Module) Dependencies() []string {
	return []string{"auth", "room", "message"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authPort = auth.NewAdapter(container)
	case "room":
		m.roomPort = room.NewAdapter(container)
	case "message":
		m.messagePort = message.NewAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
	}
}

// Start builds the broker and launches the liveness sweep.
func (m *Module) Start(_ context.Context) error {
	if m.authPort == nil || m.roomPort == nil || m.messagePort == nil {
		return fmt.Errorf("broker module requires auth, room and message dependencies")
	}

	m.broker = NewBroker(NewRegistry(), m.authPort, m.roomPort, m.messagePort, m.logger)
	m.broker.SetEventBus(m.eventBus)
	m.handler = NewHandler(m.broker, m.logger)

	m.sweeper = NewSweeper(m.broker, DefaultSweepInterval, DefaultIdleTimeout, m.logger)
	sweepCtx, cancel := context.WithCancel(context.Background())
	m.sweepCancel = cancel
	go m.sweeper.Run(sweepCtx)

	m.logger.Info("Broker module started")
	return nil
}

// Stop halts the sweep and disconnects every live session.
func (m *Module) Stop(_ context.Context) error {
	if m.sweepCancel != nil {
		m.sweepCancel()
	}
	if m.broker != nil {
		for _, session := range m.broker.Registry().Sessions() {
			m.broker.Disconnect(session)
		}
	}
	m.logger.Info("Broker module stopped")
	return nil
}

// Health reports live session and room counts.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.broker == nil {
		return mono.HealthStatus{Healthy: false, Message: "broker not initialized"}
	}
	sessions, rooms := m.broker.Registry().Counts()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]interface{}{
			"sessions": sessions,
			"rooms":    rooms,
		},
	}
}

// Handler exposes the websocket transport handler for the HTTP layer to
// mount. Valid after Start.
func (m *Module) Handler() *Handler {
	return m.handler
}
