package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tavernvoice/tts-adapter/internal/tts"
)

// Registration is one handler attached to a hook.
type Registration struct {
	Hook    Name
	Plugin  string
	Handler Handler
	Seq     int
}

// Manager holds registrations per hook name. Registration happens at startup;
// Run* are safe for concurrent use afterwards.
type Manager struct {
	mu    sync.RWMutex
	hooks map[Name][]Registration
	seq   int
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{hooks: make(map[Name][]Registration)}
}

// Register appends handler to the hook. Nothing is deduplicated: the same
// handler may appear several times, under one or several names.
func (m *Manager) Register(name Name, plugin string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks[name] = append(m.hooks[name], Registration{
		Hook:    name,
		Plugin:  plugin,
		Handler: handler,
		Seq:     m.seq,
	})
	m.seq++

	log.Debug().Str("hook", string(name)).Str("plugin", plugin).Str("kind", handler.kind()).Msg("hook handler registered")
}

// Registrations returns a copy of the handlers attached to name, in run order.
func (m *Manager) Registrations(name Name) []Registration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Registration, len(m.hooks[name]))
	copy(out, m.hooks[name])
	return out
}

// Names returns every hook name with at least one handler.
func (m *Manager) Names() []Name {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]Name, 0, len(m.hooks))
	for name := range m.hooks {
		names = append(names, name)
	}
	return names
}

// RunRequest passes req through every request handler of the hook.
// With no handlers req is returned unchanged.
func (m *Manager) RunRequest(ctx context.Context, name Name, req *tts.Request, hc Context) (*tts.Request, error) {
	regs := m.Registrations(name)
	if len(regs) == 0 {
		return req, nil
	}

	current := req
	for i, reg := range regs {
		if err := ctx.Err(); err != nil {
			return nil, &HandlerError{Hook: name, Plugin: reg.Plugin, Index: i, Err: err}
		}
		h, ok := reg.Handler.(RequestHandler)
		if !ok {
			return nil, &HandlerError{Hook: name, Plugin: reg.Plugin, Index: i, Err: ErrHandlerKind}
		}

		next, err := callRequest(ctx, h, current, hc)
		if err == nil && next == nil {
			err = ErrNilPayload
		}
		if err != nil {
			return nil, &HandlerError{Hook: name, Plugin: reg.Plugin, Index: i, Err: err}
		}
		current = next
	}
	return current, nil
}

// RunStream passes s through every stream handler of the hook. Handlers are
// invoked eagerly but are expected to return lazy wrappers, so no audio is
// read here. With no handlers s is returned unchanged.
func (m *Manager) RunStream(ctx context.Context, name Name, s tts.Stream, hc Context) (tts.Stream, error) {
	regs := m.Registrations(name)
	if len(regs) == 0 {
		return s, nil
	}

	current := s
	for i, reg := range regs {
		if err := ctx.Err(); err != nil {
			return nil, &HandlerError{Hook: name, Plugin: reg.Plugin, Index: i, Err: err}
		}
		h, ok := reg.Handler.(StreamHandler)
		if !ok {
			return nil, &HandlerError{Hook: name, Plugin: reg.Plugin, Index: i, Err: ErrHandlerKind}
		}

		next, err := callStream(ctx, h, current, hc)
		if err == nil && next == nil {
			err = ErrNilPayload
		}
		if err != nil {
			return nil, &HandlerError{Hook: name, Plugin: reg.Plugin, Index: i, Err: err}
		}
		current = next
	}
	return current, nil
}

func callRequest(ctx context.Context, h RequestHandler, req *tts.Request, hc Context) (out *tts.Request, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(ctx, req, hc)
}

func callStream(ctx context.Context, h StreamHandler, s tts.Stream, hc Context) (out tts.Stream, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(ctx, s, hc)
}

// =============================================================================
// REGISTRAR
// =============================================================================

// Registrar is handed to a Plugin during discovery. It tags every
// registration with the plugin's name and records which hooks it used.
type Registrar struct {
	manager *Manager
	plugin  string
	hooks   []Name
}

// NewRegistrar binds a registrar to one plugin.
func NewRegistrar(m *Manager, plugin string) *Registrar {
	return &Registrar{manager: m, plugin: plugin}
}

// OnRequest registers a request handler.
func (r *Registrar) OnRequest(name Name, h RequestHandler) {
	r.manager.Register(name, r.plugin, h)
	r.hooks = append(r.hooks, name)
}

// OnStream registers a stream handler.
func (r *Registrar) OnStream(name Name, h StreamHandler) {
	r.manager.Register(name, r.plugin, h)
	r.hooks = append(r.hooks, name)
}

// Hooks returns the hook names registered through r, in order.
func (r *Registrar) Hooks() []Name {
	out := make([]Name, len(r.hooks))
	copy(out, r.hooks)
	return out
}
