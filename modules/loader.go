package modules

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tnicklin/autoguild/logger"
)

var errDuplicateModule = errors.New("module already loaded")

// Loader activates modules against a Hub and keeps their handler removers so
// they can be unregistered again.
type Loader struct {
	hub      Hub
	env      Env
	policy   FailurePolicy
	disabled map[string]struct{}
	logger   logger.Logger

	mu     sync.Mutex
	loaded []*activeModule
}

type activeModule struct {
	module   Module
	removers []func()
}

type LoaderParams struct {
	Hub    Hub
	Env    Env
	Config Config
}

func NewLoader(p LoaderParams) *Loader {
	cfg := p.Config
	cfg.Defaults()

	env := p.Env.withDefaults()

	disabled := make(map[string]struct{}, len(cfg.Disabled))
	for _, name := range cfg.Disabled {
		disabled[name] = struct{}{}
	}

	return &Loader{
		hub:      p.Hub,
		env:      env,
		policy:   cfg.OnFailure,
		disabled: disabled,
		logger:   env.Logger,
	}
}

// Load constructs and registers each module in order. Under PolicyAbort the
// first failure unloads every module loaded so far and is returned.
func (l *Loader) Load(factories ...Factory) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, factory := range factories {
		active, name, err := l.activate(factory)
		if err == nil && active == nil {
			continue
		}
		if err != nil {
			if l.policy == PolicySkip {
				l.logger.ErrorW("module failed to activate, skipping", "module", name, "error", err)
				continue
			}
			if uerr := l.unloadLocked(); uerr != nil {
				l.logger.WarnW("unload after failed activation", "error", uerr)
			}
			return err
		}

		l.loaded = append(l.loaded, active)
		l.logger.InfoW("module activated", "module", name, "handlers", len(active.removers))
	}
	return nil
}

// activate returns a nil module and nil error for a disabled module.
func (l *Loader) activate(factory Factory) (active *activeModule, name string, err error) {
	hub := &trackingHub{hub: l.hub}
	var m Module

	defer func() {
		if r := recover(); r != nil {
			hub.removeAll()
			if m != nil {
				_ = m.Close()
			}
			active = nil
			err = fmt.Errorf("activate module %s: panic: %v", name, r)
		}
	}()

	m = factory(l.env)
	if m == nil {
		return nil, "", errors.New("activate module: factory returned nil")
	}
	name = m.Name()

	if _, off := l.disabled[name]; off {
		l.logger.InfoW("module disabled", "module", name)
		return nil, name, nil
	}
	for _, a := range l.loaded {
		if a.module.Name() == name {
			return nil, name, fmt.Errorf("activate module %s: %w", name, errDuplicateModule)
		}
	}

	if err := m.Register(hub); err != nil {
		hub.removeAll()
		_ = m.Close()
		return nil, name, fmt.Errorf("activate module %s: %w", name, err)
	}

	return &activeModule{module: m, removers: hub.removers}, name, nil
}

// Unload removes every handler and closes every module, most recent first.
func (l *Loader) Unload() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unloadLocked()
}

func (l *Loader) unloadLocked() error {
	var errs []error
	for i := len(l.loaded) - 1; i >= 0; i-- {
		a := l.loaded[i]
		for _, remove := range a.removers {
			remove()
		}
		if err := a.module.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close module %s: %w", a.module.Name(), err))
		}
		l.logger.InfoW("module unloaded", "module", a.module.Name())
	}
	l.loaded = nil
	return errors.Join(errs...)
}

// Loaded returns the names of active modules in activation order.
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.loaded))
	for _, a := range l.loaded {
		names = append(names, a.module.Name())
	}
	return names
}

// trackingHub records the removers of every handler added through it.
type trackingHub struct {
	hub      Hub
	removers []func()
}

func (h *trackingHub) AddHandler(handler interface{}) func() {
	remove := h.hub.AddHandler(handler)
	h.removers = append(h.removers, remove)
	return remove
}

func (h *trackingHub) removeAll() {
	for _, remove := range h.removers {
		remove()
	}
	h.removers = nil
}
