package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events that do not name a channel.
const DefaultChannel = "statestore"

// Config controls emission for one store.
type Config struct {
	Enabled bool
	Channel string
	// Verbs limits emission to the listed verbs. Empty emits every verb.
	Verbs []string
}

// Emitter fans slice events out to hooks, applying the store's channel and
// verb filter.
type Emitter struct {
	hooks   Hooks
	channel string
	verbs   map[string]struct{}
}

// NewEmitter returns nil when cfg is disabled or no usable hook remains, so a
// store without hooks pays nothing per dispatch.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	hooks = hooks.Clone()
	if !cfg.Enabled || len(hooks) == 0 {
		return nil
	}
	e := &Emitter{hooks: hooks, channel: strings.TrimSpace(cfg.Channel)}
	if e.channel == "" {
		e.channel = DefaultChannel
	}
	for _, verb := range cfg.Verbs {
		if verb = strings.TrimSpace(verb); verb != "" {
			if e.verbs == nil {
				e.verbs = map[string]struct{}{}
			}
			e.verbs[verb] = struct{}{}
		}
	}
	return e
}

// Enabled reports whether any event could be delivered.
func (e *Emitter) Enabled() bool {
	return e != nil
}

// Wants reports whether events with verb pass the filter.
func (e *Emitter) Wants(verb string) bool {
	if e == nil {
		return false
	}
	if e.verbs == nil {
		return true
	}
	_, ok := e.verbs[verb]
	return ok
}

// Emit delivers event unless it is filtered out.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Wants(strings.TrimSpace(event.Verb)) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}
