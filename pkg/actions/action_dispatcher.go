package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lucid-vigil/hostwatch/pkg/actions/block_ip"
	"github.com/lucid-vigil/hostwatch/pkg/actions/notify_users"
	"github.com/lucid-vigil/hostwatch/pkg/actions/shutdown_host"
	"github.com/rs/zerolog/log"
)

// DefaultCommandTimeout bounds a single action's external command.
const DefaultCommandTimeout = 10 * time.Second

// ErrActionsDisabled is returned by Execute when the dispatcher was built with
// actions disabled.
var ErrActionsDisabled = errors.New("actions are disabled")

// ActionDispatcher manages and executes remedial actions
type ActionDispatcher struct {
	actions map[string]Action
	enabled bool
	timeout time.Duration
	mu      sync.RWMutex
}

// NewActionDispatcher creates a new action dispatcher with the built-in
// actions registered. A non-positive timeout uses DefaultCommandTimeout.
func NewActionDispatcher(enabled bool, timeout time.Duration) *ActionDispatcher {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	dispatcher := &ActionDispatcher{
		actions: make(map[string]Action),
		enabled: enabled,
		timeout: timeout,
	}

	// Register built-in actions
	dispatcher.RegisterAction(&block_ip.BlockIPAction{})
	dispatcher.RegisterAction(&notify_users.NotifyUsersAction{})
	dispatcher.RegisterAction(&shutdown_host.ShutdownHostAction{})

	return dispatcher
}

// RegisterAction registers a new action with the dispatcher
func (ad *ActionDispatcher) RegisterAction(action Action) {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	ad.actions[action.Name()] = action
	log.Debug().Msgf("Action '%s' registered.", action.Name())
}

// Execute runs the specified action with the given data. Nothing runs when
// actions are disabled; the call returns ErrActionsDisabled.
func (ad *ActionDispatcher) Execute(ctx context.Context, actionName string, data map[string]interface{}) error {
	if !ad.IsEnabled() {
		log.Debug().Str("action", actionName).Msg("Actions are disabled, skipping execution.")
		return ErrActionsDisabled
	}

	ad.mu.RLock()
	action, exists := ad.actions[actionName]
	ad.mu.RUnlock()

	if !exists {
		return fmt.Errorf("action '%s' not found", actionName)
	}

	log.Info().Str("action", actionName).Msg("Executing remedial action...")

	ctx, cancel := context.WithTimeout(ctx, ad.timeout)
	defer cancel()

	if err := action.Execute(ctx, data); err != nil {
		log.Error().Err(err).Str("action", actionName).Msg("Action execution failed.")
		return err
	}

	log.Info().Str("action", actionName).Msg("Action executed successfully.")
	return nil
}

// IsEnabled returns whether actions are enabled
func (ad *ActionDispatcher) IsEnabled() bool {
	ad.mu.RLock()
	defer ad.mu.RUnlock()
	return ad.enabled
}
