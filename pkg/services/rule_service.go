package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeready-toolchain/eventharness/pkg/bus"
)

// RuleResult is the Rule controller's contract response (spec §4.5).
type RuleResult struct {
	Action string `json:"action"`
	Status string `json:"status"`
}

// RuleController scopes Collector delivery to the duration of a test run
// by enabling/disabling the Bus subscription that feeds it (spec §4.5).
type RuleController interface {
	Enable(ctx context.Context) (RuleResult, error)
	Disable(ctx context.Context) (RuleResult, error)
}

// Do dispatches a rule action by name; any other action is a fatal input
// error (spec §4.5: "Any other action → fatal error").
func Do(ctx context.Context, rc RuleController, action string) (RuleResult, error) {
	switch action {
	case "enable":
		return rc.Enable(ctx)
	case "disable":
		return rc.Disable(ctx)
	default:
		return RuleResult{}, NewValidationError("action", fmt.Sprintf("unknown rule action %q", action))
	}
}

// BusRuleController is the real RuleController: it flips the Collector's
// Bus subscription for one well-known control channel on and off.
type BusRuleController struct {
	listener *bus.Listener
	channel  string
	handler  bus.Handler

	mu      sync.Mutex
	enabled bool
}

// NewBusRuleController builds a BusRuleController bound to the given
// channel and the handler that should receive its Envelopes once enabled.
func NewBusRuleController(listener *bus.Listener, channel string, handler bus.Handler) *BusRuleController {
	return &BusRuleController{listener: listener, channel: channel, handler: handler}
}

// Enable is idempotent: re-enabling an already-enabled rule is a no-op
// success (spec §4.5 "idempotent").
func (c *BusRuleController) Enable(ctx context.Context) (RuleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		if err := c.listener.Subscribe(ctx, c.channel, c.handler); err != nil {
			return RuleResult{}, fmt.Errorf("failed to enable rule: %w", err)
		}
		c.enabled = true
	}
	return RuleResult{Action: "enable", Status: "enabled"}, nil
}

// Disable is idempotent.
func (c *BusRuleController) Disable(ctx context.Context) (RuleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enabled {
		if err := c.listener.Unsubscribe(ctx, c.channel); err != nil {
			return RuleResult{}, fmt.Errorf("failed to disable rule: %w", err)
		}
		c.enabled = false
	}
	return RuleResult{Action: "disable", Status: "disabled"}, nil
}

// NoopRuleController is used where there is no real bus rule to flip
// (e.g. a harness deployment where collection is always on) — spec §4.5
// names the controller as a boundary component; this implementation is
// the trivial, always-collecting instance of that boundary.
type NoopRuleController struct{}

func (NoopRuleController) Enable(ctx context.Context) (RuleResult, error) {
	return RuleResult{Action: "enable", Status: "enabled"}, nil
}

func (NoopRuleController) Disable(ctx context.Context) (RuleResult, error) {
	return RuleResult{Action: "disable", Status: "disabled"}, nil
}
