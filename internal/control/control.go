// Package control binds an on/off switch to a watch set.
//
// The Controller is the only place that decides what a watch set watches:
// turning it on loads the inventory and replaces the watched files, turning
// it off clears them, and an inventory change re-applies the inventory only
// while the switch is on. Collaborators are passed in explicitly.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	werrors "github.com/Aman-CERP/watchset/internal/errors"
	"github.com/Aman-CERP/watchset/internal/inventory"
	"github.com/Aman-CERP/watchset/internal/watchset"
)

// Target is the watch set a Controller drives.
type Target interface {
	SetWatchedFiles(paths []string) werrors.Diagnostics
	Clear()
}

// Ensure *watchset.Set can be driven by a Controller.
var _ Target = (*watchset.Set)(nil)

// Controller is a boolean switch bound to a watch set.
type Controller struct {
	target Target
	source inventory.Source
	logger *slog.Logger

	mu        sync.Mutex
	enabled   bool
	watched   []string
	lastDiags werrors.Diagnostics
	invWatch  *watchset.Set
}

// New creates a disabled controller. A nil logger uses slog.Default().
func New(target Target, source inventory.Source, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		target: target,
		source: source,
		logger: logger.With(slog.String("component", "control")),
	}
}

// Enable turns watching on with the current inventory. If the inventory
// cannot be read the controller stays in its previous state.
func (c *Controller) Enable(ctx context.Context) (werrors.Diagnostics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	diags, err := c.applyLocked(ctx)
	if err != nil {
		return nil, err
	}
	c.enabled = true
	return diags, nil
}

// Disable turns watching off. The target keeps its subscriber.
func (c *Controller) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disableLocked()
}

// disableLocked clears the target. Must be called with lock held.
func (c *Controller) disableLocked() {
	if !c.enabled {
		return
	}
	c.target.Clear()
	c.enabled = false
	c.watched = nil
	c.lastDiags = nil
	c.logger.Info("watching disabled")
}

// SetEnabled switches watching on or off.
func (c *Controller) SetEnabled(ctx context.Context, on bool) error {
	if !on {
		c.Disable()
		return nil
	}
	_, err := c.Enable(ctx)
	return err
}

// Toggle flips the switch and returns the new state. The state is read and
// flipped under one lock.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enabled {
		c.disableLocked()
		return false, nil
	}
	if _, err := c.applyLocked(ctx); err != nil {
		return false, err
	}
	c.enabled = true
	return true, nil
}

// Enabled reports whether watching is on.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// InventoryChanged re-applies the inventory if watching is on. When the
// inventory cannot be read the current watches are kept.
func (c *Controller) InventoryChanged(ctx context.Context) (werrors.Diagnostics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return nil, nil
	}
	return c.applyLocked(ctx)
}

// Watched returns the paths last handed to the target.
func (c *Controller) Watched() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.watched...)
}

// Diagnostics returns the diagnostics of the last applied inventory.
func (c *Controller) Diagnostics() werrors.Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(werrors.Diagnostics(nil), c.lastDiags...)
}

// applyLocked reads the inventory and replaces the target's files.
// Must be called with lock held.
func (c *Controller) applyLocked(ctx context.Context) (werrors.Diagnostics, error) {
	paths, err := c.source.Paths(ctx)
	if err != nil {
		c.logger.Warn("inventory unavailable, keeping current watches",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("load inventory: %w", err)
	}

	diags := c.target.SetWatchedFiles(paths)
	c.watched = paths
	c.lastDiags = diags
	c.logger.Info("inventory applied",
		slog.Int("paths", len(paths)),
		slog.Int("diagnostics", len(diags)))
	return diags, nil
}

// WatchInventory re-applies the inventory whenever the file at path is
// written. It uses its own watch set so the inventory file is never mixed
// with the watched artifacts. Calling it again replaces the previous path.
func (c *Controller) WatchInventory(ctx context.Context, path string, opts watchset.Options) werrors.Diagnostics {
	c.mu.Lock()
	if c.invWatch == nil {
		if opts.Logger == nil {
			opts.Logger = c.logger
		}
		c.invWatch = watchset.New(opts)
	}
	inv := c.invWatch
	c.mu.Unlock()

	inv.OnChange(func() {
		if _, err := c.InventoryChanged(ctx); err != nil {
			c.logger.Warn("inventory reload failed", slog.String("error", err.Error()))
		}
	})
	return inv.SetWatchedFiles([]string{path})
}

// InventoryErrors returns the diagnostics channel of the inventory watch, or
// nil before WatchInventory is called.
func (c *Controller) InventoryErrors() <-chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invWatch == nil {
		return nil
	}
	return c.invWatch.Errors()
}

// Close disables watching and stops the inventory watch.
func (c *Controller) Close() {
	c.Disable()

	c.mu.Lock()
	inv := c.invWatch
	c.invWatch = nil
	c.mu.Unlock()

	if inv != nil {
		inv.Stop()
	}
}
