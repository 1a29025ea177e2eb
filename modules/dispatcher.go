// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

type callKey struct{}

// Dispatcher routes operations to the installed table. A call resolves
// its handler from the table current at entry, so an upgrade takes effect
// at the next call boundary and never mid-call.
type Dispatcher struct {
	mu      sync.Mutex // serializes upgrades
	current atomic.Pointer[Table]
	log     log.Logger
}

// NewDispatcher creates a dispatcher serving t
func NewDispatcher(t *Table, logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	d := &Dispatcher{log: logger}
	d.current.Store(t)
	return d
}

// Table returns the installed table
func (d *Dispatcher) Table() *Table {
	return d.current.Load()
}

// Call runs op with input on behalf of caller
func (d *Dispatcher) Call(ctx context.Context, op string, caller common.Address, input any) (any, error) {
	t := d.current.Load()
	if t == nil {
		return nil, ErrNoTable
	}
	r, ok := t.routes[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	return r.handler(context.WithValue(ctx, callKey{}, d), caller, input)
}

// CallModule runs op only if the module at address serves it
func (d *Dispatcher) CallModule(ctx context.Context, address common.Address, op string, caller common.Address, input any) (any, error) {
	t := d.current.Load()
	if t == nil {
		return nil, ErrNoTable
	}
	stm, ok := t.ModuleByAddress(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, address.Hex())
	}
	h, ok := stm.Handlers[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownOperation, op, stm.Name)
	}
	return h(context.WithValue(ctx, callKey{}, d), caller, input)
}

// Upgrade atomically installs next. Its version must exceed the installed
// one, and a handler may not upgrade the dispatcher that is running it.
func (d *Dispatcher) Upgrade(ctx context.Context, next *Table) error {
	if owner, _ := ctx.Value(callKey{}).(*Dispatcher); owner == d {
		return ErrUpgradeInCall
	}
	if next == nil {
		return ErrNoTable
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.current.Load()
	if prev != nil && next.version <= prev.version {
		return fmt.Errorf("%w: installed=%d, next=%d", ErrStaleVersion, prev.version, next.version)
	}
	d.current.Store(next)

	var from uint64
	if prev != nil {
		from = prev.version
	}
	d.log.Info("modules upgraded",
		"from", from,
		"to", next.version,
		"operations", len(next.routes),
	)
	return nil
}
