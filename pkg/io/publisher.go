// Package io pushes pipeline output (transcripts, replies, synthesized audio)
// to the endpoints held in a registry.
package io

import (
	"context"
	"errors"
	"fmt"

	"github.com/xpanvictor/hearken/pkg/io/registry"
)

var ErrNoAudioSink = errors.New("no live audio endpoint")

type Publisher struct {
	reg registry.Registry
}

func New(reg registry.Registry) Publisher {
	return Publisher{reg: reg}
}

func (p *Publisher) Registry() registry.Registry { return p.reg }

// SendText fans text out to every text endpoint. It fails only when none
// accepted it.
func (p *Publisher) SendText(ctx context.Context, seq int, text string) error {
	eps, ok := p.reg.FetchTextFanoutEndpoints()
	if !ok {
		return fmt.Errorf("couldn't broadcast text: no text endpoints")
	}
	var errs []error
	for _, ep := range eps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ep.SendText(seq, text); err != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: %w", ep.ID(), err))
		}
	}
	if len(errs) == len(eps) {
		return fmt.Errorf("couldn't broadcast text: %w", errors.Join(errs...))
	}
	return nil
}

// SendAudioFrame writes to the most recently active audio endpoint only.
func (p *Publisher) SendAudioFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ep, ok := p.reg.SelectEndpointWithMRU()
	if !ok {
		return ErrNoAudioSink
	}
	return ep.SendAudioFrame(frame)
}

// SendEvent notifies every endpoint; delivery failures are ignored.
func (p *Publisher) SendEvent(ctx context.Context, name string, payload any) error {
	for _, ep := range p.reg.ListEndpoints() {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = ep.SendEvent(name, payload)
	}
	return nil
}
