// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

// ByteEvent is a single byte received on one physical line
type ByteEvent struct {
	Start   uint64
	End     uint64
	Channel Channel
	Value   byte
	Valid   bool // false when the link layer flagged the byte (framing/parity)
}

// RouterConfig selects which physical line carries each direction.
// Both directions may use the same line.
type RouterConfig struct {
	ProgrammerChannel Channel
	ModuleChannel     Channel
}

// DefaultRouterConfig returns the conventional wiring: programmer traffic on RX,
// module traffic on TX.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ProgrammerChannel: ChannelRX,
		ModuleChannel:     ChannelTX,
	}
}

// DirectRouterConfig returns the wiring seen from a programmer's own port:
// requests leave on TX and the module answers on RX.
func DirectRouterConfig() RouterConfig {
	return RouterConfig{
		ProgrammerChannel: ChannelTX,
		ModuleChannel:     ChannelRX,
	}
}

type route struct {
	channel Channel
	frames  *FrameDecoder
	fields  *FieldDecoder
}

// Router owns one frame/field decoder pair per direction and dispatches
// incoming bytes to them.
type Router struct {
	config RouterConfig
	routes [2]route
}

// NewRouter creates a router whose decoders emit into sink
func NewRouter(config RouterConfig, sink Sink) *Router {
	r := &Router{config: config}
	for i, dir := range []Direction{DirectionProgrammer, DirectionModule} {
		fields := NewFieldDecoder(dir, sink)
		r.routes[i] = route{
			channel: config.channelFor(dir),
			frames:  NewFrameDecoder(fields),
			fields:  fields,
		}
	}
	return r
}

func (c RouterConfig) channelFor(d Direction) Channel {
	if d == DirectionProgrammer {
		return c.ProgrammerChannel
	}
	return c.ModuleChannel
}

// Config returns the channel mapping
func (r *Router) Config() RouterConfig {
	return r.config
}

// Decode forwards a byte to every direction mapped to its channel.
// Invalid bytes are dropped.
func (r *Router) Decode(ev ByteEvent) {
	if !ev.Valid {
		return
	}
	for i := range r.routes {
		if r.routes[i].channel == ev.Channel {
			r.routes[i].frames.Consume(ev.Start, ev.End, ev.Value)
		}
	}
}

// Reset re-synchronizes both frame decoders to idle
func (r *Router) Reset() {
	for i := range r.routes {
		r.routes[i].frames.Reset()
	}
}

// FieldDecoder returns the field decoder for a direction
func (r *Router) FieldDecoder(d Direction) *FieldDecoder {
	return r.routes[d].fields
}
