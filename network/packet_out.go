/*
 * FlowVisor - An OpenFlow Virtualization Proxy
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package network

import (
	"github.com/superkkt/flowvisor/openflow"
)

// translatePacketOut expands a controller's packet-out over the virtual port
// namespace into per-switch packet-outs. The action list is walked in order:
// non-output actions accumulate into a prefix that every later emission
// carries, and each output action triggers an emission. A buffered payload is
// resolved through the bridge exactly once; every downstream packet-out
// carries the data inline with no buffer reference.
func (r *Engine) translatePacketOut(po *openflow.PacketOut) error {
	data := po.Data
	origin, originKnown := uint64(0), false
	originIn := uint16(openflow.OFPP_NONE)

	r.mutex.Lock()
	if po.InPort < openflow.OFPP_MAX {
		dpid, phys, err := r.ports.physOfVirtStrict(po.InPort)
		if err != nil {
			r.mutex.Unlock()
			return err
		}
		origin, originKnown = dpid, true
		originIn = phys
	}
	if po.BufferID != openflow.OFP_NO_BUFFER {
		dpid, payload, err := r.buffers.consume(po.BufferID)
		if err != nil {
			r.mutex.Unlock()
			return err
		}
		data = payload
		if !originKnown {
			origin, originKnown = dpid, true
		}
	}
	targets := r.switchDPIDs()
	resolve := r.ports.snapshot()
	r.mutex.Unlock()

	inPortOn := func(dpid uint64) uint16 {
		if originKnown && dpid == origin {
			return originIn
		}
		if po.InPort == openflow.OFPP_CONTROLLER {
			return openflow.OFPP_CONTROLLER
		}
		return openflow.OFPP_NONE
	}

	acts := make([]openflow.Action, 0)
	for _, action := range po.Actions {
		switch v := action.(type) {
		case *openflow.ActionOutput:
			switch v.Port {
			case openflow.OFPP_FLOOD, openflow.OFPP_ALL:
				// The origin switch floods from the translated
				// ingress port; everybody else floods as if the
				// packet came from nowhere.
				for _, dpid := range targets {
					out := buildPacketOut(inPortOn(dpid), appendOutput(acts, v.Port, v.MaxLen), data)
					if err := r.sendToSwitch(dpid, out); err != nil {
						logger.Errorf("failed to send a flood PACKET_OUT to %v: %v", dpid, err)
					}
				}
			case openflow.OFPP_IN_PORT:
				if !originKnown {
					return openflow.ErrBadStat
				}
				out := buildPacketOut(originIn, appendOutput(acts, openflow.OFPP_IN_PORT, v.MaxLen), data)
				if err := r.sendToSwitch(origin, out); err != nil {
					logger.Errorf("failed to send a PACKET_OUT to %v: %v", origin, err)
				}
			case openflow.OFPP_CONTROLLER, openflow.OFPP_TABLE, openflow.OFPP_LOCAL, openflow.OFPP_NORMAL, openflow.OFPP_NONE:
				return openflow.ErrBadStat
			default:
				phys, ok := resolve[v.Port]
				if !ok {
					return openflow.ErrBadOutPort
				}
				out := buildPacketOut(inPortOn(phys.dpid), appendOutput(acts, phys.port, v.MaxLen), data)
				if err := r.sendToSwitch(phys.dpid, out); err != nil {
					logger.Errorf("failed to send a PACKET_OUT to %v: %v", phys.dpid, err)
				}
			}
		case *openflow.ActionEnqueue:
			// QoS queues are not virtualized.
			return openflow.ErrBadQueuePort
		default:
			acts = append(acts, action)
		}
	}

	return nil
}

func appendOutput(prefix []openflow.Action, port uint16, maxLen uint16) []openflow.Action {
	acts := make([]openflow.Action, 0, len(prefix)+1)
	acts = append(acts, prefix...)
	acts = append(acts, &openflow.ActionOutput{Port: port, MaxLen: maxLen})

	return acts
}

func buildPacketOut(inPort uint16, actions []openflow.Action, data []byte) *openflow.PacketOut {
	out := openflow.NewPacketOut(0)
	out.InPort = inPort
	out.Actions = actions
	out.Data = data

	return out
}

// switchDPIDs lists the live switches. The caller holds the engine mutex.
func (r *Engine) switchDPIDs() []uint64 {
	v := make([]uint64, 0, len(r.switches))
	for dpid := range r.switches {
		v = append(v, dpid)
	}

	return v
}
