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
	"github.com/superkkt/flowvisor/topology"
)

// translateFlowMod expands a controller's flow-mod over the virtual port
// namespace into per-switch flow-mods along the physical paths that realize
// it. Add and modify commands route each output over the fabric; delete
// commands fan out by their in/out port combination.
func (r *Engine) translateFlowMod(fm *openflow.FlowMod) error {
	switch fm.Command {
	case openflow.OFPFC_ADD, openflow.OFPFC_MODIFY, openflow.OFPFC_MODIFY_STRICT:
		return r.translateFlowModify(fm)
	case openflow.OFPFC_DELETE, openflow.OFPFC_DELETE_STRICT:
		return r.translateFlowDelete(fm)
	default:
		return openflow.ErrBadStat
	}
}

func (r *Engine) translateFlowModify(fm *openflow.FlowMod) error {
	if fm.Match == nil || fm.Match.Wildcards.InPort {
		// Without a concrete ingress there is no entry point to route
		// from.
		return openflow.ErrBadOutPort
	}

	r.mutex.RLock()
	inDPID, inPhys, err := r.ports.physOfVirtStrict(fm.Match.InPort)
	if err != nil {
		r.mutex.RUnlock()
		return err
	}
	resolve := r.ports.snapshot()
	r.mutex.RUnlock()

	acts := make([]openflow.Action, 0)
	var lastHop *topology.Hop
	for _, action := range fm.Actions {
		switch v := action.(type) {
		case *openflow.ActionOutput:
			var path []topology.Hop
			switch v.Port {
			case openflow.OFPP_FLOOD, openflow.OFPP_ALL:
				path = r.topo.FloodPath(inDPID, inPhys)
			case openflow.OFPP_IN_PORT:
				path = []topology.Hop{{DPID: inDPID, InPort: inPhys, OutPort: openflow.OFPP_IN_PORT}}
			case openflow.OFPP_CONTROLLER:
				path = []topology.Hop{{DPID: inDPID, InPort: inPhys, OutPort: openflow.OFPP_CONTROLLER}}
			case openflow.OFPP_TABLE, openflow.OFPP_LOCAL, openflow.OFPP_NORMAL, openflow.OFPP_NONE:
				return openflow.ErrBadStat
			default:
				phys, ok := resolve[v.Port]
				if !ok {
					return openflow.ErrBadOutPort
				}
				path = r.topo.FindPath(inDPID, inPhys, phys.dpid, phys.port)
				if len(path) == 0 {
					return openflow.ErrBadOutPort
				}
			}

			for i, hop := range path {
				final := i == len(path)-1
				mod := r.buildHopFlowMod(fm, hop, acts, final)
				if err := r.sendToSwitch(hop.DPID, mod); err != nil {
					logger.Errorf("failed to send a FLOW_MOD to %v: %v", hop.DPID, err)
				}
			}
			if len(path) > 0 {
				hop := path[len(path)-1]
				lastHop = &hop
			}
		case *openflow.ActionEnqueue:
			return openflow.ErrBadQueuePort
		default:
			acts = append(acts, action)
		}
	}

	// A buffered packet is released at the tail of the installed path so
	// the new flow forwards it.
	if fm.BufferID != openflow.OFP_NO_BUFFER {
		r.mutex.Lock()
		bufDPID, data, err := r.buffers.consume(fm.BufferID)
		r.mutex.Unlock()
		if err != nil {
			return err
		}
		if lastHop == nil {
			return openflow.ErrBadStat
		}

		inPort := uint16(openflow.OFPP_NONE)
		if lastHop.DPID == bufDPID {
			inPort = lastHop.InPort
		}
		out := buildPacketOut(inPort, appendOutput(acts, lastHop.OutPort, 0xffff), data)
		if err := r.sendToSwitch(lastHop.DPID, out); err != nil {
			logger.Errorf("failed to release a buffered packet to %v: %v", lastHop.DPID, err)
		}
	}

	return nil
}

// buildHopFlowMod rewrites the controller's flow-mod for one hop of a path.
// Intermediate hops only forward; the final hop applies the accumulated
// non-output actions before emitting.
func (r *Engine) buildHopFlowMod(fm *openflow.FlowMod, hop topology.Hop, acts []openflow.Action, final bool) *openflow.FlowMod {
	mod := openflow.NewFlowMod(0, fm.Command)
	mod.Match = fm.Match.Clone()
	mod.Match.InPort = hop.InPort
	mod.Match.Wildcards.InPort = false
	mod.Cookie = fm.Cookie
	mod.IdleTimeout = fm.IdleTimeout
	mod.HardTimeout = fm.HardTimeout
	mod.Priority = fm.Priority
	mod.Flags = fm.Flags
	mod.BufferID = openflow.OFP_NO_BUFFER
	mod.OutPort = openflow.OFPP_NONE
	if final {
		mod.Actions = appendOutput(acts, hop.OutPort, 0xffff)
	} else {
		mod.Actions = []openflow.Action{&openflow.ActionOutput{Port: hop.OutPort, MaxLen: 0xffff}}
	}

	return mod
}

func (r *Engine) translateFlowDelete(fm *openflow.FlowMod) error {
	match := fm.Match
	if match == nil {
		match = openflow.NewMatch()
	}

	r.mutex.RLock()
	resolve := r.ports.snapshot()
	targets := r.switchDPIDs()
	r.mutex.RUnlock()

	broadcast := func() {
		for _, dpid := range targets {
			mod := cloneFlowDelete(fm, match.Clone(), openflow.OFPP_NONE)
			if err := r.sendToSwitch(dpid, mod); err != nil {
				logger.Errorf("failed to send a FLOW_MOD delete to %v: %v", dpid, err)
			}
		}
	}

	switch {
	case match.Wildcards.InPort && fm.OutPort == openflow.OFPP_NONE:
		broadcast()
	case !match.Wildcards.InPort && match.InPort == openflow.OFPP_LOCAL && fm.OutPort == openflow.OFPP_NONE:
		broadcast()
	case !match.Wildcards.InPort && match.InPort >= openflow.OFPP_MAX:
		// A reserved ingress other than LOCAL cannot scope a delete.
		return openflow.ErrBadStat
	case !match.Wildcards.InPort && fm.OutPort == openflow.OFPP_NONE:
		phys, ok := resolve[match.InPort]
		if !ok {
			return openflow.ErrBadOutPort
		}
		m := match.Clone()
		m.InPort = phys.port
		mod := cloneFlowDelete(fm, m, openflow.OFPP_NONE)
		if err := r.sendToSwitch(phys.dpid, mod); err != nil {
			logger.Errorf("failed to send a FLOW_MOD delete to %v: %v", phys.dpid, err)
		}
	case !match.Wildcards.InPort && fm.OutPort < openflow.OFPP_MAX:
		in, inOK := resolve[match.InPort]
		out, outOK := resolve[fm.OutPort]
		if !inOK || !outOK {
			return openflow.ErrBadOutPort
		}
		path := r.topo.FindPath(in.dpid, in.port, out.dpid, out.port)
		if len(path) == 0 {
			return openflow.ErrBadOutPort
		}
		for _, hop := range path {
			m := match.Clone()
			m.InPort = hop.InPort
			mod := cloneFlowDelete(fm, m, hop.OutPort)
			if err := r.sendToSwitch(hop.DPID, mod); err != nil {
				logger.Errorf("failed to send a FLOW_MOD delete to %v: %v", hop.DPID, err)
			}
		}
	default:
		return openflow.ErrBadStat
	}

	return nil
}

func cloneFlowDelete(fm *openflow.FlowMod, match *openflow.Match, outPort uint16) *openflow.FlowMod {
	mod := openflow.NewFlowMod(0, fm.Command)
	mod.Match = match
	mod.Cookie = fm.Cookie
	mod.Priority = fm.Priority
	mod.OutPort = outPort
	mod.BufferID = openflow.OFP_NO_BUFFER

	return mod
}
