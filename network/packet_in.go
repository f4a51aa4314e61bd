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
	"net"

	"github.com/superkkt/flowvisor/openflow"
	"github.com/superkkt/flowvisor/protocol"

	"github.com/davecgh/go-spew/spew"
)

// handlePacketIn classifies a packet arriving from a physical switch and
// delivers it to every slice whose filter matches. LLDP probes are consumed
// by the topology resolver, traffic on transit ports never reaches a
// controller, and everything else is re-buffered under a virtual buffer id
// and presented with virtual port numbers only.
func (r *Engine) handlePacketIn(dpid uint64, pin *openflow.PacketIn) {
	eth := new(protocol.Ethernet)
	if err := eth.UnmarshalBinary(pin.Data); err != nil {
		logger.Errorf("failed to parse the Ethernet frame of a PACKET_IN from %v: %v", dpid, err)
		return
	}

	// Topology probes are ours; a foreign LLDP frame keeps flowing.
	if eth.Type == 0x88CC && r.topo.ProcessLLDP(dpid, pin.InPort, eth) {
		return
	}
	// End hosts do not live behind inter-switch links.
	if r.topo.IsTransitPort(dpid, pin.InPort) {
		logger.Debugf("ignoring a PACKET_IN from the transit port %v/%v", dpid, pin.InPort)
		return
	}

	r.mutex.Lock()
	virtPort, ok := r.ports.virtOfPhys(dpid, pin.InPort)
	if !ok {
		r.mutex.Unlock()
		logger.Debugf("ignoring a PACKET_IN from the unmapped port %v/%v", dpid, pin.InPort)
		return
	}
	bufferID := r.buffers.allocate(dpid, pin.Data)
	flow := buildMatchFromPacket(eth, virtPort)
	slices := r.slices.matching(flow)
	r.mutex.Unlock()

	if len(slices) == 0 {
		logger.Debugf("no slice matches a PACKET_IN from %v/%v: %v", dpid, pin.InPort, spew.Sdump(flow))
		return
	}

	for _, slice := range slices {
		out := openflow.NewPacketIn(0)
		out.BufferID = bufferID
		out.TotalLength = pin.TotalLength
		out.InPort = virtPort
		out.Reason = pin.Reason
		out.Data = pin.Data
		if err := slice.session.Write(out); err != nil {
			logger.Errorf("failed to deliver a PACKET_IN to the slice %v: %v", slice.ID, err)
		}
	}
}

// handleFlowRemoved forwards a switch's flow expiry to every slice whose
// filter covers the dead flow, with the match translated back into the
// virtual namespace.
func (r *Engine) handleFlowRemoved(dpid uint64, fr *openflow.FlowRemoved) {
	r.mutex.Lock()
	if fr.Match != nil && !fr.Match.Wildcards.InPort {
		virt, ok := r.ports.virtOfPhys(dpid, fr.Match.InPort)
		if !ok {
			r.mutex.Unlock()
			logger.Debugf("ignoring a FLOW_REMOVED with the unmapped port %v/%v", dpid, fr.Match.InPort)
			return
		}
		fr.Match.InPort = virt
	}
	slices := r.slices.matching(fr.Match)
	r.mutex.Unlock()

	for _, slice := range slices {
		if err := slice.session.Write(fr); err != nil {
			logger.Errorf("failed to deliver a FLOW_REMOVED to the slice %v: %v", slice.ID, err)
		}
	}
}

// buildMatchFromPacket derives the exact-match flow of a captured frame. It
// is the value slice filters are tested against, so every parseable field is
// concrete and the rest stay wildcarded.
func buildMatchFromPacket(eth *protocol.Ethernet, inPort uint16) *openflow.Match {
	flow := openflow.NewMatch()
	flow.Wildcards.InPort = false
	flow.InPort = inPort
	flow.Wildcards.SrcMAC = false
	flow.SrcMAC = eth.SrcMAC
	flow.Wildcards.DstMAC = false
	flow.DstMAC = eth.DstMAC
	flow.Wildcards.EtherType = false
	flow.EtherType = eth.Type

	switch eth.Type {
	case 0x0800: // IPv4
		ip := new(protocol.IPv4)
		if err := ip.UnmarshalBinary(eth.Payload); err != nil {
			return flow
		}
		flow.Wildcards.SrcIP = 0
		flow.SrcIP = ip.SrcIP
		flow.Wildcards.DstIP = 0
		flow.DstIP = ip.DstIP
		flow.Wildcards.Protocol = false
		flow.Protocol = ip.Protocol
		flow.Wildcards.NWTOS = false
		flow.NWTOS = ip.DSCP << 2

		switch ip.Protocol {
		case 0x06: // TCP
			tcp := new(protocol.TCP)
			if err := tcp.UnmarshalBinary(ip.Payload); err != nil {
				return flow
			}
			flow.Wildcards.SrcPort = false
			flow.SrcPort = tcp.SrcPort
			flow.Wildcards.DstPort = false
			flow.DstPort = tcp.DstPort
		case 0x11: // UDP
			udp := new(protocol.UDP)
			if err := udp.UnmarshalBinary(ip.Payload); err != nil {
				return flow
			}
			flow.Wildcards.SrcPort = false
			flow.SrcPort = udp.SrcPort
			flow.Wildcards.DstPort = false
			flow.DstPort = udp.DstPort
		}
	case 0x0806: // ARP; nw addresses match per OFPC_ARP_MATCH_IP
		arp := new(protocol.ARP)
		if err := arp.UnmarshalBinary(eth.Payload); err != nil {
			return flow
		}
		flow.Wildcards.SrcIP = 0
		flow.SrcIP = arp.SPA
		flow.Wildcards.DstIP = 0
		flow.DstIP = arp.TPA
		flow.Wildcards.Protocol = false
		flow.Protocol = uint8(arp.Operation)
	}

	if flow.SrcIP == nil {
		flow.SrcIP = net.IPv4zero
	}
	if flow.DstIP == nil {
		flow.DstIP = net.IPv4zero
	}

	return flow
}
