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

const virtualSwitchDescription = "Mirage_flowvisor"

// handleStatsRequest fans a controller's stats request out to the switches
// that can answer it and registers the aggregation with the xid tracker.
// Desc requests are answered locally: the controller is talking to the
// virtual switch, not to any particular physical one.
func (r *Engine) handleStatsRequest(s *session, req *openflow.StatsRequest) error {
	switch req.StatsType {
	case openflow.OFPST_DESC:
		reply := openflow.NewStatsReply(req.TransactionID(), openflow.OFPST_DESC)
		reply.Desc = &openflow.DescStats{
			Manufacturer: "Mirage",
			Hardware:     "Virtual OpenFlow Switch",
			Software:     "FlowVisor",
			Serial:       "None",
			Description:  virtualSwitchDescription,
		}
		return s.Write(reply)
	case openflow.OFPST_FLOW, openflow.OFPST_AGGREGATE:
		return r.fanOutFlowStats(s, req)
	case openflow.OFPST_TABLE:
		return r.fanOutTableStats(s, req)
	case openflow.OFPST_PORT:
		return r.fanOutPortStats(s, req)
	default:
		return openflow.ErrBadStat
	}
}

// fanOutFlowStats routes a flow or aggregate query. A query scoped to a
// concrete virtual in_port is narrowed to the single switch owning it, with
// the match rewritten to the physical port; a wildcarded query asks every
// switch.
func (r *Engine) fanOutFlowStats(s *session, req *openflow.StatsRequest) error {
	match := req.Match
	if match == nil {
		match = openflow.NewMatch()
	}
	match = match.Clone()

	r.mutex.Lock()
	targets := r.switchDPIDs()
	if !match.Wildcards.InPort {
		dpid, phys, err := r.ports.physOfVirtStrict(match.InPort)
		if err != nil {
			r.mutex.Unlock()
			return err
		}
		targets = []uint64{dpid}
		match.InPort = phys
	}
	outPort := req.OutPort
	if outPort < openflow.OFPP_MAX {
		dpid, phys, err := r.ports.physOfVirtStrict(outPort)
		if err != nil {
			r.mutex.Unlock()
			return err
		}
		outPort = phys
		targets = intersect(targets, dpid)
	}
	xid := r.xids.allocate(s, req.TransactionID(), req.StatsType, targets)
	r.mutex.Unlock()

	if len(targets) == 0 {
		r.completeEmpty(xid)
		return nil
	}
	for _, dpid := range targets {
		out := openflow.NewStatsRequest(xid, req.StatsType)
		out.Match = match
		out.TableID = req.TableID
		out.OutPort = outPort
		if err := r.sendToSwitch(dpid, out); err != nil {
			logger.Errorf("failed to send a STATS_REQUEST to %v: %v", dpid, err)
			r.dropPending(xid, dpid)
		}
	}

	return nil
}

// fanOutTableStats asks every switch so the reply inherits the timing of the
// fabric, but the accumulator discards their answers: the one synthetic
// virtual table is all a controller may see.
func (r *Engine) fanOutTableStats(s *session, req *openflow.StatsRequest) error {
	r.mutex.Lock()
	targets := r.switchDPIDs()
	xid := r.xids.allocate(s, req.TransactionID(), openflow.OFPST_TABLE, targets)
	r.mutex.Unlock()

	if len(targets) == 0 {
		r.completeEmpty(xid)
		return nil
	}
	for _, dpid := range targets {
		if err := r.sendToSwitch(dpid, openflow.NewStatsRequest(xid, openflow.OFPST_TABLE)); err != nil {
			logger.Errorf("failed to send a STATS_REQUEST to %v: %v", dpid, err)
			r.dropPending(xid, dpid)
		}
	}

	return nil
}

func (r *Engine) fanOutPortStats(s *session, req *openflow.StatsRequest) error {
	portNo := req.PortNo

	r.mutex.Lock()
	targets := r.switchDPIDs()
	if portNo < openflow.OFPP_MAX {
		dpid, phys, err := r.ports.physOfVirtStrict(portNo)
		if err != nil {
			r.mutex.Unlock()
			return err
		}
		targets = []uint64{dpid}
		portNo = phys
	} else if portNo != openflow.OFPP_NONE {
		r.mutex.Unlock()
		return openflow.ErrBadStat
	}
	xid := r.xids.allocate(s, req.TransactionID(), openflow.OFPST_PORT, targets)
	r.mutex.Unlock()

	if len(targets) == 0 {
		r.completeEmpty(xid)
		return nil
	}
	for _, dpid := range targets {
		out := openflow.NewStatsRequest(xid, openflow.OFPST_PORT)
		out.PortNo = portNo
		if err := r.sendToSwitch(dpid, out); err != nil {
			logger.Errorf("failed to send a STATS_REQUEST to %v: %v", dpid, err)
			r.dropPending(xid, dpid)
		}
	}

	return nil
}

// completeEmpty flushes an aggregation that has nobody to wait for.
func (r *Engine) completeEmpty(xid uint32) {
	r.mutex.Lock()
	record := r.xids.take(xid)
	r.mutex.Unlock()
	if record != nil {
		r.handleXid(record)
	}
}

// dropPending forgets a switch that could not be asked. The aggregation
// completes if it was the last one.
func (r *Engine) dropPending(xid uint32, dpid uint64) {
	r.mutex.Lock()
	done := r.xids.dropPending(xid, dpid)
	r.mutex.Unlock()
	if done != nil {
		r.handleXid(done)
	}
}

// handleStatsReply merges one switch's reply into its aggregation. Physical
// port numbers in the reply are rewritten into the virtual namespace before
// they are accumulated; entries naming ports the map does not own are
// dropped rather than leaked.
func (r *Engine) handleStatsReply(dpid uint64, reply *openflow.StatsReply) {
	r.mutex.Lock()
	switch reply.StatsType {
	case openflow.OFPST_FLOW:
		reply.Flows = r.virtualizeFlowStats(dpid, reply.Flows)
	case openflow.OFPST_PORT:
		reply.Ports = r.virtualizePortStats(dpid, reply.Ports)
	}
	done, known := r.xids.recordReply(reply.TransactionID(), dpid, reply)
	r.mutex.Unlock()

	if !known {
		logger.Debugf("ignoring a STATS_REPLY with an unknown xid: %v", reply.TransactionID())
		return
	}
	if done != nil {
		r.handleXid(done)
	}
}

// virtualizeFlowStats rewrites the in_port of each entry's match and the
// port of each output action from the physical into the virtual namespace.
// The caller holds the engine mutex.
func (r *Engine) virtualizeFlowStats(dpid uint64, flows []openflow.FlowStatsEntry) []openflow.FlowStatsEntry {
	kept := make([]openflow.FlowStatsEntry, 0, len(flows))
	for _, flow := range flows {
		if flow.Match != nil && !flow.Match.Wildcards.InPort {
			virt, ok := r.ports.virtOfPhys(dpid, flow.Match.InPort)
			if !ok {
				continue
			}
			flow.Match.InPort = virt
		}
		dropped := false
		for _, action := range flow.Actions {
			out, ok := action.(*openflow.ActionOutput)
			if !ok || out.Port >= openflow.OFPP_MAX {
				continue
			}
			virt, ok := r.ports.virtOfPhys(dpid, out.Port)
			if !ok {
				dropped = true
				break
			}
			out.Port = virt
		}
		if dropped {
			continue
		}
		kept = append(kept, flow)
	}

	return kept
}

// virtualizePortStats rewrites each entry's port number into the virtual
// namespace. The caller holds the engine mutex.
func (r *Engine) virtualizePortStats(dpid uint64, ports []openflow.PortStatsEntry) []openflow.PortStatsEntry {
	kept := make([]openflow.PortStatsEntry, 0, len(ports))
	for _, port := range ports {
		if port.PortNo >= openflow.OFPP_MAX {
			continue
		}
		virt, ok := r.ports.virtOfPhys(dpid, port.PortNo)
		if !ok {
			continue
		}
		port.PortNo = virt
		kept = append(kept, port)
	}

	return kept
}

// Flow stats bodies can outgrow a single frame; everything but the last
// chunk is flagged with OFPSF_REPLY_MORE. 12 bytes cover the OpenFlow and
// stats headers.
const maxStatsBody = openflow.MaxFrameLength - 12

// handleXid performs the inverse xid translation: it marshals the completed
// accumulator into one or more STATS_REPLY frames bearing the controller's
// original xid and delivers them to the source session. Deliveries to a
// session that died in the meantime are dropped silently.
func (r *Engine) handleXid(record *xidRecord) {
	replies := make([]*openflow.StatsReply, 0, 1)

	switch record.statsType {
	case openflow.OFPST_FLOW:
		replies = append(replies, chunkFlowStats(record.srcXid, record.flows)...)
	case openflow.OFPST_AGGREGATE:
		reply := openflow.NewStatsReply(record.srcXid, openflow.OFPST_AGGREGATE)
		aggregate := record.aggregate
		reply.Aggregate = &aggregate
		replies = append(replies, reply)
	case openflow.OFPST_TABLE:
		reply := openflow.NewStatsReply(record.srcXid, openflow.OFPST_TABLE)
		reply.Tables = record.tables
		replies = append(replies, reply)
	case openflow.OFPST_PORT:
		reply := openflow.NewStatsReply(record.srcXid, openflow.OFPST_PORT)
		reply.Ports = record.ports
		replies = append(replies, reply)
	default:
		logger.Errorf("unexpected accumulator type: %v", record.statsType)
		return
	}

	for _, reply := range replies {
		if err := record.src.Write(reply); err != nil {
			logger.Debugf("dropping a stats delivery to a dead session: %v", err)
			return
		}
	}
}

// chunkFlowStats splits a flow list into frames that fit the 16-bit length
// of an OpenFlow header. more=false appears exactly once, on the last frame.
func chunkFlowStats(xid uint32, flows []openflow.FlowStatsEntry) []*openflow.StatsReply {
	replies := make([]*openflow.StatsReply, 0, 1)

	current := openflow.NewStatsReply(xid, openflow.OFPST_FLOW)
	size := 0
	for i := range flows {
		entrySize := flowStatsSize(&flows[i])
		if size+entrySize > maxStatsBody && len(current.Flows) > 0 {
			current.Flags |= openflow.OFPSF_REPLY_MORE
			replies = append(replies, current)
			current = openflow.NewStatsReply(xid, openflow.OFPST_FLOW)
			size = 0
		}
		current.Flows = append(current.Flows, flows[i])
		size += entrySize
	}
	replies = append(replies, current)

	return replies
}

func flowStatsSize(flow *openflow.FlowStatsEntry) int {
	size := 88
	for _, action := range flow.Actions {
		buf, err := action.MarshalBinary()
		if err != nil {
			continue
		}
		size += len(buf)
	}

	return size
}

func intersect(targets []uint64, dpid uint64) []uint64 {
	for _, v := range targets {
		if v == dpid {
			return []uint64{dpid}
		}
	}

	return nil
}
