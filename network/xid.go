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
	"time"

	"github.com/superkkt/flowvisor/openflow"
)

const (
	// A stats aggregation whose switches never all answered is forced to
	// completion after this timeout.
	xidTimeout = 180 * time.Second
	// How often the sweeper looks for timed-out aggregations.
	xidSweepInterval = 600 * time.Second
)

// xidRecord tracks one fanned-out stats request: which switches still owe a
// reply, and the accumulator the replies merge into. The accumulator variant
// is fixed at creation by statsType.
type xidRecord struct {
	src       *session
	srcXid    uint32
	statsType uint16
	pending   map[uint64]bool
	createdAt time.Time

	flows     []openflow.FlowStatsEntry
	aggregate openflow.AggregateStats
	tables    []openflow.TableStats
	ports     []openflow.PortStatsEntry
}

// xidTracker correlates fan-out requests with their fan-in replies. Outbound
// requests get a fresh xid from a monotonic counter; the record remembers the
// controller-side xid for the inverse translation. Wraparound is ignored at
// this scale. The engine's mutex serializes access.
type xidTracker struct {
	next    uint32
	records map[uint32]*xidRecord
}

func newXidTracker() *xidTracker {
	return &xidTracker{
		next:    1,
		records: make(map[uint32]*xidRecord),
	}
}

// allocate registers a new aggregation and returns the xid to stamp on the
// fanned-out requests.
func (r *xidTracker) allocate(src *session, srcXid uint32, statsType uint16, pending []uint64) uint32 {
	xid := r.next
	r.next++

	record := &xidRecord{
		src:       src,
		srcXid:    srcXid,
		statsType: statsType,
		pending:   make(map[uint64]bool, len(pending)),
		createdAt: time.Now(),
	}
	for _, dpid := range pending {
		record.pending[dpid] = true
	}
	if statsType == openflow.OFPST_TABLE {
		// The proxy exposes exactly one virtual table; switch-reported
		// tables are discarded and this synthetic entry is all a
		// controller ever sees.
		record.tables = []openflow.TableStats{{
			TableID:    0,
			Name:       "flowvisor",
			Wildcards:  openflow.OFPFW_ALL,
			MaxEntries: 0x100000,
		}}
	}
	r.records[xid] = record

	return xid
}

// recordReply merges one switch's reply chunk into the accumulator. The
// switch stays pending while the reply advertises more chunks. It returns
// the completed record once the last pending switch has fully answered, or
// nil while the aggregation is still partial. Replies bearing an unknown xid
// return (nil, false).
func (r *xidTracker) recordReply(xid uint32, dpid uint64, reply *openflow.StatsReply) (done *xidRecord, known bool) {
	record, ok := r.records[xid]
	if !ok {
		return nil, false
	}

	switch record.statsType {
	case openflow.OFPST_FLOW:
		record.flows = append(record.flows, reply.Flows...)
	case openflow.OFPST_AGGREGATE:
		if reply.Aggregate != nil {
			record.aggregate.PacketCount += reply.Aggregate.PacketCount
			record.aggregate.ByteCount += reply.Aggregate.ByteCount
			record.aggregate.FlowCount += reply.Aggregate.FlowCount
		}
	case openflow.OFPST_PORT:
		record.ports = append(record.ports, reply.Ports...)
	case openflow.OFPST_TABLE:
		// Discarded: the synthetic entry already stands in for the
		// whole fabric.
	}

	if !reply.More() {
		delete(record.pending, dpid)
	}
	if len(record.pending) > 0 {
		return nil, true
	}
	delete(r.records, xid)

	return record, true
}

// take removes a record unconditionally and hands it to the caller for
// delivery, whatever its pending set still holds.
func (r *xidTracker) take(xid uint32) *xidRecord {
	record, ok := r.records[xid]
	if !ok {
		return nil
	}
	delete(r.records, xid)

	return record
}

// dropPending forgets a switch that could not be asked. It returns the
// record if that switch was the last one pending.
func (r *xidTracker) dropPending(xid uint32, dpid uint64) (done *xidRecord) {
	record, ok := r.records[xid]
	if !ok {
		return nil
	}
	delete(record.pending, dpid)
	if len(record.pending) > 0 {
		return nil
	}
	delete(r.records, xid)

	return record
}

// removeSession drops every record sourced by a closed controller session.
func (r *xidTracker) removeSession(src *session) {
	for xid, record := range r.records {
		if record.src == src {
			delete(r.records, xid)
		}
	}
}

// removeDPID removes a vanished switch from every pending set and returns
// the aggregations its disappearance completed.
func (r *xidTracker) removeDPID(dpid uint64) []*xidRecord {
	completed := make([]*xidRecord, 0)
	for xid, record := range r.records {
		if !record.pending[dpid] {
			continue
		}
		delete(record.pending, dpid)
		if len(record.pending) == 0 {
			delete(r.records, xid)
			completed = append(completed, record)
		}
	}

	return completed
}

// sweep flushes and removes every record older than the timeout, whatever
// its pending set still holds. The partial accumulator is delivered as-is.
func (r *xidTracker) sweep() []*xidRecord {
	expired := make([]*xidRecord, 0)
	now := time.Now()
	for xid, record := range r.records {
		if now.Sub(record.createdAt) <= xidTimeout {
			continue
		}
		delete(r.records, xid)
		expired = append(expired, record)
	}

	return expired
}
