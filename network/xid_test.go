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
	"testing"
	"time"

	"github.com/superkkt/flowvisor/openflow"
)

func aggregateReply(xid uint32, packets, bytes uint64, flows uint32, more bool) *openflow.StatsReply {
	reply := openflow.NewStatsReply(xid, openflow.OFPST_AGGREGATE)
	reply.Aggregate = &openflow.AggregateStats{PacketCount: packets, ByteCount: bytes, FlowCount: flows}
	if more {
		reply.Flags |= openflow.OFPSF_REPLY_MORE
	}

	return reply
}

func TestXidAggregateMerge(t *testing.T) {
	tracker := newXidTracker()
	xid := tracker.allocate(nil, 77, openflow.OFPST_AGGREGATE, []uint64{1, 2, 3})

	if done, known := tracker.recordReply(xid, 1, aggregateReply(xid, 5, 500, 2, false)); done != nil || !known {
		t.Fatalf("aggregation completed too early")
	}
	if done, known := tracker.recordReply(xid, 3, aggregateReply(xid, 0, 0, 0, false)); done != nil || !known {
		t.Fatalf("aggregation completed too early")
	}
	done, known := tracker.recordReply(xid, 2, aggregateReply(xid, 1, 100, 1, false))
	if !known || done == nil {
		t.Fatalf("aggregation should have completed")
	}
	if done.srcXid != 77 {
		t.Errorf("lost the controller-side xid: %v", done.srcXid)
	}
	if done.aggregate.PacketCount != 6 || done.aggregate.ByteCount != 600 || done.aggregate.FlowCount != 3 {
		t.Errorf("unexpected aggregate: %+v", done.aggregate)
	}

	// The record is gone once delivered.
	if _, known := tracker.recordReply(xid, 1, aggregateReply(xid, 1, 1, 1, false)); known {
		t.Errorf("completed record still accepts replies")
	}
}

func TestXidChunkedReply(t *testing.T) {
	tracker := newXidTracker()
	xid := tracker.allocate(nil, 1, openflow.OFPST_FLOW, []uint64{1})

	chunk := openflow.NewStatsReply(xid, openflow.OFPST_FLOW)
	chunk.Flags = openflow.OFPSF_REPLY_MORE
	chunk.Flows = []openflow.FlowStatsEntry{{Match: openflow.NewMatch()}}

	// A chunk flagged with more keeps the switch pending.
	if done, known := tracker.recordReply(xid, 1, chunk); done != nil || !known {
		t.Fatalf("chunked reply completed the aggregation")
	}
}

func TestXidChunkedReplyCompletes(t *testing.T) {
	tracker := newXidTracker()
	xid := tracker.allocate(nil, 1, openflow.OFPST_FLOW, []uint64{1})

	chunk := openflow.NewStatsReply(xid, openflow.OFPST_FLOW)
	chunk.Flags = openflow.OFPSF_REPLY_MORE
	chunk.Flows = []openflow.FlowStatsEntry{{Match: openflow.NewMatch()}}
	tracker.recordReply(xid, 1, chunk)

	last := openflow.NewStatsReply(xid, openflow.OFPST_FLOW)
	last.Flows = []openflow.FlowStatsEntry{{Match: openflow.NewMatch()}}
	done, known := tracker.recordReply(xid, 1, last)
	if !known || done == nil {
		t.Fatalf("final chunk should complete the aggregation")
	}
	if len(done.flows) != 2 {
		t.Errorf("chunks were not concatenated: %v", len(done.flows))
	}
}

func TestXidUnknown(t *testing.T) {
	tracker := newXidTracker()
	if _, known := tracker.recordReply(42, 1, aggregateReply(42, 1, 1, 1, false)); known {
		t.Errorf("unknown xid was accepted")
	}
}

func TestXidSweep(t *testing.T) {
	tracker := newXidTracker()
	stale := tracker.allocate(nil, 1, openflow.OFPST_AGGREGATE, []uint64{1})
	tracker.allocate(nil, 2, openflow.OFPST_AGGREGATE, []uint64{1})

	// Age only the first record past the timeout.
	tracker.records[stale].createdAt = time.Now().Add(-xidTimeout - time.Second)

	expired := tracker.sweep()
	if len(expired) != 1 || expired[0].srcXid != 1 {
		t.Fatalf("unexpected sweep result: %+v", expired)
	}
	if len(tracker.records) != 1 {
		t.Errorf("sweep removed a live record")
	}
}

func TestXidTableSynthetic(t *testing.T) {
	tracker := newXidTracker()
	xid := tracker.allocate(nil, 1, openflow.OFPST_TABLE, []uint64{1})

	reply := openflow.NewStatsReply(xid, openflow.OFPST_TABLE)
	reply.Tables = []openflow.TableStats{{TableID: 3, Name: "physical"}, {TableID: 4}}
	done, known := tracker.recordReply(xid, 1, reply)
	if !known || done == nil {
		t.Fatalf("table aggregation should have completed")
	}
	// Switch-reported tables are discarded; only the virtual table shows.
	if len(done.tables) != 1 || done.tables[0].Name != "flowvisor" {
		t.Errorf("unexpected table accumulator: %+v", done.tables)
	}
}

func TestXidRemoveDPID(t *testing.T) {
	tracker := newXidTracker()
	xid := tracker.allocate(nil, 9, openflow.OFPST_AGGREGATE, []uint64{1, 2})
	tracker.recordReply(xid, 1, aggregateReply(xid, 5, 50, 1, false))

	completed := tracker.removeDPID(2)
	if len(completed) != 1 || completed[0].srcXid != 9 {
		t.Fatalf("losing the last pending switch should complete the aggregation: %+v", completed)
	}
}
