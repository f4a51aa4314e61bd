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

	"github.com/superkkt/flowvisor/openflow"
)

func TestChunkFlowStats(t *testing.T) {
	flows := make([]openflow.FlowStatsEntry, 1000)
	for i := range flows {
		flows[i] = openflow.FlowStatsEntry{
			Match:   openflow.NewMatch(),
			Actions: []openflow.Action{&openflow.ActionOutput{Port: 10, MaxLen: 0xffff}},
		}
	}

	replies := chunkFlowStats(3, flows)
	if len(replies) < 2 {
		t.Fatalf("1000 entries should not fit one frame: %v frames", len(replies))
	}

	total := 0
	for i, reply := range replies {
		data, err := reply.MarshalBinary()
		if err != nil {
			t.Fatalf("unexpected marshal error: %v", err)
		}
		if len(data) > openflow.MaxFrameLength {
			t.Errorf("frame %v exceeds the 16-bit length: %v", i, len(data))
		}
		if reply.TransactionID() != 3 {
			t.Errorf("frame %v lost the xid: %v", i, reply.TransactionID())
		}

		last := i == len(replies)-1
		if last && reply.More() {
			t.Errorf("the final frame still advertises more")
		}
		if !last && !reply.More() {
			t.Errorf("a non-final frame does not advertise more")
		}
		total += len(reply.Flows)
	}
	if total != len(flows) {
		t.Errorf("entries were lost in chunking: %v", total)
	}
}

func TestChunkFlowStatsEmpty(t *testing.T) {
	replies := chunkFlowStats(1, nil)
	if len(replies) != 1 {
		t.Fatalf("an empty flow list is still one frame: %v", len(replies))
	}
	if replies[0].More() {
		t.Errorf("an empty reply advertises more")
	}
}

// A flow query scoped to a concrete virtual in_port only asks the switch
// owning it, with the match rewritten to the physical port.
func TestScopedFlowStatsNarrowing(t *testing.T) {
	e := NewEngine()
	sw1 := addFakeSwitch(t, e, 1)
	sw2 := addFakeSwitch(t, e, 2)
	mapPort(e, 1, 1) // 10
	mapPort(e, 2, 2) // 11
	s, _ := addFakeController(t, e, 0xcafe, nil)

	req := openflow.NewStatsRequest(5, openflow.OFPST_FLOW)
	req.Match = openflow.NewMatch()
	req.Match.Wildcards.InPort = false
	req.Match.InPort = 11
	if err := e.handleStatsRequest(s, req); err != nil {
		t.Fatalf("unexpected stats error: %v", err)
	}

	forwarded := new(openflow.StatsRequest)
	if err := forwarded.UnmarshalBinary(sw2.next(t, openflow.OFPT_STATS_REQUEST)); err != nil {
		t.Fatalf("failed to decode the narrowed request: %v", err)
	}
	if forwarded.Match.InPort != 2 {
		t.Errorf("in_port was not rewritten: %v", forwarded.Match.InPort)
	}
	sw1.quiet(t, openflow.OFPT_STATS_REQUEST)
}

// The desc reply is synthesized locally and names the virtual switch.
func TestDescStatsSynthesized(t *testing.T) {
	e := NewEngine()
	sw := addFakeSwitch(t, e, 1)
	s, controller := addFakeController(t, e, 0xcafe, nil)

	req := openflow.NewStatsRequest(9, openflow.OFPST_DESC)
	if err := e.handleStatsRequest(s, req); err != nil {
		t.Fatalf("unexpected stats error: %v", err)
	}

	reply := new(openflow.StatsReply)
	if err := reply.UnmarshalBinary(controller.next(t, openflow.OFPT_STATS_REPLY)); err != nil {
		t.Fatalf("failed to decode the desc reply: %v", err)
	}
	if reply.TransactionID() != 9 {
		t.Errorf("the desc reply lost the xid: %v", reply.TransactionID())
	}
	if reply.Desc.Description != "Mirage_flowvisor" {
		t.Errorf("unexpected description: %v", reply.Desc.Description)
	}
	sw.quiet(t, openflow.OFPT_STATS_REQUEST)
}

// Port stats come back with virtual numbers; unmapped ports never leak.
func TestPortStatsVirtualized(t *testing.T) {
	e := NewEngine()
	sw := addFakeSwitch(t, e, 1)
	mapPort(e, 1, 1) // 10
	s, controller := addFakeController(t, e, 0xcafe, nil)

	req := openflow.NewStatsRequest(4, openflow.OFPST_PORT)
	if err := e.handleStatsRequest(s, req); err != nil {
		t.Fatalf("unexpected stats error: %v", err)
	}

	forwarded := new(openflow.StatsRequest)
	if err := forwarded.UnmarshalBinary(sw.next(t, openflow.OFPT_STATS_REQUEST)); err != nil {
		t.Fatalf("failed to decode the fanned-out request: %v", err)
	}

	reply := openflow.NewStatsReply(forwarded.TransactionID(), openflow.OFPST_PORT)
	reply.Ports = []openflow.PortStatsEntry{
		{PortNo: 1, RxPackets: 7}, // mapped
		{PortNo: 9, TxPackets: 1}, // unmapped: must not leak
	}
	e.handleStatsReply(1, reply)

	merged := new(openflow.StatsReply)
	if err := merged.UnmarshalBinary(controller.next(t, openflow.OFPT_STATS_REPLY)); err != nil {
		t.Fatalf("failed to decode the merged reply: %v", err)
	}
	if len(merged.Ports) != 1 {
		t.Fatalf("unexpected entry count: %v", len(merged.Ports))
	}
	if merged.Ports[0].PortNo != 10 || merged.Ports[0].RxPackets != 7 {
		t.Errorf("port entry was not virtualized: %+v", merged.Ports[0])
	}
}
