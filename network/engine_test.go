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
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/superkkt/flowvisor/openflow"
	"github.com/superkkt/flowvisor/protocol"
	"github.com/superkkt/flowvisor/topology"
)

// peer reads whole OpenFlow frames from the far end of an in-memory session
// so a test can observe what the engine emitted.
type peer struct {
	conn   net.Conn
	frames chan []byte
}

func newPeer(conn net.Conn) *peer {
	p := &peer{
		conn:   conn,
		frames: make(chan []byte, 64),
	}
	go func() {
		for {
			header := make([]byte, 8)
			if _, err := io.ReadFull(conn, header); err != nil {
				close(p.frames)
				return
			}
			length := int(binary.BigEndian.Uint16(header[2:4]))
			frame := make([]byte, length)
			copy(frame, header)
			if length > 8 {
				if _, err := io.ReadFull(conn, frame[8:]); err != nil {
					close(p.frames)
					return
				}
			}
			p.frames <- frame
		}
	}()

	return p
}

// next returns the next frame of the wanted message type, skipping the rest.
func (r *peer) next(t *testing.T, msgType uint8) []byte {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame, ok := <-r.frames:
			if !ok {
				t.Fatalf("session closed while waiting for message type %v", msgType)
			}
			if frame[1] == msgType {
				return frame
			}
		case <-deadline:
			t.Fatalf("timed out waiting for message type %v", msgType)
		}
	}
}

// quiet asserts that no frame of the given type shows up.
func (r *peer) quiet(t *testing.T, msgType uint8) {
	t.Helper()
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case frame, ok := <-r.frames:
			if !ok {
				return
			}
			if frame[1] == msgType {
				t.Fatalf("unexpected message of type %v", msgType)
			}
		case <-deadline:
			return
		}
	}
}

func addFakeSwitch(t *testing.T, e *Engine, dpid uint64) *peer {
	t.Helper()
	server, client := net.Pipe()
	s := newSwitchSession(e, server)
	s.dpid = dpid
	s.negotiated = true
	if err := e.registerSwitch(s); err != nil {
		t.Fatalf("failed to register a fake switch: %v", err)
	}
	s.registered = true
	t.Cleanup(func() { client.Close(); server.Close() })

	return newPeer(client)
}

func addFakeController(t *testing.T, e *Engine, dpid uint64, filter *openflow.Match) (*session, *peer) {
	t.Helper()
	if filter == nil {
		filter = openflow.NewMatch()
	}
	server, client := net.Pipe()
	s := newSession(e, server)
	s.negotiated = true

	e.mutex.Lock()
	slice := e.slices.add(dpid, filter)
	slice.session = s
	s.slice = slice
	e.mutex.Unlock()
	t.Cleanup(func() { client.Close(); server.Close() })

	return s, newPeer(client)
}

// mapPort feeds a physical port into the namespace without the PORT_STATUS
// round-trip.
func mapPort(e *Engine, dpid uint64, port uint16) uint16 {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.ports.add(dpid, port, openflow.PhysicalPort{Number: port})
}

// linkSwitches wires (dpid1, port1) <-> (dpid2, port2) by replaying one of
// our own LLDP probes into the resolver.
func linkSwitches(t *testing.T, e *Engine, dpid1 uint64, port1 uint16, dpid2 uint64, port2 uint16) {
	t.Helper()
	frame, err := topology.NewProbe(dpid1, port1, nil)
	if err != nil {
		t.Fatalf("failed to build a probe: %v", err)
	}
	eth := new(protocol.Ethernet)
	if err := eth.UnmarshalBinary(frame); err != nil {
		t.Fatalf("failed to parse the probe: %v", err)
	}
	if !e.topo.ProcessLLDP(dpid2, port2, eth) {
		t.Fatalf("the resolver did not claim our own probe")
	}
}

func decodeFlowMod(t *testing.T, frame []byte) *openflow.FlowMod {
	t.Helper()
	fm := new(openflow.FlowMod)
	if err := fm.UnmarshalBinary(frame); err != nil {
		t.Fatalf("failed to decode a FLOW_MOD: %v", err)
	}

	return fm
}

// Scenario: one switch, two ports, a flow from one port to the other. The
// emitted flow-mod must carry physical numbers only.
func TestPortTranslationRoundTrip(t *testing.T) {
	e := NewEngine()
	sw := addFakeSwitch(t, e, 1)
	if v := mapPort(e, 1, 1); v != 10 {
		t.Fatalf("unexpected virtual port: %v", v)
	}
	if v := mapPort(e, 1, 2); v != 11 {
		t.Fatalf("unexpected virtual port: %v", v)
	}

	fm := openflow.NewFlowMod(0, openflow.OFPFC_ADD)
	fm.Match.Wildcards.InPort = false
	fm.Match.InPort = 10
	fm.Actions = []openflow.Action{&openflow.ActionOutput{Port: 11, MaxLen: 0xffff}}
	if err := e.translateFlowMod(fm); err != nil {
		t.Fatalf("unexpected translation error: %v", err)
	}

	emitted := decodeFlowMod(t, sw.next(t, openflow.OFPT_FLOW_MOD))
	if emitted.Match.InPort != 1 || emitted.Match.Wildcards.InPort {
		t.Errorf("in_port was not translated: %+v", emitted.Match)
	}
	if len(emitted.Actions) != 1 {
		t.Fatalf("unexpected action count: %v", len(emitted.Actions))
	}
	out := emitted.Actions[0].(*openflow.ActionOutput)
	if out.Port != 2 {
		t.Errorf("output port was not translated: %v", out.Port)
	}
	if emitted.BufferID != openflow.OFP_NO_BUFFER || emitted.OutPort != openflow.OFPP_NONE {
		t.Errorf("unexpected flow mod fields: buffer=%v, out_port=%v", emitted.BufferID, emitted.OutPort)
	}
}

// Scenario: two switches joined by transit ports 1:3 <-> 2:3. A flow from
// 10=(1,1) to 11=(2,2) installs one hop per switch, with the rewritten
// actions only on the final hop.
func TestCrossSwitchPath(t *testing.T) {
	e := NewEngine()
	sw1 := addFakeSwitch(t, e, 1)
	sw2 := addFakeSwitch(t, e, 2)
	mapPort(e, 1, 1) // 10
	mapPort(e, 2, 2) // 11
	linkSwitches(t, e, 1, 3, 2, 3)

	newMAC := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	fm := openflow.NewFlowMod(0, openflow.OFPFC_ADD)
	fm.Match.Wildcards.InPort = false
	fm.Match.InPort = 10
	fm.Actions = []openflow.Action{
		&openflow.ActionSetMAC{Type: openflow.OFPAT_SET_DL_DST, MAC: newMAC},
		&openflow.ActionOutput{Port: 11, MaxLen: 0xffff},
	}
	if err := e.translateFlowMod(fm); err != nil {
		t.Fatalf("unexpected translation error: %v", err)
	}

	first := decodeFlowMod(t, sw1.next(t, openflow.OFPT_FLOW_MOD))
	if first.Match.InPort != 1 {
		t.Errorf("unexpected in_port on the first hop: %v", first.Match.InPort)
	}
	if len(first.Actions) != 1 {
		t.Fatalf("intermediate hop should only forward: %+v", first.Actions)
	}
	if out := first.Actions[0].(*openflow.ActionOutput); out.Port != 3 {
		t.Errorf("unexpected output on the first hop: %v", out.Port)
	}

	second := decodeFlowMod(t, sw2.next(t, openflow.OFPT_FLOW_MOD))
	if second.Match.InPort != 3 {
		t.Errorf("unexpected in_port on the final hop: %v", second.Match.InPort)
	}
	if len(second.Actions) != 2 {
		t.Fatalf("final hop should carry the accumulated actions: %+v", second.Actions)
	}
	mac, ok := second.Actions[0].(*openflow.ActionSetMAC)
	if !ok || !bytes.Equal(mac.MAC, newMAC) {
		t.Errorf("set_dl_dst was lost on the final hop: %+v", second.Actions[0])
	}
	if out := second.Actions[1].(*openflow.ActionOutput); out.Port != 2 {
		t.Errorf("unexpected output on the final hop: %v", out.Port)
	}
}

func udpFrame(srcPort, dstPort uint16) []byte {
	udp := make([]byte, 8)
	binary.BigEndian.PutUint16(udp[0:2], srcPort)
	binary.BigEndian.PutUint16(udp[2:4], dstPort)
	binary.BigEndian.PutUint16(udp[4:6], 8)

	ip := protocol.NewIPv4(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2), 17, udp)
	payload, err := ip.MarshalBinary()
	if err != nil {
		panic(err)
	}
	eth := protocol.Ethernet{
		SrcMAC:  net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:  net.HardwareAddr{5, 4, 3, 2, 1, 0},
		Type:    0x0800,
		Payload: payload,
	}
	frame, err := eth.MarshalBinary()
	if err != nil {
		panic(err)
	}

	return frame
}

// Scenario: a buffered packet-in crosses the bridge into a flat virtual
// buffer namespace, and the controller's packet-out releases it inline on
// another switch.
func TestBufferBridging(t *testing.T) {
	e := NewEngine()
	addFakeSwitch(t, e, 1)
	sw2 := addFakeSwitch(t, e, 2)
	mapPort(e, 1, 1) // 10
	mapPort(e, 2, 2) // 11
	_, controller := addFakeController(t, e, 0xcafe, nil)

	frame := udpFrame(1000, 2000)
	pin := openflow.NewPacketIn(0)
	pin.BufferID = 42 // The switch-local id never shows through.
	pin.TotalLength = uint16(len(frame))
	pin.InPort = 1
	pin.Data = frame
	e.handlePacketIn(1, pin)

	delivered := new(openflow.PacketIn)
	if err := delivered.UnmarshalBinary(controller.next(t, openflow.OFPT_PACKET_IN)); err != nil {
		t.Fatalf("failed to decode the delivered PACKET_IN: %v", err)
	}
	if delivered.InPort != 10 {
		t.Errorf("in_port was not virtualized: %v", delivered.InPort)
	}
	if delivered.BufferID == 42 || delivered.BufferID == openflow.OFP_NO_BUFFER {
		t.Errorf("buffer id was not bridged: %v", delivered.BufferID)
	}
	if !bytes.Equal(delivered.Data, frame) {
		t.Errorf("payload was modified in transit")
	}

	po := openflow.NewPacketOut(0)
	po.BufferID = delivered.BufferID
	po.Actions = []openflow.Action{&openflow.ActionOutput{Port: 11, MaxLen: 0xffff}}
	if err := e.translatePacketOut(po); err != nil {
		t.Fatalf("unexpected translation error: %v", err)
	}

	released := new(openflow.PacketOut)
	if err := released.UnmarshalBinary(sw2.next(t, openflow.OFPT_PACKET_OUT)); err != nil {
		t.Fatalf("failed to decode the released PACKET_OUT: %v", err)
	}
	if released.BufferID != openflow.OFP_NO_BUFFER {
		t.Errorf("downstream packet out references a buffer: %v", released.BufferID)
	}
	if !bytes.Equal(released.Data, frame) {
		t.Errorf("cached payload was not substituted inline")
	}
	if out := released.Actions[0].(*openflow.ActionOutput); out.Port != 2 {
		t.Errorf("output port was not translated: %v", out.Port)
	}

	// The virtual buffer is gone after its single use.
	e.mutex.RLock()
	contains := e.buffers.contains(delivered.BufferID)
	e.mutex.RUnlock()
	if contains {
		t.Errorf("consumed buffer is still cached")
	}
}

// Scenario: one aggregate request fans out to three switches and their
// replies fold into a single frame bearing the controller's xid.
func TestAggregateFanIn(t *testing.T) {
	e := NewEngine()
	switches := map[uint64]*peer{
		1: addFakeSwitch(t, e, 1),
		2: addFakeSwitch(t, e, 2),
		3: addFakeSwitch(t, e, 3),
	}
	s, controller := addFakeController(t, e, 0xcafe, nil)

	req := openflow.NewStatsRequest(7777, openflow.OFPST_AGGREGATE)
	if err := e.handleStatsRequest(s, req); err != nil {
		t.Fatalf("unexpected stats error: %v", err)
	}

	counts := map[uint64][3]uint64{
		1: {5, 500, 2},
		2: {1, 100, 1},
		3: {0, 0, 0},
	}
	for dpid, sw := range switches {
		forwarded := new(openflow.StatsRequest)
		if err := forwarded.UnmarshalBinary(sw.next(t, openflow.OFPT_STATS_REQUEST)); err != nil {
			t.Fatalf("failed to decode the fanned-out request: %v", err)
		}
		if forwarded.TransactionID() == 7777 {
			t.Errorf("the controller xid leaked to a switch")
		}

		reply := openflow.NewStatsReply(forwarded.TransactionID(), openflow.OFPST_AGGREGATE)
		reply.Aggregate = &openflow.AggregateStats{
			PacketCount: counts[dpid][0],
			ByteCount:   counts[dpid][1],
			FlowCount:   uint32(counts[dpid][2]),
		}
		e.handleStatsReply(dpid, reply)
	}

	merged := new(openflow.StatsReply)
	if err := merged.UnmarshalBinary(controller.next(t, openflow.OFPT_STATS_REPLY)); err != nil {
		t.Fatalf("failed to decode the merged reply: %v", err)
	}
	if merged.TransactionID() != 7777 {
		t.Errorf("the reply lost the controller xid: %v", merged.TransactionID())
	}
	if merged.More() {
		t.Errorf("an aggregate reply is a single frame")
	}
	agg := merged.Aggregate
	if agg.PacketCount != 6 || agg.ByteCount != 600 || agg.FlowCount != 3 {
		t.Errorf("unexpected aggregate: %+v", agg)
	}
}

// Scenario: a packet-out naming a never-issued buffer produces an error and
// nothing reaches any switch.
func TestUnknownBufferID(t *testing.T) {
	e := NewEngine()
	sw := addFakeSwitch(t, e, 1)
	mapPort(e, 1, 1)

	po := openflow.NewPacketOut(0)
	po.BufferID = 99999
	po.Actions = []openflow.Action{&openflow.ActionOutput{Port: 10, MaxLen: 0xffff}}

	err := e.translatePacketOut(po)
	if err != openflow.ErrBufferUnknown {
		t.Fatalf("expected ErrBufferUnknown, got %v", err)
	}
	sw.quiet(t, openflow.OFPT_PACKET_OUT)
}

// Scenario: per-slice flow-space filters. IPv4 reaches only the IPv4 slice,
// IPv6 only the IPv6 one, ARP neither.
func TestSliceFiltering(t *testing.T) {
	e := NewEngine()
	addFakeSwitch(t, e, 1)
	mapPort(e, 1, 1)

	ipv4Filter := openflow.NewMatch()
	ipv4Filter.Wildcards.EtherType = false
	ipv4Filter.EtherType = 0x0800
	_, sliceA := addFakeController(t, e, 0xa, ipv4Filter)

	ipv6Filter := openflow.NewMatch()
	ipv6Filter.Wildcards.EtherType = false
	ipv6Filter.EtherType = 0x86DD
	_, sliceB := addFakeController(t, e, 0xb, ipv6Filter)

	inject := func(etherType uint16, payload []byte) {
		eth := protocol.Ethernet{
			SrcMAC:  net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:  net.HardwareAddr{5, 4, 3, 2, 1, 0},
			Type:    etherType,
			Payload: payload,
		}
		frame, err := eth.MarshalBinary()
		if err != nil {
			t.Fatalf("failed to build a frame: %v", err)
		}
		pin := openflow.NewPacketIn(0)
		pin.InPort = 1
		pin.Data = frame
		e.handlePacketIn(1, pin)
	}

	inject(0x0800, udpFrame(1, 2)[14:])
	sliceA.next(t, openflow.OFPT_PACKET_IN)
	sliceB.quiet(t, openflow.OFPT_PACKET_IN)

	inject(0x86DD, bytes.Repeat([]byte{0}, 40))
	sliceB.next(t, openflow.OFPT_PACKET_IN)
	sliceA.quiet(t, openflow.OFPT_PACKET_IN)

	inject(0x0806, bytes.Repeat([]byte{0}, 28))
	sliceA.quiet(t, openflow.OFPT_PACKET_IN)
	sliceB.quiet(t, openflow.OFPT_PACKET_IN)
}

// A packet arriving on a transit port stays inside the fabric.
func TestTransitPortDrop(t *testing.T) {
	e := NewEngine()
	addFakeSwitch(t, e, 1)
	addFakeSwitch(t, e, 2)
	mapPort(e, 1, 3)
	linkSwitches(t, e, 1, 3, 2, 3)
	_, controller := addFakeController(t, e, 0xcafe, nil)

	pin := openflow.NewPacketIn(0)
	pin.InPort = 3
	pin.Data = udpFrame(1, 2)
	e.handlePacketIn(1, pin)

	controller.quiet(t, openflow.OFPT_PACKET_IN)
}

// Closing a switch session reclaims its ports, buffers, and pending stats
// memberships.
func TestSwitchCleanup(t *testing.T) {
	e := NewEngine()
	addFakeSwitch(t, e, 1)
	mapPort(e, 1, 1)

	e.mutex.Lock()
	id := e.buffers.allocate(1, []byte{1})
	sw := e.switches[1]
	e.mutex.Unlock()

	e.unregisterSwitch(sw)

	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if _, _, ok := e.ports.physOfVirt(10); ok {
		t.Errorf("ports of the dead switch survived")
	}
	if e.buffers.contains(id) {
		t.Errorf("buffers of the dead switch survived")
	}
	if _, ok := e.switches[1]; ok {
		t.Errorf("the dead switch is still registered")
	}
}

// Closing a controller session unbinds its slice and drops the aggregations
// it sourced.
func TestControllerCleanup(t *testing.T) {
	e := NewEngine()
	addFakeSwitch(t, e, 1)
	s, _ := addFakeController(t, e, 0xcafe, nil)

	req := openflow.NewStatsRequest(1, openflow.OFPST_AGGREGATE)
	if err := e.handleStatsRequest(s, req); err != nil {
		t.Fatalf("unexpected stats error: %v", err)
	}

	e.detachSession(s)

	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if len(e.xids.records) != 0 {
		t.Errorf("xid records of the dead session survived")
	}
	for _, slice := range e.slices.all() {
		if slice.session == s {
			t.Errorf("the dead session is still attached to a slice")
		}
	}
}
