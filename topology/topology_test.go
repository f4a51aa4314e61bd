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

package topology

import (
	"testing"

	"github.com/superkkt/flowvisor/openflow"
	"github.com/superkkt/flowvisor/protocol"
)

func reflectProbe(t *testing.T, topo *Topology, srcDPID uint64, srcPort uint16, dstDPID uint64, dstPort uint16) bool {
	t.Helper()
	frame, err := NewProbe(srcDPID, srcPort, nil)
	if err != nil {
		t.Fatalf("failed to build a probe: %v", err)
	}
	eth := new(protocol.Ethernet)
	if err := eth.UnmarshalBinary(frame); err != nil {
		t.Fatalf("failed to parse the probe: %v", err)
	}

	return topo.ProcessLLDP(dstDPID, dstPort, eth)
}

func TestLinkDiscovery(t *testing.T) {
	topo := New()
	topo.AddDevice(1)
	topo.AddDevice(2)

	if !reflectProbe(t, topo, 1, 3, 2, 3) {
		t.Fatalf("our own probe was not claimed")
	}

	if !topo.IsTransitPort(1, 3) || !topo.IsTransitPort(2, 3) {
		t.Errorf("link endpoints were not marked transit")
	}
	if topo.IsTransitPort(1, 1) {
		t.Errorf("an edge port was marked transit")
	}
}

func TestForeignLLDPFallsThrough(t *testing.T) {
	topo := New()
	topo.AddDevice(1)

	lldp := &protocol.LLDP{
		ChassisID: protocol.LLDPChassisID{SubType: 4, Data: []byte{0, 1, 2, 3, 4, 5}},
		PortID:    protocol.LLDPPortID{SubType: 7, Data: []byte("1")},
		TTL:       120,
	}
	payload, err := lldp.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to build an LLDP frame: %v", err)
	}
	eth := &protocol.Ethernet{Type: 0x88CC, Payload: payload}

	if topo.ProcessLLDP(1, 1, eth) {
		t.Errorf("a foreign LLDP frame was claimed")
	}
}

func TestFindPathSingleSwitch(t *testing.T) {
	topo := New()
	topo.AddDevice(1)

	hops := topo.FindPath(1, 1, 1, 2)
	if len(hops) != 1 {
		t.Fatalf("unexpected hop count: %v", len(hops))
	}
	if hops[0] != (Hop{DPID: 1, InPort: 1, OutPort: 2}) {
		t.Errorf("unexpected hop: %+v", hops[0])
	}
}

func TestFindPathAcrossSwitches(t *testing.T) {
	topo := New()
	topo.AddDevice(1)
	topo.AddDevice(2)
	topo.AddDevice(3)
	reflectProbe(t, topo, 1, 3, 2, 3)
	reflectProbe(t, topo, 2, 4, 3, 4)

	hops := topo.FindPath(1, 1, 3, 2)
	expected := []Hop{
		{DPID: 1, InPort: 1, OutPort: 3},
		{DPID: 2, InPort: 3, OutPort: 4},
		{DPID: 3, InPort: 4, OutPort: 2},
	}
	if len(hops) != len(expected) {
		t.Fatalf("unexpected hop count: %v", len(hops))
	}
	for i := range expected {
		if hops[i] != expected[i] {
			t.Errorf("hop %v: got %+v, expected %+v", i, hops[i], expected[i])
		}
	}
}

func TestFindPathPartitioned(t *testing.T) {
	topo := New()
	topo.AddDevice(1)
	topo.AddDevice(2)

	if hops := topo.FindPath(1, 1, 2, 2); hops != nil {
		t.Errorf("a partitioned fabric returned a path: %+v", hops)
	}
}

func TestFloodPath(t *testing.T) {
	topo := New()
	topo.AddDevice(1)
	topo.AddDevice(2)
	reflectProbe(t, topo, 1, 3, 2, 3)

	hops := topo.FloodPath(1, 1)
	if len(hops) != 2 {
		t.Fatalf("unexpected hop count: %v", len(hops))
	}
	if hops[0] != (Hop{DPID: 1, InPort: 1, OutPort: openflow.OFPP_FLOOD}) {
		t.Errorf("unexpected origin hop: %+v", hops[0])
	}
	if hops[1] != (Hop{DPID: 2, InPort: 3, OutPort: openflow.OFPP_FLOOD}) {
		t.Errorf("unexpected far hop: %+v", hops[1])
	}
}

func TestFloodPathWithoutLinks(t *testing.T) {
	topo := New()
	topo.AddDevice(1)

	hops := topo.FloodPath(1, 7)
	if len(hops) != 1 || hops[0].DPID != 1 || hops[0].InPort != 7 {
		t.Errorf("unexpected flood hops: %+v", hops)
	}
}

func TestRemoveDeviceDropsTransit(t *testing.T) {
	topo := New()
	topo.AddDevice(1)
	topo.AddDevice(2)
	reflectProbe(t, topo, 1, 3, 2, 3)

	topo.RemoveDevice(2)
	if topo.IsTransitPort(1, 3) || topo.IsTransitPort(2, 3) {
		t.Errorf("transit marks of a removed device survived")
	}
	if hops := topo.FindPath(1, 1, 2, 2); hops != nil {
		t.Errorf("a removed device is still reachable")
	}
}
