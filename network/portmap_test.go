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

func TestPortMapAllocation(t *testing.T) {
	m := newPortMap()

	first := m.add(1, 1, openflow.PhysicalPort{Number: 1})
	second := m.add(1, 2, openflow.PhysicalPort{Number: 2})
	if first != 10 || second != 11 {
		t.Fatalf("virtual ports should start at 10: got %v, %v", first, second)
	}

	// Re-announcing a known port keeps its number.
	if again := m.add(1, 1, openflow.PhysicalPort{Number: 1}); again != first {
		t.Errorf("re-announced port changed its virtual number: %v", again)
	}

	dpid, phys, ok := m.physOfVirt(first)
	if !ok || dpid != 1 || phys != 1 {
		t.Errorf("unexpected reverse lookup: %v/%v, ok=%v", dpid, phys, ok)
	}
	if virt, ok := m.virtOfPhys(1, 2); !ok || virt != second {
		t.Errorf("unexpected forward lookup: %v, ok=%v", virt, ok)
	}
}

func TestPortMapInjectivity(t *testing.T) {
	m := newPortMap()
	for dpid := uint64(1); dpid <= 3; dpid++ {
		for port := uint16(1); port <= 4; port++ {
			m.add(dpid, port, openflow.PhysicalPort{Number: port})
		}
	}

	seen := make(map[physicalPort]uint16)
	for virt := range m.virt {
		dpid, phys, ok := m.physOfVirt(virt)
		if !ok {
			t.Fatalf("dangling virtual port: %v", virt)
		}
		key := physicalPort{dpid: dpid, port: phys}
		if previous, dup := seen[key]; dup {
			t.Fatalf("two virtual ports (%v, %v) map to %v", previous, virt, key)
		}
		seen[key] = virt
	}
}

func TestPortMapStrictLookup(t *testing.T) {
	m := newPortMap()
	m.add(1, 1, openflow.PhysicalPort{Number: 1})

	if _, _, err := m.physOfVirtStrict(10); err != nil {
		t.Errorf("unexpected strict lookup failure: %v", err)
	}
	_, _, err := m.physOfVirtStrict(99)
	if err != openflow.ErrBadOutPort {
		t.Errorf("expected ErrBadOutPort, got %v", err)
	}
}

func TestPortMapRemoveDPID(t *testing.T) {
	m := newPortMap()
	m.add(1, 1, openflow.PhysicalPort{Number: 1})
	m.add(2, 1, openflow.PhysicalPort{Number: 1})
	m.add(1, 2, openflow.PhysicalPort{Number: 2})

	removed := m.removeDPID(1)
	if len(removed) != 2 {
		t.Fatalf("unexpected removal count: %v", removed)
	}
	if _, _, ok := m.physOfVirt(10); ok {
		t.Errorf("port of a removed switch is still mapped")
	}
	if _, ok := m.virtOfPhys(2, 1); !ok {
		t.Errorf("port of a surviving switch vanished")
	}
}

func TestPortMapDescriptors(t *testing.T) {
	m := newPortMap()
	m.add(1, 5, openflow.PhysicalPort{Number: 5, Name: "eth5"})

	desc, ok := m.descriptor(10)
	if !ok {
		t.Fatalf("missing descriptor")
	}
	// Controllers must never see the physical number.
	if desc.Number != 10 || desc.Name != "eth5" {
		t.Errorf("unexpected descriptor: %+v", desc)
	}

	all := m.descriptors()
	if len(all) != 1 || all[0].Number != 10 {
		t.Errorf("unexpected descriptor list: %+v", all)
	}
}
