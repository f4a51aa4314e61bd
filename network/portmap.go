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
	"fmt"
	"sort"

	"github.com/superkkt/flowvisor/openflow"
)

// Virtual port numbers start here. 0..9 stay unused so no virtual port can
// collide with an OpenFlow reserved port constant or the otherwise popular
// low port numbers.
const firstVirtualPort = 10

type physicalPort struct {
	dpid uint64
	port uint16
}

func (r physicalPort) String() string {
	return fmt.Sprintf("%v/%v", r.dpid, r.port)
}

type portEntry struct {
	phys physicalPort
	// The descriptor as last reported by the owning switch. Its Number
	// still holds the physical port number.
	desc openflow.PhysicalPort
}

// portMap is the virtual port namespace: a dense, injective mapping from the
// virtual port numbers controllers see onto (dpid, physical port) pairs. The
// engine's mutex serializes access.
type portMap struct {
	next uint16
	virt map[uint16]portEntry
	phys map[physicalPort]uint16
}

func newPortMap() *portMap {
	return &portMap{
		next: firstVirtualPort,
		virt: make(map[uint16]portEntry),
		phys: make(map[physicalPort]uint16),
	}
}

// add allocates the next virtual port for (dpid, port). Adding a pair that
// is already mapped refreshes its descriptor and keeps its virtual port, so
// a re-announced port never burns a new number.
func (r *portMap) add(dpid uint64, port uint16, desc openflow.PhysicalPort) uint16 {
	key := physicalPort{dpid: dpid, port: port}
	if virt, ok := r.phys[key]; ok {
		r.virt[virt] = portEntry{phys: key, desc: desc}
		return virt
	}

	virt := r.next
	r.next++
	r.virt[virt] = portEntry{phys: key, desc: desc}
	r.phys[key] = virt

	return virt
}

// remove drops the mapping of (dpid, port) and returns the virtual port it
// occupied.
func (r *portMap) remove(dpid uint64, port uint16) (virt uint16, ok bool) {
	key := physicalPort{dpid: dpid, port: port}
	virt, ok = r.phys[key]
	if !ok {
		return 0, false
	}
	delete(r.phys, key)
	delete(r.virt, virt)

	return virt, true
}

// removeDPID drops every port owned by a vanished switch and returns the
// removed entries for PORT_STATUS notifications.
func (r *portMap) removeDPID(dpid uint64) []uint16 {
	removed := make([]uint16, 0)
	for key, virt := range r.phys {
		if key.dpid != dpid {
			continue
		}
		delete(r.phys, key)
		delete(r.virt, virt)
		removed = append(removed, virt)
	}

	return removed
}

func (r *portMap) virtOfPhys(dpid uint64, port uint16) (virt uint16, ok bool) {
	virt, ok = r.phys[physicalPort{dpid: dpid, port: port}]
	return virt, ok
}

func (r *portMap) physOfVirt(virt uint16) (dpid uint64, port uint16, ok bool) {
	entry, ok := r.virt[virt]
	if !ok {
		return 0, 0, false
	}

	return entry.phys.dpid, entry.phys.port, true
}

// physOfVirtStrict resolves a controller-supplied port that has to exist.
func (r *portMap) physOfVirtStrict(virt uint16) (dpid uint64, port uint16, err error) {
	dpid, port, ok := r.physOfVirt(virt)
	if !ok {
		return 0, 0, openflow.ErrBadOutPort
	}

	return dpid, port, nil
}

// snapshot copies the virtual-to-physical mapping so a translator can keep
// resolving ports after the engine mutex is released.
func (r *portMap) snapshot() map[uint16]physicalPort {
	v := make(map[uint16]physicalPort, len(r.virt))
	for virt, entry := range r.virt {
		v[virt] = entry.phys
	}

	return v
}

// descriptor returns the port descriptor rewritten to carry its virtual
// number, ready to be shown to a controller.
func (r *portMap) descriptor(virt uint16) (desc *openflow.PhysicalPort, ok bool) {
	entry, ok := r.virt[virt]
	if !ok {
		return nil, false
	}
	desc = entry.desc.Clone()
	desc.Number = virt

	return desc, true
}

// descriptors lists every mapped port with virtual numbers, sorted, for the
// synthesized FEATURES_REPLY.
func (r *portMap) descriptors() []openflow.PhysicalPort {
	numbers := make([]int, 0, len(r.virt))
	for virt := range r.virt {
		numbers = append(numbers, int(virt))
	}
	sort.Ints(numbers)

	ports := make([]openflow.PhysicalPort, 0, len(numbers))
	for _, virt := range numbers {
		desc, _ := r.descriptor(uint16(virt))
		ports = append(ports, *desc)
	}

	return ports
}
