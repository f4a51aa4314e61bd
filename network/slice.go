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

// Slice is one tenant of the fabric: the virtual switch identity presented
// to its controller, the flow-space filter deciding which traffic it sees,
// and the controller session currently attached to it. Slices are unordered
// and duplicates are kept as-is; a packet-in is delivered to every slice
// whose filter matches it.
type Slice struct {
	ID uint64
	// The virtual datapath ID this slice's controller sees. Assigned by
	// the operator, independent of any physical DPID.
	DPID   uint64
	Filter *openflow.Match
	// The attached controller session, nil while no controller is
	// connected.
	session *session
}

// sliceRegistry holds the slice set. The engine's mutex serializes access.
type sliceRegistry struct {
	nextID uint64
	slices []*Slice
}

func newSliceRegistry() *sliceRegistry {
	return &sliceRegistry{
		nextID: 1,
	}
}

func (r *sliceRegistry) add(dpid uint64, filter *openflow.Match) *Slice {
	s := &Slice{
		ID:     r.nextID,
		DPID:   dpid,
		Filter: filter,
	}
	r.nextID++
	r.slices = append(r.slices, s)

	return s
}

func (r *sliceRegistry) remove(id uint64) (removed *Slice, ok bool) {
	for i, s := range r.slices {
		if s.ID != id {
			continue
		}
		r.slices = append(r.slices[:i], r.slices[i+1:]...)
		return s, true
	}

	return nil, false
}

func (r *sliceRegistry) all() []*Slice {
	v := make([]*Slice, len(r.slices))
	copy(v, r.slices)

	return v
}

// attach binds a freshly connected controller session to the first slice
// without one, in registration order.
func (r *sliceRegistry) attach(s *session) (attached *Slice, ok bool) {
	for _, slice := range r.slices {
		if slice.session != nil {
			continue
		}
		slice.session = s
		return slice, true
	}

	return nil, false
}

// detach unbinds a closed controller session from its slice.
func (r *sliceRegistry) detach(s *session) {
	for _, slice := range r.slices {
		if slice.session == s {
			slice.session = nil
		}
	}
}

// matching returns every slice whose filter covers the given flow and that
// has a live controller attached.
func (r *sliceRegistry) matching(flow *openflow.Match) []*Slice {
	v := make([]*Slice, 0)
	for _, slice := range r.slices {
		if slice.session == nil {
			continue
		}
		if slice.Filter.Covers(flow) {
			v = append(v, slice)
		}
	}

	return v
}

// attached returns every slice with a live controller session.
func (r *sliceRegistry) attached() []*Slice {
	v := make([]*Slice, 0)
	for _, slice := range r.slices {
		if slice.session != nil {
			v = append(v, slice)
		}
	}

	return v
}
