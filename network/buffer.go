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

	"github.com/superkkt/flowvisor/openflow"

	lru "github.com/hashicorp/golang-lru"
)

// bufferBridge rewrites per-switch buffer identifiers into one flat virtual
// namespace. The payload of every buffered packet-in is retained here, so a
// downstream packet-out or flow-mod always carries the data inline and never
// references a switch-local buffer. The LRU bound mirrors the limited buffer
// memory of a hardware switch: the oldest unconsumed payloads fall out first.
type bufferBridge struct {
	next  uint32
	cache *lru.Cache
}

type bufferEntry struct {
	dpid uint64
	data []byte
}

func newBufferBridge() *bufferBridge {
	c, err := lru.New(8192)
	if err != nil {
		panic(fmt.Sprintf("failed to init a LRU buffer cache: %v", err))
	}

	return &bufferBridge{
		cache: c,
	}
}

// allocate stores a buffered payload and returns its virtual buffer id.
func (r *bufferBridge) allocate(dpid uint64, data []byte) uint32 {
	id := r.next
	r.next++
	// Never hand out the no-buffer sentinel.
	if r.next == openflow.OFP_NO_BUFFER {
		r.next = 0
	}

	payload := make([]byte, len(data))
	copy(payload, data)
	r.cache.Add(id, bufferEntry{dpid: dpid, data: payload})

	return id
}

// consume resolves a virtual buffer id and drops it: a buffer feeds at most
// one downstream emission.
func (r *bufferBridge) consume(id uint32) (dpid uint64, data []byte, err error) {
	v, ok := r.cache.Get(id)
	if !ok {
		return 0, nil, openflow.ErrBufferUnknown
	}
	r.cache.Remove(id)
	entry := v.(bufferEntry)

	return entry.dpid, entry.data, nil
}

// removeDPID drops every buffer that originated at a vanished switch.
func (r *bufferBridge) removeDPID(dpid uint64) {
	for _, key := range r.cache.Keys() {
		v, ok := r.cache.Peek(key)
		if !ok {
			continue
		}
		if v.(bufferEntry).dpid == dpid {
			r.cache.Remove(key)
		}
	}
}

func (r *bufferBridge) contains(id uint32) bool {
	return r.cache.Contains(id)
}
