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

// Package topology infers the inter-switch wiring of the fabric from
// reflected LLDP probes and answers the path and transit-port queries the
// translators depend on.
package topology

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/superkkt/flowvisor/graph"
	"github.com/superkkt/flowvisor/openflow"
	"github.com/superkkt/flowvisor/protocol"

	"github.com/superkkt/go-logging"
)

var (
	logger = logging.MustGetLogger("topology")
)

const probePrefix = "flowvisor/"

// Hop is one traversal step of a path: a switch entered via InPort and left
// via OutPort.
type Hop struct {
	DPID    uint64
	InPort  uint16
	OutPort uint16
}

type device struct {
	dpid uint64
}

func (r device) ID() string {
	return strconv.FormatUint(r.dpid, 10)
}

type point struct {
	dpid uint64
	port uint16
}

func (r point) ID() string {
	return fmt.Sprintf("%v/%v", r.dpid, r.port)
}

func (r point) Vertex() graph.Vertex {
	return device{dpid: r.dpid}
}

type link struct {
	points [2]point
}

func (r link) ID() string {
	first, second := r.points[0].ID(), r.points[1].ID()
	if first > second {
		first, second = second, first
	}

	return fmt.Sprintf("%v_%v", first, second)
}

func (r link) Points() [2]graph.Point {
	return [2]graph.Point{r.points[0], r.points[1]}
}

func (r link) Weight() float64 {
	return 1
}

// Topology tracks the switches of the fabric and the links among them.
type Topology struct {
	mutex sync.RWMutex
	graph *graph.Graph
	// Transit points keyed by point ID. A port becomes transit once a link
	// is inferred over it and stays so until the port is removed, the link
	// ages out, or its switch leaves.
	transit map[string]point
}

func New() *Topology {
	return &Topology{
		graph:   graph.New(),
		transit: make(map[string]point),
	}
}

// AddDevice registers a new switch vertex.
func (r *Topology) AddDevice(dpid uint64) {
	r.graph.AddVertex(device{dpid: dpid})
	logger.Debugf("added a new device: dpid=%v", dpid)
}

// RemoveDevice drops a switch and every link and transit port attached to it.
func (r *Topology) RemoveDevice(dpid uint64) {
	r.graph.RemoveVertex(device{dpid: dpid})

	r.mutex.Lock()
	defer r.mutex.Unlock()
	prefix := fmt.Sprintf("%v/", dpid)
	for id, p := range r.transit {
		if strings.HasPrefix(id, prefix) || !r.graph.IsEdge(p) {
			delete(r.transit, id)
		}
	}
	logger.Debugf("removed a device: dpid=%v", dpid)
}

// RemovePort drops the link attached to a removed physical port, if any.
func (r *Topology) RemovePort(dpid uint64, port uint16) {
	p := point{dpid: dpid, port: port}
	r.graph.RemoveEdge(p)

	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.transit, p.ID())
}

// IsTransitPort reports whether a physical port carries an inter-switch
// link. Packet-ins from transit ports never reach a controller.
func (r *Topology) IsTransitPort(dpid uint64, port uint16) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.transit[point{dpid: dpid, port: port}.ID()]
	return ok
}

// NewProbe builds the LLDP frame emitted on a physical port to discover the
// link behind it. The chassis and port TLVs name us, so a reflected probe
// can be claimed and decoded by ProcessLLDP.
func NewProbe(dpid uint64, port uint16, mac net.HardwareAddr) ([]byte, error) {
	lldp := &protocol.LLDP{
		ChassisID: protocol.LLDPChassisID{
			SubType: 7, // Locally assigned alpha-numeric string
			Data:    []byte(strconv.FormatUint(dpid, 10)),
		},
		PortID: protocol.LLDPPortID{
			SubType: 5, // Interface Name
			Data:    []byte(fmt.Sprintf("%v%v", probePrefix, port)),
		},
		TTL: 120,
	}
	payload, err := lldp.MarshalBinary()
	if err != nil {
		return nil, err
	}

	if mac == nil {
		mac = net.HardwareAddr([]byte{0, 0, 0, 0, 0, 0})
	}
	ethernet := &protocol.Ethernet{
		SrcMAC: mac,
		// LLDP multicast MAC address
		DstMAC: []byte{0x01, 0x80, 0xC2, 0x00, 0x00, 0x0E},
		// LLDP ethertype
		Type:    0x88CC,
		Payload: payload,
	}

	return ethernet.MarshalBinary()
}

func isOurProbe(p *protocol.LLDP) bool {
	if p.ChassisID.SubType != 7 || p.ChassisID.Data == nil {
		return false
	}
	if p.PortID.SubType != 5 || p.PortID.Data == nil {
		return false
	}
	if len(p.PortID.Data) <= len(probePrefix) || !bytes.HasPrefix(p.PortID.Data, []byte(probePrefix)) {
		return false
	}

	return true
}

func extractProbeOrigin(p *protocol.LLDP) (dpid uint64, port uint16, err error) {
	dpid, err = strconv.ParseUint(string(p.ChassisID.Data), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	num, err := strconv.ParseUint(string(p.PortID.Data[len(probePrefix):]), 10, 16)
	if err != nil {
		return 0, 0, err
	}

	return dpid, uint16(num), nil
}

// ProcessLLDP inspects an LLDP frame received from (dpid, inPort). It returns
// true if the frame was one of our probes and has been consumed; a foreign
// LLDP frame returns false and keeps flowing to the controllers.
func (r *Topology) ProcessLLDP(dpid uint64, inPort uint16, eth *protocol.Ethernet) bool {
	lldp := new(protocol.LLDP)
	if err := lldp.UnmarshalBinary(eth.Payload); err != nil {
		logger.Debugf("ignoring a malformed LLDP frame: %v", err)
		return false
	}
	if !isOurProbe(lldp) {
		return false
	}

	srcDPID, srcPort, err := extractProbeOrigin(lldp)
	if err != nil {
		logger.Debugf("ignoring a probe with an invalid origin: %v", err)
		return true
	}
	// A probe reflected on the emitting port says nothing about wiring.
	if srcDPID == dpid && srcPort == inPort {
		return true
	}

	near := point{dpid: srcDPID, port: srcPort}
	far := point{dpid: dpid, port: inPort}
	added, err := r.graph.AddEdge(link{points: [2]point{near, far}})
	if err != nil {
		logger.Debugf("ignoring a probe among unknown devices: %v", err)
		return true
	}
	if added {
		logger.Infof("discovered a link: %v <-> %v", near.ID(), far.ID())
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.transit[near.ID()] = near
	r.transit[far.ID()] = far

	return true
}

// FindPath resolves the switch traversal that carries traffic entering the
// fabric at (srcDPID, srcPort) out at (dstDPID, dstPort). A path within one
// switch is a single hop. An empty result means the fabric is partitioned.
func (r *Topology) FindPath(srcDPID uint64, srcPort uint16, dstDPID uint64, dstPort uint16) []Hop {
	if srcDPID == dstDPID {
		return []Hop{{DPID: srcDPID, InPort: srcPort, OutPort: dstPort}}
	}

	path := r.graph.FindPath(device{dpid: srcDPID}, device{dpid: dstDPID})
	if len(path) == 0 {
		return nil
	}

	hops := make([]Hop, 0, len(path)+1)
	in := srcPort
	current := srcDPID
	for _, p := range path {
		nearPort, farPoint, ok := splitEdge(p.E, current)
		if !ok {
			return nil
		}
		hops = append(hops, Hop{DPID: current, InPort: in, OutPort: nearPort})
		current = farPoint.dpid
		in = farPoint.port
	}
	hops = append(hops, Hop{DPID: dstDPID, InPort: in, OutPort: dstPort})

	return hops
}

// splitEdge orients an edge as seen from the switch currently being left:
// the local egress port and the remote ingress point.
func splitEdge(e graph.Edge, from uint64) (nearPort uint16, far point, ok bool) {
	points := e.Points()
	a, aok := points[0].(point)
	b, bok := points[1].(point)
	if !aok || !bok {
		return 0, point{}, false
	}

	switch from {
	case a.dpid:
		return a.port, b, true
	case b.dpid:
		return b.port, a, true
	default:
		return 0, point{}, false
	}
}

// FloodPath returns the spanning-tree traversal for a broadcast entering at
// (srcDPID, srcPort): the origin switch floods from the original ingress
// port, and every switch reachable over the tree floods from the transit
// port the broadcast arrives on. With no links known the result is the
// origin hop alone.
func (r *Topology) FloodPath(srcDPID uint64, srcPort uint16) []Hop {
	hops := []Hop{{DPID: srcDPID, InPort: srcPort, OutPort: openflow.OFPP_FLOOD}}

	adjacent := make(map[uint64][]graph.Edge)
	for _, e := range r.graph.EnabledEdges() {
		points := e.Points()
		a, aok := points[0].(point)
		b, bok := points[1].(point)
		if !aok || !bok {
			continue
		}
		adjacent[a.dpid] = append(adjacent[a.dpid], e)
		adjacent[b.dpid] = append(adjacent[b.dpid], e)
	}

	visited := map[uint64]bool{srcDPID: true}
	queue := []uint64{srcDPID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range adjacent[current] {
			_, far, ok := splitEdge(e, current)
			if !ok || visited[far.dpid] {
				continue
			}
			visited[far.dpid] = true
			hops = append(hops, Hop{DPID: far.dpid, InPort: far.port, OutPort: openflow.OFPP_FLOOD})
			queue = append(queue, far.dpid)
		}
	}

	return hops
}

// Cleanup ages out links whose probes stopped reflecting and drops the
// transit marking of the ports they occupied.
func (r *Topology) Cleanup(expiration time.Duration) {
	if !r.graph.RemoveStaleEdges(expiration) {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	for id, p := range r.transit {
		if !r.graph.IsEdge(p) {
			delete(r.transit, id)
		}
	}
}

func (r *Topology) String() string {
	return r.graph.String()
}
