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

// Package network implements the virtualization engine: it terminates
// controller sessions on one side and switch sessions on the other, and
// translates every OpenFlow message crossing between the two port
// namespaces.
package network

import (
	"bytes"
	"encoding"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/superkkt/flowvisor/openflow"
	"github.com/superkkt/flowvisor/topology"

	"github.com/superkkt/go-logging"
	"golang.org/x/net/context"
)

var (
	logger = logging.MustGetLogger("network")
)

const (
	// Reconnect backoff bounds for outbound switch connections.
	minRedialInterval = 2 * time.Second
	maxRedialInterval = 1 * time.Minute
)

// Engine owns the shared translation state: the port namespace, the buffer
// bridge, the xid tracker, the slice registry, and the table of live switch
// sessions. One mutex serializes every mutation; the per-session goroutines
// funnel through it.
type Engine struct {
	mutex    sync.RWMutex
	topo     *topology.Topology
	ports    *portMap
	buffers  *bufferBridge
	xids     *xidTracker
	slices   *sliceRegistry
	switches map[uint64]*switchSession

	ctx context.Context
}

func NewEngine() *Engine {
	return &Engine{
		topo:     topology.New(),
		ports:    newPortMap(),
		buffers:  newBufferBridge(),
		xids:     newXidTracker(),
		slices:   newSliceRegistry(),
		switches: make(map[uint64]*switchSession),
	}
}

// Topology exposes the resolver for status dumps.
func (r *Engine) Topology() *topology.Topology {
	return r.topo
}

// Run drives the xid sweeper until the context is cancelled. It has to be
// started before any session is attached.
func (r *Engine) Run(ctx context.Context) {
	r.ctx = ctx

	ticker := time.NewTicker(xidSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("terminating the engine")
			return
		case <-ticker.C:
			r.sweepXids()
		}
	}
}

func (r *Engine) sweepXids() {
	r.mutex.Lock()
	expired := r.xids.sweep()
	r.mutex.Unlock()

	for _, record := range expired {
		logger.Warningf("flushing a timed-out stats aggregation: type=%v, xid=%v", record.statsType, record.srcXid)
		r.handleXid(record)
	}
}

// AddSlice registers a new slice and, when a switch endpoint is given, dials
// it in the background.
func (r *Engine) AddSlice(dpid uint64, filter *openflow.Match, switchAddr string) *Slice {
	if filter == nil {
		// Wildcard-all: the slice sees every flow.
		filter = openflow.NewMatch()
	}

	r.mutex.Lock()
	slice := r.slices.add(dpid, filter)
	r.mutex.Unlock()
	logger.Infof("added a new slice: id=%v, dpid=%v", slice.ID, slice.DPID)

	if len(switchAddr) > 0 {
		go r.dialSwitch(switchAddr)
	}

	return slice
}

// RemoveSlice drops a slice and disconnects its controller, if any.
func (r *Engine) RemoveSlice(id uint64) bool {
	r.mutex.Lock()
	slice, ok := r.slices.remove(id)
	r.mutex.Unlock()
	if !ok {
		return false
	}

	if slice.session != nil {
		slice.session.close()
	}
	logger.Infof("removed the slice whose id is %v", id)

	return true
}

// Slices lists the registry for the management API.
func (r *Engine) Slices() []*Slice {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.slices.all()
}

// Switches lists the DPIDs of the live switch sessions.
func (r *Engine) Switches() []uint64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v := make([]uint64, 0, len(r.switches))
	for dpid := range r.switches {
		v = append(v, dpid)
	}

	return v
}

// AddControllerConnection attaches an accepted controller connection as a
// new controller-facing session.
func (r *Engine) AddControllerConnection(ctx context.Context, c net.Conn) {
	s := newSession(r, c)
	go s.Run(ctx)
}

// DialSwitch connects to a switch endpoint in the background, reconnecting
// with backoff for as long as the engine lives.
func (r *Engine) DialSwitch(address string) {
	go r.dialSwitch(address)
}

func (r *Engine) dialSwitch(address string) {
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := minRedialInterval
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := net.DialTimeout("tcp", address, 10*time.Second)
		if err != nil {
			logger.Errorf("failed to connect to a switch at %v: %v", address, err)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxRedialInterval {
				backoff = maxRedialInterval
			}
			continue
		}
		backoff = minRedialInterval

		logger.Infof("connected to a switch at %v", address)
		s := newSwitchSession(r, conn)
		// Run returns when the session dies; we dial again.
		s.Run(ctx)
		logger.Infof("disconnected from the switch at %v", address)
	}
}

// registerSwitch records a switch session that completed its handshake.
// A duplicate DPID rejects the newcomer.
func (r *Engine) registerSwitch(s *switchSession) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.switches[s.dpid]; ok {
		return fmt.Errorf("duplicated switch DPID: %v", s.dpid)
	}
	r.switches[s.dpid] = s
	r.topo.AddDevice(s.dpid)

	return nil
}

// unregisterSwitch reclaims everything owned by a vanished switch: its
// virtual ports, its cached buffers, and its memberships in pending stats
// aggregations. Aggregations that only waited on this switch complete now.
func (r *Engine) unregisterSwitch(s *switchSession) {
	r.mutex.Lock()
	if r.switches[s.dpid] != s {
		// The handshake never finished, or a duplicate was rejected.
		r.mutex.Unlock()
		return
	}
	delete(r.switches, s.dpid)
	r.topo.RemoveDevice(s.dpid)
	r.buffers.removeDPID(s.dpid)
	gone := make([]*openflow.PhysicalPort, 0)
	for virt := range r.ports.virt {
		if dpid, _, _ := r.ports.physOfVirt(virt); dpid != s.dpid {
			continue
		}
		if desc, ok := r.ports.descriptor(virt); ok {
			gone = append(gone, desc)
		}
	}
	r.ports.removeDPID(s.dpid)
	completed := r.xids.removeDPID(s.dpid)
	attached := r.slices.attached()
	r.mutex.Unlock()

	for _, desc := range gone {
		notifyPortStatus(attached, openflow.OFPPR_DELETE, desc)
	}
	for _, record := range completed {
		r.handleXid(record)
	}
	logger.Infof("unregistered the switch whose DPID is %v", s.dpid)
}

// addPort maps a newly reported physical port into the virtual namespace and
// announces it to every attached controller.
func (r *Engine) addPort(dpid uint64, desc openflow.PhysicalPort) {
	r.mutex.Lock()
	virt := r.ports.add(dpid, desc.Number, desc)
	shown, _ := r.ports.descriptor(virt)
	attached := r.slices.attached()
	r.mutex.Unlock()

	logger.Debugf("mapped a physical port: %v/%v -> %v", dpid, desc.Number, virt)
	notifyPortStatus(attached, openflow.OFPPR_ADD, shown)
}

// removePort drops a physical port from the namespace and announces the
// removal.
func (r *Engine) removePort(dpid uint64, port uint16) {
	r.mutex.Lock()
	var shown *openflow.PhysicalPort
	if virt, ok := r.ports.virtOfPhys(dpid, port); ok {
		shown, _ = r.ports.descriptor(virt)
	}
	virt, ok := r.ports.remove(dpid, port)
	r.topo.RemovePort(dpid, port)
	attached := r.slices.attached()
	r.mutex.Unlock()
	if !ok {
		return
	}
	if shown == nil {
		shown = &openflow.PhysicalPort{Number: virt}
	}

	logger.Debugf("unmapped a physical port: %v/%v -> %v", dpid, port, virt)
	notifyPortStatus(attached, openflow.OFPPR_DELETE, shown)
}

func notifyPortStatus(slices []*Slice, reason uint8, desc *openflow.PhysicalPort) {
	for _, slice := range slices {
		status := openflow.NewPortStatus(0)
		status.Reason = reason
		status.Port = *desc
		if err := slice.session.Write(status); err != nil {
			logger.Errorf("failed to send PORT_STATUS to the slice %v: %v", slice.ID, err)
		}
	}
}

// detachSession reclaims the engine-wide state of a closed controller
// session: its slice bindings and the pending aggregations it sourced.
func (r *Engine) detachSession(s *session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.slices.detach(s)
	r.xids.removeSession(s)
}

// sendToSwitch routes a translated message to the switch session owning a
// DPID.
func (r *Engine) sendToSwitch(dpid uint64, msg encoding.BinaryMarshaler) error {
	r.mutex.RLock()
	s, ok := r.switches[dpid]
	r.mutex.RUnlock()
	if !ok {
		return fmt.Errorf("unknown switch DPID: %v", dpid)
	}

	return s.Write(msg)
}

func (r *Engine) String() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var buf bytes.Buffer
	for dpid := range r.switches {
		buf.WriteString(fmt.Sprintf("Switch: dpid=%v\n", dpid))
	}
	for _, slice := range r.slices.all() {
		attached := slice.session != nil
		buf.WriteString(fmt.Sprintf("Slice: id=%v, dpid=%v, attached=%v\n", slice.ID, slice.DPID, attached))
	}
	buf.WriteString(r.topo.String())

	return buf.String()
}
