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
	"encoding"
	"errors"
	"net"
	"sync"

	"github.com/superkkt/flowvisor/openflow"
	"github.com/superkkt/flowvisor/openflow/trans"

	"golang.org/x/net/context"
)

var (
	errNotNegotiated = errors.New("invalid command on non-negotiated session")
)

// The synthesized GET_CONFIG_REPLY every controller sees.
const controllerMissSendLen = 3000

// Capabilities and actions of the virtual switch presented to controllers.
const (
	virtualCapabilities = openflow.OFPC_FLOW_STATS | openflow.OFPC_TABLE_STATS |
		openflow.OFPC_PORT_STATS | openflow.OFPC_ARP_MATCH_IP
	virtualActions = 1<<openflow.OFPAT_OUTPUT | 1<<openflow.OFPAT_SET_VLAN_VID |
		1<<openflow.OFPAT_SET_VLAN_PCP | 1<<openflow.OFPAT_STRIP_VLAN |
		1<<openflow.OFPAT_SET_DL_SRC | 1<<openflow.OFPAT_SET_DL_DST |
		1<<openflow.OFPAT_SET_NW_SRC | 1<<openflow.OFPAT_SET_NW_DST |
		1<<openflow.OFPAT_SET_NW_TOS | 1<<openflow.OFPAT_SET_TP_SRC |
		1<<openflow.OFPAT_SET_TP_DST
)

// session is a controller-facing channel: the proxy plays the switch role on
// it. Requests that translate are routed into the engine; requests that a
// switch could never receive are answered with an OpenFlow error, and
// translation failures produce an error frame without killing the session.
type session struct {
	engine      *Engine
	transceiver *trans.Transceiver
	negotiated  bool
	slice       *Slice
	writeMutex  sync.Mutex
	// A cancel function to disconnect this session.
	canceller context.CancelFunc
}

func newSession(engine *Engine, conn net.Conn) *session {
	if engine == nil {
		panic("engine is nil")
	}

	v := &session{engine: engine}
	v.transceiver = trans.NewTransceiver(trans.NewStream(conn), v)

	return v
}

func (r *session) Run(ctx context.Context) {
	sessionCtx, canceller := context.WithCancel(ctx)
	r.canceller = canceller

	// We speak first: the switch side of an OpenFlow channel sends its
	// HELLO on connect.
	if err := r.Write(openflow.NewHello(0)); err != nil {
		logger.Errorf("failed to send HELLO to a controller: %v", err)
	} else if err := r.transceiver.Run(sessionCtx); err != nil {
		logger.Infof("controller session closed: %v", err)
	}

	canceller()
	r.transceiver.Close()
	r.engine.detachSession(r)
}

func (r *session) close() {
	if r.canceller != nil {
		r.canceller()
	}
}

// Write serializes concurrent senders: the session's own replies and the
// engine's notifications share this channel.
func (r *session) Write(msg encoding.BinaryMarshaler) error {
	r.writeMutex.Lock()
	defer r.writeMutex.Unlock()

	return r.transceiver.Write(msg)
}

// sendError answers a request that could not be translated. The offending
// frame rides along so the controller can correlate.
func (r *session) sendError(xid uint32, t openflow.TranslationError, raw []byte) error {
	return r.Write(openflow.NewError(xid, t.Type, t.Code, raw))
}

// translated funnels a translator result: a translation failure becomes an
// error frame and keeps the session alive, anything else propagates.
func (r *session) translated(err error, xid uint32, raw []byte) error {
	if err == nil {
		return nil
	}
	var t openflow.TranslationError
	if errors.As(err, &t) {
		logger.Infof("rejecting an untranslatable request: xid=%v, %v", xid, t)
		return r.sendError(xid, t, raw)
	}

	return err
}

func (r *session) OnHello(w trans.Writer, v *openflow.Hello, raw []byte) error {
	logger.Debugf("HELLO is received from a controller")

	// Ignore duplicated HELLO messages
	if r.negotiated {
		return nil
	}

	r.engine.mutex.Lock()
	slice, ok := r.engine.slices.attach(r)
	r.engine.mutex.Unlock()
	if !ok {
		return errors.New("no slice is free for a new controller")
	}
	r.slice = slice
	r.negotiated = true
	logger.Infof("controller attached to the slice %v (virtual DPID=%v)", slice.ID, slice.DPID)

	return nil
}

func (r *session) OnError(w trans.Writer, v *openflow.Error, raw []byte) error {
	logger.Errorf("ERROR from a controller (type=%v, code=%v)", v.ErrType, v.Code)
	if !r.negotiated {
		return errNotNegotiated
	}

	return nil
}

func (r *session) OnFeaturesRequest(w trans.Writer, v *openflow.FeaturesRequest, raw []byte) error {
	logger.Debug("FEATURES_REQUEST is received")

	if !r.negotiated {
		return errNotNegotiated
	}

	r.engine.mutex.RLock()
	ports := r.engine.ports.descriptors()
	r.engine.mutex.RUnlock()

	reply := openflow.NewFeaturesReply(v.TransactionID())
	reply.DPID = r.slice.DPID
	// One virtual table and no switch-side buffering: the proxy re-buffers
	// every packet itself.
	reply.NumTables = 1
	reply.NumBuffers = 0
	reply.Capabilities = virtualCapabilities
	reply.Actions = virtualActions
	reply.Ports = ports

	return r.Write(reply)
}

func (r *session) OnGetConfigRequest(w trans.Writer, v *openflow.GetConfigRequest, raw []byte) error {
	logger.Debug("GET_CONFIG_REQUEST is received")

	if !r.negotiated {
		return errNotNegotiated
	}

	reply := openflow.NewGetConfigReply(v.TransactionID())
	reply.Flags = openflow.OFPC_FRAG_NORMAL
	reply.MissSendLimit = controllerMissSendLen

	return r.Write(reply)
}

func (r *session) OnSetConfig(w trans.Writer, v *openflow.SetConfig, raw []byte) error {
	logger.Debug("SET_CONFIG is received and ignored")

	if !r.negotiated {
		return errNotNegotiated
	}

	return nil
}

func (r *session) OnBarrierRequest(w trans.Writer, v *openflow.BarrierRequest, raw []byte) error {
	logger.Debug("BARRIER_REQUEST is received")

	if !r.negotiated {
		return errNotNegotiated
	}

	// Replied locally: messages of this session are translated in arrival
	// order, so everything before the barrier has already been emitted.
	// The fabric itself is not barriered.
	return r.Write(openflow.NewBarrierReply(v.TransactionID()))
}

func (r *session) OnStatsRequest(w trans.Writer, v *openflow.StatsRequest, raw []byte) error {
	logger.Debugf("STATS_REQUEST is received (type=%v)", v.StatsType)

	if !r.negotiated {
		return errNotNegotiated
	}

	return r.translated(r.engine.handleStatsRequest(r, v), v.TransactionID(), raw)
}

func (r *session) OnPacketOut(w trans.Writer, v *openflow.PacketOut, raw []byte) error {
	logger.Debugf("PACKET_OUT is received (buffer=%v, in_port=%v)", v.BufferID, v.InPort)

	if !r.negotiated {
		return errNotNegotiated
	}

	return r.translated(r.engine.translatePacketOut(v), v.TransactionID(), raw)
}

func (r *session) OnFlowMod(w trans.Writer, v *openflow.FlowMod, raw []byte) error {
	logger.Debugf("FLOW_MOD is received (command=%v)", v.Command)

	if !r.negotiated {
		return errNotNegotiated
	}

	return r.translated(r.engine.translateFlowMod(v), v.TransactionID(), raw)
}

// A switch never receives the following messages; answering with
// OFPBRC_BAD_TYPE keeps the controller honest without killing its session.

func (r *session) OnFeaturesReply(w trans.Writer, v *openflow.FeaturesReply, raw []byte) error {
	return r.rejectBadType(v.TransactionID(), raw)
}

func (r *session) OnGetConfigReply(w trans.Writer, v *openflow.GetConfigReply, raw []byte) error {
	return r.rejectBadType(v.TransactionID(), raw)
}

func (r *session) OnPacketIn(w trans.Writer, v *openflow.PacketIn, raw []byte) error {
	return r.rejectBadType(v.TransactionID(), raw)
}

func (r *session) OnFlowRemoved(w trans.Writer, v *openflow.FlowRemoved, raw []byte) error {
	return r.rejectBadType(v.TransactionID(), raw)
}

func (r *session) OnPortStatus(w trans.Writer, v *openflow.PortStatus, raw []byte) error {
	return r.rejectBadType(v.TransactionID(), raw)
}

func (r *session) OnStatsReply(w trans.Writer, v *openflow.StatsReply, raw []byte) error {
	return r.rejectBadType(v.TransactionID(), raw)
}

func (r *session) OnBarrierReply(w trans.Writer, v *openflow.BarrierReply, raw []byte) error {
	return r.rejectBadType(v.TransactionID(), raw)
}

func (r *session) OnUnsupported(w trans.Writer, header openflow.Header, raw []byte) error {
	return r.rejectBadType(header.Xid, raw)
}

func (r *session) rejectBadType(xid uint32, raw []byte) error {
	logger.Infof("rejecting a message a switch never receives: xid=%v", xid)
	return r.sendError(xid, openflow.ErrBadType, raw)
}
