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
	"net"
	"sync"
	"time"

	"github.com/superkkt/flowvisor/openflow"
	"github.com/superkkt/flowvisor/openflow/trans"
	"github.com/superkkt/flowvisor/topology"

	"golang.org/x/net/context"
)

const (
	// How often a switch is re-probed for its ports and links.
	explorerInterval = 3 * time.Minute
	// A link whose probes stopped reflecting for this long is dropped.
	linkExpiration = 10 * time.Minute
	// Pushed to every switch so packet-ins carry whole packets.
	switchMissSendLen = 0x1fff
)

// switchSession is a switch-facing channel: the proxy plays the controller
// role on it. Events flowing up from the switch feed the port map, the
// buffer bridge, the stats aggregator, and the packet-in dispatcher.
type switchSession struct {
	engine      *Engine
	transceiver *trans.Transceiver
	negotiated  bool
	registered  bool
	dpid        uint64
	writeMutex  sync.Mutex
	canceller   context.CancelFunc
}

func newSwitchSession(engine *Engine, conn net.Conn) *switchSession {
	if engine == nil {
		panic("engine is nil")
	}

	v := &switchSession{engine: engine}
	v.transceiver = trans.NewTransceiver(trans.NewStream(conn), v)

	return v
}

func (r *switchSession) Run(ctx context.Context) {
	sessionCtx, canceller := context.WithCancel(ctx)
	r.canceller = canceller

	stopExplorer := r.runExplorer(sessionCtx)

	if err := r.Write(openflow.NewHello(0)); err != nil {
		logger.Errorf("failed to send HELLO to a switch: %v", err)
	} else if err := r.transceiver.Run(sessionCtx); err != nil {
		logger.Infof("switch session closed: %v", err)
	}

	stopExplorer()
	canceller()
	r.transceiver.Close()
	if r.registered {
		r.engine.unregisterSwitch(r)
	}
}

// runExplorer periodically refreshes the switch's port inventory, which also
// re-emits the topology probes, and ages out links that stopped reflecting.
func (r *switchSession) runExplorer(ctx context.Context) context.CancelFunc {
	subCtx, canceller := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(explorerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
			}
			if !r.registered {
				continue
			}

			logger.Debugf("exploring the switch %v", r.dpid)
			if err := r.Write(openflow.NewFeaturesRequest(0)); err != nil {
				logger.Errorf("failed to send a FEATURES_REQUEST to %v: %v", r.dpid, err)
			}
			r.engine.topo.Cleanup(linkExpiration)
		}
	}()

	return canceller
}

func (r *switchSession) Write(msg encoding.BinaryMarshaler) error {
	r.writeMutex.Lock()
	defer r.writeMutex.Unlock()

	return r.transceiver.Write(msg)
}

func (r *switchSession) OnHello(w trans.Writer, v *openflow.Hello, raw []byte) error {
	logger.Debug("HELLO is received from a switch")

	if r.negotiated {
		return nil
	}
	r.negotiated = true

	return r.Write(openflow.NewFeaturesRequest(0))
}

func (r *switchSession) OnError(w trans.Writer, v *openflow.Error, raw []byte) error {
	logger.Errorf("ERROR from the switch %v (type=%v, code=%v)", r.dpid, v.ErrType, v.Code)
	return nil
}

func (r *switchSession) OnFeaturesReply(w trans.Writer, v *openflow.FeaturesReply, raw []byte) error {
	logger.Debugf("FEATURES_REPLY is received (DPID=%v, # of ports=%v)", v.DPID, len(v.Ports))

	if !r.negotiated {
		return errNotNegotiated
	}

	// First FEATURES_REPLY completes the handshake; later ones are
	// explorer refreshes.
	if !r.registered {
		r.dpid = v.DPID
		if err := r.engine.registerSwitch(r); err != nil {
			return err
		}
		r.registered = true

		config := openflow.NewSetConfig(0)
		config.Flags = openflow.OFPC_FRAG_NORMAL
		config.MissSendLimit = switchMissSendLen
		if err := r.Write(config); err != nil {
			return err
		}
		logger.Infof("switch joined: dpid=%v", r.dpid)
	}

	for i := range v.Ports {
		port := v.Ports[i]
		if port.Number > openflow.OFPP_MAX {
			continue
		}
		r.engine.addPort(r.dpid, port)
		if err := r.sendProbe(port); err != nil {
			logger.Errorf("failed to probe the port %v/%v: %v", r.dpid, port.Number, err)
		}
	}

	return nil
}

// sendProbe packet-outs an LLDP frame on a physical port so the neighbor
// switch reflects it back to us.
func (r *switchSession) sendProbe(port openflow.PhysicalPort) error {
	frame, err := topology.NewProbe(r.dpid, port.Number, port.MAC)
	if err != nil {
		return err
	}

	out := openflow.NewPacketOut(0)
	out.InPort = openflow.OFPP_NONE
	out.Actions = []openflow.Action{&openflow.ActionOutput{Port: port.Number, MaxLen: 0xffff}}
	out.Data = frame

	return r.Write(out)
}

func (r *switchSession) OnGetConfigReply(w trans.Writer, v *openflow.GetConfigReply, raw []byte) error {
	logger.Debug("GET_CONFIG_REPLY is received and ignored")
	return nil
}

func (r *switchSession) OnPortStatus(w trans.Writer, v *openflow.PortStatus, raw []byte) error {
	if !r.negotiated || !r.registered {
		return errNotNegotiated
	}
	logger.Debugf("PORT_STATUS is received (dpid=%v, port=%v, reason=%v)", r.dpid, v.Port.Number, v.Reason)

	if v.Port.Number > openflow.OFPP_MAX {
		return nil
	}

	switch v.Reason {
	case openflow.OFPPR_ADD, openflow.OFPPR_MODIFY:
		r.engine.addPort(r.dpid, v.Port)
		up := !v.Port.IsPortDown() && !v.Port.IsLinkDown()
		if up {
			if err := r.sendProbe(v.Port); err != nil {
				logger.Errorf("failed to probe the port %v/%v: %v", r.dpid, v.Port.Number, err)
			}
		}
	case openflow.OFPPR_DELETE:
		r.engine.removePort(r.dpid, v.Port.Number)
	}

	return nil
}

func (r *switchSession) OnPacketIn(w trans.Writer, v *openflow.PacketIn, raw []byte) error {
	if !r.negotiated || !r.registered {
		return errNotNegotiated
	}
	logger.Debugf("PACKET_IN is received (dpid=%v, in_port=%v, reason=%v)", r.dpid, v.InPort, v.Reason)

	r.engine.handlePacketIn(r.dpid, v)

	return nil
}

func (r *switchSession) OnFlowRemoved(w trans.Writer, v *openflow.FlowRemoved, raw []byte) error {
	if !r.negotiated || !r.registered {
		return errNotNegotiated
	}
	logger.Debugf("FLOW_REMOVED is received (dpid=%v, cookie=%v)", r.dpid, v.Cookie)

	r.engine.handleFlowRemoved(r.dpid, v)

	return nil
}

func (r *switchSession) OnStatsReply(w trans.Writer, v *openflow.StatsReply, raw []byte) error {
	if !r.negotiated || !r.registered {
		return errNotNegotiated
	}
	logger.Debugf("STATS_REPLY is received (dpid=%v, type=%v, xid=%v)", r.dpid, v.StatsType, v.TransactionID())

	r.engine.handleStatsReply(r.dpid, v)

	return nil
}

func (r *switchSession) OnBarrierReply(w trans.Writer, v *openflow.BarrierReply, raw []byte) error {
	logger.Debugf("BARRIER_REPLY is received from %v", r.dpid)
	return nil
}

// A switch never sends the following messages; they are logged and dropped
// rather than answered, a controller does not error its switches.

func (r *switchSession) OnFeaturesRequest(w trans.Writer, v *openflow.FeaturesRequest, raw []byte) error {
	return r.ignore("FEATURES_REQUEST")
}

func (r *switchSession) OnGetConfigRequest(w trans.Writer, v *openflow.GetConfigRequest, raw []byte) error {
	return r.ignore("GET_CONFIG_REQUEST")
}

func (r *switchSession) OnSetConfig(w trans.Writer, v *openflow.SetConfig, raw []byte) error {
	return r.ignore("SET_CONFIG")
}

func (r *switchSession) OnPacketOut(w trans.Writer, v *openflow.PacketOut, raw []byte) error {
	return r.ignore("PACKET_OUT")
}

func (r *switchSession) OnFlowMod(w trans.Writer, v *openflow.FlowMod, raw []byte) error {
	return r.ignore("FLOW_MOD")
}

func (r *switchSession) OnStatsRequest(w trans.Writer, v *openflow.StatsRequest, raw []byte) error {
	return r.ignore("STATS_REQUEST")
}

func (r *switchSession) OnBarrierRequest(w trans.Writer, v *openflow.BarrierRequest, raw []byte) error {
	return r.ignore("BARRIER_REQUEST")
}

func (r *switchSession) OnUnsupported(w trans.Writer, header openflow.Header, raw []byte) error {
	return r.ignore("an unsupported message")
}

func (r *switchSession) ignore(name string) error {
	logger.Infof("ignoring %v from the switch %v", name, r.dpid)
	return nil
}
