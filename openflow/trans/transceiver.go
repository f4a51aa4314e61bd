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

package trans

import (
	"encoding"
	"encoding/binary"
	"time"

	"github.com/superkkt/flowvisor/openflow"

	"github.com/pkg/errors"
	"github.com/superkkt/go-logging"
	"golang.org/x/net/context"
)

var (
	logger = logging.MustGetLogger("trans")
)

const (
	// Allowed idle time before we send an echo request to the peer (in seconds)
	maxIdleTime = 30
	// I/O timeouts in second (These timeouts should be less than maxIdleTime)
	readTimeout  = 1
	writeTimeout = readTimeout * 2
)

type Writer interface {
	Write(msg encoding.BinaryMarshaler) error
}

type WriteCloser interface {
	Writer
	Close() error
}

// Handler consumes the messages a Transceiver decodes. The proxy terminates
// both halves of the control channel, so the handler set covers the whole
// OpenFlow 1.0 message catalogue; each side implements the messages it
// expects and routes the rest through OnUnsupported. raw is the undecoded
// frame, which error replies echo back to the sender.
type Handler interface {
	OnHello(Writer, *openflow.Hello, []byte) error
	OnError(Writer, *openflow.Error, []byte) error
	OnFeaturesRequest(Writer, *openflow.FeaturesRequest, []byte) error
	OnFeaturesReply(Writer, *openflow.FeaturesReply, []byte) error
	OnGetConfigRequest(Writer, *openflow.GetConfigRequest, []byte) error
	OnGetConfigReply(Writer, *openflow.GetConfigReply, []byte) error
	OnSetConfig(Writer, *openflow.SetConfig, []byte) error
	OnPacketIn(Writer, *openflow.PacketIn, []byte) error
	OnFlowRemoved(Writer, *openflow.FlowRemoved, []byte) error
	OnPortStatus(Writer, *openflow.PortStatus, []byte) error
	OnPacketOut(Writer, *openflow.PacketOut, []byte) error
	OnFlowMod(Writer, *openflow.FlowMod, []byte) error
	OnStatsRequest(Writer, *openflow.StatsRequest, []byte) error
	OnStatsReply(Writer, *openflow.StatsReply, []byte) error
	OnBarrierRequest(Writer, *openflow.BarrierRequest, []byte) error
	OnBarrierReply(Writer, *openflow.BarrierReply, []byte) error
	OnUnsupported(Writer, openflow.Header, []byte) error
}

type Transceiver struct {
	stream      *Stream
	observer    Handler
	negotiated  bool
	timestamp   time.Time     // Last activated time
	latency     time.Duration // Network latency measured by echo request and reply
	pingCounter uint
	closed      bool
}

func NewTransceiver(stream *Stream, handler Handler) *Transceiver {
	if stream == nil {
		panic("stream is nil")
	}
	if handler == nil {
		panic("handler is nil")
	}

	return &Transceiver{
		stream:   stream,
		observer: handler,
	}
}

func (r *Transceiver) Negotiated() bool {
	return r.negotiated
}

func (r *Transceiver) Latency() time.Duration {
	return r.latency
}

func (r *Transceiver) negotiate(packet []byte) error {
	// The first message should be HELLO
	if packet[1] != openflow.OFPT_HELLO {
		return errors.New("negotiation error: missing HELLO message")
	}
	// We only speak 1.0. A peer advertising a higher version falls back to
	// the lowest common version, which is ours.
	if packet[0] < openflow.Version {
		return openflow.ErrUnsupportedVersion
	}
	r.negotiated = true

	return nil
}

func (r *Transceiver) updateTimestamp() {
	r.timestamp = time.Now()
}

func (r *Transceiver) ping() error {
	// Max idle time is exceeded?
	if time.Now().Before(r.timestamp.Add(maxIdleTime * time.Second)) {
		return nil
	}
	return r.sendEchoRequest()
}

func isTimeout(err error) bool {
	type Timeout interface {
		Timeout() bool
	}

	if v, ok := err.(Timeout); ok {
		return v.Timeout()
	}

	return false
}

func (r *Transceiver) sendEchoRequest() error {
	if r.pingCounter > 2 {
		return errors.New("peer does not respond to our echo request")
	}

	echo := openflow.NewEchoRequest(0)
	// We use current timestamp to check network latency between us and the peer.
	timestamp, err := time.Now().GobEncode()
	if err != nil {
		return err
	}
	echo.SetData(timestamp)
	if err := r.Write(echo); err != nil {
		return errors.Wrap(err, "failed to send ECHO_REQUEST message")
	}
	r.pingCounter++

	return nil
}

func (r *Transceiver) Run(ctx context.Context) error {
	r.stream.SetReadTimeout(readTimeout * time.Second)
	r.stream.SetWriteTimeout(writeTimeout * time.Second)

	// Read initial packet
	packet, err := r.readPacket()
	if err != nil {
		return err
	}

	if err := r.negotiate(packet); err != nil {
		return err
	}

	// Infinite loop
	for {
		if err := r.dispatch(packet); err != nil {
			if !isTemporaryErr(err) {
				return err
			}
			logger.Warningf("ignoring a temporary error: %v", err)
		}
		r.updateTimestamp()

	retry:
		// Check shutdown signal
		select {
		case <-ctx.Done():
			return errors.New("closed by the context done signal")
		default:
		}

		// Read next packet
		packet, err = r.readPacket()
		if err == nil {
			// Go to dispatch the next packet
			continue
		}
		// Ignore timeout error
		if !isTimeout(err) {
			return err
		}
		if err := r.ping(); err != nil {
			return err
		}
		// Read again
		goto retry
	}
}

func isTemporaryErr(err error) bool {
	e, ok := errors.Cause(err).(interface {
		Temporary() bool
	})
	return ok && e.Temporary()
}

func (r *Transceiver) readPacket() ([]byte, error) {
	header, err := r.stream.Peek(8) // peek ofp_header
	if err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint16(header[2:4])
	if length < 8 {
		return nil, openflow.ErrInvalidPacketLength
	}
	packet, err := r.stream.ReadN(int(length))
	if err != nil {
		return nil, err
	}

	return packet, nil
}

func (r *Transceiver) Write(msg encoding.BinaryMarshaler) error {
	packet, err := msg.MarshalBinary()
	if err != nil {
		return err
	}

	if _, err := r.stream.Write(packet); err != nil {
		return err
	}

	return nil
}

func (r *Transceiver) dispatch(packet []byte) error {
	// The HELLO exchange is version-tolerant; everything after it is not.
	if packet[0] != openflow.Version && packet[1] != openflow.OFPT_HELLO {
		return openflow.ErrUnsupportedVersion
	}

	switch packet[1] {
	case openflow.OFPT_HELLO:
		msg := openflow.NewHello(0)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnHello(r, msg, packet)
	case openflow.OFPT_ERROR:
		msg := new(openflow.Error)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnError(r, msg, packet)
	case openflow.OFPT_ECHO_REQUEST:
		return r.handleEchoRequest(packet)
	case openflow.OFPT_ECHO_REPLY:
		return r.handleEchoReply(packet)
	case openflow.OFPT_FEATURES_REQUEST:
		msg := new(openflow.FeaturesRequest)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnFeaturesRequest(r, msg, packet)
	case openflow.OFPT_FEATURES_REPLY:
		msg := new(openflow.FeaturesReply)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnFeaturesReply(r, msg, packet)
	case openflow.OFPT_GET_CONFIG_REQUEST:
		msg := new(openflow.GetConfigRequest)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnGetConfigRequest(r, msg, packet)
	case openflow.OFPT_GET_CONFIG_REPLY:
		msg := new(openflow.GetConfigReply)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnGetConfigReply(r, msg, packet)
	case openflow.OFPT_SET_CONFIG:
		msg := new(openflow.SetConfig)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnSetConfig(r, msg, packet)
	case openflow.OFPT_PACKET_IN:
		msg := new(openflow.PacketIn)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnPacketIn(r, msg, packet)
	case openflow.OFPT_FLOW_REMOVED:
		msg := new(openflow.FlowRemoved)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnFlowRemoved(r, msg, packet)
	case openflow.OFPT_PORT_STATUS:
		msg := new(openflow.PortStatus)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnPortStatus(r, msg, packet)
	case openflow.OFPT_PACKET_OUT:
		msg := new(openflow.PacketOut)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnPacketOut(r, msg, packet)
	case openflow.OFPT_FLOW_MOD:
		msg := new(openflow.FlowMod)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnFlowMod(r, msg, packet)
	case openflow.OFPT_STATS_REQUEST:
		msg := new(openflow.StatsRequest)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnStatsRequest(r, msg, packet)
	case openflow.OFPT_STATS_REPLY:
		msg := new(openflow.StatsReply)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnStatsReply(r, msg, packet)
	case openflow.OFPT_BARRIER_REQUEST:
		msg := new(openflow.BarrierRequest)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnBarrierRequest(r, msg, packet)
	case openflow.OFPT_BARRIER_REPLY:
		msg := new(openflow.BarrierReply)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnBarrierReply(r, msg, packet)
	default:
		header := openflow.Header{}
		if err := header.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnUnsupported(r, header, packet)
	}
}

func (r *Transceiver) handleEchoRequest(packet []byte) error {
	msg := new(openflow.EchoRequest)
	if err := msg.UnmarshalBinary(packet); err != nil {
		return err
	}

	// Send echo reply
	reply := openflow.NewEchoReply(msg.TransactionID())
	// Copy data from the incoming echo request message
	reply.SetData(msg.Data())
	if err := r.Write(reply); err != nil {
		return errors.Wrap(err, "failed to send ECHO_REPLY message")
	}

	return nil
}

func (r *Transceiver) handleEchoReply(packet []byte) error {
	msg := new(openflow.EchoReply)
	if err := msg.UnmarshalBinary(packet); err != nil {
		return err
	}

	data := msg.Data()
	if data != nil && len(data) == 8 {
		timestamp := time.Time{}
		if err := timestamp.GobDecode(data); err == nil {
			// Update network latency
			r.latency = time.Now().Sub(timestamp)
		}
	}
	// Reset ping counter to zero
	r.pingCounter = 0

	return nil
}

func (r *Transceiver) Close() error {
	if r.closed {
		return nil
	}

	if err := r.stream.Close(); err != nil {
		return err
	}
	r.closed = true

	return nil
}
