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

package openflow

import (
	"encoding/binary"
)

type FlowRemoved struct {
	Message
	Match        *Match
	Cookie       uint64
	Priority     uint16
	Reason       uint8
	DurationSec  uint32
	DurationNsec uint32
	IdleTimeout  uint16
	PacketCount  uint64
	ByteCount    uint64
}

func NewFlowRemoved(xid uint32) *FlowRemoved {
	return &FlowRemoved{
		Message: NewMessage(OFPT_FLOW_REMOVED, xid),
		Match:   NewMatch(),
	}
}

func (r *FlowRemoved) MarshalBinary() ([]byte, error) {
	match, err := r.Match.MarshalBinary()
	if err != nil {
		return nil, err
	}

	v := make([]byte, 40)
	binary.BigEndian.PutUint64(v[0:8], r.Cookie)
	binary.BigEndian.PutUint16(v[8:10], r.Priority)
	v[10] = r.Reason
	// v[11] is padding
	binary.BigEndian.PutUint32(v[12:16], r.DurationSec)
	binary.BigEndian.PutUint32(v[16:20], r.DurationNsec)
	binary.BigEndian.PutUint16(v[20:22], r.IdleTimeout)
	// v[22:24] is padding
	binary.BigEndian.PutUint64(v[24:32], r.PacketCount)
	binary.BigEndian.PutUint64(v[32:40], r.ByteCount)

	payload := append(match, v...)

	r.SetPayload(payload)
	return r.Message.MarshalBinary()
}

func (r *FlowRemoved) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 80 {
		return ErrInvalidPacketLength
	}
	r.Match = NewMatch()
	if err := r.Match.UnmarshalBinary(payload[0:40]); err != nil {
		return err
	}
	r.Cookie = binary.BigEndian.Uint64(payload[40:48])
	r.Priority = binary.BigEndian.Uint16(payload[48:50])
	r.Reason = payload[50]
	// payload[51] is padding
	r.DurationSec = binary.BigEndian.Uint32(payload[52:56])
	r.DurationNsec = binary.BigEndian.Uint32(payload[56:60])
	r.IdleTimeout = binary.BigEndian.Uint16(payload[60:62])
	// payload[62:64] is padding
	r.PacketCount = binary.BigEndian.Uint64(payload[64:72])
	r.ByteCount = binary.BigEndian.Uint64(payload[72:80])

	return nil
}
