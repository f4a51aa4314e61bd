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

type PacketIn struct {
	Message
	BufferID uint32
	// TotalLength is the full length of the captured frame, which can be
	// larger than len(Data) when the switch truncated the capture.
	TotalLength uint16
	InPort      uint16
	Reason      uint8
	Data        []byte
}

func NewPacketIn(xid uint32) *PacketIn {
	return &PacketIn{
		Message:  NewMessage(OFPT_PACKET_IN, xid),
		BufferID: OFP_NO_BUFFER,
	}
}

func (r *PacketIn) MarshalBinary() ([]byte, error) {
	v := make([]byte, 10+len(r.Data))
	binary.BigEndian.PutUint32(v[0:4], r.BufferID)
	binary.BigEndian.PutUint16(v[4:6], r.TotalLength)
	binary.BigEndian.PutUint16(v[6:8], r.InPort)
	v[8] = r.Reason
	// v[9] is padding
	copy(v[10:], r.Data)

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

func (r *PacketIn) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 10 {
		return ErrInvalidPacketLength
	}
	r.BufferID = binary.BigEndian.Uint32(payload[0:4])
	r.TotalLength = binary.BigEndian.Uint16(payload[4:6])
	r.InPort = binary.BigEndian.Uint16(payload[6:8])
	r.Reason = payload[8]
	// payload[9] is padding
	r.Data = payload[10:]

	return nil
}
