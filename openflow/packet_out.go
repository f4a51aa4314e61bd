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

type PacketOut struct {
	Message
	BufferID uint32
	InPort   uint16
	Actions  []Action
	Data     []byte
}

func NewPacketOut(xid uint32) *PacketOut {
	return &PacketOut{
		Message:  NewMessage(OFPT_PACKET_OUT, xid),
		BufferID: OFP_NO_BUFFER,
		InPort:   OFPP_NONE,
	}
}

func (r *PacketOut) MarshalBinary() ([]byte, error) {
	action, err := MarshalActions(r.Actions)
	if err != nil {
		return nil, err
	}

	v := make([]byte, 8)
	binary.BigEndian.PutUint32(v[0:4], r.BufferID)
	binary.BigEndian.PutUint16(v[4:6], r.InPort)
	binary.BigEndian.PutUint16(v[6:8], uint16(len(action)))
	v = append(v, action...)
	// Data rides along only for unbuffered packets.
	if r.BufferID == OFP_NO_BUFFER && len(r.Data) > 0 {
		v = append(v, r.Data...)
	}

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

func (r *PacketOut) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8 {
		return ErrInvalidPacketLength
	}
	r.BufferID = binary.BigEndian.Uint32(payload[0:4])
	r.InPort = binary.BigEndian.Uint16(payload[4:6])
	actionLen := binary.BigEndian.Uint16(payload[6:8])
	if len(payload) < 8+int(actionLen) {
		return ErrInvalidPacketLength
	}

	actions, err := UnmarshalActions(payload[8 : 8+actionLen])
	if err != nil {
		return err
	}
	r.Actions = actions
	r.Data = payload[8+actionLen:]

	return nil
}
