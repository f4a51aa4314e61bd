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
	"errors"
)

type FlowMod struct {
	Message
	Match       *Match
	Cookie      uint64
	Command     uint16
	IdleTimeout uint16
	HardTimeout uint16
	Priority    uint16
	BufferID    uint32
	OutPort     uint16
	Flags       uint16
	Actions     []Action
}

func NewFlowMod(xid uint32, command uint16) *FlowMod {
	return &FlowMod{
		Message:  NewMessage(OFPT_FLOW_MOD, xid),
		Match:    NewMatch(),
		Command:  command,
		BufferID: OFP_NO_BUFFER,
		OutPort:  OFPP_NONE,
	}
}

func (r *FlowMod) MarshalBinary() ([]byte, error) {
	if r.Match == nil {
		return nil, errors.New("empty flow match")
	}
	match, err := r.Match.MarshalBinary()
	if err != nil {
		return nil, err
	}
	action, err := MarshalActions(r.Actions)
	if err != nil {
		return nil, err
	}

	v := make([]byte, 24)
	binary.BigEndian.PutUint64(v[0:8], r.Cookie)
	binary.BigEndian.PutUint16(v[8:10], r.Command)
	binary.BigEndian.PutUint16(v[10:12], r.IdleTimeout)
	binary.BigEndian.PutUint16(v[12:14], r.HardTimeout)
	binary.BigEndian.PutUint16(v[14:16], r.Priority)
	binary.BigEndian.PutUint32(v[16:20], r.BufferID)
	binary.BigEndian.PutUint16(v[20:22], r.OutPort)
	binary.BigEndian.PutUint16(v[22:24], r.Flags)

	payload := append(match, v...)
	payload = append(payload, action...)

	r.SetPayload(payload)
	return r.Message.MarshalBinary()
}

func (r *FlowMod) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 64 {
		return ErrInvalidPacketLength
	}
	r.Match = NewMatch()
	if err := r.Match.UnmarshalBinary(payload[0:40]); err != nil {
		return err
	}
	r.Cookie = binary.BigEndian.Uint64(payload[40:48])
	r.Command = binary.BigEndian.Uint16(payload[48:50])
	r.IdleTimeout = binary.BigEndian.Uint16(payload[50:52])
	r.HardTimeout = binary.BigEndian.Uint16(payload[52:54])
	r.Priority = binary.BigEndian.Uint16(payload[54:56])
	r.BufferID = binary.BigEndian.Uint32(payload[56:60])
	r.OutPort = binary.BigEndian.Uint16(payload[60:62])
	r.Flags = binary.BigEndian.Uint16(payload[62:64])

	actions, err := UnmarshalActions(payload[64:])
	if err != nil {
		return err
	}
	r.Actions = actions

	return nil
}
