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

type GetConfigRequest struct {
	Message
}

func NewGetConfigRequest(xid uint32) *GetConfigRequest {
	return &GetConfigRequest{
		Message: NewMessage(OFPT_GET_CONFIG_REQUEST, xid),
	}
}

func (r *GetConfigRequest) UnmarshalBinary(data []byte) error {
	return r.Message.UnmarshalBinary(data)
}

type switchConfig struct {
	Message
	Flags         uint16
	MissSendLimit uint16
}

func (r *switchConfig) MarshalBinary() ([]byte, error) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], r.Flags)
	binary.BigEndian.PutUint16(v[2:4], r.MissSendLimit)

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

func (r *switchConfig) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 4 {
		return ErrInvalidPacketLength
	}
	r.Flags = binary.BigEndian.Uint16(payload[0:2])
	r.MissSendLimit = binary.BigEndian.Uint16(payload[2:4])

	return nil
}

type GetConfigReply struct {
	switchConfig
}

func NewGetConfigReply(xid uint32) *GetConfigReply {
	return &GetConfigReply{
		switchConfig: switchConfig{Message: NewMessage(OFPT_GET_CONFIG_REPLY, xid)},
	}
}

type SetConfig struct {
	switchConfig
}

func NewSetConfig(xid uint32) *SetConfig {
	return &SetConfig{
		switchConfig: switchConfig{Message: NewMessage(OFPT_SET_CONFIG, xid)},
	}
}
