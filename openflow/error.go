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

type Error struct {
	Message
	ErrType uint16
	Code    uint16
	// Data carries the offending request; MarshalBinary clips it to its
	// first 64 bytes.
	Data []byte
}

func NewError(xid uint32, errType, code uint16, data []byte) *Error {
	return &Error{
		Message: NewMessage(OFPT_ERROR, xid),
		ErrType: errType,
		Code:    code,
		Data:    data,
	}
}

func (r *Error) MarshalBinary() ([]byte, error) {
	data := r.Data
	if len(data) > 64 {
		data = data[:64]
	}

	v := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(v[0:2], r.ErrType)
	binary.BigEndian.PutUint16(v[2:4], r.Code)
	copy(v[4:], data)

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

func (r *Error) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 4 {
		return ErrInvalidPacketLength
	}
	r.ErrType = binary.BigEndian.Uint16(payload[0:2])
	r.Code = binary.BigEndian.Uint16(payload[2:4])
	r.Data = payload[4:]

	return nil
}
