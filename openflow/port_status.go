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

type PortStatus struct {
	Message
	Reason uint8
	Port   PhysicalPort
}

func NewPortStatus(xid uint32) *PortStatus {
	return &PortStatus{
		Message: NewMessage(OFPT_PORT_STATUS, xid),
	}
}

func (r *PortStatus) MarshalBinary() ([]byte, error) {
	port, err := r.Port.MarshalBinary()
	if err != nil {
		return nil, err
	}

	v := make([]byte, 8)
	v[0] = r.Reason
	// v[1:8] is padding
	v = append(v, port...)

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

func (r *PortStatus) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 56 {
		return ErrInvalidPacketLength
	}
	r.Reason = payload[0]
	// payload[1:8] is padding
	return r.Port.UnmarshalBinary(payload[8:56])
}
