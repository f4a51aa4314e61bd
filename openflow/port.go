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
	"net"
	"strings"
)

// PhysicalPort is the 48-byte ofp_phy_port descriptor.
type PhysicalPort struct {
	Number     uint16
	MAC        net.HardwareAddr
	Name       string
	Config     uint32
	State      uint32
	Current    uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32
}

func (r *PhysicalPort) IsPortDown() bool {
	return r.Config&OFPPC_PORT_DOWN != 0
}

func (r *PhysicalPort) IsLinkDown() bool {
	return r.State&OFPPS_LINK_DOWN != 0
}

func (r *PhysicalPort) MarshalBinary() ([]byte, error) {
	mac := r.MAC
	if mac == nil {
		mac = net.HardwareAddr([]byte{0, 0, 0, 0, 0, 0})
	}
	if len(mac) < 6 {
		return nil, ErrInvalidMACAddress
	}

	v := make([]byte, 48)
	binary.BigEndian.PutUint16(v[0:2], r.Number)
	copy(v[2:8], mac)
	copy(v[8:24], []byte(r.Name))
	binary.BigEndian.PutUint32(v[24:28], r.Config)
	binary.BigEndian.PutUint32(v[28:32], r.State)
	binary.BigEndian.PutUint32(v[32:36], r.Current)
	binary.BigEndian.PutUint32(v[36:40], r.Advertised)
	binary.BigEndian.PutUint32(v[40:44], r.Supported)
	binary.BigEndian.PutUint32(v[44:48], r.Peer)

	return v, nil
}

func (r *PhysicalPort) UnmarshalBinary(data []byte) error {
	if len(data) < 48 {
		return ErrInvalidPacketLength
	}

	r.Number = binary.BigEndian.Uint16(data[0:2])
	r.MAC = make(net.HardwareAddr, 6)
	copy(r.MAC, data[2:8])
	r.Name = strings.TrimRight(string(data[8:24]), "\x00")
	r.Config = binary.BigEndian.Uint32(data[24:28])
	r.State = binary.BigEndian.Uint32(data[28:32])
	r.Current = binary.BigEndian.Uint32(data[32:36])
	r.Advertised = binary.BigEndian.Uint32(data[36:40])
	r.Supported = binary.BigEndian.Uint32(data[40:44])
	r.Peer = binary.BigEndian.Uint32(data[44:48])

	return nil
}

// Clone returns a copy whose Number can be rewritten to a virtual port
// without touching the physical descriptor.
func (r *PhysicalPort) Clone() *PhysicalPort {
	v := *r
	v.MAC = make(net.HardwareAddr, len(r.MAC))
	copy(v.MAC, r.MAC)

	return &v
}
