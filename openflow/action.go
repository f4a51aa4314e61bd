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
)

// Action is one entry of an OpenFlow 1.0 action list. The translators walk
// the list in order and rewrite Output entries, so the codec has to preserve
// both the entries and their order exactly as the controller sent them.
type Action interface {
	ActionType() uint16
	MarshalBinary() ([]byte, error)
}

type ActionOutput struct {
	Port   uint16
	MaxLen uint16
}

func (r *ActionOutput) ActionType() uint16 {
	return OFPAT_OUTPUT
}

func (r *ActionOutput) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], OFPAT_OUTPUT)
	binary.BigEndian.PutUint16(v[2:4], 8)
	binary.BigEndian.PutUint16(v[4:6], r.Port)
	binary.BigEndian.PutUint16(v[6:8], r.MaxLen)

	return v, nil
}

type ActionSetVLANID struct {
	VLANID uint16
}

func (r *ActionSetVLANID) ActionType() uint16 {
	return OFPAT_SET_VLAN_VID
}

func (r *ActionSetVLANID) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], OFPAT_SET_VLAN_VID)
	binary.BigEndian.PutUint16(v[2:4], 8)
	binary.BigEndian.PutUint16(v[4:6], r.VLANID)
	// v[6:8] is padding

	return v, nil
}

type ActionSetVLANPriority struct {
	Priority uint8
}

func (r *ActionSetVLANPriority) ActionType() uint16 {
	return OFPAT_SET_VLAN_PCP
}

func (r *ActionSetVLANPriority) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], OFPAT_SET_VLAN_PCP)
	binary.BigEndian.PutUint16(v[2:4], 8)
	v[4] = r.Priority
	// v[5:8] is padding

	return v, nil
}

type ActionStripVLAN struct{}

func (r *ActionStripVLAN) ActionType() uint16 {
	return OFPAT_STRIP_VLAN
}

func (r *ActionStripVLAN) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], OFPAT_STRIP_VLAN)
	binary.BigEndian.PutUint16(v[2:4], 8)

	return v, nil
}

// ActionSetMAC covers both OFPAT_SET_DL_SRC and OFPAT_SET_DL_DST.
type ActionSetMAC struct {
	Type uint16
	MAC  net.HardwareAddr
}

func (r *ActionSetMAC) ActionType() uint16 {
	return r.Type
}

func (r *ActionSetMAC) MarshalBinary() ([]byte, error) {
	if r.MAC == nil || len(r.MAC) < 6 {
		return nil, ErrInvalidMACAddress
	}

	v := make([]byte, 16)
	binary.BigEndian.PutUint16(v[0:2], r.Type)
	binary.BigEndian.PutUint16(v[2:4], 16)
	copy(v[4:10], r.MAC)
	// v[10:16] is padding

	return v, nil
}

// ActionSetIP covers both OFPAT_SET_NW_SRC and OFPAT_SET_NW_DST.
type ActionSetIP struct {
	Type uint16
	IP   net.IP
}

func (r *ActionSetIP) ActionType() uint16 {
	return r.Type
}

func (r *ActionSetIP) MarshalBinary() ([]byte, error) {
	ip := r.IP.To4()
	if ip == nil {
		return nil, ErrInvalidIPAddress
	}

	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], r.Type)
	binary.BigEndian.PutUint16(v[2:4], 8)
	copy(v[4:8], ip)

	return v, nil
}

type ActionSetTOS struct {
	TOS uint8
}

func (r *ActionSetTOS) ActionType() uint16 {
	return OFPAT_SET_NW_TOS
}

func (r *ActionSetTOS) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], OFPAT_SET_NW_TOS)
	binary.BigEndian.PutUint16(v[2:4], 8)
	v[4] = r.TOS
	// v[5:8] is padding

	return v, nil
}

// ActionSetTransportPort covers both OFPAT_SET_TP_SRC and OFPAT_SET_TP_DST.
type ActionSetTransportPort struct {
	Type uint16
	Port uint16
}

func (r *ActionSetTransportPort) ActionType() uint16 {
	return r.Type
}

func (r *ActionSetTransportPort) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], r.Type)
	binary.BigEndian.PutUint16(v[2:4], 8)
	binary.BigEndian.PutUint16(v[4:6], r.Port)
	// v[6:8] is padding

	return v, nil
}

// ActionEnqueue is carried opaquely. The proxy does not virtualize QoS
// queues; a queue action addressed at a virtual port is rejected upstream
// with OFPQOFC_BAD_PORT before it ever reaches a switch.
type ActionEnqueue struct {
	Port    uint16
	QueueID uint32
}

func (r *ActionEnqueue) ActionType() uint16 {
	return OFPAT_ENQUEUE
}

func (r *ActionEnqueue) MarshalBinary() ([]byte, error) {
	v := make([]byte, 16)
	binary.BigEndian.PutUint16(v[0:2], OFPAT_ENQUEUE)
	binary.BigEndian.PutUint16(v[2:4], 16)
	binary.BigEndian.PutUint16(v[4:6], r.Port)
	// v[6:12] is padding
	binary.BigEndian.PutUint32(v[12:16], r.QueueID)

	return v, nil
}

// ActionVendor is an opaque vendor action, carried as raw bytes.
type ActionVendor struct {
	Data []byte
}

func (r *ActionVendor) ActionType() uint16 {
	return OFPAT_VENDOR
}

func (r *ActionVendor) MarshalBinary() ([]byte, error) {
	v := make([]byte, len(r.Data))
	copy(v, r.Data)

	return v, nil
}

func MarshalActions(actions []Action) ([]byte, error) {
	v := make([]byte, 0)
	for _, a := range actions {
		buf, err := a.MarshalBinary()
		if err != nil {
			return nil, err
		}
		v = append(v, buf...)
	}

	return v, nil
}

func UnmarshalActions(data []byte) ([]Action, error) {
	actions := make([]Action, 0)

	buf := data
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, ErrInvalidPacketLength
		}
		t := binary.BigEndian.Uint16(buf[0:2])
		length := binary.BigEndian.Uint16(buf[2:4])
		if length < 8 || len(buf) < int(length) {
			return nil, ErrInvalidPacketLength
		}

		var action Action
		switch t {
		case OFPAT_OUTPUT:
			action = &ActionOutput{
				Port:   binary.BigEndian.Uint16(buf[4:6]),
				MaxLen: binary.BigEndian.Uint16(buf[6:8]),
			}
		case OFPAT_SET_VLAN_VID:
			action = &ActionSetVLANID{VLANID: binary.BigEndian.Uint16(buf[4:6])}
		case OFPAT_SET_VLAN_PCP:
			action = &ActionSetVLANPriority{Priority: buf[4]}
		case OFPAT_STRIP_VLAN:
			action = &ActionStripVLAN{}
		case OFPAT_SET_DL_SRC, OFPAT_SET_DL_DST:
			if length < 16 {
				return nil, ErrInvalidPacketLength
			}
			mac := make(net.HardwareAddr, 6)
			copy(mac, buf[4:10])
			action = &ActionSetMAC{Type: t, MAC: mac}
		case OFPAT_SET_NW_SRC, OFPAT_SET_NW_DST:
			action = &ActionSetIP{Type: t, IP: net.IPv4(buf[4], buf[5], buf[6], buf[7])}
		case OFPAT_SET_NW_TOS:
			action = &ActionSetTOS{TOS: buf[4]}
		case OFPAT_SET_TP_SRC, OFPAT_SET_TP_DST:
			action = &ActionSetTransportPort{Type: t, Port: binary.BigEndian.Uint16(buf[4:6])}
		case OFPAT_ENQUEUE:
			if length < 16 {
				return nil, ErrInvalidPacketLength
			}
			action = &ActionEnqueue{
				Port:    binary.BigEndian.Uint16(buf[4:6]),
				QueueID: binary.BigEndian.Uint32(buf[12:16]),
			}
		case OFPAT_VENDOR:
			raw := make([]byte, length)
			copy(raw, buf[:length])
			action = &ActionVendor{Data: raw}
		default:
			return nil, TranslationError{Type: OFPET_BAD_ACTION, Code: OFPBAC_BAD_TYPE}
		}
		actions = append(actions, action)

		buf = buf[length:]
	}

	return actions, nil
}
