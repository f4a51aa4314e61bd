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
	"net"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
)

// The translators rewrite output actions in place, so the codec has to give
// the list back in exactly the order it was sent.
func TestActionListOrder(t *testing.T) {
	actions := []Action{
		&ActionSetMAC{Type: OFPAT_SET_DL_DST, MAC: net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}},
		&ActionOutput{Port: 3, MaxLen: 0xffff},
		&ActionSetVLANID{VLANID: 100},
		&ActionOutput{Port: 7, MaxLen: 0xffff},
	}

	data, err := MarshalActions(actions)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	decoded, err := UnmarshalActions(data)
	if err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if len(decoded) != len(actions) {
		t.Fatalf("unexpected action count: %v", len(decoded))
	}
	for i := range actions {
		if decoded[i].ActionType() != actions[i].ActionType() {
			t.Fatalf("action %v out of order: type=%v, expected %v", i, decoded[i].ActionType(), actions[i].ActionType())
		}
	}
	if !cmp.Equal(decoded, actions) {
		t.Errorf("actions did not round-trip: %v", spew.Sdump(decoded))
	}
}

func TestActionCodec(t *testing.T) {
	samples := []Action{
		&ActionOutput{Port: OFPP_FLOOD, MaxLen: 128},
		&ActionSetVLANID{VLANID: 4094},
		&ActionSetVLANPriority{Priority: 7},
		&ActionStripVLAN{},
		&ActionSetMAC{Type: OFPAT_SET_DL_SRC, MAC: net.HardwareAddr{1, 2, 3, 4, 5, 6}},
		&ActionSetIP{Type: OFPAT_SET_NW_DST, IP: net.IPv4(192, 168, 0, 1)},
		&ActionSetTOS{TOS: 0x20},
		&ActionSetTransportPort{Type: OFPAT_SET_TP_SRC, Port: 8080},
		&ActionEnqueue{Port: 1, QueueID: 3},
	}

	for _, sample := range samples {
		data, err := sample.MarshalBinary()
		if err != nil {
			t.Fatalf("unexpected marshal error: %v", err)
		}
		decoded, err := UnmarshalActions(data)
		if err != nil {
			t.Fatalf("unexpected unmarshal error: %v", err)
		}
		if len(decoded) != 1 {
			t.Fatalf("unexpected action count: %v", len(decoded))
		}
		if decoded[0].ActionType() != sample.ActionType() {
			t.Errorf("unexpected action type: %v", decoded[0].ActionType())
		}
	}
}

func TestUnknownActionRejected(t *testing.T) {
	// OFPAT_SET_VLAN_VID frame whose type is mangled to an undefined value.
	data, err := (&ActionSetVLANID{VLANID: 1}).MarshalBinary()
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}
	data[0] = 0x7f
	data[1] = 0x7f

	if _, err := UnmarshalActions(data); err == nil {
		t.Errorf("expected an error for an unknown action type")
	}
}
