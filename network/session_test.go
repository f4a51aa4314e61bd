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

package network

import (
	"bytes"
	"testing"

	"github.com/superkkt/flowvisor/openflow"
)

func decodeError(t *testing.T, frame []byte) *openflow.Error {
	t.Helper()
	msg := new(openflow.Error)
	if err := msg.UnmarshalBinary(frame); err != nil {
		t.Fatalf("failed to decode an ERROR: %v", err)
	}

	return msg
}

// Messages a switch never receives are bounced with OFPBRC_BAD_TYPE and the
// offending bytes, and the session stays alive.
func TestSessionRejectsBadType(t *testing.T) {
	e := NewEngine()
	s, controller := addFakeController(t, e, 0xcafe, nil)

	pin := openflow.NewPacketIn(5)
	pin.Data = []byte{1, 2, 3}
	raw, err := pin.MarshalBinary()
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	if err := s.OnPacketIn(nil, pin, raw); err != nil {
		t.Fatalf("a rejected message should not kill the session: %v", err)
	}

	msg := decodeError(t, controller.next(t, openflow.OFPT_ERROR))
	if msg.TransactionID() != 5 {
		t.Errorf("the error lost the xid: %v", msg.TransactionID())
	}
	if msg.ErrType != openflow.OFPET_BAD_REQUEST || msg.Code != openflow.OFPBRC_BAD_TYPE {
		t.Errorf("unexpected error code: type=%v, code=%v", msg.ErrType, msg.Code)
	}
	if !bytes.Equal(msg.Data, raw) {
		t.Errorf("the offending bytes did not ride along")
	}
}

// A translation failure produces an error frame instead of closing the
// session.
func TestSessionTranslationError(t *testing.T) {
	e := NewEngine()
	s, controller := addFakeController(t, e, 0xcafe, nil)

	po := openflow.NewPacketOut(8)
	po.BufferID = 424242
	po.Actions = []openflow.Action{&openflow.ActionOutput{Port: 10, MaxLen: 0xffff}}
	raw, err := po.MarshalBinary()
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	if err := s.OnPacketOut(nil, po, raw); err != nil {
		t.Fatalf("a translation failure should not kill the session: %v", err)
	}

	msg := decodeError(t, controller.next(t, openflow.OFPT_ERROR))
	if msg.ErrType != openflow.OFPET_BAD_REQUEST || msg.Code != openflow.OFPBRC_BUFFER_UNKNOWN {
		t.Errorf("unexpected error code: type=%v, code=%v", msg.ErrType, msg.Code)
	}
	if msg.TransactionID() != 8 {
		t.Errorf("the error lost the xid: %v", msg.TransactionID())
	}
}

func TestSessionBarrierRepliedLocally(t *testing.T) {
	e := NewEngine()
	sw := addFakeSwitch(t, e, 1)
	s, controller := addFakeController(t, e, 0xcafe, nil)

	req := openflow.NewBarrierRequest(11)
	raw, _ := req.MarshalBinary()
	if err := s.OnBarrierRequest(nil, req, raw); err != nil {
		t.Fatalf("unexpected barrier error: %v", err)
	}

	reply := controller.next(t, openflow.OFPT_BARRIER_REPLY)
	header := openflow.Header{}
	if err := header.UnmarshalBinary(reply); err != nil {
		t.Fatalf("failed to decode the barrier reply: %v", err)
	}
	if header.Xid != 11 {
		t.Errorf("the barrier reply lost the xid: %v", header.Xid)
	}
	// Local-only: nothing is barriered downstream.
	sw.quiet(t, openflow.OFPT_BARRIER_REQUEST)
}

func TestSessionFeaturesSynthesized(t *testing.T) {
	e := NewEngine()
	addFakeSwitch(t, e, 1)
	mapPort(e, 1, 1) // 10
	mapPort(e, 1, 2) // 11
	s, controller := addFakeController(t, e, 0xbeef, nil)

	req := openflow.NewFeaturesRequest(2)
	raw, _ := req.MarshalBinary()
	if err := s.OnFeaturesRequest(nil, req, raw); err != nil {
		t.Fatalf("unexpected features error: %v", err)
	}

	reply := new(openflow.FeaturesReply)
	if err := reply.UnmarshalBinary(controller.next(t, openflow.OFPT_FEATURES_REPLY)); err != nil {
		t.Fatalf("failed to decode the features reply: %v", err)
	}
	if reply.DPID != 0xbeef {
		t.Errorf("the virtual DPID was not presented: %v", reply.DPID)
	}
	if reply.NumTables != 1 || reply.NumBuffers != 0 {
		t.Errorf("unexpected table/buffer counts: %v/%v", reply.NumTables, reply.NumBuffers)
	}
	if reply.Capabilities != virtualCapabilities || reply.Actions != virtualActions {
		t.Errorf("unexpected capability bits: %x/%x", reply.Capabilities, reply.Actions)
	}
	if len(reply.Ports) != 2 || reply.Ports[0].Number != 10 || reply.Ports[1].Number != 11 {
		t.Errorf("the port list was not virtualized: %+v", reply.Ports)
	}
}

func TestSessionGetConfigSynthesized(t *testing.T) {
	e := NewEngine()
	s, controller := addFakeController(t, e, 0xcafe, nil)

	req := openflow.NewGetConfigRequest(6)
	raw, _ := req.MarshalBinary()
	if err := s.OnGetConfigRequest(nil, req, raw); err != nil {
		t.Fatalf("unexpected get-config error: %v", err)
	}

	reply := new(openflow.GetConfigReply)
	if err := reply.UnmarshalBinary(controller.next(t, openflow.OFPT_GET_CONFIG_REPLY)); err != nil {
		t.Fatalf("failed to decode the config reply: %v", err)
	}
	if reply.MissSendLimit != controllerMissSendLen || reply.Flags != openflow.OFPC_FRAG_NORMAL {
		t.Errorf("unexpected config: %+v", reply)
	}
}
