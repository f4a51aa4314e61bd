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
	"strings"
)

// StatsRequest is an OFPT_STATS_REQUEST. Desc and Table requests have an
// empty body; Flow and Aggregate carry a match, a table id, and an out_port
// filter; Port carries a port number.
type StatsRequest struct {
	Message
	StatsType uint16
	Flags     uint16
	Match     *Match
	TableID   uint8
	OutPort   uint16
	PortNo    uint16
}

func NewStatsRequest(xid uint32, statsType uint16) *StatsRequest {
	return &StatsRequest{
		Message:   NewMessage(OFPT_STATS_REQUEST, xid),
		StatsType: statsType,
		OutPort:   OFPP_NONE,
		PortNo:    OFPP_NONE,
	}
}

func (r *StatsRequest) MarshalBinary() ([]byte, error) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], r.StatsType)
	binary.BigEndian.PutUint16(v[2:4], r.Flags)

	switch r.StatsType {
	case OFPST_DESC, OFPST_TABLE:
		// Empty body.
	case OFPST_FLOW, OFPST_AGGREGATE:
		match := r.Match
		if match == nil {
			match = NewMatch()
		}
		m, err := match.MarshalBinary()
		if err != nil {
			return nil, err
		}
		body := make([]byte, 4)
		body[0] = r.TableID
		// body[1] is padding
		binary.BigEndian.PutUint16(body[2:4], r.OutPort)
		v = append(v, m...)
		v = append(v, body...)
	case OFPST_PORT:
		body := make([]byte, 8)
		binary.BigEndian.PutUint16(body[0:2], r.PortNo)
		// body[2:8] is padding
		v = append(v, body...)
	default:
		return nil, ErrBadStat
	}

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

func (r *StatsRequest) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 4 {
		return ErrInvalidPacketLength
	}
	r.StatsType = binary.BigEndian.Uint16(payload[0:2])
	r.Flags = binary.BigEndian.Uint16(payload[2:4])
	body := payload[4:]

	switch r.StatsType {
	case OFPST_DESC, OFPST_TABLE:
		// Empty body.
	case OFPST_FLOW, OFPST_AGGREGATE:
		if len(body) < 44 {
			return ErrInvalidPacketLength
		}
		r.Match = NewMatch()
		if err := r.Match.UnmarshalBinary(body[0:40]); err != nil {
			return err
		}
		r.TableID = body[40]
		// body[41] is padding
		r.OutPort = binary.BigEndian.Uint16(body[42:44])
	case OFPST_PORT:
		if len(body) < 8 {
			return ErrInvalidPacketLength
		}
		r.PortNo = binary.BigEndian.Uint16(body[0:2])
	default:
		return ErrBadStat
	}

	return nil
}

// DescStats is the OFPST_DESC reply body.
type DescStats struct {
	Manufacturer string
	Hardware     string
	Software     string
	Serial       string
	Description  string
}

func putDescField(dst []byte, s string) {
	// Fixed-size, NUL-terminated.
	if len(s) >= len(dst) {
		s = s[:len(dst)-1]
	}
	copy(dst, s)
}

func (r *DescStats) MarshalBinary() ([]byte, error) {
	v := make([]byte, 1056)
	putDescField(v[0:256], r.Manufacturer)
	putDescField(v[256:512], r.Hardware)
	putDescField(v[512:768], r.Software)
	putDescField(v[768:800], r.Serial)
	putDescField(v[800:1056], r.Description)

	return v, nil
}

func (r *DescStats) UnmarshalBinary(data []byte) error {
	if len(data) < 1056 {
		return ErrInvalidPacketLength
	}

	r.Manufacturer = strings.TrimRight(string(data[0:256]), "\x00")
	r.Hardware = strings.TrimRight(string(data[256:512]), "\x00")
	r.Software = strings.TrimRight(string(data[512:768]), "\x00")
	r.Serial = strings.TrimRight(string(data[768:800]), "\x00")
	r.Description = strings.TrimRight(string(data[800:1056]), "\x00")

	return nil
}

// FlowStatsEntry is one ofp_flow_stats element of an OFPST_FLOW reply.
type FlowStatsEntry struct {
	TableID      uint8
	Match        *Match
	DurationSec  uint32
	DurationNsec uint32
	Priority     uint16
	IdleTimeout  uint16
	HardTimeout  uint16
	Cookie       uint64
	PacketCount  uint64
	ByteCount    uint64
	Actions      []Action
}

func (r *FlowStatsEntry) MarshalBinary() ([]byte, error) {
	match := r.Match
	if match == nil {
		match = NewMatch()
	}
	m, err := match.MarshalBinary()
	if err != nil {
		return nil, err
	}
	action, err := MarshalActions(r.Actions)
	if err != nil {
		return nil, err
	}

	v := make([]byte, 88+len(action))
	binary.BigEndian.PutUint16(v[0:2], uint16(88+len(action)))
	v[2] = r.TableID
	// v[3] is padding
	copy(v[4:44], m)
	binary.BigEndian.PutUint32(v[44:48], r.DurationSec)
	binary.BigEndian.PutUint32(v[48:52], r.DurationNsec)
	binary.BigEndian.PutUint16(v[52:54], r.Priority)
	binary.BigEndian.PutUint16(v[54:56], r.IdleTimeout)
	binary.BigEndian.PutUint16(v[56:58], r.HardTimeout)
	// v[58:64] is padding
	binary.BigEndian.PutUint64(v[64:72], r.Cookie)
	binary.BigEndian.PutUint64(v[72:80], r.PacketCount)
	binary.BigEndian.PutUint64(v[80:88], r.ByteCount)
	copy(v[88:], action)

	return v, nil
}

func (r *FlowStatsEntry) UnmarshalBinary(data []byte) (length int, err error) {
	if len(data) < 88 {
		return 0, ErrInvalidPacketLength
	}
	length = int(binary.BigEndian.Uint16(data[0:2]))
	if length < 88 || len(data) < length {
		return 0, ErrInvalidPacketLength
	}

	r.TableID = data[2]
	r.Match = NewMatch()
	if err := r.Match.UnmarshalBinary(data[4:44]); err != nil {
		return 0, err
	}
	r.DurationSec = binary.BigEndian.Uint32(data[44:48])
	r.DurationNsec = binary.BigEndian.Uint32(data[48:52])
	r.Priority = binary.BigEndian.Uint16(data[52:54])
	r.IdleTimeout = binary.BigEndian.Uint16(data[54:56])
	r.HardTimeout = binary.BigEndian.Uint16(data[56:58])
	r.Cookie = binary.BigEndian.Uint64(data[64:72])
	r.PacketCount = binary.BigEndian.Uint64(data[72:80])
	r.ByteCount = binary.BigEndian.Uint64(data[80:88])
	r.Actions, err = UnmarshalActions(data[88:length])
	if err != nil {
		return 0, err
	}

	return length, nil
}

// AggregateStats is the OFPST_AGGREGATE reply body.
type AggregateStats struct {
	PacketCount uint64
	ByteCount   uint64
	FlowCount   uint32
}

func (r *AggregateStats) MarshalBinary() ([]byte, error) {
	v := make([]byte, 24)
	binary.BigEndian.PutUint64(v[0:8], r.PacketCount)
	binary.BigEndian.PutUint64(v[8:16], r.ByteCount)
	binary.BigEndian.PutUint32(v[16:20], r.FlowCount)
	// v[20:24] is padding

	return v, nil
}

func (r *AggregateStats) UnmarshalBinary(data []byte) error {
	if len(data) < 24 {
		return ErrInvalidPacketLength
	}

	r.PacketCount = binary.BigEndian.Uint64(data[0:8])
	r.ByteCount = binary.BigEndian.Uint64(data[8:16])
	r.FlowCount = binary.BigEndian.Uint32(data[16:20])

	return nil
}

// TableStats is one ofp_table_stats element of an OFPST_TABLE reply.
type TableStats struct {
	TableID      uint8
	Name         string
	Wildcards    uint32
	MaxEntries   uint32
	ActiveCount  uint32
	LookupCount  uint64
	MatchedCount uint64
}

func (r *TableStats) MarshalBinary() ([]byte, error) {
	v := make([]byte, 64)
	v[0] = r.TableID
	// v[1:4] is padding
	putDescField(v[4:36], r.Name)
	binary.BigEndian.PutUint32(v[36:40], r.Wildcards)
	binary.BigEndian.PutUint32(v[40:44], r.MaxEntries)
	binary.BigEndian.PutUint32(v[44:48], r.ActiveCount)
	binary.BigEndian.PutUint64(v[48:56], r.LookupCount)
	binary.BigEndian.PutUint64(v[56:64], r.MatchedCount)

	return v, nil
}

func (r *TableStats) UnmarshalBinary(data []byte) error {
	if len(data) < 64 {
		return ErrInvalidPacketLength
	}

	r.TableID = data[0]
	r.Name = strings.TrimRight(string(data[4:36]), "\x00")
	r.Wildcards = binary.BigEndian.Uint32(data[36:40])
	r.MaxEntries = binary.BigEndian.Uint32(data[40:44])
	r.ActiveCount = binary.BigEndian.Uint32(data[44:48])
	r.LookupCount = binary.BigEndian.Uint64(data[48:56])
	r.MatchedCount = binary.BigEndian.Uint64(data[56:64])

	return nil
}

// PortStatsEntry is one ofp_port_stats element of an OFPST_PORT reply.
type PortStatsEntry struct {
	PortNo     uint16
	RxPackets  uint64
	TxPackets  uint64
	RxBytes    uint64
	TxBytes    uint64
	RxDropped  uint64
	TxDropped  uint64
	RxErrors   uint64
	TxErrors   uint64
	RxFrameErr uint64
	RxOverErr  uint64
	RxCRCErr   uint64
	Collisions uint64
}

func (r *PortStatsEntry) MarshalBinary() ([]byte, error) {
	v := make([]byte, 104)
	binary.BigEndian.PutUint16(v[0:2], r.PortNo)
	// v[2:8] is padding
	counters := []uint64{
		r.RxPackets, r.TxPackets, r.RxBytes, r.TxBytes,
		r.RxDropped, r.TxDropped, r.RxErrors, r.TxErrors,
		r.RxFrameErr, r.RxOverErr, r.RxCRCErr, r.Collisions,
	}
	for i, c := range counters {
		binary.BigEndian.PutUint64(v[8+i*8:16+i*8], c)
	}

	return v, nil
}

func (r *PortStatsEntry) UnmarshalBinary(data []byte) error {
	if len(data) < 104 {
		return ErrInvalidPacketLength
	}

	r.PortNo = binary.BigEndian.Uint16(data[0:2])
	counters := make([]uint64, 12)
	for i := range counters {
		counters[i] = binary.BigEndian.Uint64(data[8+i*8 : 16+i*8])
	}
	r.RxPackets, r.TxPackets, r.RxBytes, r.TxBytes = counters[0], counters[1], counters[2], counters[3]
	r.RxDropped, r.TxDropped, r.RxErrors, r.TxErrors = counters[4], counters[5], counters[6], counters[7]
	r.RxFrameErr, r.RxOverErr, r.RxCRCErr, r.Collisions = counters[8], counters[9], counters[10], counters[11]

	return nil
}

// StatsReply is an OFPT_STATS_REPLY. Exactly one of the body fields is
// meaningful, selected by StatsType.
type StatsReply struct {
	Message
	StatsType uint16
	Flags     uint16
	Desc      *DescStats
	Flows     []FlowStatsEntry
	Aggregate *AggregateStats
	Tables    []TableStats
	Ports     []PortStatsEntry
}

func NewStatsReply(xid uint32, statsType uint16) *StatsReply {
	return &StatsReply{
		Message:   NewMessage(OFPT_STATS_REPLY, xid),
		StatsType: statsType,
	}
}

// More reports whether further frames of the same aggregation follow.
func (r *StatsReply) More() bool {
	return r.Flags&OFPSF_REPLY_MORE != 0
}

func (r *StatsReply) MarshalBinary() ([]byte, error) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], r.StatsType)
	binary.BigEndian.PutUint16(v[2:4], r.Flags)

	switch r.StatsType {
	case OFPST_DESC:
		desc := r.Desc
		if desc == nil {
			desc = &DescStats{}
		}
		body, err := desc.MarshalBinary()
		if err != nil {
			return nil, err
		}
		v = append(v, body...)
	case OFPST_FLOW:
		for i := range r.Flows {
			body, err := r.Flows[i].MarshalBinary()
			if err != nil {
				return nil, err
			}
			v = append(v, body...)
		}
	case OFPST_AGGREGATE:
		agg := r.Aggregate
		if agg == nil {
			agg = &AggregateStats{}
		}
		body, err := agg.MarshalBinary()
		if err != nil {
			return nil, err
		}
		v = append(v, body...)
	case OFPST_TABLE:
		for i := range r.Tables {
			body, err := r.Tables[i].MarshalBinary()
			if err != nil {
				return nil, err
			}
			v = append(v, body...)
		}
	case OFPST_PORT:
		for i := range r.Ports {
			body, err := r.Ports[i].MarshalBinary()
			if err != nil {
				return nil, err
			}
			v = append(v, body...)
		}
	default:
		return nil, ErrBadStat
	}

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

func (r *StatsReply) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 4 {
		return ErrInvalidPacketLength
	}
	r.StatsType = binary.BigEndian.Uint16(payload[0:2])
	r.Flags = binary.BigEndian.Uint16(payload[2:4])
	body := payload[4:]

	switch r.StatsType {
	case OFPST_DESC:
		r.Desc = &DescStats{}
		return r.Desc.UnmarshalBinary(body)
	case OFPST_FLOW:
		r.Flows = nil
		for len(body) > 0 {
			entry := FlowStatsEntry{}
			length, err := entry.UnmarshalBinary(body)
			if err != nil {
				return err
			}
			r.Flows = append(r.Flows, entry)
			body = body[length:]
		}
	case OFPST_AGGREGATE:
		r.Aggregate = &AggregateStats{}
		return r.Aggregate.UnmarshalBinary(body)
	case OFPST_TABLE:
		r.Tables = nil
		for len(body) >= 64 {
			entry := TableStats{}
			if err := entry.UnmarshalBinary(body[0:64]); err != nil {
				return err
			}
			r.Tables = append(r.Tables, entry)
			body = body[64:]
		}
	case OFPST_PORT:
		r.Ports = nil
		for len(body) >= 104 {
			entry := PortStatsEntry{}
			if err := entry.UnmarshalBinary(body[0:104]); err != nil {
				return err
			}
			r.Ports = append(r.Ports, entry)
			body = body[104:]
		}
	default:
		return ErrBadStat
	}

	return nil
}
