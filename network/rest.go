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
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/superkkt/flowvisor/openflow"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/davecgh/go-spew/spew"
)

// RESTConfig carries the listen parameters of the management API.
type RESTConfig struct {
	Port uint16
	TLS  struct {
		Enable   bool
		CertFile string
		KeyFile  string
	}
}

// ServeREST runs the management API: the informal add_slice / remove_slice /
// listing surface. It blocks, so the bootstrap starts it on its own
// goroutine.
func (r *Engine) ServeREST(c RESTConfig) {
	api := rest.NewApi()
	router, err := rest.MakeRouter(
		rest.Get("/api/v1/slice", r.listSlice),
		rest.Post("/api/v1/slice", r.addSlice),
		rest.Delete("/api/v1/slice/:id", r.removeSlice),
		rest.Options("/api/v1/slice/:id", r.allowOrigin),
		rest.Get("/api/v1/switch", r.listSwitch),
		rest.Post("/api/v1/switch", r.addSwitch),
		rest.Get("/api/v1/topology", r.showTopology),
	)
	if err != nil {
		logger.Errorf("failed to make a REST router: %v", err)
		return
	}
	api.SetApp(router)

	addr := fmt.Sprintf(":%v", c.Port)
	if c.TLS.Enable {
		err = http.ListenAndServeTLS(addr, c.TLS.CertFile, c.TLS.KeyFile, api.MakeHandler())
	} else {
		err = http.ListenAndServe(addr, api.MakeHandler())
	}

	if err != nil {
		logger.Errorf("failed to listen on HTTP(S): %v", err)
		return
	}
}

func (r *Engine) allowOrigin(w rest.ResponseWriter, req *rest.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "DELETE, PUT")
}

// FilterParam is the JSON shape of a slice's flow-space filter. Absent
// fields stay wildcarded.
type FilterParam struct {
	InPort    *uint16 `json:"in_port"`
	SrcMAC    string  `json:"dl_src"`
	DstMAC    string  `json:"dl_dst"`
	VLANID    *uint16 `json:"dl_vlan"`
	EtherType *uint16 `json:"dl_type"`
	Protocol  *uint8  `json:"nw_proto"`
	SrcCIDR   string  `json:"nw_src"`
	DstCIDR   string  `json:"nw_dst"`
	SrcPort   *uint16 `json:"tp_src"`
	DstPort   *uint16 `json:"tp_dst"`
}

func (r *FilterParam) match() (*openflow.Match, error) {
	match := openflow.NewMatch()

	if r.InPort != nil {
		match.Wildcards.InPort = false
		match.InPort = *r.InPort
	}
	if len(r.SrcMAC) > 0 {
		mac, err := net.ParseMAC(r.SrcMAC)
		if err != nil {
			return nil, err
		}
		match.Wildcards.SrcMAC = false
		match.SrcMAC = mac
	}
	if len(r.DstMAC) > 0 {
		mac, err := net.ParseMAC(r.DstMAC)
		if err != nil {
			return nil, err
		}
		match.Wildcards.DstMAC = false
		match.DstMAC = mac
	}
	if r.VLANID != nil {
		match.Wildcards.VLANID = false
		match.VLANID = *r.VLANID
	}
	if r.EtherType != nil {
		match.Wildcards.EtherType = false
		match.EtherType = *r.EtherType
	}
	if r.Protocol != nil {
		match.Wildcards.Protocol = false
		match.Protocol = *r.Protocol
	}
	if len(r.SrcCIDR) > 0 {
		ip, network, err := net.ParseCIDR(r.SrcCIDR)
		if err != nil {
			return nil, err
		}
		bits, _ := network.Mask.Size()
		match.SrcIP = ip
		match.Wildcards.SrcIP = uint8(32 - bits)
	}
	if len(r.DstCIDR) > 0 {
		ip, network, err := net.ParseCIDR(r.DstCIDR)
		if err != nil {
			return nil, err
		}
		bits, _ := network.Mask.Size()
		match.DstIP = ip
		match.Wildcards.DstIP = uint8(32 - bits)
	}
	if r.SrcPort != nil {
		match.Wildcards.SrcPort = false
		match.SrcPort = *r.SrcPort
	}
	if r.DstPort != nil {
		match.Wildcards.DstPort = false
		match.DstPort = *r.DstPort
	}

	return match, nil
}

type SliceParam struct {
	DPID uint64 `json:"dpid"`
	// An optional switch endpoint this slice brings into the fabric.
	SwitchAddress string      `json:"switch_address"`
	Filter        FilterParam `json:"filter"`
}

func (r *SliceParam) validate() error {
	if len(r.SwitchAddress) > 0 {
		if _, _, err := net.SplitHostPort(r.SwitchAddress); err != nil {
			return errors.New("invalid switch address")
		}
	}

	return nil
}

type SliceInfo struct {
	ID       uint64 `json:"id"`
	DPID     uint64 `json:"dpid"`
	Attached bool   `json:"attached"`
}

func (r *Engine) listSlice(w rest.ResponseWriter, req *rest.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	logger.Debug("listing all slices..")
	slices := make([]SliceInfo, 0)
	for _, slice := range r.Slices() {
		slices = append(slices, SliceInfo{
			ID:       slice.ID,
			DPID:     slice.DPID,
			Attached: slice.session != nil,
		})
	}

	w.WriteJson(&struct {
		Slices []SliceInfo `json:"slices"`
	}{slices})
}

func (r *Engine) addSlice(w rest.ResponseWriter, req *rest.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	param := SliceParam{}
	if err := req.DecodeJsonPayload(&param); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := param.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	filter, err := param.Filter.match()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	logger.Debugf("adding a new slice: %v", spew.Sdump(param))

	slice := r.AddSlice(param.DPID, filter, param.SwitchAddress)

	w.WriteJson(&struct {
		SliceID uint64 `json:"slice_id"`
	}{slice.ID})
}

func (r *Engine) removeSlice(w rest.ResponseWriter, req *rest.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	id, err := strconv.ParseUint(req.PathParam("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !r.RemoveSlice(id) {
		writeError(w, http.StatusNotFound, errors.New("unknown slice ID"))
		return
	}

	w.WriteJson(&struct{}{})
}

type SwitchParam struct {
	Address string `json:"address"`
}

func (r *Engine) listSwitch(w rest.ResponseWriter, req *rest.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	logger.Debug("listing all switches..")
	w.WriteJson(&struct {
		DPIDs []uint64 `json:"dpids"`
	}{r.Switches()})
}

func (r *Engine) addSwitch(w rest.ResponseWriter, req *rest.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	param := SwitchParam{}
	if err := req.DecodeJsonPayload(&param); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, _, err := net.SplitHostPort(param.Address); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid switch address"))
		return
	}

	logger.Infof("dialing a new switch at %v", param.Address)
	r.DialSwitch(param.Address)

	w.WriteJson(&struct{}{})
}

func (r *Engine) showTopology(w rest.ResponseWriter, req *rest.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	w.WriteJson(&struct {
		Topology string `json:"topology"`
	}{r.Topology().String()})
}

func writeError(w rest.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	w.WriteJson(&struct {
		Error string `json:"error"`
	}{err.Error()})
}
