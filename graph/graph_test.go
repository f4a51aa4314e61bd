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

package graph

import (
	"fmt"
	"testing"
)

type testVertex string

func (r testVertex) ID() string {
	return string(r)
}

type testPoint struct {
	vertex testVertex
	id     string
}

func (r testPoint) ID() string {
	return r.id
}

func (r testPoint) Vertex() Vertex {
	return r.vertex
}

type testEdge struct {
	points [2]testPoint
	weight float64
}

func (r testEdge) ID() string {
	return fmt.Sprintf("%v_%v", r.points[0].id, r.points[1].id)
}

func (r testEdge) Points() [2]Point {
	return [2]Point{r.points[0], r.points[1]}
}

func (r testEdge) Weight() float64 {
	return r.weight
}

func edgeBetween(a, b testVertex, weight float64) testEdge {
	return testEdge{
		points: [2]testPoint{
			{vertex: a, id: string(a) + "/1" + string(b)},
			{vertex: b, id: string(b) + "/1" + string(a)},
		},
		weight: weight,
	}
}

func TestFindPathOverTree(t *testing.T) {
	g := New()
	for _, v := range []testVertex{"a", "b", "c"} {
		g.AddVertex(v)
	}
	ab := edgeBetween("a", "b", 1)
	bc := edgeBetween("b", "c", 1)
	for _, e := range []testEdge{ab, bc} {
		if _, err := g.AddEdge(e); err != nil {
			t.Fatalf("unexpected AddEdge error: %v", err)
		}
	}

	path := g.FindPath(testVertex("a"), testVertex("c"))
	if len(path) != 2 {
		t.Fatalf("unexpected path length: %v", len(path))
	}
	if path[0].V.ID() != "a" || path[0].E.ID() != ab.ID() {
		t.Errorf("unexpected first step: %+v", path[0])
	}
	if path[1].V.ID() != "b" || path[1].E.ID() != bc.ID() {
		t.Errorf("unexpected second step: %+v", path[1])
	}
}

func TestSpanningTreeBreaksLoop(t *testing.T) {
	g := New()
	for _, v := range []testVertex{"a", "b", "c"} {
		g.AddVertex(v)
	}
	// A triangle: exactly one edge has to be disabled.
	for _, e := range []testEdge{
		edgeBetween("a", "b", 1),
		edgeBetween("b", "c", 2),
		edgeBetween("c", "a", 3),
	} {
		if _, err := g.AddEdge(e); err != nil {
			t.Fatalf("unexpected AddEdge error: %v", err)
		}
	}

	enabled := g.EnabledEdges()
	if len(enabled) != 2 {
		t.Fatalf("a 3-cycle should keep 2 tree edges: %v", len(enabled))
	}
	for _, e := range enabled {
		if e.Weight() == 3 {
			t.Errorf("the heaviest edge should be disabled")
		}
	}
}

func TestAddEdgeToUnknownVertex(t *testing.T) {
	g := New()
	g.AddVertex(testVertex("a"))

	if _, err := g.AddEdge(edgeBetween("a", "z", 1)); err == nil {
		t.Errorf("expected an error for an edge to an unknown vertex")
	}
}

func TestRemoveVertexDropsEdges(t *testing.T) {
	g := New()
	for _, v := range []testVertex{"a", "b"} {
		g.AddVertex(v)
	}
	e := edgeBetween("a", "b", 1)
	if _, err := g.AddEdge(e); err != nil {
		t.Fatalf("unexpected AddEdge error: %v", err)
	}

	g.RemoveVertex(testVertex("b"))
	if g.IsEdge(e.points[0]) {
		t.Errorf("edge of a removed vertex survived")
	}
	if path := g.FindPath(testVertex("a"), testVertex("b")); len(path) != 0 {
		t.Errorf("a removed vertex is still reachable: %+v", path)
	}
}
