// Copyright 2017-25 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package osmpbf

import "time"

// MemberType enumerates the kind of entity a Relation.Member refers to.
type MemberType int32

const (
	MemberNode MemberType = iota
	MemberWay
	MemberRelation
)

func (t MemberType) String() string {
	switch t {
	case MemberNode:
		return "node"
	case MemberWay:
		return "way"
	case MemberRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Info carries metadata common to Node, Way, and Relation elements.
type Info struct {
	Version   int32
	Timestamp time.Time
	Changeset int64
	UID       int32
	User      string
	Visible   bool
}

// Element is implemented by every decoded OSM entity (Node, Way, Relation,
// Changeset).
type Element interface {
	ElementID() int64
}

// Node represents a specific point on the earth's surface.
type Node struct {
	ID   int64
	Lat  NanoDegree
	Lon  NanoDegree
	Tags map[string]string
	Info *Info
}

func (n *Node) ElementID() int64 { return n.ID }

// Way is an ordered list of node references that define a polyline.
type Way struct {
	ID   int64
	Refs []int64
	Tags map[string]string
	Info *Info
}

func (w *Way) ElementID() int64 { return w.ID }

// Member is one entry of a Relation's membership list.
type Member struct {
	ID   int64
	Type MemberType
	Role string
}

// Relation documents a relationship between two or more elements.
type Relation struct {
	ID      int64
	Members []Member
	Tags    map[string]string
	Info    *Info
}

func (r *Relation) ElementID() int64 { return r.ID }

// Changeset records a single OSM edit transaction. Changesets are rarely
// present in planet/extract PBF files (they are normally distributed as a
// separate changeset dump) but the wire format and this decoder support
// them per spec.
type Changeset struct {
	ID int64
}

func (c *Changeset) ElementID() int64 { return c.ID }
