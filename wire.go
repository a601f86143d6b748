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

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// wireBlobHeader is the field layout of fileformat.proto's BlobHeader:
//
//	message BlobHeader {
//	  required string type = 1;
//	  optional bytes indexdata = 2;
//	  required int32 datasize = 3;
//	}
type wireBlobHeader struct {
	Type      string
	IndexData []byte
	DataSize  int32
}

func parseBlobHeader(buf []byte) (wireBlobHeader, error) {
	var h wireBlobHeader

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			s, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			h.Type = string(s)
		case 2:
			b, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			h.IndexData = b
		case 3:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			h.DataSize = int32(n)
		}

		return nil
	})

	return h, err
}

// wireBlob is the field layout of fileformat.proto's Blob, a tagged union
// over exactly one payload field.
//
//	message Blob {
//	  optional bytes raw = 1;
//	  optional int32 raw_size = 2;
//	  optional bytes zlib_data = 3;
//	  optional bytes lzma_data = 4;
//	  optional bytes OBSOLETE_bzip2_data = 5;
//	}
type wireBlob struct {
	Raw            []byte
	RawSize        int32
	ZlibData       []byte
	LzmaData       []byte
	ObsoleteBzip2  []byte
	hasRaw         bool
	hasZlib        bool
	hasLzma        bool
	hasObsoleteBz2 bool
}

func parseBlob(buf []byte) (wireBlob, error) {
	var b wireBlob

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			raw, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			b.Raw, b.hasRaw = raw, true
		case 2:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			b.RawSize = int32(n)
		case 3:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			b.ZlibData, b.hasZlib = d, true
		case 4:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			b.LzmaData, b.hasLzma = d, true
		case 5:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			b.ObsoleteBzip2, b.hasObsoleteBz2 = d, true
		}

		return nil
	})

	return b, err
}

// parsePrimitiveBlockWire decodes an uncompressed PrimitiveBlock payload
// into its pre-decode representation, per osmformat.proto:
//
//	message PrimitiveBlock {
//	  required StringTable stringtable = 1;
//	  repeated PrimitiveGroup primitivegroup = 2;
//	  optional int32 granularity = 17 [default=100];
//	  optional int32 date_granularity = 18 [default=1000];
//	  optional int64 lat_offset = 19 [default=0];
//	  optional int64 lon_offset = 20 [default=0];
//	}
func parsePrimitiveBlockWire(buf []byte) (*PrimitiveBlock, error) {
	pb := &PrimitiveBlock{Granularity: 100, DateGranularity: 1000}

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			s, err := parseStringTableWire(d)
			if err != nil {
				return err
			}

			pb.StringTable = s
		case 2:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			g, err := parsePrimitiveGroupWire(d)
			if err != nil {
				return err
			}

			pb.Groups = append(pb.Groups, g)
		case 17:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			pb.Granularity = int32(n)
		case 18:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			pb.DateGranularity = int32(n)
		case 19:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			pb.LatOffset = n
		case 20:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			pb.LonOffset = n
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return pb, nil
}

func parseStringTableWire(buf []byte) (StringTable, error) {
	var s []string

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != 1 {
			return nil
		}

		d, err := bytesField(typ, v)
		if err != nil {
			return err
		}

		s = append(s, string(d))

		return nil
	})
	if err != nil {
		return StringTable{}, err
	}

	return NewStringTable(s), nil
}

// parsePrimitiveGroupWire decodes one PrimitiveGroup. Exactly one of its
// repeated/optional fields is expected to be populated in any real-world
// file, but the wire format does not forbid several at once, so all are
// collected.
func parsePrimitiveGroupWire(buf []byte) (PrimitiveGroup, error) {
	var g PrimitiveGroup

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			n, err := parseNodeWire(d)
			if err != nil {
				return err
			}

			g.Nodes = append(g.Nodes, n)
		case 2:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			dn, err := parseDenseNodesWire(d)
			if err != nil {
				return err
			}

			g.DenseNodes = &dn
		case 3:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			w, err := parseWayWire(d)
			if err != nil {
				return err
			}

			g.Ways = append(g.Ways, w)
		case 4:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			r, err := parseRelationWire(d)
			if err != nil {
				return err
			}

			g.Relations = append(g.Relations, r)
		case 5:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			c, err := parseChangesetWire(d)
			if err != nil {
				return err
			}

			g.Changesets = append(g.Changesets, c)
		}

		return nil
	})

	return g, err
}

// parseNodeWire decodes a non-dense Node:
//
//	message Node {
//	  required sint64 id = 1;
//	  repeated uint32 keys = 2 [packed=true];
//	  repeated uint32 vals = 3 [packed=true];
//	  optional Info info = 4;
//	  required sint64 lat = 8;
//	  required sint64 lon = 9;
//	}
func parseNodeWire(buf []byte) (SparseNode, error) {
	var n SparseNode

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			x, err := sintField(typ, v)
			if err != nil {
				return err
			}

			n.ID = x
		case 2:
			u, err := packedUint32Field(typ, v)
			if err != nil {
				return err
			}

			n.Keys = u
		case 3:
			u, err := packedUint32Field(typ, v)
			if err != nil {
				return err
			}

			n.Vals = u
		case 4:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			info, err := parseInfoWire(d)
			if err != nil {
				return err
			}

			n.Info = &info
		case 8:
			x, err := sintField(typ, v)
			if err != nil {
				return err
			}

			n.Lat = x
		case 9:
			x, err := sintField(typ, v)
			if err != nil {
				return err
			}

			n.Lon = x
		}

		return nil
	})

	return n, err
}

// parseDenseNodesWire decodes a DenseNodes block:
//
//	message DenseNodes {
//	  repeated sint64 id = 1 [packed=true];
//	  optional DenseInfo denseinfo = 5;
//	  repeated sint64 lat = 8 [packed=true];
//	  repeated sint64 lon = 9 [packed=true];
//	  repeated int32 keys_vals = 10 [packed=true];
//	}
func parseDenseNodesWire(buf []byte) (DenseNodes, error) {
	var d DenseNodes

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			ids, err := packedSint64Field(typ, v)
			if err != nil {
				return err
			}

			d.IDs = ids
		case 5:
			raw, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			di, err := parseDenseInfoWire(raw)
			if err != nil {
				return err
			}

			d.Info = &di
		case 8:
			lats, err := packedSint64Field(typ, v)
			if err != nil {
				return err
			}

			d.Lats = lats
		case 9:
			lons, err := packedSint64Field(typ, v)
			if err != nil {
				return err
			}

			d.Lons = lons
		case 10:
			kv, err := packedInt32Field(typ, v)
			if err != nil {
				return err
			}

			d.KeysVals = kv
		}

		return nil
	})

	return d, err
}

// parseInfoWire decodes an Info message attached to a sparse element:
//
//	message Info {
//	  optional int32 version = 1 [default = -1];
//	  optional int64 timestamp = 2;
//	  optional int64 changeset = 3;
//	  optional int32 uid = 4;
//	  optional uint32 user_sid = 5;
//	  optional bool visible = 6;
//	}
func parseInfoWire(buf []byte) (RawInfo, error) {
	info := RawInfo{Version: -1}

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			info.Version = int32(n)
		case 2:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			info.Timestamp = n
		case 3:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			info.Changeset = n
		case 4:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			info.UID = int32(n)
		case 5:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			info.UserSID = uint32(n)
		case 6:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			visible := n != 0
			info.Visible = &visible
		}

		return nil
	})

	return info, err
}

// parseDenseInfoWire decodes the columnar DenseInfo companion:
//
//	message DenseInfo {
//	  repeated int32 version = 1 [packed=true];
//	  repeated sint64 timestamp = 2 [packed=true];
//	  repeated sint64 changeset = 3 [packed=true];
//	  repeated sint32 uid = 4 [packed=true];
//	  repeated sint32 user_sid = 5 [packed=true];
//	  repeated bool visible = 6 [packed=true];
//	}
func parseDenseInfoWire(buf []byte) (DenseInfo, error) {
	var di DenseInfo

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			vals, err := packedInt32Field(typ, v)
			if err != nil {
				return err
			}

			di.Version = vals
		case 2:
			vals, err := packedSint64Field(typ, v)
			if err != nil {
				return err
			}

			di.Timestamp = vals
		case 3:
			vals, err := packedSint64Field(typ, v)
			if err != nil {
				return err
			}

			di.Changeset = vals
		case 4:
			vals, err := packedSint32Field(typ, v)
			if err != nil {
				return err
			}

			di.UID = vals
		case 5:
			vals, err := packedSint32Field(typ, v)
			if err != nil {
				return err
			}

			di.UserSID = vals
		case 6:
			vals, err := packedBoolField(typ, v)
			if err != nil {
				return err
			}

			di.Visible = vals
		}

		return nil
	})

	return di, err
}

// parseWayWire decodes a Way:
//
//	message Way {
//	  required int64 id = 1;
//	  repeated uint32 keys = 2 [packed=true];
//	  repeated uint32 vals = 3 [packed=true];
//	  optional Info info = 4;
//	  repeated sint64 refs = 8 [packed=true];
//	}
func parseWayWire(buf []byte) (RawWay, error) {
	var w RawWay

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			w.ID = int64(n)
		case 2:
			u, err := packedUint32Field(typ, v)
			if err != nil {
				return err
			}

			w.Keys = u
		case 3:
			u, err := packedUint32Field(typ, v)
			if err != nil {
				return err
			}

			w.Vals = u
		case 4:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			info, err := parseInfoWire(d)
			if err != nil {
				return err
			}

			w.Info = &info
		case 8:
			refs, err := packedSint64Field(typ, v)
			if err != nil {
				return err
			}

			w.Refs = refs
		}

		return nil
	})

	return w, err
}

// parseRelationWire decodes a Relation:
//
//	message Relation {
//	  required int64 id = 1;
//	  repeated uint32 keys = 2 [packed=true];
//	  repeated uint32 vals = 3 [packed=true];
//	  optional Info info = 4;
//	  repeated int32 roles_sid = 8 [packed=true];
//	  repeated sint64 memids = 9 [packed=true];
//	  repeated MemberType types = 10 [packed=true];
//	}
func parseRelationWire(buf []byte) (RawRelation, error) {
	var r RawRelation

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			r.ID = int64(n)
		case 2:
			u, err := packedUint32Field(typ, v)
			if err != nil {
				return err
			}

			r.Keys = u
		case 3:
			u, err := packedUint32Field(typ, v)
			if err != nil {
				return err
			}

			r.Vals = u
		case 4:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			info, err := parseInfoWire(d)
			if err != nil {
				return err
			}

			r.Info = &info
		case 8:
			sids, err := packedInt32Field(typ, v)
			if err != nil {
				return err
			}

			r.RolesSID = make([]uint32, len(sids))
			for i, s := range sids {
				r.RolesSID[i] = uint32(s)
			}
		case 9:
			ids, err := packedSint64Field(typ, v)
			if err != nil {
				return err
			}

			r.MemIDs = ids
		case 10:
			types, err := packedInt32Field(typ, v)
			if err != nil {
				return err
			}

			r.Types = make([]MemberType, len(types))
			for i, t := range types {
				r.Types[i] = MemberType(t)
			}
		}

		return nil
	})

	return r, err
}

// parseChangesetWire decodes a ChangeSet entry (osmformat.proto's
// changesets field, field 5 of PrimitiveGroup):
//
//	message ChangeSet {
//	  required int64 id = 1;
//	}
func parseChangesetWire(buf []byte) (RawChangeset, error) {
	var c RawChangeset

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num == 1 {
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			c.ID = n
		}

		return nil
	})

	return c, err
}

// parseHeaderBlockWire decodes the OSMHeader blob payload:
//
//	message HeaderBlock {
//	  optional HeaderBBox bbox = 1;
//	  repeated string required_features = 4;
//	  repeated string optional_features = 5;
//	  optional string writingprogram = 16;
//	  optional string source = 17;
//	  optional int64 osmosis_replication_timestamp = 32;
//	  optional int64 osmosis_replication_sequence_number = 33;
//	  optional string osmosis_replication_base_url = 34;
//	}
func parseHeaderBlockWire(buf []byte) (*HeaderBlock, error) {
	h := &HeaderBlock{}

	var repTimestamp, repSequence int64

	var repURL string

	var haveRep bool

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			bbox, err := parseHeaderBBoxWire(d)
			if err != nil {
				return err
			}

			h.BBox = &bbox
		case 4:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			h.RequiredFeatures = append(h.RequiredFeatures, string(d))
		case 5:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			h.OptionalFeatures = append(h.OptionalFeatures, string(d))
		case 16:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			h.WritingProgram = string(d)
		case 17:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			h.Source = string(d)
		case 32:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			repTimestamp, haveRep = n, true
		case 33:
			n, err := varintField(typ, v)
			if err != nil {
				return err
			}

			repSequence, haveRep = n, true
		case 34:
			d, err := bytesField(typ, v)
			if err != nil {
				return err
			}

			repURL, haveRep = string(d), true
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if haveRep {
		rep, err := NewReplicationInfo(repTimestamp, repSequence, repURL)
		if err != nil {
			return nil, err
		}

		h.Replication = &rep
	}

	return h, nil
}

// parseHeaderBBoxWire decodes HeaderBBox:
//
//	message HeaderBBox {
//	  required sint64 left = 1;
//	  required sint64 right = 2;
//	  required sint64 top = 3;
//	  required sint64 bottom = 4;
//	}
func parseHeaderBBoxWire(buf []byte) (HeaderBBox, error) {
	var b HeaderBBox

	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			x, err := sintField(typ, v)
			if err != nil {
				return err
			}

			b.Left = NanoDegree(x)
		case 2:
			x, err := sintField(typ, v)
			if err != nil {
				return err
			}

			b.Right = NanoDegree(x)
		case 3:
			x, err := sintField(typ, v)
			if err != nil {
				return err
			}

			b.Top = NanoDegree(x)
		case 4:
			x, err := sintField(typ, v)
			if err != nil {
				return err
			}

			b.Bottom = NanoDegree(x)
		}

		return nil
	})

	return b, err
}

// walkFields is the shared field-dispatch loop used by every message
// parser in this file. It does not validate required-field presence;
// that is a semantic concern left to each caller. Unknown field numbers
// are skipped, per proto3-style forward compatibility.
func walkFields(buf []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return wrapErr(ErrInvalidFormat, "consume tag", protowire.ParseError(n))
		}

		buf = buf[n:]

		var val []byte

		switch typ {
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return wrapErr(ErrInvalidFormat, "consume varint", protowire.ParseError(n))
			}

			val = buf[:n]
		case protowire.Fixed32Type:
			if len(buf) < 4 {
				return newErr(ErrInvalidFormat, "truncated fixed32 field")
			}

			val = buf[:4]
		case protowire.Fixed64Type:
			if len(buf) < 8 {
				return newErr(ErrInvalidFormat, "truncated fixed64 field")
			}

			val = buf[:8]
		case protowire.BytesType:
			_, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return wrapErr(ErrInvalidFormat, "consume bytes", protowire.ParseError(n))
			}

			val = buf[:n]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return wrapErr(ErrInvalidFormat, "consume field", protowire.ParseError(n))
			}

			val = buf[:n]
		}

		if err := fn(num, typ, val); err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}

		buf = buf[len(val):]
	}

	return nil
}

func varintField(typ protowire.Type, v []byte) (int64, error) {
	if typ != protowire.VarintType {
		return 0, newErr(ErrInvalidFormat, "expected varint wire type")
	}

	n, _ := protowire.ConsumeVarint(v)

	return int64(n), nil
}

func sintField(typ protowire.Type, v []byte) (int64, error) {
	if typ != protowire.VarintType {
		return 0, newErr(ErrInvalidFormat, "expected varint wire type")
	}

	n, _ := protowire.ConsumeVarint(v)

	return protowire.DecodeZigZag(n), nil
}

func bytesField(typ protowire.Type, v []byte) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, newErr(ErrInvalidFormat, "expected length-delimited wire type")
	}

	b, _ := protowire.ConsumeBytes(v)

	return b, nil
}

// packedUint32Field accepts both the packed (length-delimited) and legacy
// unpacked (repeated varint) wire representations of a packed field.
func packedUint32Field(typ protowire.Type, v []byte) ([]uint32, error) {
	vals, err := packedVarints(typ, v)
	if err != nil {
		return nil, err
	}

	out := make([]uint32, len(vals))
	for i, x := range vals {
		out[i] = uint32(x)
	}

	return out, nil
}

func packedInt32Field(typ protowire.Type, v []byte) ([]int32, error) {
	vals, err := packedVarints(typ, v)
	if err != nil {
		return nil, err
	}

	out := make([]int32, len(vals))
	for i, x := range vals {
		out[i] = int32(x)
	}

	return out, nil
}

func packedSint32Field(typ protowire.Type, v []byte) ([]int32, error) {
	vals, err := packedZigZags(typ, v)
	if err != nil {
		return nil, err
	}

	out := make([]int32, len(vals))
	for i, x := range vals {
		out[i] = int32(x)
	}

	return out, nil
}

func packedSint64Field(typ protowire.Type, v []byte) ([]int64, error) {
	return packedZigZags(typ, v)
}

func packedBoolField(typ protowire.Type, v []byte) ([]bool, error) {
	vals, err := packedVarints(typ, v)
	if err != nil {
		return nil, err
	}

	out := make([]bool, len(vals))
	for i, x := range vals {
		out[i] = x != 0
	}

	return out, nil
}

func packedVarints(typ protowire.Type, v []byte) ([]uint64, error) {
	if typ == protowire.VarintType {
		n, _ := protowire.ConsumeVarint(v)

		return []uint64{n}, nil
	}

	if typ != protowire.BytesType {
		return nil, newErr(ErrInvalidFormat, "expected packed or varint wire type")
	}

	data, _ := protowire.ConsumeBytes(v)

	var out []uint64

	for len(data) > 0 {
		n, k := protowire.ConsumeVarint(data)
		if k < 0 {
			return nil, wrapErr(ErrInvalidFormat, "consume packed varint", protowire.ParseError(k))
		}

		out = append(out, n)
		data = data[k:]
	}

	return out, nil
}

func packedZigZags(typ protowire.Type, v []byte) ([]int64, error) {
	raw, err := packedVarints(typ, v)
	if err != nil {
		return nil, err
	}

	out := make([]int64, len(raw))
	for i, x := range raw {
		out[i] = protowire.DecodeZigZag(x)
	}

	return out, nil
}
