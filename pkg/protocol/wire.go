package protocol

import (
	"sort"

	"github.com/presage-dev/presage/internal/errors"
	"github.com/presage-dev/presage/pkg/vtree"
)

// Node kind tags on the wire.
const (
	wireKindElement byte = 0x00
	wireKindText    byte = 0x01
	wireKindNull    byte = 0x02
)

// EncodePath appends a position path: varint segment count followed by
// one uint32 per segment.
func EncodePath(e *Encoder, p vtree.Path) {
	e.WriteUvarint(uint64(len(p)))
	for _, pos := range p {
		e.WriteUint32(uint32(pos))
	}
}

// DecodePath reads a position path.
func DecodePath(d *Decoder) (vtree.Path, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	p := make(vtree.Path, count)
	for i := 0; i < count; i++ {
		seg, err := d.ReadUint32()
		if err != nil {
			return nil, err
		}
		p[i] = vtree.PositionID(seg)
	}
	return p, nil
}

// EncodeNode appends a view-tree node. Attributes are written in
// sorted key order so equal trees always encode to equal bytes; that
// determinism is what makes serialized size usable for memory
// accounting.
func EncodeNode(e *Encoder, n *vtree.Node) {
	switch n.Kind {
	case vtree.KindText:
		e.WriteByte(wireKindText)
		e.WriteUint32(uint32(n.Pos))
		e.WriteString(n.Text)
	case vtree.KindNull:
		e.WriteByte(wireKindNull)
		e.WriteUint32(uint32(n.Pos))
	default:
		e.WriteByte(wireKindElement)
		e.WriteUint32(uint32(n.Pos))
		e.WriteString(n.Tag)

		keys := make([]string, 0, len(n.Attrs))
		for k := range n.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.WriteUvarint(uint64(len(keys)))
		for _, k := range keys {
			e.WriteString(k)
			e.WriteString(n.Attrs[k])
		}

		e.WriteUvarint(uint64(len(n.Children)))
		for _, c := range n.Children {
			EncodeNode(e, c)
		}
	}
}

// DecodeNode reads a view-tree node.
func DecodeNode(d *Decoder) (*vtree.Node, error) {
	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	posRaw, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	pos := vtree.PositionID(posRaw)

	switch kind {
	case wireKindText:
		text, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		return vtree.Text(pos, text), nil

	case wireKindNull:
		return vtree.Null(pos), nil

	case wireKindElement:
		tag, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		attrCount, err := d.ReadCollectionCount()
		if err != nil {
			return nil, err
		}
		var attrs map[string]string
		if attrCount > 0 {
			attrs = make(map[string]string, attrCount)
			for i := 0; i < attrCount; i++ {
				k, err := d.ReadString()
				if err != nil {
					return nil, err
				}
				v, err := d.ReadString()
				if err != nil {
					return nil, err
				}
				attrs[k] = v
			}
		}
		childCount, err := d.ReadCollectionCount()
		if err != nil {
			return nil, err
		}
		children := make([]*vtree.Node, childCount)
		for i := 0; i < childCount; i++ {
			if children[i], err = DecodeNode(d); err != nil {
				return nil, err
			}
		}
		return vtree.Element(pos, tag, attrs, children...), nil

	default:
		return nil, errors.New("E030").WithDetail("unknown node kind 0x%02x", kind)
	}
}

// EncodePatch appends one patch operation.
func EncodePatch(e *Encoder, p *vtree.Patch) {
	e.WriteByte(byte(p.Op))
	EncodePath(e, p.Path)

	switch p.Op {
	case vtree.OpSetText:
		e.WriteString(p.Value)
	case vtree.OpSetAttr:
		e.WriteString(p.Key)
		e.WriteString(p.Value)
	case vtree.OpRemoveAttr:
		e.WriteString(p.Key)
	case vtree.OpInsertNode:
		e.WriteUvarint(uint64(p.Index))
		EncodeNode(e, p.Node)
	case vtree.OpRemoveNode:
		// Path is sufficient.
	case vtree.OpMoveNode:
		e.WriteUvarint(uint64(p.Index))
	case vtree.OpReplaceNode:
		EncodeNode(e, p.Node)
	}
}

// DecodePatch reads one patch operation.
func DecodePatch(d *Decoder) (vtree.Patch, error) {
	var p vtree.Patch

	opByte, err := d.ReadByte()
	if err != nil {
		return p, err
	}
	p.Op = vtree.Op(opByte)

	if p.Path, err = DecodePath(d); err != nil {
		return p, err
	}

	switch p.Op {
	case vtree.OpSetText:
		p.Value, err = d.ReadString()
	case vtree.OpSetAttr:
		if p.Key, err = d.ReadString(); err != nil {
			return p, err
		}
		p.Value, err = d.ReadString()
	case vtree.OpRemoveAttr:
		p.Key, err = d.ReadString()
	case vtree.OpInsertNode:
		var idx uint64
		if idx, err = d.ReadUvarint(); err != nil {
			return p, err
		}
		p.Index = int(idx)
		p.Node, err = DecodeNode(d)
	case vtree.OpRemoveNode:
		// Path is sufficient.
	case vtree.OpMoveNode:
		var idx uint64
		idx, err = d.ReadUvarint()
		p.Index = int(idx)
	case vtree.OpReplaceNode:
		p.Node, err = DecodeNode(d)
	default:
		return p, errors.New("E032").WithDetail("op byte 0x%02x", opByte)
	}
	return p, err
}

// EncodePatchList appends a varint count followed by each patch.
func EncodePatchList(e *Encoder, patches []vtree.Patch) {
	e.WriteUvarint(uint64(len(patches)))
	for i := range patches {
		EncodePatch(e, &patches[i])
	}
}

// DecodePatchList reads a counted patch list.
func DecodePatchList(d *Decoder) ([]vtree.Patch, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	patches := make([]vtree.Patch, count)
	for i := 0; i < count; i++ {
		if patches[i], err = DecodePatch(d); err != nil {
			return nil, err
		}
	}
	return patches, nil
}

// PatchListSize returns the serialized size of a patch list in bytes.
// The forecasting store uses this as the entry's memory cost.
func PatchListSize(patches []vtree.Patch) int {
	e := NewEncoder()
	EncodePatchList(e, patches)
	return e.Len()
}
