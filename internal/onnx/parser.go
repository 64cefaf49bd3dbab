package onnx

import (
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: Path is provided by user, file inclusion is intentional for ONNX model loading
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	model := &ModelProto{}
	if err := decodeMessage(data, model.decodeField); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return model, nil
}

// fieldDecoder decodes the value of one field from b and returns the number
// of bytes consumed. Returning 0 skips the field.
type fieldDecoder func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// decodeMessage walks the fields of one message, skipping unknown ones.
func decodeMessage(b []byte, decode fieldDecoder) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := decode(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func wireTypeError(want, got protowire.Type) error {
	return fmt.Errorf("unexpected wire type %d (want %d)", got, want)
}

func consumeVarint(typ protowire.Type, b []byte, dst *int64) (int, error) {
	if typ != protowire.VarintType {
		return 0, wireTypeError(protowire.VarintType, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = int64(v)
	return n, nil
}

func consumeInt32(typ protowire.Type, b []byte, dst *int32) (int, error) {
	var v int64
	n, err := consumeVarint(typ, b, &v)
	*dst = int32(v)
	return n, err
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, wireTypeError(protowire.BytesType, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	v, n, err := consumeBytes(typ, b)
	*dst = string(v)
	return n, err
}

// consumeSubMessage decodes an embedded message with decode.
func consumeSubMessage(typ protowire.Type, b []byte, decode fieldDecoder) (int, error) {
	v, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	if err := decodeMessage(v, decode); err != nil {
		return 0, err
	}
	return n, nil
}

// consumeInt64s reads a repeated varint field in packed or unpacked form.
func consumeInt64s(typ protowire.Type, b []byte, dst *[]int64) (int, error) {
	if typ == protowire.VarintType {
		var v int64
		n, err := consumeVarint(typ, b, &v)
		*dst = append(*dst, v)
		return n, err
	}
	packed, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return 0, protowire.ParseError(m)
		}
		*dst = append(*dst, int64(v))
		packed = packed[m:]
	}
	return n, nil
}

// consumeFloats reads a repeated float field in packed or unpacked form.
func consumeFloats(typ protowire.Type, b []byte, dst *[]float32) (int, error) {
	if typ == protowire.Fixed32Type {
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		*dst = append(*dst, math.Float32frombits(v))
		return n, nil
	}
	packed, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	if len(packed)%4 != 0 {
		return 0, fmt.Errorf("packed float length %d is not a multiple of 4", len(packed))
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeFixed32(packed)
		*dst = append(*dst, math.Float32frombits(v))
		packed = packed[m:]
	}
	return n, nil
}

func (m *ModelProto) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case fieldModelIRVersion:
		return consumeVarint(typ, b, &m.IRVersion)
	case fieldModelProducerName:
		return consumeString(typ, b, &m.ProducerName)
	case fieldModelProducerVersion:
		return consumeString(typ, b, &m.ProducerVersion)
	case fieldModelDomain:
		return consumeString(typ, b, &m.Domain)
	case fieldModelVersion:
		return consumeVarint(typ, b, &m.ModelVersion)
	case fieldModelDocString:
		return consumeString(typ, b, &m.DocString)
	case fieldModelGraph:
		m.Graph = &GraphProto{}
		return consumeSubMessage(typ, b, m.Graph.decodeField)
	case fieldModelOpsetImport:
		var opset OperatorSetID
		n, err := consumeSubMessage(typ, b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case fieldOpsetDomain:
				return consumeString(typ, b, &opset.Domain)
			case fieldOpsetVersion:
				return consumeVarint(typ, b, &opset.Version)
			}
			return 0, nil
		})
		m.OpsetImport = append(m.OpsetImport, opset)
		return n, err
	case fieldModelMetadataProps:
		var entry StringStringEntry
		n, err := consumeSubMessage(typ, b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case fieldEntryKey:
				return consumeString(typ, b, &entry.Key)
			case fieldEntryValue:
				return consumeString(typ, b, &entry.Value)
			}
			return 0, nil
		})
		m.MetadataProps = append(m.MetadataProps, entry)
		return n, err
	}
	return 0, nil
}

func (g *GraphProto) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case fieldGraphNode:
		var node NodeProto
		n, err := consumeSubMessage(typ, b, node.decodeField)
		g.Nodes = append(g.Nodes, node)
		return n, err
	case fieldGraphName:
		return consumeString(typ, b, &g.Name)
	case fieldGraphInitializer:
		var t TensorProto
		n, err := consumeSubMessage(typ, b, t.decodeField)
		g.Initializers = append(g.Initializers, t)
		return n, err
	case fieldGraphDocString:
		return consumeString(typ, b, &g.DocString)
	case fieldGraphInput:
		return consumeValueInfo(typ, b, &g.Inputs)
	case fieldGraphOutput:
		return consumeValueInfo(typ, b, &g.Outputs)
	case fieldGraphValueInfo:
		return consumeValueInfo(typ, b, &g.ValueInfo)
	}
	return 0, nil
}

func (node *NodeProto) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case fieldNodeInput:
		var s string
		n, err := consumeString(typ, b, &s)
		node.Inputs = append(node.Inputs, s)
		return n, err
	case fieldNodeOutput:
		var s string
		n, err := consumeString(typ, b, &s)
		node.Outputs = append(node.Outputs, s)
		return n, err
	case fieldNodeName:
		return consumeString(typ, b, &node.Name)
	case fieldNodeOpType:
		return consumeString(typ, b, &node.OpType)
	case fieldNodeAttribute:
		var attr AttributeProto
		n, err := consumeSubMessage(typ, b, attr.decodeField)
		node.Attributes = append(node.Attributes, attr)
		return n, err
	case fieldNodeDocString:
		return consumeString(typ, b, &node.DocString)
	case fieldNodeDomain:
		return consumeString(typ, b, &node.Domain)
	}
	return 0, nil
}

func (a *AttributeProto) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case fieldAttrName:
		return consumeString(typ, b, &a.Name)
	case fieldAttrF:
		var fs []float32
		n, err := consumeFloats(typ, b, &fs)
		if len(fs) > 0 {
			a.F = fs[0]
		}
		return n, err
	case fieldAttrI:
		return consumeVarint(typ, b, &a.I)
	case fieldAttrS:
		v, n, err := consumeBytes(typ, b)
		a.S = append([]byte(nil), v...)
		return n, err
	case fieldAttrT:
		a.T = &TensorProto{}
		return consumeSubMessage(typ, b, a.T.decodeField)
	case fieldAttrFloats:
		return consumeFloats(typ, b, &a.Floats)
	case fieldAttrInts:
		return consumeInt64s(typ, b, &a.Ints)
	case fieldAttrStrings:
		v, n, err := consumeBytes(typ, b)
		a.Strings = append(a.Strings, append([]byte(nil), v...))
		return n, err
	case fieldAttrDocString:
		return consumeString(typ, b, &a.DocString)
	case fieldAttrType:
		return consumeInt32(typ, b, &a.Type)
	}
	return 0, nil
}

func (t *TensorProto) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case fieldTensorDims:
		return consumeInt64s(typ, b, &t.Dims)
	case fieldTensorDataType:
		return consumeInt32(typ, b, &t.DataType)
	case fieldTensorFloatData:
		return consumeFloats(typ, b, &t.FloatData)
	case fieldTensorInt32Data:
		var vals []int64
		n, err := consumeInt64s(typ, b, &vals)
		for _, v := range vals {
			t.Int32Data = append(t.Int32Data, int32(v))
		}
		return n, err
	case fieldTensorInt64Data:
		return consumeInt64s(typ, b, &t.Int64Data)
	case fieldTensorName:
		return consumeString(typ, b, &t.Name)
	case fieldTensorRawData:
		v, n, err := consumeBytes(typ, b)
		t.RawData = append([]byte(nil), v...)
		return n, err
	case fieldTensorDocString:
		return consumeString(typ, b, &t.DocString)
	}
	return 0, nil
}

func consumeValueInfo(typ protowire.Type, b []byte, dst *[]ValueInfoProto) (int, error) {
	var vi ValueInfoProto
	n, err := consumeSubMessage(typ, b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldValueInfoName:
			return consumeString(typ, b, &vi.Name)
		case fieldValueInfoType:
			vi.Type = &TypeProto{}
			return consumeSubMessage(typ, b, vi.Type.decodeField)
		case fieldValueInfoDocString:
			return consumeString(typ, b, &vi.DocString)
		}
		return 0, nil
	})
	*dst = append(*dst, vi)
	return n, err
}

func (tp *TypeProto) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num != fieldTypeTensorType {
		return 0, nil
	}
	tp.TensorType = &TensorTypeProto{}
	return consumeSubMessage(typ, b, tp.TensorType.decodeField)
}

func (tt *TensorTypeProto) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case fieldTensorTypeElemType:
		return consumeInt32(typ, b, &tt.ElemType)
	case fieldTensorTypeShape:
		tt.Shape = &TensorShapeProto{}
		return consumeSubMessage(typ, b, tt.Shape.decodeField)
	}
	return 0, nil
}

func (s *TensorShapeProto) decodeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num != fieldShapeDim {
		return 0, nil
	}
	var dim DimensionProto
	n, err := consumeSubMessage(typ, b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldDimValue:
			return consumeVarint(typ, b, &dim.DimValue)
		case fieldDimParam:
			return consumeString(typ, b, &dim.DimParam)
		}
		return 0, nil
	})
	s.Dims = append(s.Dims, dim)
	return n, err
}
