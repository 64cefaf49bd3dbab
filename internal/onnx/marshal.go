package onnx

import (
	"errors"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from onnx.proto.
const (
	fieldModelIRVersion       protowire.Number = 1
	fieldModelProducerName    protowire.Number = 2
	fieldModelProducerVersion protowire.Number = 3
	fieldModelDomain          protowire.Number = 4
	fieldModelVersion         protowire.Number = 5
	fieldModelDocString       protowire.Number = 6
	fieldModelGraph           protowire.Number = 7
	fieldModelOpsetImport     protowire.Number = 8
	fieldModelMetadataProps   protowire.Number = 14

	fieldGraphNode        protowire.Number = 1
	fieldGraphName        protowire.Number = 2
	fieldGraphInitializer protowire.Number = 5
	fieldGraphDocString   protowire.Number = 10
	fieldGraphInput       protowire.Number = 11
	fieldGraphOutput      protowire.Number = 12
	fieldGraphValueInfo   protowire.Number = 13

	fieldNodeInput     protowire.Number = 1
	fieldNodeOutput    protowire.Number = 2
	fieldNodeName      protowire.Number = 3
	fieldNodeOpType    protowire.Number = 4
	fieldNodeAttribute protowire.Number = 5
	fieldNodeDocString protowire.Number = 6
	fieldNodeDomain    protowire.Number = 7

	fieldAttrName      protowire.Number = 1
	fieldAttrF         protowire.Number = 2
	fieldAttrI         protowire.Number = 3
	fieldAttrS         protowire.Number = 4
	fieldAttrT         protowire.Number = 5
	fieldAttrFloats    protowire.Number = 7
	fieldAttrInts      protowire.Number = 8
	fieldAttrStrings   protowire.Number = 9
	fieldAttrDocString protowire.Number = 13
	fieldAttrType      protowire.Number = 20

	fieldTensorDims      protowire.Number = 1
	fieldTensorDataType  protowire.Number = 2
	fieldTensorFloatData protowire.Number = 4
	fieldTensorInt32Data protowire.Number = 5
	fieldTensorInt64Data protowire.Number = 7
	fieldTensorName      protowire.Number = 8
	fieldTensorRawData   protowire.Number = 9
	fieldTensorDocString protowire.Number = 12

	fieldValueInfoName      protowire.Number = 1
	fieldValueInfoType      protowire.Number = 2
	fieldValueInfoDocString protowire.Number = 3

	fieldTypeTensorType protowire.Number = 1

	fieldTensorTypeElemType protowire.Number = 1
	fieldTensorTypeShape    protowire.Number = 2

	fieldShapeDim protowire.Number = 1

	fieldDimValue protowire.Number = 1
	fieldDimParam protowire.Number = 2

	fieldOpsetDomain  protowire.Number = 1
	fieldOpsetVersion protowire.Number = 2

	fieldEntryKey   protowire.Number = 1
	fieldEntryValue protowire.Number = 2
)

// Marshal encodes a model in the ONNX protobuf binary format.
func Marshal(m *ModelProto) ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	if m.Graph == nil {
		return nil, errors.New("model has no graph")
	}
	return appendModel(nil, m), nil
}

func appendVarintField(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendFloatField(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

// appendMessage appends a length-delimited sub-message produced by enc.
func appendMessage(b []byte, num protowire.Number, enc func([]byte) []byte) []byte {
	return appendBytesField(b, num, enc(nil))
}

func appendModel(b []byte, m *ModelProto) []byte {
	b = appendVarintField(b, fieldModelIRVersion, m.IRVersion)
	b = appendStringField(b, fieldModelProducerName, m.ProducerName)
	b = appendStringField(b, fieldModelProducerVersion, m.ProducerVersion)
	b = appendStringField(b, fieldModelDomain, m.Domain)
	if m.ModelVersion != 0 {
		b = appendVarintField(b, fieldModelVersion, m.ModelVersion)
	}
	b = appendStringField(b, fieldModelDocString, m.DocString)
	b = appendMessage(b, fieldModelGraph, func(sub []byte) []byte {
		return appendGraph(sub, m.Graph)
	})
	for _, opset := range m.OpsetImport {
		b = appendMessage(b, fieldModelOpsetImport, func(sub []byte) []byte {
			sub = appendStringField(sub, fieldOpsetDomain, opset.Domain)
			return appendVarintField(sub, fieldOpsetVersion, opset.Version)
		})
	}
	for _, entry := range m.MetadataProps {
		b = appendMessage(b, fieldModelMetadataProps, func(sub []byte) []byte {
			sub = appendStringField(sub, fieldEntryKey, entry.Key)
			return appendStringField(sub, fieldEntryValue, entry.Value)
		})
	}
	return b
}

func appendGraph(b []byte, g *GraphProto) []byte {
	for i := range g.Nodes {
		b = appendMessage(b, fieldGraphNode, func(sub []byte) []byte {
			return appendNode(sub, &g.Nodes[i])
		})
	}
	b = appendStringField(b, fieldGraphName, g.Name)
	for i := range g.Initializers {
		b = appendMessage(b, fieldGraphInitializer, func(sub []byte) []byte {
			return appendTensor(sub, &g.Initializers[i])
		})
	}
	b = appendStringField(b, fieldGraphDocString, g.DocString)
	b = appendValueInfos(b, fieldGraphInput, g.Inputs)
	b = appendValueInfos(b, fieldGraphOutput, g.Outputs)
	return appendValueInfos(b, fieldGraphValueInfo, g.ValueInfo)
}

func appendNode(b []byte, n *NodeProto) []byte {
	for _, in := range n.Inputs {
		// Empty names are meaningful (omitted optional inputs), so always write them.
		b = protowire.AppendTag(b, fieldNodeInput, protowire.BytesType)
		b = protowire.AppendString(b, in)
	}
	for _, out := range n.Outputs {
		b = protowire.AppendTag(b, fieldNodeOutput, protowire.BytesType)
		b = protowire.AppendString(b, out)
	}
	b = appendStringField(b, fieldNodeName, n.Name)
	b = appendStringField(b, fieldNodeOpType, n.OpType)
	for i := range n.Attributes {
		b = appendMessage(b, fieldNodeAttribute, func(sub []byte) []byte {
			return appendAttribute(sub, &n.Attributes[i])
		})
	}
	b = appendStringField(b, fieldNodeDocString, n.DocString)
	return appendStringField(b, fieldNodeDomain, n.Domain)
}

func appendAttribute(b []byte, a *AttributeProto) []byte {
	b = appendStringField(b, fieldAttrName, a.Name)
	switch a.Type {
	case AttributeProtoFloat:
		b = appendFloatField(b, fieldAttrF, a.F)
	case AttributeProtoInt:
		b = appendVarintField(b, fieldAttrI, a.I)
	case AttributeProtoString:
		b = appendBytesField(b, fieldAttrS, a.S)
	case AttributeProtoTensor:
		if a.T != nil {
			b = appendMessage(b, fieldAttrT, func(sub []byte) []byte {
				return appendTensor(sub, a.T)
			})
		}
	case AttributeProtoFloats:
		for _, f := range a.Floats {
			b = appendFloatField(b, fieldAttrFloats, f)
		}
	case AttributeProtoInts:
		for _, i := range a.Ints {
			b = appendVarintField(b, fieldAttrInts, i)
		}
	case AttributeProtoStrings:
		for _, s := range a.Strings {
			b = appendBytesField(b, fieldAttrStrings, s)
		}
	}
	b = appendStringField(b, fieldAttrDocString, a.DocString)
	return appendVarintField(b, fieldAttrType, int64(a.Type))
}

func appendTensor(b []byte, t *TensorProto) []byte {
	for _, d := range t.Dims {
		b = appendVarintField(b, fieldTensorDims, d)
	}
	b = appendVarintField(b, fieldTensorDataType, int64(t.DataType))
	if len(t.FloatData) > 0 {
		packed := make([]byte, 0, 4*len(t.FloatData))
		for _, f := range t.FloatData {
			packed = protowire.AppendFixed32(packed, math.Float32bits(f))
		}
		b = appendBytesField(b, fieldTensorFloatData, packed)
	}
	if len(t.Int32Data) > 0 {
		var packed []byte
		for _, v := range t.Int32Data {
			packed = protowire.AppendVarint(packed, uint64(int64(v)))
		}
		b = appendBytesField(b, fieldTensorInt32Data, packed)
	}
	if len(t.Int64Data) > 0 {
		var packed []byte
		for _, v := range t.Int64Data {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		b = appendBytesField(b, fieldTensorInt64Data, packed)
	}
	b = appendStringField(b, fieldTensorName, t.Name)
	if len(t.RawData) > 0 {
		b = appendBytesField(b, fieldTensorRawData, t.RawData)
	}
	return appendStringField(b, fieldTensorDocString, t.DocString)
}

func appendValueInfos(b []byte, num protowire.Number, infos []ValueInfoProto) []byte {
	for i := range infos {
		vi := &infos[i]
		b = appendMessage(b, num, func(sub []byte) []byte {
			sub = appendStringField(sub, fieldValueInfoName, vi.Name)
			if vi.Type != nil && vi.Type.TensorType != nil {
				sub = appendMessage(sub, fieldValueInfoType, func(tp []byte) []byte {
					return appendMessage(tp, fieldTypeTensorType, func(tt []byte) []byte {
						return appendTensorType(tt, vi.Type.TensorType)
					})
				})
			}
			return appendStringField(sub, fieldValueInfoDocString, vi.DocString)
		})
	}
	return b
}

func appendTensorType(b []byte, tt *TensorTypeProto) []byte {
	b = appendVarintField(b, fieldTensorTypeElemType, int64(tt.ElemType))
	if tt.Shape == nil {
		return b
	}
	return appendMessage(b, fieldTensorTypeShape, func(sub []byte) []byte {
		for _, dim := range tt.Shape.Dims {
			sub = appendMessage(sub, fieldShapeDim, func(d []byte) []byte {
				if dim.DimParam != "" {
					return appendStringField(d, fieldDimParam, dim.DimParam)
				}
				return appendVarintField(d, fieldDimValue, dim.DimValue)
			})
		}
		return sub
	})
}
