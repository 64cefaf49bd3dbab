package onnx

import "sort"

// ModelInfo contains basic information about an ONNX model without compiling it.
type ModelInfo struct {
	IRVersion       int64             `json:"ir_version"`
	OpsetVersion    int64             `json:"opset_version"`
	ProducerName    string            `json:"producer_name"`
	ProducerVersion string            `json:"producer_version"`
	InputNames      []string          `json:"inputs"`
	OutputNames     []string          `json:"outputs"`
	NodeCount       int               `json:"node_count"`
	WeightCount     int               `json:"initializer_count"`
	Operators       []string          `json:"operators"` // distinct op types, sorted
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// GetModelInfo extracts basic info from an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Describe(proto), nil
}

// Describe summarizes a parsed model.
func Describe(proto *ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		OpsetVersion:    proto.DefaultOpset(),
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
		Metadata:        make(map[string]string, len(proto.MetadataProps)),
	}
	for _, prop := range proto.MetadataProps {
		info.Metadata[prop.Key] = prop.Value
	}

	if proto.Graph == nil {
		return info
	}

	// Inputs are graph inputs minus initializers
	initNames := make(map[string]bool)
	for i := range proto.Graph.Initializers {
		initNames[proto.Graph.Initializers[i].Name] = true
	}
	for i := range proto.Graph.Inputs {
		if !initNames[proto.Graph.Inputs[i].Name] {
			info.InputNames = append(info.InputNames, proto.Graph.Inputs[i].Name)
		}
	}

	for i := range proto.Graph.Outputs {
		info.OutputNames = append(info.OutputNames, proto.Graph.Outputs[i].Name)
	}

	ops := make(map[string]bool)
	for i := range proto.Graph.Nodes {
		ops[proto.Graph.Nodes[i].OpType] = true
	}
	for op := range ops {
		info.Operators = append(info.Operators, op)
	}
	sort.Strings(info.Operators)

	info.NodeCount = len(proto.Graph.Nodes)
	info.WeightCount = len(proto.Graph.Initializers)
	return info
}
