// Package onnx implements the ONNX protobuf model format.
//
// ONNX (Open Neural Network Exchange) is an open format for representing deep learning models.
// This package mirrors the ONNX messages as plain Go structs and encodes and decodes
// them with the protobuf wire helpers, without generated code.
//
// Key components:
//   - ModelProto: Top-level ONNX model structure with metadata and graph
//   - GraphProto: Computation graph with nodes, inputs, outputs, and initializers
//   - NodeProto: Single operation in the graph (e.g., Gemm, Relu)
//   - TensorProto: Weight/initializer tensor with data and shape
//   - ValueInfoProto: Input/output tensor type information
//
// Example usage:
//
//	data, err := onnx.Marshal(model)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	parsed, err := onnx.Parse(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, node := range parsed.Graph.Nodes {
//	    fmt.Printf("Op: %s (type: %s)\n", node.Name, node.OpType)
//	}
package onnx
