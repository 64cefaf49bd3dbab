// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package born2onnx

import (
	"github.com/samber/lo"

	"github.com/born-ml/onnxexport/internal/onnx"
)

// prune drops the nodes and initializers that do not contribute to outputs.
// Node order is preserved, so a topologically sorted input stays sorted.
func prune(nodes []onnx.NodeProto, inits []onnx.TensorProto, outputs []string) ([]onnx.NodeProto, []onnx.TensorProto) {
	producer := make(map[string]int)
	for i := range nodes {
		for _, out := range nodes[i].Outputs {
			producer[out] = i
		}
	}

	keep := make([]bool, len(nodes))
	needed := make(map[string]bool)
	stack := append([]string(nil), outputs...)
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if needed[name] {
			continue
		}
		needed[name] = true
		if i, ok := producer[name]; ok && !keep[i] {
			keep[i] = true
			stack = append(stack, nodes[i].Inputs...)
		}
	}

	keptNodes := lo.Filter(nodes, func(_ onnx.NodeProto, i int) bool {
		return keep[i]
	})
	keptInits := lo.Filter(inits, func(t onnx.TensorProto, _ int) bool {
		return needed[t.Name]
	})
	return keptNodes, keptInits
}
