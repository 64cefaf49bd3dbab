package born2onnx

import (
	"fmt"
	"math"

	"github.com/born-ml/onnxexport/internal/onnx"
	"github.com/born-ml/onnxexport/internal/tensor"
)

// evalGraph is a small reference interpreter for the operators this
// converter emits. It runs nodes in order, which prune keeps topological.
func evalGraph(g *onnx.GraphProto, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error) {
	values := make(map[string]*tensor.Dense)
	for name, t := range inputs {
		values[name] = t
	}
	for i := range g.Initializers {
		init := &g.Initializers[i]
		dims := make(tensor.Shape, len(init.Dims))
		for j, d := range init.Dims {
			dims[j] = int(d)
		}
		t, err := tensor.FromBytes(init.RawData, dims)
		if err != nil {
			return nil, fmt.Errorf("initializer %s: %w", init.Name, err)
		}
		values[init.Name] = t
	}

	for i := range g.Nodes {
		node := &g.Nodes[i]
		args := make([]*tensor.Dense, len(node.Inputs))
		for j, name := range node.Inputs {
			t, ok := values[name]
			if !ok {
				return nil, fmt.Errorf("node %s: missing input %s", node.Name, name)
			}
			args[j] = t
		}
		out, err := evalNode(node, args)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node.Name, err)
		}
		values[node.Outputs[0]] = out
	}

	result := make(map[string]*tensor.Dense)
	for _, out := range g.Outputs {
		result[out.Name] = values[out.Name]
	}
	return result, nil
}

func attrInt(node *onnx.NodeProto, name string, def int64) int64 {
	if a, ok := node.Attr(name); ok {
		return a.I
	}
	return def
}

func attrFloat(node *onnx.NodeProto, name string, def float32) float32 {
	if a, ok := node.Attr(name); ok {
		return a.F
	}
	return def
}

func unaryOp(x *tensor.Dense, f func(float64) float64) *tensor.Dense {
	out := x.Clone()
	for i, v := range out.Data() {
		out.Data()[i] = float32(f(float64(v)))
	}
	return out
}

//nolint:gocyclo // one case per operator
func evalNode(node *onnx.NodeProto, args []*tensor.Dense) (*tensor.Dense, error) {
	switch node.OpType {
	case "Identity":
		return args[0].Clone(), nil
	case "Relu":
		return unaryOp(args[0], func(v float64) float64 { return math.Max(v, 0) }), nil
	case "LeakyRelu":
		alpha := float64(attrFloat(node, "alpha", 0.01))
		return unaryOp(args[0], func(v float64) float64 {
			if v < 0 {
				return alpha * v
			}
			return v
		}), nil
	case "Sigmoid":
		return unaryOp(args[0], func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }), nil
	case "Tanh":
		return unaryOp(args[0], math.Tanh), nil
	case "Sqrt":
		return unaryOp(args[0], math.Sqrt), nil
	case "Add":
		return broadcast(args[0], args[1], func(a, b float32) float32 { return a + b })
	case "Sub":
		return broadcast(args[0], args[1], func(a, b float32) float32 { return a - b })
	case "Mul":
		return broadcast(args[0], args[1], func(a, b float32) float32 { return a * b })
	case "Div":
		return broadcast(args[0], args[1], func(a, b float32) float32 { return a / b })
	case "Gemm":
		if attrInt(node, "transB", 0) != 1 {
			return nil, fmt.Errorf("only transB=1 is supported")
		}
		y, err := matmul(args[0], transpose(args[1]))
		if err != nil || len(args) < 3 {
			return y, err
		}
		return broadcast(y, args[2], func(a, b float32) float32 { return a + b })
	case "MatMul":
		return matmul(args[0], args[1])
	case "Flatten":
		axis := int(attrInt(node, "axis", 1))
		s := args[0].Shape()
		return args[0].Clone().Reshape(tensor.Shape{tensor.Shape(s[:axis]).NumElements(), tensor.Shape(s[axis:]).NumElements()})
	case "Softmax":
		return softmaxLast(args[0])
	case "ReduceMean":
		a, _ := node.Attr("axes")
		return reduceMeanTrailing(args[0], len(a.Ints))
	case "LayerNormalization":
		k := args[0].Rank() - int(attrInt(node, "axis", -1))
		eps := attrFloat(node, "epsilon", 1e-5)
		mean, _ := reduceMeanTrailing(args[0], k)
		centered, _ := broadcast(args[0], mean, func(a, b float32) float32 { return a - b })
		sq, _ := broadcast(centered, centered, func(a, b float32) float32 { return a * b })
		variance, _ := reduceMeanTrailing(sq, k)
		normed, _ := broadcast(centered, variance, func(a, b float32) float32 {
			return a / float32(math.Sqrt(float64(b+eps)))
		})
		scaled, _ := broadcast(normed, args[1], func(a, b float32) float32 { return a * b })
		return broadcast(scaled, args[2], func(a, b float32) float32 { return a + b })
	}
	return nil, fmt.Errorf("unsupported op %s", node.OpType)
}

// broadcast applies f with numpy-style broadcasting.
func broadcast(a, b *tensor.Dense, f func(a, b float32) float32) (*tensor.Dense, error) {
	as, bs := a.Shape(), b.Shape()
	rank := max(len(as), len(bs))
	pad := func(s tensor.Shape) tensor.Shape {
		out := make(tensor.Shape, rank)
		for i := range out {
			out[i] = 1
		}
		copy(out[rank-len(s):], s)
		return out
	}
	ap, bp := pad(as), pad(bs)
	outShape := make(tensor.Shape, rank)
	for i := range outShape {
		switch {
		case ap[i] == bp[i] || bp[i] == 1:
			outShape[i] = ap[i]
		case ap[i] == 1:
			outShape[i] = bp[i]
		default:
			return nil, fmt.Errorf("cannot broadcast %v and %v", as, bs)
		}
	}

	out := make([]float32, outShape.NumElements())
	aStrides, bStrides, oStrides := ap.ComputeStrides(), bp.ComputeStrides(), outShape.ComputeStrides()
	for idx := range out {
		ai, bi, rem := 0, 0, idx
		for d := 0; d < rank; d++ {
			coord := rem / oStrides[d]
			rem %= oStrides[d]
			if ap[d] != 1 {
				ai += coord * aStrides[d]
			}
			if bp[d] != 1 {
				bi += coord * bStrides[d]
			}
		}
		out[idx] = f(a.Data()[ai], b.Data()[bi])
	}
	return tensor.FromSlice(out, outShape)
}

// matmul multiplies the trailing two dims of a by the matrix b.
func matmul(a, b *tensor.Dense) (*tensor.Dense, error) {
	as := a.Shape()
	k, n := b.Shape()[0], b.Shape()[1]
	if as[len(as)-1] != k {
		return nil, fmt.Errorf("matmul: %v x %v", as, b.Shape())
	}
	rows := a.NumElements() / k
	out := make([]float32, rows*n)
	for r := 0; r < rows; r++ {
		for c := 0; c < n; c++ {
			var sum float32
			for i := 0; i < k; i++ {
				sum += a.Data()[r*k+i] * b.Data()[i*n+c]
			}
			out[r*n+c] = sum
		}
	}
	outShape := as.Clone()
	outShape[len(outShape)-1] = n
	return tensor.FromSlice(out, outShape)
}

func softmaxLast(x *tensor.Dense) (*tensor.Dense, error) {
	n := x.Shape()[x.Rank()-1]
	out := x.Clone()
	data := out.Data()
	for start := 0; start < len(data); start += n {
		row := data[start : start+n]
		maxVal := row[0]
		for _, v := range row {
			maxVal = max(maxVal, v)
		}
		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v - maxVal))
			row[i] = float32(e)
			sum += e
		}
		for i := range row {
			row[i] = float32(float64(row[i]) / sum)
		}
	}
	return out, nil
}

// reduceMeanTrailing averages over the last k dims, keeping them as size 1.
func reduceMeanTrailing(x *tensor.Dense, k int) (*tensor.Dense, error) {
	s := x.Shape()
	group := tensor.Shape(s[len(s)-k:]).NumElements()
	out := make([]float32, x.NumElements()/group)
	for g := range out {
		var sum float32
		for _, v := range x.Data()[g*group : (g+1)*group] {
			sum += v
		}
		out[g] = sum / float32(group)
	}
	outShape := s.Clone()
	for i := len(s) - k; i < len(s); i++ {
		outShape[i] = 1
	}
	return tensor.FromSlice(out, outShape)
}
