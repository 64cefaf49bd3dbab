// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package born2onnx

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/born-ml/onnxexport/internal/export"
)

// Keyword options understood by the converter.
const (
	OptionOutputSpec = export.OutputSpecKey
	OptionGraphName  = "graph_name"
	OptionDocString  = "doc_string"
)

const defaultGraphName = "born"

type options struct {
	outputSpec []string // module paths; nil means the root output
	graphName  string
	docString  string
}

func parseOptions(kwargs map[string]any) (options, error) {
	opts := options{graphName: defaultGraphName}

	keys := lo.Keys(kwargs)
	sort.Strings(keys)
	for _, key := range keys {
		value := kwargs[key]
		switch key {
		case OptionOutputSpec:
			paths, err := stringList(value)
			if err != nil {
				return options{}, fmt.Errorf("%w: %s: %w", ErrUnknownOption, key, err)
			}
			opts.outputSpec = paths
		case OptionGraphName:
			name, ok := value.(string)
			if !ok || name == "" {
				return options{}, fmt.Errorf("%w: %s must be a non-empty string, got %T", ErrUnknownOption, key, value)
			}
			opts.graphName = name
		case OptionDocString:
			doc, ok := value.(string)
			if !ok {
				return options{}, fmt.Errorf("%w: %s must be a string, got %T", ErrUnknownOption, key, value)
			}
			opts.docString = doc
		default:
			return options{}, fmt.Errorf("%w: %q", ErrUnknownOption, key)
		}
	}
	return opts, nil
}

func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, want string", i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("got %T, want a list of module paths", value)
	}
}

// selectOutputs maps the output spec to value names, keeping order and
// dropping duplicates.
func selectOutputs(b *graphBuilder, spec []string) ([]string, error) {
	if len(spec) == 0 {
		return []string{b.outputs[""]}, nil
	}
	names := make([]string, 0, len(spec))
	for _, path := range spec {
		name, ok := b.outputs[path]
		if !ok {
			return nil, fmt.Errorf("%w: no module at path %q (known: %v)", ErrUnknownOutput, path, b.order)
		}
		names = append(names, name)
	}
	return lo.Uniq(names), nil
}
