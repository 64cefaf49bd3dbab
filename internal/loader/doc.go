// Package loader reads and writes model weights in SafeTensors format.
//
// SafeTensors is the Hugging Face weight format:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw bytes]
//
// Only F32 tensors can be loaded into layers. Names in the file are the
// module state dict keys ("0.weight", "2.bias"); a WeightMapper translates
// names written by other frameworks.
//
// Example:
//
//	model := nn.NewSequential(nn.NewLinear(4, 8, true, nil), nn.NewReLU())
//	if err := loader.LoadModuleWeights("mlp.safetensors", model); err != nil {
//	    log.Fatal(err)
//	}
package loader
