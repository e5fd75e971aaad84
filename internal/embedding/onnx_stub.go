//go:build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoONNX = errors.New("onnx embedder requires cgo; build with CGO_ENABLED=1 and the onnxruntime library")

// ONNXEmbedder is unavailable without cgo. See onnx.go for the real implementation.
type ONNXEmbedder struct{}

// NewONNXEmbedder validates opts and reports that ONNX Runtime is not compiled in.
func NewONNXEmbedder(opts ONNXOptions) (*ONNXEmbedder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return nil, errNoONNX
}

func (*ONNXEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, errNoONNX }

func (*ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errNoONNX
}

func (*ONNXEmbedder) Dimensions() int   { return 0 }
func (*ONNXEmbedder) MaxBatchSize() int { return onnxMaxBatch }
func (*ONNXEmbedder) Close() error      { return nil }
