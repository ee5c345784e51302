package classifier

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/tphakala/go-tflite"

	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/logger"
)

// TFLitePredictor runs a risk model exported to TensorFlow Lite. The model
// takes a [1, N] float32 input and produces either a [1, 3] class score
// vector or a single class index.
type TFLitePredictor struct {
	mu          sync.Mutex
	model       *tflite.Model
	interpreter *tflite.Interpreter
	options     *tflite.InterpreterOptions
	width       int
	modelPath   string
}

// NewTFLitePredictor loads the model file and allocates tensors.
func NewTFLitePredictor(modelPath string, threads int) (*TFLitePredictor, error) {
	start := time.Now()
	log := logger.Global().Module("classifier")

	modelData, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("model_path", modelPath).
			Timing("model-load", time.Since(start)).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("model_path", modelPath).
			Context("model_size_bytes", len(modelData)).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(max(1, threads))
	options.SetErrorReporter(func(msg string, _ any) {
		log.Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New(fmt.Errorf("cannot create interpreter")).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("model_path", modelPath).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, errors.New(fmt.Errorf("tensor allocation failed: %v", status)).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("model_path", modelPath).
			Build()
	}

	input := interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() == 0 {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, errors.New(fmt.Errorf("model has no usable input tensor")).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("model_path", modelPath).
			Build()
	}

	// The model file is copied by TFLite.
	runtime.GC()

	p := &TFLitePredictor{
		model:       model,
		interpreter: interpreter,
		options:     options,
		width:       input.Dim(input.NumDims() - 1),
		modelPath:   modelPath,
	}
	log.Info("risk model loaded",
		logger.String("model_path", modelPath),
		logger.Int("input_width", p.width),
		logger.Duration("load_time", time.Since(start)))
	return p, nil
}

func (p *TFLitePredictor) Name() string    { return "tflite" }
func (p *TFLitePredictor) InputWidth() int { return p.width }

// Predict implements Predictor. The interpreter is not safe for concurrent
// use, so calls are serialised.
func (p *TFLitePredictor) Predict(ctx context.Context, features []float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interpreter == nil {
		return -1, errors.Newf("interpreter closed").
			Component("classifier").
			Category(errors.CategoryState).
			Build()
	}

	input := p.interpreter.GetInputTensor(0)
	if input == nil {
		return -1, classificationError("cannot get input tensor", p.modelPath)
	}
	copy(input.Float32s(), features)

	if status := p.interpreter.Invoke(); status != tflite.OK {
		return -1, classificationError(fmt.Sprintf("tensor invoke failed: %v", status), p.modelPath)
	}

	output := p.interpreter.GetOutputTensor(0)
	if output == nil {
		return -1, classificationError("cannot get output tensor", p.modelPath)
	}
	return classFromScores(output.Float32s())
}

// classFromScores interprets model output. A single value is a class index;
// a vector is argmax.
func classFromScores(scores []float32) (int, error) {
	switch len(scores) {
	case 0:
		return -1, classificationError("empty model output", "")
	case 1:
		return int(scores[0] + 0.5), nil
	}
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return best, nil
}

func classificationError(msg, modelPath string) error {
	b := errors.Newf("%s", msg).
		Component("classifier").
		Category(errors.CategoryClassification)
	if modelPath != "" {
		b = b.Context("model_path", modelPath)
	}
	return b.Build()
}

// Close releases the interpreter and model.
func (p *TFLitePredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interpreter != nil {
		p.interpreter.Delete()
		p.interpreter = nil
	}
	if p.options != nil {
		p.options.Delete()
		p.options = nil
	}
	if p.model != nil {
		p.model.Delete()
		p.model = nil
	}
	return nil
}
