package proctorService

import (
	"ProctorEngine/internal/entity"
	"ProctorEngine/pkg/geometry"
	"ProctorEngine/pkg/inference"
	"ProctorEngine/pkg/vision"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type detectorState string

const (
	detectorUnloaded    detectorState = "unloaded"
	detectorLoading     detectorState = "loading"
	detectorLoaded      detectorState = "loaded"
	detectorUnavailable detectorState = "unavailable"
	detectorError       detectorState = "error"
)

const (
	detectorInputSize     = 640
	detectorConfThreshold = 0.5
	detectorIOUThreshold  = 0.45
)

// proctorClasses is the fixed label set of the interview object model, in
// output-tensor order.
var proctorClasses = []string{
	"mobile_phone",
	"book",
	"notes",
	"earphone",
	"secondary_screen",
	"extra_person",
	"hand_gesture",
	"laptop",
}

var errDetectorLoading = errors.New("object detector load in progress")

// objectEngine wraps the remote object detection model behind a small load
// state machine. The model artifact is optional per deployment: a probe miss
// parks the engine in the unavailable state and every detection consumer
// degrades to face-only proctoring.
type objectEngine struct {
	log    *logrus.Logger
	client inference.IInference

	mu    sync.Mutex
	state detectorState

	// runMu serializes tensor round trips; the model connection is shared by
	// every session plus the ad-hoc detect endpoint.
	runMu sync.Mutex

	inputSize     int
	classes       []string
	confThreshold float64
	iouThreshold  float64
}

func newObjectEngine(log *logrus.Logger, client inference.IInference) *objectEngine {
	return &objectEngine{
		log:           log,
		client:        client,
		state:         detectorUnloaded,
		inputSize:     detectorInputSize,
		classes:       proctorClasses,
		confThreshold: detectorConfThreshold,
		iouThreshold:  detectorIOUThreshold,
	}
}

func (e *objectEngine) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.state)
}

func (e *objectEngine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == detectorLoaded
}

// EnsureLoaded probes for the model artifact and connects to it. Loading is
// single-flight: a second caller during a load gets errDetectorLoading and
// simply retries on its next cycle. An absent artifact is terminal for the
// process lifetime; an actual failure may be retried.
func (e *objectEngine) EnsureLoaded(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case detectorLoaded:
		e.mu.Unlock()
		return nil
	case detectorLoading:
		e.mu.Unlock()
		return errDetectorLoading
	case detectorUnavailable:
		e.mu.Unlock()
		return inference.ErrModelUnavailable
	}
	e.state = detectorLoading
	e.mu.Unlock()

	if err := e.client.Probe(ctx, inference.ObjectDetector); err != nil {
		e.mu.Lock()
		if errors.Is(err, inference.ErrModelUnavailable) {
			e.state = detectorUnavailable
		} else {
			e.state = detectorError
		}
		e.mu.Unlock()

		if errors.Is(err, inference.ErrModelUnavailable) {
			e.log.Info("Object detection model not deployed, proctoring without it")
		} else {
			e.log.WithField("error", err.Error()).Warn("Object detection model probe failed")
		}
		return err
	}

	if err := e.client.Connect(inference.ObjectDetector); err != nil {
		e.mu.Lock()
		e.state = detectorError
		e.mu.Unlock()
		e.log.WithField("error", err.Error()).Warn("Object detection model connect failed")
		return err
	}

	e.mu.Lock()
	e.state = detectorLoaded
	e.mu.Unlock()
	e.log.Info("Object detection model loaded")
	return nil
}

// Detect runs one frame through the model and returns suppressed detections
// in normalized center form.
func (e *objectEngine) Detect(frame []byte) ([]entity.Detection, error) {
	if !e.Loaded() {
		return nil, errors.New("object detector not loaded")
	}

	data, err := vision.PreprocessJPEG(frame, e.inputSize)
	if err != nil {
		return nil, err
	}

	e.runMu.Lock()
	output, err := e.client.RunTensor(inference.Tensor{
		Dims: []int64{1, 3, int64(e.inputSize), int64(e.inputSize)},
		Data: data,
	})
	e.runMu.Unlock()
	if err != nil {
		e.mu.Lock()
		e.state = detectorError
		e.mu.Unlock()
		return nil, err
	}

	detections, err := e.decodeOutput(output)
	if err != nil {
		return nil, err
	}

	return geometry.NonMaxSuppression(detections, e.iouThreshold), nil
}

// decodeOutput converts the raw model output of shape
// [1, 4+numClasses, numAnchors] into detections. Box coordinates arrive in
// input pixel units and are normalized here; class scores sit row-wise after
// the four box rows.
func (e *objectEngine) decodeOutput(output inference.Tensor) ([]entity.Detection, error) {
	if len(output.Dims) != 3 || output.Dims[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", output.Dims)
	}

	rows := int(output.Dims[1])
	anchors := int(output.Dims[2])
	numClasses := rows - 4

	if numClasses != len(e.classes) {
		return nil, fmt.Errorf("model reports %d classes, engine expects %d", numClasses, len(e.classes))
	}
	if len(output.Data) < rows*anchors {
		return nil, fmt.Errorf("output data too short: %d < %d", len(output.Data), rows*anchors)
	}

	detections := make([]entity.Detection, 0)
	size := float64(e.inputSize)

	for a := 0; a < anchors; a++ {
		bestClass := -1
		bestScore := 0.0
		for c := 0; c < numClasses; c++ {
			score := float64(output.Data[(4+c)*anchors+a])
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}

		if bestClass < 0 || bestScore < e.confThreshold {
			continue
		}

		detections = append(detections, entity.Detection{
			Class:      e.classes[bestClass],
			ClassIndex: bestClass,
			Confidence: bestScore,
			BBox: entity.BoundingBox{
				X:      float64(output.Data[0*anchors+a]) / size,
				Y:      float64(output.Data[1*anchors+a]) / size,
				Width:  float64(output.Data[2*anchors+a]) / size,
				Height: float64(output.Data[3*anchors+a]) / size,
			},
		})
	}

	return detections, nil
}

func (e *objectEngine) Close() {
	e.client.CloseConnections()
	e.mu.Lock()
	if e.state == detectorLoaded {
		e.state = detectorUnloaded
	}
	e.mu.Unlock()
}
