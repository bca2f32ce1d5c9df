package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"ProctorEngine/internal/entity"
	"github.com/gorilla/websocket"
)

// ErrModelUnavailable means the model artifact is not deployed at its URL.
// This is distinguishable from a connection failure: an absent model is an
// optional capability, not an error.
var ErrModelUnavailable = errors.New("model artifact not available")

type ModelType string

const (
	FaceLandmarker ModelType = "FACE_LANDMARKER"
	ObjectDetector ModelType = "OBJECT_DETECTOR"
)

// Tensor is the raw inference payload: flat data plus shape. The object
// detector replies with shape [1, 4+numClasses, numAnchors].
type Tensor struct {
	Dims []int64   `json:"dims"`
	Data []float32 `json:"data"`
}

type faceResponse struct {
	Faces [][]entity.FaceLandmark `json:"faces"`
	Error string                  `json:"error,omitempty"`
}

type IInference interface {
	Probe(ctx context.Context, modelType ModelType) error
	Connect(modelType ModelType) error
	IsConnected(modelType ModelType) bool
	DetectLandmarks(frame []byte) ([][]entity.FaceLandmark, error)
	RunTensor(input Tensor) (Tensor, error)
	Release(modelType ModelType)
	CloseConnections()
}

type inferenceClient struct {
	faceConn     *websocket.Conn
	objectConn   *websocket.Conn
	mu           sync.Mutex
	httpClient   *http.Client
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func New() IInference {
	return &inferenceClient{
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
	}
}

// Probe performs a cheap existence check against the model's HTTP endpoint
// before any load is attempted. A 404 means the artifact simply is not
// deployed; the caller degrades instead of failing.
func (c *inferenceClient) Probe(ctx context.Context, modelType ModelType) error {
	url := getModelURL(modelType)
	if url == "" {
		return ErrModelUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, toProbeURL(url), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", getModelName(modelType), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return ErrModelUnavailable
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s probe returned status %d", getModelName(modelType), resp.StatusCode)
	}

	return nil
}

func (c *inferenceClient) IsConnected(modelType ModelType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch modelType {
	case FaceLandmarker:
		return c.faceConn != nil
	case ObjectDetector:
		return c.objectConn != nil
	default:
		return false
	}
}

func (c *inferenceClient) Connect(modelType ModelType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if modelType == FaceLandmarker && c.faceConn != nil {
		c.faceConn.Close()
		c.faceConn = nil
	} else if modelType == ObjectDetector && c.objectConn != nil {
		c.objectConn.Close()
		c.objectConn = nil
	}

	url := getModelURL(modelType)
	if url == "" {
		return fmt.Errorf("URL for %s not configured", getModelName(modelType))
	}

	log.Printf("Connecting to %s at %s", getModelName(modelType), url)

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			log.Printf("Error sending pong: %v", err)
		}
		return nil
	})

	if modelType == FaceLandmarker {
		c.faceConn = conn
	} else if modelType == ObjectDetector {
		c.objectConn = conn
	}

	go c.keepAlive(modelType)

	return nil
}

// Release drops a single model connection. Safe to call while a Connect for
// the same model is still in flight; the late connection is closed by the
// caller re-checking IsConnected.
func (c *inferenceClient) Release(modelType ModelType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if modelType == FaceLandmarker && c.faceConn != nil {
		c.faceConn.Close()
		c.faceConn = nil
	} else if modelType == ObjectDetector && c.objectConn != nil {
		c.objectConn.Close()
		c.objectConn = nil
	}
}

func (c *inferenceClient) CloseConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.faceConn != nil {
		c.faceConn.Close()
		c.faceConn = nil
	}

	if c.objectConn != nil {
		c.objectConn.Close()
		c.objectConn = nil
	}
}

func (c *inferenceClient) keepAlive(modelType ModelType) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		var conn *websocket.Conn

		if modelType == FaceLandmarker {
			conn = c.faceConn
		} else if modelType == ObjectDetector {
			conn = c.objectConn
		}

		if conn == nil {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(
			websocket.PingMessage,
			[]byte{},
			time.Now().Add(c.writeTimeout),
		)

		if err != nil {
			log.Printf("Ping failed for %s, marking connection as dead: %v",
				getModelName(modelType), err)
			if modelType == FaceLandmarker {
				c.faceConn = nil
			} else if modelType == ObjectDetector {
				c.objectConn = nil
			}
			conn.Close()
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

func (c *inferenceClient) getConnection(modelType ModelType) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var conn *websocket.Conn

	if modelType == FaceLandmarker {
		conn = c.faceConn
	} else if modelType == ObjectDetector {
		conn = c.objectConn
	}

	if conn == nil {
		return nil, fmt.Errorf("not connected to %s", getModelName(modelType))
	}

	return conn, nil
}

// DetectLandmarks sends one JPEG frame to the face landmark model and returns
// the landmark set of every face found in it.
func (c *inferenceClient) DetectLandmarks(frame []byte) ([][]entity.FaceLandmark, error) {
	conn, err := c.getConnection(FaceLandmarker)
	if err != nil {
		if err := c.Connect(FaceLandmarker); err != nil {
			return nil, fmt.Errorf("cannot connect to face landmark model: %w", err)
		}
		conn, err = c.getConnection(FaceLandmarker)
		if err != nil {
			return nil, err
		}
	}

	c.mu.Lock()

	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.faceConn = nil
		conn.Close()
		c.mu.Unlock()
		return nil, fmt.Errorf("error sending frame to face landmark model: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.readTimeout))

	c.mu.Unlock()

	_, message, err := conn.ReadMessage()
	if err != nil {
		c.mu.Lock()
		c.faceConn = nil
		conn.Close()
		c.mu.Unlock()
		return nil, fmt.Errorf("error reading face landmark response: %w", err)
	}

	c.mu.Lock()
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	c.mu.Unlock()

	var result faceResponse
	if err := json.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling face landmark response: %w", err)
	}

	if result.Error != "" {
		return nil, errors.New(result.Error)
	}

	return result.Faces, nil
}

// RunTensor sends a preprocessed input tensor to the object detector and
// returns the raw output tensor.
func (c *inferenceClient) RunTensor(input Tensor) (Tensor, error) {
	conn, err := c.getConnection(ObjectDetector)
	if err != nil {
		if err := c.Connect(ObjectDetector); err != nil {
			return Tensor{}, fmt.Errorf("cannot connect to object detector: %w", err)
		}
		conn, err = c.getConnection(ObjectDetector)
		if err != nil {
			return Tensor{}, err
		}
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return Tensor{}, err
	}

	c.mu.Lock()

	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.objectConn = nil
		conn.Close()
		c.mu.Unlock()
		return Tensor{}, fmt.Errorf("error sending tensor to object detector: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.readTimeout))

	c.mu.Unlock()

	_, message, err := conn.ReadMessage()
	if err != nil {
		c.mu.Lock()
		c.objectConn = nil
		conn.Close()
		c.mu.Unlock()
		return Tensor{}, fmt.Errorf("error reading object detector response: %w", err)
	}

	c.mu.Lock()
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	c.mu.Unlock()

	var output Tensor
	if err := json.Unmarshal(message, &output); err != nil {
		return Tensor{}, fmt.Errorf("error unmarshaling object detector response: %w", err)
	}

	return output, nil
}

func getModelURL(modelType ModelType) string {
	switch modelType {
	case FaceLandmarker:
		url := os.Getenv("AI_FACE_LANDMARK_URL")
		if url == "" {
			url = "ws://localhost:8000/api/v1/face-landmarks/ws"
		}
		return url
	case ObjectDetector:
		// No default: the object detector is deployed per environment and
		// its absence must stay detectable.
		return os.Getenv("AI_OBJECT_DETECTOR_URL")
	default:
		return ""
	}
}

// toProbeURL maps a websocket inference URL onto the HTTP endpoint the model
// server exposes for artifact checks.
func toProbeURL(wsURL string) string {
	url := wsURL
	if strings.HasPrefix(url, "wss://") {
		url = "https://" + strings.TrimPrefix(url, "wss://")
	} else if strings.HasPrefix(url, "ws://") {
		url = "http://" + strings.TrimPrefix(url, "ws://")
	}
	return strings.TrimSuffix(url, "/ws")
}

func getModelName(modelType ModelType) string {
	switch modelType {
	case FaceLandmarker:
		return "Face Landmark Model"
	case ObjectDetector:
		return "Object Detection Model"
	default:
		return "Unknown Model"
	}
}
