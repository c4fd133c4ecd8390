// Package gstreamer captures frames through a GStreamer appsink pipeline.
package gstreamer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/camera"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// DefaultPipeline reads a V4L2 device and hands JPEG frames to the appsink named "sink".
// %d is replaced with the device index.
const DefaultPipeline = "v4l2src device=/dev/video%d ! videoconvert ! jpegenc ! " +
	"appsink name=sink max-buffers=1 drop=true sync=false"

// pullTimeout bounds one appsink pull so stop requests are observed promptly.
const pullTimeout = 200 * time.Millisecond

var initOnce sync.Once

// Source builds one pipeline per opened device.
type Source struct {
	template string
}

// NewSource returns a GStreamer source. An empty template uses DefaultPipeline.
func NewSource(template string) *Source {
	if template == "" {
		template = DefaultPipeline
	}
	return &Source{template: template}
}

// Describe renders the pipeline string for a device.
func (s *Source) Describe(device int) string {
	if strings.Contains(s.template, "%d") {
		return fmt.Sprintf(s.template, device)
	}
	return s.template
}

// Open builds and starts the pipeline.
func (s *Source) Open(device int) (camera.Handle, error) {
	initOnce.Do(func() { gst.Init(nil) })

	desc := s.Describe(device)
	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return nil, fmt.Errorf("build pipeline %q: %v: %w", desc, err, camera.ErrUnavailable)
	}

	elem, err := pipeline.GetElementByName("sink")
	if err != nil {
		_ = pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("pipeline has no appsink named sink: %v: %w", err, camera.ErrUnavailable)
	}
	sink := app.SinkFromElement(elem)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		_ = pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("start pipeline for device %d: %v: %w", device, err, camera.ErrUnavailable)
	}

	slog.Info("camera: opened", "backend", "gstreamer", "device", device, "pipeline", desc)
	return &handle{device: device, pipeline: pipeline, sink: sink}, nil
}

type handle struct {
	device   int
	pipeline *gst.Pipeline
	sink     *app.Sink

	mu     sync.Mutex
	closed bool
}

// ReadFrame pulls the latest sample, waiting at most pullTimeout.
func (h *handle) ReadFrame(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false, fmt.Errorf("device %d: %w", h.device, camera.ErrUnavailable)
	}

	timeout := pullTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	sample := h.sink.TryPullSample(timeout)
	if sample == nil {
		return nil, false, nil
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, false, nil
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return nil, false, nil
	}

	// Copy frame data (GStreamer will reuse buffer)
	frame := make([]byte, len(data))
	copy(frame, data)
	buffer.Unmap()
	return frame, true, nil
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if err := h.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	slog.Info("camera: released", "backend", "gstreamer", "device", h.device)
	return nil
}
