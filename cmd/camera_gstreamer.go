//go:build !nogst

package cmd

import (
	"fmt"

	"github.com/Enigma-Deez/Roll-Call/internal/camera"
	"github.com/Enigma-Deez/Roll-Call/internal/camera/gstreamer"
	"github.com/Enigma-Deez/Roll-Call/internal/config"
)

func init() {
	registerCameraBackend("gstreamer", func(cfg config.CameraConfig) camera.Source {
		src := gstreamer.NewSource(cfg.Pipeline)
		fmt.Printf("Camera pipeline: %s\n", src.Describe(cfg.Device))
		return src
	})
}
