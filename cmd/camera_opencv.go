//go:build !nogocv

package cmd

import (
	"github.com/Enigma-Deez/Roll-Call/internal/camera"
	"github.com/Enigma-Deez/Roll-Call/internal/camera/opencv"
	"github.com/Enigma-Deez/Roll-Call/internal/config"
)

func init() {
	registerCameraBackend("opencv", func(config.CameraConfig) camera.Source {
		return opencv.NewSource()
	})
}
