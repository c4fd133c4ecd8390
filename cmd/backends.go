package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Enigma-Deez/Roll-Call/internal/camera"
	"github.com/Enigma-Deez/Roll-Call/internal/config"
	"github.com/Enigma-Deez/Roll-Call/internal/database"

	// Store backends register themselves by URL scheme.
	_ "github.com/Enigma-Deez/Roll-Call/internal/database/mariadb"
	_ "github.com/Enigma-Deez/Roll-Call/internal/database/postgres"
	_ "github.com/Enigma-Deez/Roll-Call/internal/database/sqlite"
)

// openStore connects to DATABASE_URL and applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	scheme, err := database.Scheme(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Connecting to %s database...\n", scheme)
	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// cameraBackends holds the capture backends compiled into this binary. Each one
// lives in its own file behind a build tag (nogocv, nogst) so a binary can be
// built without its cgo dependency.
var cameraBackends = map[string]func(cfg config.CameraConfig) camera.Source{}

func registerCameraBackend(name string, open func(cfg config.CameraConfig) camera.Source) {
	if _, dup := cameraBackends[name]; dup {
		panic("camera backend registered twice: " + name)
	}
	cameraBackends[name] = open
}

// cameraBackendNames returns the compiled-in backends in sorted order.
func cameraBackendNames() []string {
	names := make([]string, 0, len(cameraBackends))
	for name := range cameraBackends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newCameraSource picks the capture backend named by CAMERA_BACKEND.
func newCameraSource(cfg config.CameraConfig) (camera.Source, error) {
	open, ok := cameraBackends[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("camera backend %q not compiled in (available: %s)", cfg.Backend, strings.Join(cameraBackendNames(), ", "))
	}
	return open(cfg), nil
}
