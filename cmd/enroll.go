package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
	"github.com/Enigma-Deez/Roll-Call/internal/config"
	"github.com/Enigma-Deez/Roll-Call/internal/constants"
	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/Enigma-Deez/Roll-Call/internal/faceclient"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image]",
	Short: "Enroll students or lecturers from face photos",
	Long: `Enroll one identity from a photo, or a whole folder of photos.

Each photo must contain exactly the person being enrolled; the first face the
face server detects is stored.

In folder mode every image is named <ref>_<name>.jpg, where underscores in the
name become spaces (e.g. U2021-114_Ada_Okafor.jpg).

Example:
  roll-call enroll --kind student --name "Ada Okafor" --ref U2021-114 ada.jpg
  roll-call enroll --kind lecturer --dir ./staff-photos`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.Flags().String("kind", "student", "Identity kind: student or lecturer")
	enrollCmd.Flags().String("name", "", "Display name (single photo mode)")
	enrollCmd.Flags().String("ref", "", "Matriculation or staff number (single photo mode)")
	enrollCmd.Flags().String("dir", "", "Enroll every image in this folder")
	enrollCmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of parallel enrollments in folder mode")
}

// isImageFile checks if a file has an extension the face server accepts
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".bmp":
		return true
	}
	return false
}

// parseEnrollFilename splits "<ref>_<name>.<ext>" into its parts.
func parseEnrollFilename(fileName string) (ref, name string, ok bool) {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	ref, rest, found := strings.Cut(base, "_")
	if !found {
		return "", "", false
	}
	name = strings.Join(strings.Fields(strings.ReplaceAll(rest, "_", " ")), " ")
	if strings.TrimSpace(ref) == "" || name == "" {
		return "", "", false
	}
	return strings.TrimSpace(ref), name, true
}

type enrollJob struct {
	path string
	ref  string
	name string
}

func runEnroll(cmd *cobra.Command, args []string) error {
	kind, err := kindFlag(cmd)
	if err != nil {
		return err
	}
	dir := mustGetString(cmd, "dir")
	if dir == "" && len(args) == 0 {
		return errors.New("either an image path or --dir is required")
	}
	if dir != "" && len(args) > 0 {
		return errors.New("an image path and --dir cannot be combined")
	}

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	enroller := attendance.NewEnroller(store, faceclient.NewClient(cfg.FaceAPI.URL, cfg.FaceAPI.MaxImageSize))

	if dir == "" {
		image, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		id, err := enroller.Enroll(ctx, kind, mustGetString(cmd, "name"), mustGetString(cmd, "ref"), image)
		if err != nil {
			return fmt.Errorf("failed to enroll: %w", err)
		}
		fmt.Printf("Enrolled %s %s\n", kind, id)
		return nil
	}

	return enrollDir(ctx, enroller, kind, dir, mustGetInt(cmd, "concurrency"))
}

func enrollDir(ctx context.Context, enroller *attendance.Enroller, kind database.Kind, dir string, concurrency int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("cannot read folder %s: %w", dir, err)
	}

	var (
		jobs    []enrollJob
		skipped []string
	)
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		ref, name, ok := parseEnrollFilename(entry.Name())
		if !ok {
			skipped = append(skipped, entry.Name())
			continue
		}
		jobs = append(jobs, enrollJob{path: filepath.Join(dir, entry.Name()), ref: ref, name: name})
	}
	for _, name := range skipped {
		fmt.Printf("Skipping %s: expected <ref>_<name>.jpg\n", name)
	}
	if len(jobs) == 0 {
		fmt.Println("No images to enroll.")
		return nil
	}

	fmt.Printf("Enrolling %d %s(s) from %s\n\n", len(jobs), kind, dir)
	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	if concurrency < 1 {
		concurrency = 1
	}
	var (
		failures []string
		enrolled int
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, concurrency)
	)

	for _, job := range jobs {
		wg.Add(1)
		go func(j enrollJob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := enrollFile(ctx, enroller, kind, j)
			mu.Lock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(j.path), err))
			} else {
				enrolled++
			}
			mu.Unlock()
			bar.Add(1)
		}(job)
	}
	wg.Wait()
	fmt.Println()

	for _, f := range failures {
		fmt.Printf("Failed: %s\n", f)
	}
	fmt.Printf("\nEnrolled %d of %d\n", enrolled, len(jobs))
	if enrolled == 0 {
		return errors.New("no identities were enrolled")
	}
	return nil
}

func enrollFile(ctx context.Context, enroller *attendance.Enroller, kind database.Kind, j enrollJob) error {
	image, err := os.ReadFile(j.path)
	if err != nil {
		return err
	}
	_, err = enroller.Enroll(ctx, kind, j.name, j.ref, image)
	return err
}
