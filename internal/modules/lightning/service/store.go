package service

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	// framesToKeep bounds the animation length; at the default one-minute
	// cycle the loop covers the last 18 minutes.
	framesToKeep = 18

	frameTimeLayout = "20060102-1504"
	animationFile   = "animated.gif"
)

// FrameStore keeps the rendered base frames and the assembled animation on
// disk so the loop survives restarts.
type FrameStore struct {
	dir    string
	logger *slog.Logger
}

func NewFrameStore(dir string, logger *slog.Logger) *FrameStore {
	return &FrameStore{dir: dir, logger: logger}
}

func (s *FrameStore) Ensure() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	return nil
}

// SaveFrame writes one base frame named after its render time.
func (s *FrameStore) SaveFrame(at time.Time, frame image.Image) error {
	path := filepath.Join(s.dir, at.Format(frameTimeLayout)+".png")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame: %w", err)
	}
	if err := png.Encode(f, frame); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close frame: %w", err)
	}
	return s.trim()
}

// trim deletes the oldest frames beyond framesToKeep. Frame names sort
// chronologically.
func (s *FrameStore) trim() error {
	paths, err := s.framePaths()
	if err != nil {
		return err
	}
	for len(paths) > framesToKeep {
		victim := paths[0]
		paths = paths[1:]
		if err := os.Remove(victim); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove old frame: %w", err)
		}
		s.logger.Debug("removed old frame", "path", victim)
	}
	return nil
}

func (s *FrameStore) framePaths() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.png"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadFrames decodes all stored frames, oldest first. Frames that fail to
// decode are skipped with a warning.
func (s *FrameStore) LoadFrames() ([]image.Image, error) {
	paths, err := s.framePaths()
	if err != nil {
		return nil, err
	}

	var frames []image.Image
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			s.logger.Warn("skipping unreadable frame", "path", path, "error", err)
			continue
		}
		img, err := png.Decode(f)
		_ = f.Close()
		if err != nil {
			s.logger.Warn("skipping undecodable frame", "path", path, "error", err)
			continue
		}
		frames = append(frames, img)
	}
	return frames, nil
}

// WriteAnimation replaces the animation atomically so readers never see a
// partial GIF.
func (s *FrameStore) WriteAnimation(data []byte) error {
	tmp := filepath.Join(s.dir, animationFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write animation: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, animationFile)); err != nil {
		return fmt.Errorf("replace animation: %w", err)
	}
	return nil
}

// ReadAnimation returns the stored animation, or ok=false when none exists.
func (s *FrameStore) ReadAnimation() ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, animationFile))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read animation: %w", err)
	}
	return data, true, nil
}
