package ownmapdal

import (
	"path/filepath"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
)

// PathsConfig holds the directories used when serving maps
type PathsConfig struct {
	// DataDir holds compiled map files
	DataDir         string
	RawDataFilesDir string
	TempDir         string
}

func NewPathsConfigFromBaseDir(baseDir string) *PathsConfig {
	return &PathsConfig{
		DataDir:         filepath.Join(baseDir, "data"),
		RawDataFilesDir: filepath.Join(baseDir, "raw_data_files"),
		TempDir:         filepath.Join(baseDir, "tmp"),
	}
}

func (pc *PathsConfig) EnsurePaths(fs gofs.Fs) errorsx.Error {
	for _, dirPath := range []string{pc.DataDir, pc.RawDataFilesDir, pc.TempDir} {
		err := fs.MkdirAll(dirPath, 0755)
		if err != nil {
			return errorsx.Wrap(err, "dirPath", dirPath)
		}
	}

	return nil
}

// NewWorkDir is a work directory for one compile run, named after its start time
func (pc *PathsConfig) NewWorkDir(now time.Time) string {
	return filepath.Join(pc.TempDir, now.Format("compile_2006-01-02_15_04_05.000"))
}
