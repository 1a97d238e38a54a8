package ownmapdal

import (
	"context"
	"io"
	"runtime"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

type PBFReader interface {
	Header() (*osmpbf.Header, error)
	Scan() bool
	Object() osm.Object
	Err() error
	Reset() errorsx.Error
	FullyScannedBytes() int64
	TotalSize() int64
}

type DefaultPBFReader struct {
	file gofs.File
	*osmpbf.Scanner
	totalSize int64
}

func NewDefaultPBFReader(file gofs.File) (*DefaultPBFReader, errorsx.Error) {
	fileInfo, err := file.Stat()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	osmPBFReader := osmpbf.New(context.Background(), file, runtime.NumCPU())

	return &DefaultPBFReader{file, osmPBFReader, fileInfo.Size()}, nil
}

func (r *DefaultPBFReader) TotalSize() int64 {
	return r.totalSize
}

func (r *DefaultPBFReader) Reset() errorsx.Error {
	err := r.Scanner.Close()
	if err != nil {
		return errorsx.Wrap(err)
	}
	_, err = r.file.Seek(0, io.SeekStart)
	if err != nil {
		return errorsx.Wrap(err)
	}
	r.Scanner = osmpbf.New(context.Background(), r.file, runtime.NumCPU())
	return nil
}

// scanProgressPercent is how far through the file the reader is. Readers of unknown size report 0.
func scanProgressPercent(pbfReader PBFReader) float64 {
	totalSize := pbfReader.TotalSize()
	if totalSize <= 0 {
		return 0
	}
	return float64(pbfReader.FullyScannedBytes()) * 100 / float64(totalSize)
}
