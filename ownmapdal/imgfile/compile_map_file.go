package imgfile

import (
	"github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
)

// CompileMapFile compiles the extract that pbfReader reads into a map file at opts.MapFilePath().
// workDir holds the intermediate files and is removed afterwards, unless opts.KeepWorkDir is set.
func CompileMapFile(
	logger *logpkg.Logger,
	fs gofs.Fs,
	tracer *tracing.Tracer,
	metrics *ownmapdal.CompileMetrics,
	opts ownmapdal.CompileOptions,
	workDir string,
	pbfReader ownmapdal.PBFReader,
	onTileEncoded ownmapdal.OnTileEncodedFunc,
) (ownmapdal.CompiledMapConn, errorsx.Error) {
	var err error

	compiler, err := ownmapdal.NewCompiler(logger, tracer, metrics, opts, onTileEncoded)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	err = fs.MkdirAll(opts.OutputDir, 0755)
	if err != nil {
		return nil, errorsx.Wrap(err, "outputDir", opts.OutputDir)
	}

	writer, err := NewWriter(logger, fs, workDir, opts.MapFilePath(), WriterOptionsFromCompileOptions(opts))
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	conn, err := compiler.Compile(pbfReader, writer)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return conn, nil
}
