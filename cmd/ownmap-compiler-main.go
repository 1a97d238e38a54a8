package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/humanise"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/goutil/open"
	"github.com/jamesrr39/goutil/userextra"
	"github.com/jamesrr39/ownmap-compiler/ownmap"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal/imgfile"
	"github.com/jamesrr39/ownmap-compiler/ownmapimg"
	"github.com/jamesrr39/ownmap-compiler/ownmaprenderer"
	"github.com/jamesrr39/ownmap-compiler/styling"
	"github.com/jamesrr39/ownmap-compiler/webservices"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/alecthomas/kingpin/v2"
)

const (
	MAX_SERVER_RUNNING_ATTEMPTS = 50
	DEFAULT_PORT                = 9000
	DEFAULT_BASE_DIR            = "~/.local/share/github.com/jamesrr39/ownmap-compiler/"
)

var logger *logpkg.Logger

func main() {
	if len(os.Args) == 1 {
		logger = logpkg.NewLogger(os.Stderr, logpkg.LogLevelInfo)
		// start in desktop "double-click" visual mode
		err := setupDesktopMode()
		if err != nil {
			log.Fatalf("failed to start server: %q\n%s\n", err.Error(), err.Stack())
		}
		return
	}

	verbose := kingpin.Flag("v", "verbose logging").Bool()
	kingpin.CommandLine.PreAction(func(ctx *kingpin.ParseContext) error {
		logLevel := logpkg.LogLevelInfo
		if *verbose {
			logLevel = logpkg.LogLevelDebug
		}
		logger = logpkg.NewLogger(os.Stderr, logLevel)
		return nil
	})

	setupCompile()
	setupInspect()
	setupLayout()
	setupServe()

	kingpin.Parse()
}

// runAction prints the stack trace of failed commands
func runAction(run func() errorsx.Error) kingpin.Action {
	return func(ctx *kingpin.ParseContext) error {
		err := run()
		if err != nil {
			return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
		}
		return nil
	}
}

func loadCompileOptions(fs gofs.Fs, configPath string, overrides map[string]interface{}) (ownmapdal.CompileOptions, errorsx.Error) {
	if configPath == "" {
		return ownmapdal.LoadCompileOptions(nil, "", overrides)
	}

	return ownmapdal.LoadCompileOptionsFile(fs, configPath, overrides)
}

func newTracer(fs gofs.Fs, traceFilePath string) (*tracing.Tracer, func(), errorsx.Error) {
	if traceFilePath == "" {
		return tracing.NewTracer(io.Discard), func() {}, nil
	}

	traceFile, err := fs.Create(traceFilePath)
	if err != nil {
		return nil, nil, errorsx.Wrap(err, "traceFilePath", traceFilePath)
	}

	logger.Info("tracing at %q", traceFilePath)

	closeFunc := func() {
		err := traceFile.Close()
		if err != nil {
			logger.Warn("couldn't close trace file. Error: %q", err)
		}
	}

	return tracing.NewTracer(traceFile), closeFunc, nil
}

func setupCompile() {
	cmd := kingpin.Command("compile", "compile an OpenStreetMap extract (.pbf file) into a map file")
	pbfFilePath := cmd.Arg("pbf-file", "OpenStreetMap extract to compile").Required().String()
	configPath := cmd.Flag("config", "options file (yaml, json, toml...). Flags override its values").String()
	workDirFlag := cmd.Flag("work-dir", "directory for intermediate files. Defaults to a directory in the output dir").String()
	traceFilePath := cmd.Flag("trace-file", "write a trace of the compile to this file").String()
	metricsFilePath := cmd.Flag("metrics-file", "write compile metrics to this file, in the prometheus text format").String()
	shouldProfile := cmd.Flag("profile", "profile the compile performance").Bool()
	optionFlags := addCompileOptionFlags(cmd)

	cmd.Action(runAction(func() errorsx.Error {
		var err error

		fs := gofs.NewOsFs()

		opts, err := loadCompileOptions(fs, *configPath, optionFlags.overrides())
		if err != nil {
			return errorsx.Wrap(err)
		}

		if opts.IgnoreTurnRestrictions {
			logger.Info("turn restrictions are ignored")
		}

		workDir := *workDirFlag
		if workDir == "" {
			workDir = filepath.Join(opts.OutputDir, fmt.Sprintf(".%s_work_%s", opts.MapName, time.Now().Format("2006-01-02_15_04_05")))
		}

		if *shouldProfile {
			defer profile.Start(profile.ProfilePath(opts.OutputDir), profile.CPUProfile).Stop()
		}

		tracer, closeTraceFile, err := newTracer(fs, *traceFilePath)
		if err != nil {
			return errorsx.Wrap(err)
		}
		defer closeTraceFile()

		file, err := fs.Open(*pbfFilePath)
		if err != nil {
			return errorsx.Wrap(err)
		}
		defer file.Close()

		pbfReader, err := ownmapdal.NewDefaultPBFReader(file)
		if err != nil {
			return errorsx.Wrap(err)
		}
		defer pbfReader.Close()

		startTime := time.Now()
		logger.Info("compiling %q (%s) into %q", *pbfFilePath, humanise.HumaniseBytes(pbfReader.TotalSize()), opts.MapFilePath())

		bar := progressbar.NewOptions64(
			-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("encoding tiles"),
			progressbar.OptionShowCount(),
		)
		onTileEncoded := func(tile *ownmapimg.EncodedTile) {
			bar.Add(1)
		}

		metrics := ownmapdal.NewCompileMetrics()

		conn, err := imgfile.CompileMapFile(logger, fs, tracer, metrics, opts, workDir, pbfReader, onTileEncoded)
		bar.Finish()
		if err != nil {
			return errorsx.Wrap(err)
		}
		defer conn.Close()

		mapInfo := conn.MapInfo()
		logger.Info("compiled map %q in %s. %d tiles, %d features", conn.Name(), time.Since(startTime), len(mapInfo.Tiles), mapInfo.FeatureCount())

		if *metricsFilePath != "" {
			err = metrics.WriteToTextfile(*metricsFilePath)
			if err != nil {
				return errorsx.Wrap(err)
			}
		}

		return nil
	}))
}

func setupInspect() {
	cmd := kingpin.Command("inspect", "print the header of a map file")
	mapFilePath := cmd.Arg("map-file", "map file to inspect").Required().String()

	cmd.Action(runAction(func() errorsx.Error {
		conn, err := imgfile.OpenMapFile(gofs.NewOsFs(), *mapFilePath, 1)
		if err != nil {
			return errorsx.Wrap(err)
		}
		defer conn.Close()

		return writeMapSummary(os.Stdout, conn.MapInfo())
	}))
}

func writeMapSummary(w io.Writer, mapInfo *ownmapdal.MapInfo) errorsx.Error {
	osmBounds := mapInfo.Bounds.ToOSMBounds()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Map:\t%s\n", mapInfo.MapName)
	fmt.Fprintf(tw, "Description:\t%s\n", mapInfo.Description)
	fmt.Fprintf(tw, "Version:\t%d\n", mapInfo.Version)
	fmt.Fprintf(tw, "Build ID:\t%s\n", mapInfo.BuildID)
	fmt.Fprintf(tw, "Build time:\t%s\n", mapInfo.BuildTime.Format(time.RFC3339))
	if !mapInfo.ReplicationTimestamp.IsZero() {
		fmt.Fprintf(tw, "Data from:\t%s\n", mapInfo.ReplicationTimestamp.Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "Bounds (S,W,N,E):\t(%f,%f,%f,%f)\n", osmBounds.MinLat, osmBounds.MinLon, osmBounds.MaxLat, osmBounds.MaxLon)
	fmt.Fprintf(tw, "Features:\t%d\n", mapInfo.FeatureCount())
	fmt.Fprintln(tw)

	header := "Tile\tBounds\tFeatures\tRoads\tNodes\tLabels\tSubdivisions"
	for _, sectionName := range ownmapimg.SectionNames {
		header += "\t" + sectionName
	}
	fmt.Fprintln(tw, header)

	for _, tile := range mapInfo.Tiles {
		row := fmt.Sprintf("%d\t%s\t%d\t%d\t%d\t%d\t%d", tile.Index, tile.Bounds, tile.FeatureCount, tile.RoadCount, tile.NodeCount, tile.LabelCount, tile.Subdivisions)
		for _, sectionName := range ownmapimg.SectionNames {
			var size int64
			section, err := tile.Section(sectionName)
			if err == nil {
				size = section.Size
			}
			row += "\t" + humanise.HumaniseBytes(size)
		}
		fmt.Fprintln(tw, row)
	}

	err := tw.Flush()
	if err != nil {
		return errorsx.Wrap(err)
	}
	return nil
}

func setupLayout() {
	cmd := kingpin.Command("layout", "draw where the tiles of map files lie, as a PNG image")
	pngFilePath := cmd.Arg("png-file", "image file to write").Required().String()
	mapFilePaths := cmd.Arg("map-files", "map files to draw").Required().Strings()
	sizePixels := cmd.Flag("size", "width and height of the image, in pixels").Default("1024").Int()
	styleID := cmd.Flag("style-id", "style to draw with").Default(styling.BUILTIN_STYLEID).String()
	traceFilePath := cmd.Flag("trace-file", "write a trace of the render to this file").String()

	cmd.Action(runAction(func() errorsx.Error {
		var err error

		fs := gofs.NewOsFs()

		style := styling.NewBuiltinStyleSet().GetStyleByID(*styleID)
		if style == nil {
			return errorsx.Errorf("unknown style %q", *styleID)
		}

		var maps []*ownmapdal.MapInfo
		var bounds ownmap.Region
		for i, mapFilePath := range *mapFilePaths {
			conn, err := imgfile.OpenMapFile(fs, mapFilePath, 1)
			if err != nil {
				return errorsx.Wrap(err)
			}
			// only the header is needed
			conn.Close()

			mapInfo := conn.MapInfo()
			maps = append(maps, mapInfo)

			if i == 0 {
				bounds = mapInfo.Bounds
			}
			bounds = bounds.Extend(mapInfo.Bounds)
			for _, tile := range mapInfo.Tiles {
				bounds = bounds.Extend(tile.FullBounds)
			}
		}

		tracer, closeTraceFile, err := newTracer(fs, *traceFilePath)
		if err != nil {
			return errorsx.Wrap(err)
		}
		defer closeTraceFile()

		trace := tracing.StartTrace(tracer, "layout")
		ctx := context.WithValue(context.Background(), tracing.TraceCtxKey, trace)
		ctx = context.WithValue(ctx, tracing.TracerCtxKey, tracer)

		img, err := ownmaprenderer.NewLayoutRenderer().RenderLayout(ctx, image.Rect(0, 0, *sizePixels, *sizePixels), bounds, maps, style)
		if err != nil {
			return errorsx.Wrap(err)
		}

		err = tracer.EndTrace(trace, "")
		if err != nil {
			logger.Warn("couldn't write trace. Error: %q", err)
		}

		pngFile, err := fs.Create(*pngFilePath)
		if err != nil {
			return errorsx.Wrap(err)
		}
		defer pngFile.Close()

		err = png.Encode(pngFile, img)
		if err != nil {
			return errorsx.Wrap(err)
		}

		logger.Info("wrote layout of %d maps to %q", len(maps), *pngFilePath)

		return nil
	}))
}

var addrHelp = fmt.Sprintf(
	`address to serve on. Ex: ':%d' listen on port %d to traffic from anywhere. 'localhost:%d' listen on port %d to traffic from localhost`,
	DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT,
)

type serverConfig struct {
	addr          string
	pathsConfig   *ownmapdal.PathsConfig
	mapFilePaths  []string
	compileOpts   ownmapdal.CompileOptions
	traceFilePath string
	shouldProfile bool
}

func setupServe() {
	cmd := kingpin.Command("serve", "serve map files over HTTP, and compile uploaded extracts")
	mapFilePaths := cmd.Arg("map-files", "map files to serve, as well as the ones in the data dir").Strings()
	addr := cmd.Flag("addr", addrHelp).Default(fmt.Sprintf(":%d", DEFAULT_PORT)).String()
	baseDir := cmd.Flag("base-dir", "directory holding the data dir, raw data files and temporary files").Default(DEFAULT_BASE_DIR).String()
	configPath := cmd.Flag("config", "options file (yaml, json, toml...) for compiling uploaded extracts").String()
	traceFilePath := cmd.Flag("trace-file", "write traces of requests and compiles to this file").String()
	shouldProfile := cmd.Flag("profile", "profile the request performance").Bool()

	cmd.Action(runAction(func() errorsx.Error {
		var err error

		fs := gofs.NewOsFs()

		pathsConfig, err := ensurePathsConfig(fs, *baseDir)
		if err != nil {
			return errorsx.Wrap(err)
		}

		compileOpts, err := loadCompileOptions(fs, *configPath, nil)
		if err != nil {
			return errorsx.Wrap(err)
		}

		router, closeFunc, err := createServer(fs, serverConfig{
			addr:          *addr,
			pathsConfig:   pathsConfig,
			mapFilePaths:  *mapFilePaths,
			compileOpts:   compileOpts,
			traceFilePath: *traceFilePath,
			shouldProfile: *shouldProfile,
		})
		if err != nil {
			return errorsx.Wrap(err)
		}
		defer closeFunc()

		server := httpextra.NewServerWithTimeouts()
		server.Addr = *addr
		server.Handler = router

		logger.Info("about to start serving on %q", *addr)

		err = server.ListenAndServe()
		if err != nil {
			return errorsx.Wrap(err)
		}
		return nil
	}))
}

func ensurePathsConfig(fs gofs.Fs, baseDir string) (*ownmapdal.PathsConfig, errorsx.Error) {
	rootDir, err := userextra.ExpandUser(baseDir)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	pathsConfig := ownmapdal.NewPathsConfigFromBaseDir(rootDir)

	ensureErr := pathsConfig.EnsurePaths(fs)
	if ensureErr != nil {
		return nil, errorsx.Wrap(ensureErr)
	}

	return pathsConfig, nil
}

func setupDesktopMode() errorsx.Error {
	var err error

	fs := gofs.NewOsFs()

	pathsConfig, err := ensurePathsConfig(fs, DEFAULT_BASE_DIR)
	if err != nil {
		return errorsx.Wrap(err)
	}

	config := serverConfig{
		addr:        fmt.Sprintf("localhost:%d", DEFAULT_PORT),
		pathsConfig: pathsConfig,
		compileOpts: ownmapdal.DefaultCompileOptions(),
	}

	router, closeFunc, err := createServer(fs, config)
	if err != nil {
		return errorsx.Wrap(err)
	}
	defer closeFunc()

	server := httpextra.NewServerWithTimeouts()
	server.Addr = config.addr
	server.Handler = router

	errChan := make(chan errorsx.Error)

	go func() {
		err := server.ListenAndServe()
		if err != nil {
			errChan <- errorsx.Wrap(err)
			return
		}
	}()

	go func() {
		// test server is running
		for i := 0; i < MAX_SERVER_RUNNING_ATTEMPTS; i++ {
			client := http.Client{
				Timeout: time.Second * 10,
			}
			resp, err := client.Get(fmt.Sprintf("http://%s/api/maps/", server.Addr))
			if err != nil {
				// retry after wait
				time.Sleep(time.Millisecond * 500)
				continue
			}
			resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				errChan <- errorsx.Errorf("expected response code %d from /api/maps call, but got %d", http.StatusOK, resp.StatusCode)
				return
			}

			errChan <- nil
			return
		}

		errChan <- errorsx.Errorf("server did not start after %d attempts", MAX_SERVER_RUNNING_ATTEMPTS)
	}()

	startErr := <-errChan
	if startErr != nil {
		return errorsx.Wrap(startErr)
	}

	err = open.OpenURL(fmt.Sprintf("http://%s/%s/", server.Addr, adminPath))
	if err != nil {
		return errorsx.Wrap(err)
	}

	// serve until the server fails
	return <-errChan
}

func isLocalhost(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func createLocalhostMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if !isLocalhost(r.RemoteAddr) {
				http.Error(w, "connections only allowed from the same computer the server is running on", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}

const (
	adminPath = "admin"
)

// createServer opens the map files and builds the router. The returned func closes the map files and the trace file.
func createServer(fs gofs.Fs, config serverConfig) (chi.Router, func(), errorsx.Error) {
	var err error

	conns, err := imgfile.OpenMapFilesInDir(logger, fs, config.pathsConfig.DataDir, imgfile.DefaultFileHandlerLimit)
	if err != nil {
		return nil, nil, errorsx.Wrap(err)
	}

	var compiledConns []ownmapdal.CompiledMapConn
	for _, conn := range conns {
		compiledConns = append(compiledConns, conn)
	}

	for _, mapFilePath := range config.mapFilePaths {
		conn, err := imgfile.OpenMapFile(fs, mapFilePath, imgfile.DefaultFileHandlerLimit)
		if err != nil {
			return nil, nil, errorsx.Wrap(err)
		}
		compiledConns = append(compiledConns, conn)
	}

	connSet := ownmapdal.NewMapConnSet(logger, compiledConns)

	traceFilePath := config.traceFilePath
	if traceFilePath == "" {
		traceFilePath = filepath.Join(config.pathsConfig.TempDir, fmt.Sprintf("trace_%s.pbf", time.Now().Format("2006-01-02__15_04_05")))
	}

	tracer, closeTraceFile, err := newTracer(fs, traceFilePath)
	if err != nil {
		return nil, nil, errorsx.Wrap(err)
	}

	closeFunc := func() {
		closeErr := connSet.Close()
		if closeErr != nil {
			logger.Warn("couldn't close maps. Error: %q", closeErr)
		}
		closeTraceFile()
	}

	styleSet := styling.NewBuiltinStyleSet()
	metrics := ownmapdal.NewCompileMetrics()
	compileQueue := ownmapdal.NewCompileQueue(logger, fs, config.pathsConfig.RawDataFilesDir, ownmapdal.OpenDefaultPBFReader)

	adminService := webservices.NewAdminService(
		logger,
		fs,
		config.pathsConfig,
		connSet,
		compileQueue,
		tracer,
		metrics,
		config.compileOpts,
		adminPath,
	)

	router := chi.NewRouter()
	router.Use(middleware.DefaultLogger)
	router.Use(tracing.Middleware(tracer))
	router.Route("/api/", func(r chi.Router) {
		r.Mount("/maps", webservices.NewMapsService(logger, connSet, styleSet))
		r.Mount("/tiles/", webservices.NewTileService(logger, connSet, ownmaprenderer.NewLayoutRenderer(), styleSet, config.shouldProfile))
		r.Mount("/tiles-for-bounds/", webservices.NewTilesForBoundsService(logger, connSet))
	})
	router.Route(fmt.Sprintf("/%s/", adminPath), func(r chi.Router) {
		r.Use(createLocalhostMiddleware())
		r.Mount("/", adminService)
	})
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	return router, closeFunc, nil
}
