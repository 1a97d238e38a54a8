package webservices

import (
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi"
	"github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/humanise"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal"
	"github.com/jamesrr39/ownmap-compiler/ownmapdal/imgfile"
)

const maxUploadMemoryBytes = 32 << 20

type AdminService struct {
	logger            *logpkg.Logger
	fs                gofs.Fs
	pathsConfig       *ownmapdal.PathsConfig
	connSet           *ownmapdal.MapConnSet
	compileQueue      *ownmapdal.CompileQueue
	tracer            *tracing.Tracer
	metrics           *ownmapdal.CompileMetrics
	compileOpts       ownmapdal.CompileOptions
	routerURLBasePath string
	nowFunc           func() time.Time
	chi.Router
}

func NewAdminService(
	logger *logpkg.Logger,
	fs gofs.Fs,
	pathsConfig *ownmapdal.PathsConfig,
	connSet *ownmapdal.MapConnSet,
	compileQueue *ownmapdal.CompileQueue,
	tracer *tracing.Tracer,
	metrics *ownmapdal.CompileMetrics,
	compileOpts ownmapdal.CompileOptions,
	routerURLBasePath string,
) *AdminService {
	as := &AdminService{
		logger,
		fs,
		pathsConfig,
		connSet,
		compileQueue,
		tracer,
		metrics,
		compileOpts,
		routerURLBasePath,
		time.Now,
		chi.NewRouter(),
	}

	as.Router.Get("/", as.handleGet)
	as.Router.Post("/rawDataFile", as.handlePostRawDataFile)

	return as
}

// handlePostRawDataFile queues an uploaded extract to be compiled into a map file in the data dir.
// The map name is taken from the "mapName" form value, or the configured map name if it is empty.
func (as *AdminService) handlePostRawDataFile(w http.ResponseWriter, r *http.Request) {
	var err error

	err = r.ParseMultipartForm(maxUploadMemoryBytes)
	if err != nil {
		errorsx.HTTPError(w, as.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	multipartFile, formData, err := r.FormFile("rawDataFile")
	if err != nil {
		errorsx.HTTPError(w, as.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}
	defer multipartFile.Close()

	opts := as.compileOpts
	opts.OutputDir = as.pathsConfig.DataDir
	mapName := r.FormValue("mapName")
	if mapName != "" {
		opts.MapName = mapName
	}

	err = opts.Validate()
	if err != nil {
		errorsx.HTTPError(w, as.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	_, err = as.connSet.GetConnByName(opts.MapName)
	if err == nil {
		errorsx.HTTPError(w, as.logger, errorsx.Errorf("a map called %q is already loaded", opts.MapName), http.StatusConflict)
		return
	}

	processFunc := func(pbfReader ownmapdal.PBFReader, rawDataFilePath string) (ownmapdal.CompiledMapConn, errorsx.Error) {
		as.logger.Info("compiling %q into map %q", rawDataFilePath, opts.MapName)

		workDir := as.pathsConfig.NewWorkDir(as.nowFunc())
		return imgfile.CompileMapFile(as.logger, as.fs, as.tracer, as.metrics, opts, workDir, pbfReader, nil)
	}

	err = as.compileQueue.AddItemToQueue(multipartFile, formData.Filename, processFunc, as.connSet.AddConn)
	if err != nil {
		errorsx.HTTPError(w, as.logger, errorsx.Wrap(err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type adminMapType struct {
	Name         string
	Description  string
	TileCount    int
	FeatureCount int
	Size         string
	BuildTime    time.Time
}

func (as *AdminService) handleGet(w http.ResponseWriter, r *http.Request) {
	var maps []*adminMapType
	for _, conn := range as.connSet.GetConns() {
		mapInfo := conn.MapInfo()

		var size int64
		for _, tile := range mapInfo.Tiles {
			size += tile.TotalSize()
		}

		maps = append(maps, &adminMapType{
			Name:         conn.Name(),
			Description:  mapInfo.Description,
			TileCount:    len(mapInfo.Tiles),
			FeatureCount: mapInfo.FeatureCount(),
			Size:         humanise.HumaniseBytes(size),
			BuildTime:    mapInfo.BuildTime,
		})
	}

	sort.Slice(maps, func(i, j int) bool {
		return maps[i].Name < maps[j].Name
	})

	data := map[string]interface{}{
		"Maps":              maps,
		"RouterURLBasePath": as.routerURLBasePath,
		"DefaultMapName":    as.compileOpts.MapName,
		"DataDirImportPath": as.pathsConfig.DataDir,
		"RawDataImportPath": as.pathsConfig.RawDataFilesDir,
		"CompileQueue":      as.compileQueue.GetItems(),
	}

	err := adminTmpl.Execute(w, data)
	if err != nil {
		errorsx.HTTPError(w, as.logger, errorsx.Wrap(err), http.StatusInternalServerError)
		return
	}
}

var adminTmpl *template.Template

func init() {
	var err error
	adminTmpl, err = template.New("admin/index.html").Parse(adminTemplate)
	if err != nil {
		panic(err)
	}
}

const adminTemplate = `
<html>
	<head>
		<title>admin</title>
		<style type="text/css">
		div {
			margin: 10px;
			border: 1px solid grey;
			padding: 10px;
		}
		</style>
		<script>
		function submitRawDataFile(formEl) {
			const formData = new FormData(formEl);

			fetch('/{{.RouterURLBasePath}}/rawDataFile', {method: 'POST', body: formData})
				.then(resp => {
					if (!resp.ok) {
						return resp.text().then(text => { throw new Error(text); });
					}
					alert('successfully uploaded raw data file. File is queued for compiling.');
				})
				.catch(e => {
					console.error(e);
					alert('failed to upload raw data file: ' + e);
				});
		}
		</script>
	</head>
	<body>
		<h1>Admin settings</h1>
		<div>
			<h2>Loaded maps</h2>
			{{range .Maps}}
				<p>
					<a href="../maps/{{.Name}}">{{.Name}}</a> {{.Description}}: {{.TileCount}} tiles, {{.FeatureCount}} features, {{.Size}}. Built {{.BuildTime}}
				</p>
			{{end}}
		</div>

		<div>
			<h2>Compile Queue:</h2>
			<sub>Refresh page for updates</sub>
			{{range .CompileQueue}}
				<h3>{{.RawDataFilePath}}</h3>
				<p>Status: {{.Status}}</p>
				<p>% progress: {{printf "%.2f%%" .ProgressPercent}}</p>
				<p>Time in progress: {{.TimeInProgress}}</p>
				{{if .Error}}<p>Error: {{.Error}}</p>{{end}}
			{{end}}
		</div>

		<div>
			<h2>Compile a map</h2>
			<p>Upload an OpenStreetMap extract (.pbf file) to compile it into a map file.</p>
			<p>The extract is copied into <pre>{{.RawDataImportPath}}</pre> and the map file is created in <pre>{{.DataDirImportPath}}</pre></p>
			<form action="javascript:;" method="POST" enctype="multipart/form-data" onsubmit="submitRawDataFile(this)" name="rawDataUploadForm">
				<p>
					<label>
						Map name (8 digits)
						<input type="text" name="mapName" placeholder="{{.DefaultMapName}}" />
					</label>
				</p>
				<p>
					<label>
						OpenStreetMap extract file (.pbf file)
						<input type="file" name="rawDataFile" />
					</label>
				</p>
				<input type="submit" value="Go!" />
			</form>
		</div>
	</body>
</html>
`
