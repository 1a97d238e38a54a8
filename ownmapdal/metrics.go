package ownmapdal

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-compiler/ownmapimg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const sectionLabel = "section"

// CompileMetrics are the counters of one compile run. They are kept in their own registry,
// so they can be written out as a textfile when the run ends.
type CompileMetrics struct {
	registry *prometheus.Registry

	sourceFeatures  prometheus.Counter
	tilesEncoded    prometheus.Counter
	roadsEncoded    prometheus.Counter
	routeNodes      prometheus.Counter
	unresolvedArcs  prometheus.Counter
	sectionBytes    *prometheus.CounterVec
	tileSize        prometheus.Histogram
	tileEncodeFails prometheus.Counter
}

func NewCompileMetrics() *CompileMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &CompileMetrics{
		registry: registry,
		sourceFeatures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ownmap_compiler_source_features_total",
			Help: "The number of map elements read from the extract.",
		}),
		tilesEncoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "ownmap_compiler_tiles_encoded_total",
			Help: "The number of tiles encoded.",
		}),
		roadsEncoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "ownmap_compiler_road_records_total",
			Help: "The number of per-tile road records written.",
		}),
		routeNodes: factory.NewCounter(prometheus.CounterOpts{
			Name: "ownmap_compiler_route_nodes_total",
			Help: "The number of routing nodes written.",
		}),
		unresolvedArcs: factory.NewCounter(prometheus.CounterOpts{
			Name: "ownmap_compiler_unresolved_arcs_total",
			Help: "Routing arcs to roads that have no network record.",
		}),
		sectionBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ownmap_compiler_section_bytes_total",
			Help: "Bytes written per section type.",
		}, []string{
			sectionLabel,
		}),
		tileSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ownmap_compiler_tile_size_bytes",
			Help:    "The encoded size of a tile.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}),
		tileEncodeFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "ownmap_compiler_tile_encode_errors_total",
			Help: "Tiles that could not be encoded.",
		}),
	}
}

func (m *CompileMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *CompileMetrics) observeSource(data *SourceData) {
	m.sourceFeatures.Add(float64(data.FeatureCount()))
}

func (m *CompileMetrics) observeTile(tile *ownmapimg.EncodedTile) {
	m.tilesEncoded.Inc()
	m.roadsEncoded.Add(float64(tile.RoadCount))
	m.routeNodes.Add(float64(tile.NodeCount))
	m.unresolvedArcs.Add(float64(tile.UnresolvedArcs))
	m.tileSize.Observe(float64(tile.TotalSize()))

	for _, section := range tile.Sections {
		m.sectionBytes.With(prometheus.Labels{
			sectionLabel: section.Name,
		}).Add(float64(len(section.Data)))
	}
}

func (m *CompileMetrics) observeTileError() {
	m.tileEncodeFails.Inc()
}

// WriteToTextfile writes the metrics in the text exposition format, for the node exporter textfile collector
func (m *CompileMetrics) WriteToTextfile(path string) errorsx.Error {
	err := prometheus.WriteToTextfile(path, m.registry)
	if err != nil {
		return errorsx.Wrap(err, "path", path)
	}
	return nil
}
