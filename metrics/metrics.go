package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the ingestion counters on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Uploads          *prometheus.CounterVec
	RowsParsed       *prometheus.CounterVec
	RowsAccepted     *prometheus.CounterVec
	RowsRejected     *prometheus.CounterVec
	RowsStored       *prometheus.CounterVec
	StoreFailures    *prometheus.CounterVec
	MappingFallbacks *prometheus.CounterVec
	UploadSeconds    *prometheus.HistogramVec
	InFlight         prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	bySchema := []string{"schema"}

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ingest_uploads_total"}, []string{"schema", "outcome"})
	parsed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ingest_rows_parsed_total"}, bySchema)
	accepted := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ingest_rows_accepted_total"}, bySchema)
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ingest_rows_rejected_total"}, bySchema)
	stored := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ingest_rows_stored_total"}, bySchema)
	storeFailures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ingest_store_failures_total"}, bySchema)
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ingest_mapping_fallbacks_total"}, bySchema)
	seconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_upload_seconds",
		Buckets: prometheus.DefBuckets,
	}, bySchema)
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{Name: "ingest_uploads_in_flight"})

	r.MustRegister(uploads, parsed, accepted, rejected, stored, storeFailures, fallbacks, seconds, inFlight)
	return &Registry{
		reg:              r,
		Uploads:          uploads,
		RowsParsed:       parsed,
		RowsAccepted:     accepted,
		RowsRejected:     rejected,
		RowsStored:       stored,
		StoreFailures:    storeFailures,
		MappingFallbacks: fallbacks,
		UploadSeconds:    seconds,
		InFlight:         inFlight,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
