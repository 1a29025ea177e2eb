// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "farm"

// Metrics exports protocol gauges and call counters
type Metrics struct {
	season      prometheus.Gauge
	weather     prometheus.Gauge
	soil        prometheus.Gauge
	totalStalk  prometheus.Gauge
	totalSeeds  prometheus.Gauge
	podIndex    prometheus.Gauge
	harvestable prometheus.Gauge
	farmable    prometheus.Gauge

	transitions *prometheus.CounterVec
	calls       *prometheus.CounterVec
	reverted    *prometheus.CounterVec
}

// NewMetrics creates the farm collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		season:      gauge("season", "Current season index"),
		weather:     gauge("weather_percent", "Current weather (pod yield percent)"),
		soil:        gauge("soil", "Stablecoin that can still be sown this season"),
		totalStalk:  gauge("stalk_total", "Stalk issued to the silo"),
		totalSeeds:  gauge("seeds_total", "Seeds issued to the silo"),
		podIndex:    gauge("pod_index", "Cumulative pods issued"),
		harvestable: gauge("harvestable_index", "Cumulative pods made harvestable"),
		farmable:    gauge("farmable_stablecoin", "Stablecoin minted to the silo and not yet vested"),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "season_transitions_total",
			Help:      "Season transitions by supply case",
		}, []string{"case"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "calls_total",
			Help:      "Successful mutating calls by operation",
		}, []string{"op"}),
		reverted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "calls_reverted_total",
			Help:      "Reverted mutating calls by operation and error kind",
		}, []string{"op", "kind"}),
	}
	collectors := []prometheus.Collector{
		m.season, m.weather, m.soil, m.totalStalk, m.totalSeeds,
		m.podIndex, m.harvestable, m.farmable,
		m.transitions, m.calls, m.reverted,
	}
	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

func toFloat(x *uint256.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(x.ToBig()).Float64()
	return f
}

func (m *Metrics) observe(s Season, silo Silo, field Field) {
	if m == nil {
		return
	}
	m.season.Set(float64(s.Current))
	m.weather.Set(float64(s.Weather))
	m.soil.Set(toFloat(field.Soil))
	m.totalStalk.Set(toFloat(silo.TotalStalk))
	m.totalSeeds.Set(toFloat(silo.TotalSeeds))
	m.podIndex.Set(toFloat(field.PodIndex))
	m.harvestable.Set(toFloat(field.HarvestableIndex))
	m.farmable.Set(toFloat(silo.Farmable))
}

func (m *Metrics) transition(c SupplyCase) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) succeeded(op string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op).Inc()
}

func (m *Metrics) failed(op string, kind Kind) {
	if m == nil {
		return
	}
	m.reverted.WithLabelValues(op, kind.String()).Inc()
}
