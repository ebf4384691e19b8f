package main

import (
	"log"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	labels = []string{"device_id", "network"}

	tempGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loragw",
		Subsystem: "sensors",
		Name:      "temperature_celsius",
	}, labels)
	humidityGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loragw",
		Subsystem: "sensors",
		Name:      "humidity_ratio",
	}, labels)
	pressureGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loragw",
		Subsystem: "sensors",
		Name:      "pressure_pascals",
	}, labels)
	batteryGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loragw",
		Subsystem: "sensors",
		Name:      "battery_volts",
	}, labels)

	// Receive outcome accounting.  CRC and header failures are normal
	// under imperfect radio conditions, so they are counted rather
	// than treated as exceptional.
	rxOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loragw",
		Subsystem: "radio",
		Name:      "rx_outcomes_total",
	}, []string{"outcome"})

	rssiGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loragw",
		Subsystem: "radio",
		Name:      "last_rssi_dbm",
	}, labels)
	snrGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loragw",
		Subsystem: "radio",
		Name:      "last_snr_db",
	}, labels)
)

func startPrometheus() {
	reg := prometheus.NewRegistry()

	// Add Go module build info.
	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollections(collectors.GoRuntimeMemStatsCollection | collectors.GoRuntimeMetricsCollection),
	))

	reg.MustRegister(tempGauge)
	reg.MustRegister(humidityGauge)
	reg.MustRegister(pressureGauge)
	reg.MustRegister(batteryGauge)
	reg.MustRegister(rxOutcomes)
	reg.MustRegister(rssiGauge)
	reg.MustRegister(snrGauge)

	// Expose the registered metrics via HTTP.
	http.Handle("/metrics", promhttp.HandlerFor(
		reg,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	))
	log.Fatal(http.ListenAndServe(":8080", nil))
}

func prometheusRecordOutcome(outcome string) {
	rxOutcomes.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func prometheusRecordSignal(network uint16, device uint16, q *RxQuality) {
	if q == nil {
		return
	}

	labels := deviceLabels(network, device)
	rssiGauge.With(labels).Set(float64(q.RssiDbm))
	snrGauge.With(labels).Set(float64(q.SnrDb))
}

func prometheusRecordSensors(network uint16, device uint16, tempCelcius, humidityRatio, pressurePascals, batteryVolts float64) {
	labels := deviceLabels(network, device)

	tempGauge.With(labels).Set(tempCelcius)
	humidityGauge.With(labels).Set(humidityRatio)
	pressureGauge.With(labels).Set(pressurePascals)
	batteryGauge.With(labels).Set(batteryVolts)
}

func deviceLabels(network uint16, device uint16) prometheus.Labels {
	return prometheus.Labels{
		"device_id": strconv.Itoa(int(device)),
		"network":   strconv.Itoa(int(network)),
	}
}
