package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounters(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordCandle("1m", true)
	r.RecordCandle("1m", true)
	r.RecordCandle("1m", false)
	r.RecordRiskRejection("max_exposure_per_asset")
	r.SetConnected("CRYPTO", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.candlesTotal.WithLabelValues("1m", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.candlesTotal.WithLabelValues("1m", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.riskRejections.WithLabelValues("max_exposure_per_asset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.connected.WithLabelValues("CRYPTO")))

	r.SetConnected("CRYPTO", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.connected.WithLabelValues("CRYPTO")))
}
