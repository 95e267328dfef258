package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCycle_IncrementsCounters(t *testing.T) {
	m := Init("tracker_test_cycle")

	m.RecordCycle("ok", 2*time.Second, 3, 7)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CyclesTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ProvidersRunTotal))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.CoordsInsertedTotal))
}

func TestRecordStopDetection_Outcomes(t *testing.T) {
	m := Init("tracker_test_stop")

	m.RecordStopDetection("confirmed")
	m.RecordStopDetection("debounced")
	m.RecordStopDetection("debounced")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.StopDetectionsTotal.WithLabelValues("confirmed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.StopDetectionsTotal.WithLabelValues("debounced")))
}

func TestRecordCall_TracksRoleAndOutcome(t *testing.T) {
	m := Init("tracker_test_call")

	m.RecordCall("operador", "atendida", 45*time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CallsPlacedTotal.WithLabelValues("operador", "atendida")))
}
