package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHold(t *testing.T) {
	before := testutil.ToFloat64(holdOperations.WithLabelValues("acquire", "conflict"))
	RecordHold("acquire", "conflict")
	RecordHold("acquire", "conflict")
	assert.Equal(t, before+2, testutil.ToFloat64(holdOperations.WithLabelValues("acquire", "conflict")))
}

func TestRecordReconciliationLabels(t *testing.T) {
	before := testutil.ToFloat64(reconciliations.WithLabelValues("paid", "true"))
	RecordReconciliation("paid", true)
	assert.Equal(t, before+1, testutil.ToFloat64(reconciliations.WithLabelValues("paid", "true")))
}

func TestAddSweptHoldsIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(sweptHolds)
	AddSweptHolds(0)
	AddSweptHolds(3)
	assert.Equal(t, before+3, testutil.ToFloat64(sweptHolds))
}

func TestObservePaymentCall(t *testing.T) {
	ObservePaymentCall("query_status", time.Now(), errors.New("timeout"))
	assert.Equal(t, 1, testutil.CollectAndCount(paymentAuthorityDuration, "seatflow_payment_authority_duration_seconds"))
}
