package metrics_test

import (
	"testing"

	"github.com/jrsteele09/minu-sso/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordCallback(t *testing.T) {
	before := testutil.ToFloat64(metrics.CallbacksReceived.WithLabelValues("keep", "csrf"))
	metrics.RecordCallback("keep", "csrf")
	metrics.RecordCallback("keep", "csrf")
	require.Equal(t, before+2, testutil.ToFloat64(metrics.CallbacksReceived.WithLabelValues("keep", "csrf")))
}

func TestRecordTokenRequest(t *testing.T) {
	before := testutil.ToFloat64(metrics.TokenRequests.WithLabelValues("revoke", "error"))
	metrics.RecordTokenRequest("revoke", "error", 0.2)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.TokenRequests.WithLabelValues("revoke", "error")))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.TokenRequestDuration))
}
