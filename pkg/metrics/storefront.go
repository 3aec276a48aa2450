package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics records OTP and checkout outcomes.
type StorefrontMetrics struct {
	otpSends         *prometheus.CounterVec
	otpVerifications *prometheus.CounterVec
	checkouts        *prometheus.CounterVec
	checkoutDuration *prometheus.HistogramVec
}

// NewStorefrontMetrics registers the storefront metrics on the provided registerer.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	otpSends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_sends_total",
		Help: "OTP send attempts by result.",
	}, []string{"result"})
	otpVerifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_verifications_total",
		Help: "OTP verification attempts by result.",
	}, []string{"result"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Checkout completions by payment method and result.",
	}, []string{"method", "result"})
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout completion in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	reg.MustRegister(otpSends, otpVerifications, checkouts, checkoutDuration)
	return &StorefrontMetrics{
		otpSends:         otpSends,
		otpVerifications: otpVerifications,
		checkouts:        checkouts,
		checkoutDuration: checkoutDuration,
	}
}

// IncOTPSend increments the send counter for the given result label.
func (m *StorefrontMetrics) IncOTPSend(result string) {
	if m == nil || m.otpSends == nil {
		return
	}
	m.otpSends.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncOTPVerification increments the verification counter for the given result label.
func (m *StorefrontMetrics) IncOTPVerification(result string) {
	if m == nil || m.otpVerifications == nil {
		return
	}
	m.otpVerifications.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncCheckout increments the checkout counter for the method/result pair.
func (m *StorefrontMetrics) IncCheckout(method, result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(method), normalizeLabel(result)).Inc()
}

// ObserveCheckoutDuration records how long a checkout completion took.
func (m *StorefrontMetrics) ObserveCheckoutDuration(method string, duration time.Duration) {
	if m == nil || m.checkoutDuration == nil {
		return
	}
	m.checkoutDuration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
