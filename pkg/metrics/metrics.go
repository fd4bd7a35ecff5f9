package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openshift/bondmon/pkg/log"
)

const namespace = "bondmon"

var (
	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "member",
		Name:      "transitions_total",
		Help:      "Number of confirmed member link transitions.",
	}, []string{"bond", "member", "direction"})

	Elections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bond",
		Name:      "active_changes_total",
		Help:      "Number of elections that changed the set of members carrying traffic.",
	}, []string{"bond", "mode"})

	ActiveMember = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bond",
		Name:      "active_member_index",
		Help:      "Interface index of the active member, 0 if none.",
	}, []string{"bond"})

	EligibleMembers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bond",
		Name:      "eligible_members",
		Help:      "Number of members allowed to carry traffic.",
	}, []string{"bond"})

	SkippedReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "member",
		Name:      "skipped_reads_total",
		Help:      "Number of probe reads skipped because the device could not be read.",
	}, []string{"bond", "member"})
)

func init() {
	prometheus.MustRegister(Transitions)
	prometheus.MustRegister(Elections)
	prometheus.MustRegister(ActiveMember)
	prometheus.MustRegister(EligibleMembers)
	prometheus.MustRegister(SkippedReads)
}

// Forget drops every series of a bond.
func Forget(bond string) {
	labels := prometheus.Labels{"bond": bond}
	Transitions.DeletePartialMatch(labels)
	Elections.DeletePartialMatch(labels)
	ActiveMember.DeletePartialMatch(labels)
	EligibleMembers.DeletePartialMatch(labels)
	SkippedReads.DeletePartialMatch(labels)
}

// Run serves /metrics on address until ctx is cancelled.
func Run(ctx context.Context, address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Log.Warn("failed to shut down metrics server", "error", err)
		}
	}()

	log.Log.Info("serving metrics", "address", address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
