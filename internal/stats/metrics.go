package stats

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const namespace = "shardsim"

// MetricsSink aggregates records into prometheus collectors. On Flush the
// registry is dumped in the text exposition format to path, if set.
type MetricsSink struct {
	path     string
	registry *prometheus.Registry

	blocks        *prometheus.CounterVec
	transactions  *prometheus.CounterVec
	finalizations *prometheus.CounterVec
	stake         *prometheus.GaugeVec
	tokens        *prometheus.GaugeVec
	epochLeaders  *prometheus.CounterVec
	epoch         prometheus.Gauge
	closed        bool
}

// NewMetricsSink creates a sink with its own registry
func NewMetricsSink(path string) *MetricsSink {
	m := &MetricsSink{
		path:     path,
		registry: prometheus.NewRegistry(),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_finalized_total",
			Help:      "Blocks finalized per shard, counted at the leader.",
		}, []string{"shard"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions in finalized blocks per shard.",
		}, []string{"shard"}),
		finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalizations_total",
			Help:      "Finalizations observed per shard, one per validator.",
		}, []string{"shard"}),
		stake: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stake",
			Help:      "Stake of a node at the start of the current epoch.",
		}, []string{"node"}),
		tokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tokens",
			Help:      "Tokens of a node at the start of the current epoch.",
		}, []string{"node"}),
		epochLeaders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epoch_leader_total",
			Help:      "Epochs a node was elected shard leader.",
		}, []string{"node"}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "epoch",
			Help:      "Current epoch.",
		}),
	}
	m.registry.MustRegister(m.blocks, m.transactions, m.finalizations, m.stake, m.tokens, m.epochLeaders, m.epoch)
	return m
}

// Registry returns the registry holding the collectors
func (m *MetricsSink) Registry() *prometheus.Registry { return m.registry }

func (m *MetricsSink) RecordSlot(r SlotRecord) error {
	if m.closed {
		return ErrClosed
	}
	shard := strconv.Itoa(r.Shard)
	m.finalizations.WithLabelValues(shard).Inc()
	if r.Leader {
		m.blocks.WithLabelValues(shard).Inc()
		m.transactions.WithLabelValues(shard).Add(float64(r.TxCount))
	}
	return nil
}

func (m *MetricsSink) RecordStake(r StakeRecord) error {
	if m.closed {
		return ErrClosed
	}
	node := strconv.Itoa(r.Node)
	m.stake.WithLabelValues(node).Set(float64(r.Stake))
	m.tokens.WithLabelValues(node).Set(float64(r.Tokens))
	m.epoch.Set(float64(r.Epoch))
	return nil
}

func (m *MetricsSink) RecordLeader(r LeaderRecord) error {
	if m.closed {
		return ErrClosed
	}
	m.epochLeaders.WithLabelValues(strconv.Itoa(r.Node)).Inc()
	return nil
}

// WriteTo dumps the registry in the text exposition format
func (m *MetricsSink) WriteTo(w io.Writer) (int64, error) {
	var (
		families []*dto.MetricFamily
		err      error
	)
	if families, err = m.registry.Gather(); err != nil {
		return 0, fmt.Errorf("failed to gather metrics: %w", err)
	}
	var total int64
	for _, mf := range families {
		n, err := expfmt.MetricFamilyToText(w, mf)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (m *MetricsSink) Flush() error {
	if m.closed {
		return ErrClosed
	}
	if m.path == "" {
		return nil
	}
	f, err := os.Create(m.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", m.path, err)
	}
	if _, err := m.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (m *MetricsSink) Close() error {
	if m.closed {
		return nil
	}
	err := m.Flush()
	m.closed = true
	return err
}
