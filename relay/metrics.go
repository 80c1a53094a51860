package relay

import (
	"cobalt"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cobalt"

// queueSource is the part of a cobalt.Queue the collector reads.
type queueSource interface {
	Stats() cobalt.Stats
	State() cobalt.State
	Len() int
}

// Collector exports queue statistics and controller state on every scrape.
type Collector struct {
	q queueSource

	enqueued  *prometheus.Desc
	dequeued  *prometheus.Desc
	dropped   *prometheus.Desc
	marked    *prometheus.Desc
	overflows *prometheus.Desc
	length    *prometheus.Desc
	pDrop     *prometheus.Desc
	count     *prometheus.Desc
	dropping  *prometheus.Desc
}

func NewCollector(q queueSource) *Collector {
	desc := func(name string, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", name), help, nil, nil)
	}
	return &Collector{
		q:         q,
		enqueued:  desc("enqueued_total", "Packets accepted into the queue."),
		dequeued:  desc("dequeued_total", "Packets delivered, marked ones included."),
		dropped:   desc("dropped_total", "Packets dropped by the AQM on dequeue."),
		marked:    desc("marked_total", "Packets delivered with a CE mark."),
		overflows: desc("overflows_total", "Packets tail dropped because the queue was full."),
		length:    desc("length", "Packets currently queued."),
		pDrop:     desc("p_drop_ratio", "BLUE drop probability."),
		count:     desc("codel_actions", "Consecutive delay controller actions."),
		dropping:  desc("codel_dropping", "1 while the delay controller is dropping."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.enqueued
	ch <- c.dequeued
	ch <- c.dropped
	ch <- c.marked
	ch <- c.overflows
	ch <- c.length
	ch <- c.pDrop
	ch <- c.count
	ch <- c.dropping
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.q.Stats()
	state := c.q.State()

	ch <- prometheus.MustNewConstMetric(c.enqueued, prometheus.CounterValue, float64(st.Enqueued))
	ch <- prometheus.MustNewConstMetric(c.dequeued, prometheus.CounterValue, float64(st.Dequeued))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(st.Dropped))
	ch <- prometheus.MustNewConstMetric(c.marked, prometheus.CounterValue, float64(st.Marked))
	ch <- prometheus.MustNewConstMetric(c.overflows, prometheus.CounterValue, float64(st.Overflows))
	ch <- prometheus.MustNewConstMetric(c.length, prometheus.GaugeValue, float64(c.q.Len()))
	ch <- prometheus.MustNewConstMetric(c.pDrop, prometheus.GaugeValue, float64(state.PDrop)/(1<<32))
	ch <- prometheus.MustNewConstMetric(c.count, prometheus.GaugeValue, float64(state.Count))

	dropping := 0.0
	if state.Dropping {
		dropping = 1
	}
	ch <- prometheus.MustNewConstMetric(c.dropping, prometheus.GaugeValue, dropping)
}
