package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/hmux"

	"storj.io/handletable"
)

// Handler returns the monitor's debug surface:
//
//	/stats   lifetime counters as json
//	/probes  probe length distribution as json
//	/recent  trace of recent events as json
func (m *Monitor) Handler() http.Handler {
	return hmux.Dir{
		"/stats": statsHandler(func() []stat {
			totals := m.Totals()
			return []stat{
				{"allocated", totals.Allocated},
				{"freed", totals.Freed},
				{"exhausted", totals.Exhausted},
				{"live", totals.Allocated - totals.Freed},
			}
		}),
		"/probes": http.HandlerFunc(m.probesHandler),
		"/recent": http.HandlerFunc(m.recentHandler),
	}
}

type stat struct {
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

func statsHandler(fn func() []stat) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fn())
	})
}

type probeData struct {
	Total uint64  `json:"total"`
	Sum   float64 `json:"sum"`
	Avg   float64 `json:"avg"`
	Vari  float64 `json:"vari"`

	Quantiles []probeQuantile `json:"quantiles"`
}

type probeQuantile struct {
	Q float64 `json:"q"`
	V float32 `json:"v"`
}

func (m *Monitor) probesHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	total, sum, avg, vari := m.probes.Summary()
	resp := probeData{
		Total:     total,
		Sum:       sum,
		Avg:       avg,
		Vari:      vari,
		Quantiles: make([]probeQuantile, 0, 4),
	}
	for _, q := range []float64{0.5, 0.9, 0.99, 1} {
		resp.Quantiles = append(resp.Quantiles, probeQuantile{Q: q, V: m.probes.Quantile(q)})
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type recentItem struct {
	Kind   string    `json:"kind"`
	Handle string    `json:"handle"`
	Probes int       `json:"probes,omitempty"`
	Time   time.Time `json:"time"`
}

func (m *Monitor) recentHandler(w http.ResponseWriter, r *http.Request) {
	evs := m.Recent()
	items := make([]recentItem, 0, len(evs))
	for _, ev := range evs {
		items = append(items, recentItem{
			Kind:   ev.Kind.String(),
			Handle: ev.Handle.String(),
			Probes: ev.Probes,
			Time:   ev.Time,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

// Dump returns an http.Handler that writes one line per live slot in t,
// zstd compressing the body when the client advertises it.
func Dump[T any](t *handletable.Table[T]) http.Handler {
	enc, err := zstd.NewWriter(nil,
		zstd.WithWindowSize(1<<20),
		zstd.WithLowerEncoderMem(true),
	)
	if err != nil {
		panic(err) // this can only happen with invalid options
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		for h, p := range t.All() {
			fmt.Fprintf(&buf, "%v %p\n", h, p)
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if strings.Contains(r.Header.Get("Accept-Encoding"), "zstd") {
			w.Header().Set("Content-Encoding", "zstd")
			_, _ = w.Write(enc.EncodeAll(buf.Bytes(), nil))
			return
		}
		_, _ = w.Write(buf.Bytes())
	})
}
