package metering

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cwbudde/algo-kmeter/dsp/average"
	"github.com/cwbudde/algo-kmeter/dsp/core"
	"github.com/cwbudde/algo-kmeter/measure/ballistics"
)

// AllChannels selects every channel for reporting.
const AllChannels = -1

const defaultAverageChunks = 10

type reporterConfig struct {
	channel       int
	csv           bool
	average       bool
	peak          bool
	averageChunks int
}

// ReporterOption configures a [Reporter].
type ReporterOption func(*reporterConfig) error

// WithReportChannel restricts the report to one zero-based channel, or
// [AllChannels] (the default).
func WithReportChannel(ch int) ReporterOption {
	return func(cfg *reporterConfig) error {
		if ch < AllChannels {
			return fmt.Errorf("metering: invalid report channel: %d", ch)
		}

		cfg.channel = ch

		return nil
	}
}

// WithCSV switches the output to comma-separated values with a header.
func WithCSV(enabled bool) ReporterOption {
	return func(cfg *reporterConfig) error {
		cfg.csv = enabled
		return nil
	}
}

// WithAverageLevel adds the moving average of the RMS reading.
func WithAverageLevel(enabled bool) ReporterOption {
	return func(cfg *reporterConfig) error {
		cfg.average = enabled
		return nil
	}
}

// WithPeakLevel adds the peak and peak hold readings.
func WithPeakLevel(enabled bool) ReporterOption {
	return func(cfg *reporterConfig) error {
		cfg.peak = enabled
		return nil
	}
}

// WithAverageChunks sets how many chunks the RMS average spans (default 10).
func WithAverageChunks(n int) ReporterOption {
	return func(cfg *reporterConfig) error {
		if n < 1 {
			return fmt.Errorf("metering: average window must be >= 1 chunk: %d", n)
		}

		cfg.averageChunks = n

		return nil
	}
}

// Reporter writes meter readings produced during file validation. Channel
// numbers in the output are one-based.
type Reporter struct {
	cfg       reporterConfig
	w         io.Writer
	csv       *csv.Writer
	header    bool
	averagers []*average.Averager
	record    []string
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer, opts ...ReporterOption) (*Reporter, error) {
	if w == nil {
		return nil, fmt.Errorf("metering: reporter needs a writer")
	}

	cfg := reporterConfig{channel: AllChannels, averageChunks: defaultAverageChunks}
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	r := &Reporter{cfg: cfg, w: w}
	if cfg.csv {
		r.csv = csv.NewWriter(w)
	}

	return r, nil
}

// Reset clears the averaging windows; the CSV header is not repeated.
func (r *Reporter) Reset() {
	for _, avg := range r.averagers {
		avg.Reset()
	}
}

// Report writes one line per selected channel of snap, stamped with the
// playback position in seconds.
func (r *Reporter) Report(snap *ballistics.Snapshot, seconds float64) error {
	if snap == nil {
		return nil
	}

	if err := r.ensureAveragers(len(snap.Channels)); err != nil {
		return err
	}

	for ch, st := range snap.Channels {
		avg := r.averagers[ch]
		avg.AddSample(st.RmsDB)

		if r.cfg.channel != AllChannels && r.cfg.channel != ch {
			continue
		}

		if err := r.writeLine(seconds, ch, st, avg); err != nil {
			return err
		}
	}

	if r.csv != nil {
		r.csv.Flush()
		return r.csv.Error()
	}

	return nil
}

func (r *Reporter) ensureAveragers(channels int) error {
	for len(r.averagers) < channels {
		avg, err := average.New(r.cfg.averageChunks, core.SilenceDB)
		if err != nil {
			return err
		}

		r.averagers = append(r.averagers, avg)
	}

	return nil
}

func (r *Reporter) writeLine(seconds float64, ch int, st ballistics.ChannelState, avg *average.Averager) error {
	if r.csv != nil {
		return r.writeCSV(seconds, ch, st, avg)
	}

	line := fmt.Sprintf("%9.3f s  ch %d  rms %8.2f dB", seconds, ch+1, st.RmsDB)

	if r.cfg.peak {
		line += fmt.Sprintf("  peak %8.2f dB  hold %8.2f dB", st.PeakDB, st.PeakHoldDB)
	}

	if r.cfg.average {
		if avg.Valid() {
			line += fmt.Sprintf("  avg %8.2f dB", avg.SimpleMovingAverage())
		} else {
			line += "  avg        - dB"
		}
	}

	line += fmt.Sprintf("  overflows %d\n", st.Overflows)

	_, err := io.WriteString(r.w, line)

	return err
}

func (r *Reporter) writeCSV(seconds float64, ch int, st ballistics.ChannelState, avg *average.Averager) error {
	if !r.header {
		r.header = true

		header := []string{"time_s", "channel", "rms_db"}
		if r.cfg.peak {
			header = append(header, "peak_db", "peak_hold_db")
		}

		if r.cfg.average {
			header = append(header, "average_rms_db")
		}

		if err := r.csv.Write(append(header, "overflows")); err != nil {
			return err
		}
	}

	rec := append(r.record[:0],
		strconv.FormatFloat(seconds, 'f', 3, 64),
		strconv.Itoa(ch+1),
		formatDB(st.RmsDB),
	)

	if r.cfg.peak {
		rec = append(rec, formatDB(st.PeakDB), formatDB(st.PeakHoldDB))
	}

	if r.cfg.average {
		field := ""
		if avg.Valid() {
			field = formatDB(avg.SimpleMovingAverage())
		}

		rec = append(rec, field)
	}

	rec = append(rec, strconv.Itoa(st.Overflows))
	r.record = rec

	return r.csv.Write(rec)
}

func formatDB(db float64) string {
	return strconv.FormatFloat(db, 'f', 2, 64)
}
