// Package stats samples process memory and cpu while a command runs.
package stats

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

type Report struct {
	Start   time.Time
	End     time.Time
	Samples []Sample
	Phases  []Phase
	Summary Summary
}

type Sample struct {
	Elapsed      time.Duration
	HeapAlloc    uint64
	Sys          uint64
	RSS          uint64
	CPUPercent   float64
	NumGoroutine int
	NumGC        uint32
}

// Phase is a named stretch of the run, closed by the next Mark or by Stop.
type Phase struct {
	Name     string
	Started  time.Duration
	Duration time.Duration
}

type Summary struct {
	PeakHeapAlloc  uint64
	PeakRSS        uint64
	PeakCPUPercent float64
	AvgCPUPercent  float64
	PeakGoroutines int
	GCCycles       uint32
}

type Collector struct {
	mu       sync.Mutex
	report   Report
	interval time.Duration
	proc     *process.Process

	stop chan struct{}
	done chan struct{}
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}

	return &Collector{
		interval: interval,
		proc:     proc,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (c *Collector) Start() {
	c.report.Start = time.Now()
	go c.loop()
}

func (c *Collector) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-c.stop:
			c.sample()
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

// Mark starts a new phase and samples immediately.
func (c *Collector) Mark(name string) {
	c.mu.Lock()
	elapsed := time.Since(c.report.Start)
	c.closePhase(elapsed)
	c.report.Phases = append(c.report.Phases, Phase{Name: name, Started: elapsed})
	c.mu.Unlock()

	c.sample()
}

func (c *Collector) closePhase(elapsed time.Duration) {
	if n := len(c.report.Phases); n > 0 && c.report.Phases[n-1].Duration == 0 {
		c.report.Phases[n-1].Duration = elapsed - c.report.Phases[n-1].Started
	}
}

func (c *Collector) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Sample{
		Elapsed:      time.Since(c.report.Start),
		HeapAlloc:    mem.HeapAlloc,
		Sys:          mem.Sys,
		NumGC:        mem.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
	}
	if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
		s.RSS = info.RSS
	}
	if cpu, err := c.proc.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	}

	c.mu.Lock()
	c.report.Samples = append(c.report.Samples, s)
	c.mu.Unlock()
}

// Stop ends sampling and returns the report. It must be called once.
func (c *Collector) Stop() Report {
	close(c.stop)
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	c.report.End = time.Now()
	c.closePhase(c.report.End.Sub(c.report.Start))
	c.report.Summary = summarize(c.report.Samples)
	return c.report
}

func summarize(samples []Sample) Summary {
	var sum Summary
	if len(samples) == 0 {
		return sum
	}

	var totalCPU float64
	for _, s := range samples {
		sum.PeakHeapAlloc = max(sum.PeakHeapAlloc, s.HeapAlloc)
		sum.PeakRSS = max(sum.PeakRSS, s.RSS)
		sum.PeakCPUPercent = max(sum.PeakCPUPercent, s.CPUPercent)
		sum.PeakGoroutines = max(sum.PeakGoroutines, s.NumGoroutine)
		sum.GCCycles = max(sum.GCCycles, s.NumGC)
		totalCPU += s.CPUPercent
	}
	sum.AvgCPUPercent = totalCPU / float64(len(samples))
	return sum
}

// WriteTo prints a human readable report.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "duration\t%s\n", r.End.Sub(r.Start).Round(time.Millisecond))
	fmt.Fprintf(tw, "peak heap\t%s\n", humanize.IBytes(r.Summary.PeakHeapAlloc))
	fmt.Fprintf(tw, "peak rss\t%s\n", humanize.IBytes(r.Summary.PeakRSS))
	fmt.Fprintf(tw, "cpu peak/avg\t%.1f%% / %.1f%%\n", r.Summary.PeakCPUPercent, r.Summary.AvgCPUPercent)
	fmt.Fprintf(tw, "goroutines peak\t%s\n", humanize.Comma(int64(r.Summary.PeakGoroutines)))
	fmt.Fprintf(tw, "gc cycles\t%d\n", r.Summary.GCCycles)

	if len(r.Phases) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "phase\tstarted\tduration")
		for _, p := range r.Phases {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Started.Round(time.Millisecond), p.Duration.Round(time.Millisecond))
		}
	}

	if err := tw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, cw.err
}

func (r Report) SaveToFile(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create stats file: %w", err)
	}
	defer f.Close()

	if _, err := r.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return f.Close()
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
