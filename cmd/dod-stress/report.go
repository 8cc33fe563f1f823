package main

import (
	"io"
	"runtime"
	"text/template"
	"time"
)

type Report struct {
	// Configuration
	Duration time.Duration
	Churn    int
	Swarms   int
	Boids    int
	GCPause  bool

	// Results
	Frames        int64
	Created       int64
	Destroyed     int64
	LiveEntities  int
	TotalTime     time.Duration
	FrameTime     Stats
	ChurnTime     Stats
	SwarmTime     Stats
	MemStatsStart runtime.MemStats
	MemStatsEnd   runtime.MemStats
}

type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Samples []time.Duration
}

func (s *Stats) Add(d time.Duration) { s.Samples = append(s.Samples, d) }

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}

	var total time.Duration
	s.Min = s.Samples[0]
	s.Max = s.Samples[0]
	for _, sample := range s.Samples {
		s.Min = min(s.Min, sample)
		s.Max = max(s.Max, sample)
		total += sample
	}
	s.Avg = total / time.Duration(len(s.Samples))
}

func (r *Report) Finalize() {
	r.FrameTime.Finalize()
	r.ChurnTime.Finalize()
	r.SwarmTime.Finalize()
}

func (r *Report) Generate(w io.Writer) error {
	const reportTemplate = `
# Stress Test Report

## Test Configuration
- **Run Duration:** {{.Duration}}
- **Churn per Frame:** {{.Churn}}
- **Swarms:** {{.Swarms}}
- **Boids:** {{.Boids}}

## Performance Results
- **Frames:** {{.Frames}}
- **Total Test Time:** {{.TotalTime}}
- **Entities:** {{.Created}} created, {{.Destroyed}} destroyed, {{.LiveEntities}} live at end
{{template "stats" dict "Name" "Frame" "S" .FrameTime}}
{{- template "stats" dict "Name" "Alloc/Destroy Churn" "S" .ChurnTime}}
{{- template "stats" dict "Name" "Swarm Update" "S" .SwarmTime}}
## Memory Usage (Raw Bytes)
- Heap Alloc:     {{.MemStatsStart.HeapAlloc}} (start) -> {{.MemStatsEnd.HeapAlloc}} (end) -> delta: {{bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc}}
- Total Alloc:    {{.MemStatsStart.TotalAlloc}} (start) -> {{.MemStatsEnd.TotalAlloc}} (end) -> delta: {{bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc}}
- Mallocs:        {{.MemStatsStart.Mallocs}} (start) -> {{.MemStatsEnd.Mallocs}} (end) -> delta: {{bsub .MemStatsEnd.Mallocs .MemStatsStart.Mallocs}}
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
{{if .GCPause}}
## GC Pause Durations
- **Total GC Pause:** {{.MemStatsEnd.PauseTotalNs | ns}}
- **Num GC Cycles:** {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
{{end}}
{{define "stats"}}- **{{.Name}} Time:**
  - **Avg:** {{.S.Avg}}
  - **Min:** {{.S.Min}}
  - **Max:** {{.S.Max}}
{{end}}`

	fm := template.FuncMap{
		"bsub": func(a, b uint64) int64 {
			return int64(a) - int64(b)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
		"ns": func(ns uint64) string {
			return time.Duration(ns).String()
		},
		"dict": func(kv ...any) map[string]any {
			m := make(map[string]any, len(kv)/2)
			for i := 0; i+1 < len(kv); i += 2 {
				m[kv[i].(string)] = kv[i+1]
			}
			return m
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, r)
}
