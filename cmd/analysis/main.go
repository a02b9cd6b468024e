//go:build analysis

// Command analysis measures how verification cost moves with proof power
// and renders the results as an HTML report.
//
//	go run -tags analysis ./cmd/analysis -n 521,607,1279 -max-power 9
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/discard"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"prp-proof/internal/prooftest"
	"prp-proof/proof"
	"prp-proof/roots"
)

type sample struct {
	Exponent          uint32  `json:"exponent"`
	Power             int     `json:"power"`
	Strategy          string  `json:"strategy"`
	ServerCost        uint64  `json:"server_cost"`
	CertificationCost uint64  `json:"certification_cost"`
	HardeningCost     uint64  `json:"hardening_cost"`
	Millis            float64 `json:"millis"`
	Valid             bool    `json:"valid"`
}

// ------------------------------ measurement ------------------------------

func measure(n uint32, power int, strategy proof.Halving) (sample, error) {
	p, err := prooftest.Build(prooftest.Spec{Number: fmt.Sprintf("M%d", n), Power: power, Strategy: strategy})
	if err != nil {
		return sample{}, err
	}
	v, err := proof.New(proof.Options{Strategy: strategy, Logger: &log.Logger{Handler: discard.Default}})
	if err != nil {
		return sample{}, err
	}
	start := time.Now()
	res, err := v.Verify(context.Background(), bytes.NewReader(p.Data), -1)
	if err != nil {
		return sample{}, err
	}
	return sample{
		Exponent:          n,
		Power:             power,
		Strategy:          strategy.String(),
		ServerCost:        res.ServerCost,
		CertificationCost: res.CertificationCost,
		HardeningCost:     res.HardeningCost,
		Millis:            float64(time.Since(start).Microseconds()) / 1000,
		Valid:             res.Valid,
	}, nil
}

// ------------------------- plotting: go-echarts HTML -------------------------

func toLineItems(vals []uint64) []opts.LineData {
	out := make([]opts.LineData, len(vals))
	for i, v := range vals {
		out[i] = opts.LineData{Value: v}
	}
	return out
}

func newCostChart(n uint32, samples []sample) *charts.Line {
	var (
		powers              []string
		server, certify, hd []uint64
	)
	for _, s := range samples {
		if s.Exponent != n || s.Strategy != proof.SquareB.String() {
			continue
		}
		powers = append(powers, strconv.Itoa(s.Power))
		server = append(server, s.ServerCost)
		certify = append(certify, s.CertificationCost)
		hd = append(hd, s.HardeningCost)
	}
	title := fmt.Sprintf("M%d verification cost", n)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "squarings by proof power"}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "log"}),
	)
	line.SetXAxis(powers).
		AddSeries("server", toLineItems(server)).
		AddSeries("certification", toLineItems(certify)).
		AddSeries("hardening", toLineItems(hd))
	return line
}

func newHardeningChart(exponents []uint32) (*charts.Bar, error) {
	h := roots.DefaultHardener()
	labels := make([]string, len(exponents))
	items := make([]opts.BarData, len(exponents))
	for i, n := range exponents {
		e, err := h.Exponent(n)
		if err != nil {
			return nil, err
		}
		labels[i] = fmt.Sprintf("M%d", n)
		items[i] = opts.BarData{Value: e.BitLen()}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Hardening exponent size", Subtitle: "bits of the product of small roots"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "500px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("bits", items)
	return bar, nil
}

// ------------------------------ JSON and I/O ------------------------------

func saveJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func parseExponents(s string) ([]uint32, error) {
	var out []uint32
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(f), 10, 32)
		if err != nil || n < 3 {
			return nil, fmt.Errorf("bad exponent %q", f)
		}
		out = append(out, uint32(n))
	}
	return out, nil
}

// ------------------------------- main routine -------------------------------

func main() {
	exps := flag.String("n", "127,521,607", "comma separated Mersenne exponents")
	maxPower := flag.Int("max-power", 8, "largest proof power to measure")
	outDir := flag.String("out", "Measure_Reports", "output directory for reports")
	flag.Parse()

	log.SetHandler(cli.Default)
	exponents, err := parseExponents(*exps)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *maxPower < 1 || *maxPower > proof.MaxPower {
		log.Fatalf("max-power must be in [1, %d]", proof.MaxPower)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}

	var samples []sample
	for _, n := range exponents {
		for power := 1; power <= *maxPower; power++ {
			for _, strategy := range []proof.Halving{proof.SquareB, proof.SquareA} {
				s, err := measure(n, power, strategy)
				if err != nil {
					log.Fatalf("M%d power %d: %v", n, power, err)
				}
				if !s.Valid {
					log.Warnf("M%d power %d %s: proof rejected", n, power, strategy)
				}
				samples = append(samples, s)
			}
		}
		log.Infof("measured M%d", n)
	}

	ts := time.Now().Format("20060102_150405")
	jsonPath := filepath.Join(*outDir, fmt.Sprintf("verify_costs_%s.json", ts))
	if err := saveJSON(jsonPath, samples); err != nil {
		log.Warnf("save samples: %v", err)
	}

	page := components.NewPage()
	for _, n := range exponents {
		page.AddCharts(newCostChart(n, samples))
	}
	bar, err := newHardeningChart(exponents)
	if err != nil {
		log.Fatalf("hardening: %v", err)
	}
	page.AddCharts(bar)

	htmlPath := filepath.Join(*outDir, fmt.Sprintf("verify_costs_%s.html", ts))
	f, err := os.Create(htmlPath)
	if err != nil {
		log.Fatalf("create html: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render html: %v", err)
	}
	fmt.Println("Cost report:", htmlPath)
	fmt.Println("Samples JSON:", jsonPath)
}
