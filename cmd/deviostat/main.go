// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command deviostat resolves the same backing-store/VHD/buffer
// configuration cmd/devio would bootstrap for a given image, without
// opening a transport, and dumps it as a one-shot OpenMetrics exposition.
package main

import (
	"log"
	"os"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/blockdevio/devio-go/internal/bootstrap"
)

const (
	programName = "deviostat"
	programDesc = "Dump devio backing-store/VHD configuration as OpenMetrics"
)

// cli mirrors bootstrap.CLI's addressing arguments but omits the comm
// device and --drv: deviostat never opens a transport.
var cli struct {
	Dll   string `flag:"" name:"dll" help:"Load a custom backing-store plugin, given as path;symbol." placeholder:"path;symbol"`
	NoVHD bool   `flag:"" name:"novhd" help:"Skip dynamic-VHD detection; treat the image as a flat file."`

	Image string `arg:"" help:"Path to the backing image, or the plugin's image name when --dll is set."`

	SizeOrPartNum string `arg:"" optional:"" help:"Explicit size, a block count, or a partition number (< 512)."`
	Offset        string `arg:"" optional:"" help:"Explicit image offset, same suffix rules as size."`
	BufSize       string `arg:"" optional:"" help:"Initial protocol buffer size, same suffix rules as size."`
}

func main() {
	kong.Parse(&cli,
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true, Summary: true}))

	bcli := bootstrap.CLI{
		Dll:           cli.Dll,
		NoVHD:         cli.NoVHD,
		ReadOnly:      true,
		Image:         cli.Image,
		SizeOrPartNum: cli.SizeOrPartNum,
		Offset:        cli.Offset,
		BufSize:       cli.BufSize,
	}

	bs, err := bootstrap.ResolveBackingStore(&bcli)
	if err != nil {
		log.Fatalf("resolve backing store: %v", err)
	}
	defer bs.Store.Close()

	bufSize, err := bootstrap.ResolveBufferSize(&bcli)
	if err != nil {
		log.Fatalf("resolve buffer size: %v", err)
	}

	outputMetrics(bs, bufSize)
}

// outputMetrics builds a one-shot prometheus.Collector over the resolved
// configuration and serializes it to stdout via the standard
// NewPedanticRegistry/Gather/MetricFamilyToText sequence.
func outputMetrics(bs *bootstrap.BackingStore, bufSize int) {
	var (
		mBufferSize = prometheus.NewDesc(
			"devio_buffer_size_bytes",
			"Resolved protocol buffer size in bytes",
			nil, nil,
		)
		mRequestsTotal = prometheus.NewDesc(
			"devio_requests_total",
			"Request counter by op; always zero for a one-shot dump since devio itself keeps no persistent counters",
			[]string{"op"}, nil,
		)
		mVHDBlocksAllocated = prometheus.NewDesc(
			"devio_vhd_blocks_allocated_total",
			"Count of allocated (non-sparse) BAT entries in the detected dynamic VHD",
			nil, nil,
		)
	)

	mc := &metricCollector{}
	mc.m = append(mc.m, prometheus.MustNewConstMetric(mBufferSize, prometheus.GaugeValue, float64(bufSize)))
	for _, op := range []string{"info", "read", "write"} {
		mc.m = append(mc.m, prometheus.MustNewConstMetric(mRequestsTotal, prometheus.CounterValue, 0, op))
	}
	if bs.VHD != nil {
		n, err := bs.VHD.AllocatedBlocks()
		if err != nil {
			log.Fatalf("count allocated VHD blocks: %v", err)
		}
		mc.m = append(mc.m, prometheus.MustNewConstMetric(mVHDBlocksAllocated, prometheus.GaugeValue, float64(n)))
	}

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(mc)

	mfs, err := reg.Gather()
	if err != nil {
		log.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			log.Fatalf("serialize metrics: %v", err)
		}
	}
}

// metricCollector is a fixed-snapshot prometheus.Collector: Collect
// replays a precomputed slice, Describe is intentionally empty since a
// pedantic registry only needs Collect for a one-shot Gather.
type metricCollector struct {
	m []prometheus.Metric
}

func (mc *metricCollector) Collect(c chan<- prometheus.Metric) {
	for _, m := range mc.m {
		c <- m
	}
}

func (mc *metricCollector) Describe(c chan<- *prometheus.Desc) {}
