package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lumenct/fdkrecon/cmn/config"
	"github.com/lumenct/fdkrecon/cmn/nlog"
	"github.com/lumenct/fdkrecon/device"
	"github.com/lumenct/fdkrecon/devmem"
	"github.com/lumenct/fdkrecon/geometry"
	"github.com/lumenct/fdkrecon/metrics"
	"github.com/lumenct/fdkrecon/projio"
	"github.com/lumenct/fdkrecon/recon"
	"github.com/lumenct/fdkrecon/recon/ledger"
)

// Run wires one reconstruction run from a loaded config: geometry,
// plan, per-device engines, shared queue, and shared sink.
type Run struct {
	runID   string
	engines []*recon.Engine
	sink    *recon.Sink
	ledger  *ledger.Ledger
	status  *metrics.Server
}

func (r *Run) RunID() string { return r.runID }

// newRunFromConfig performs every construction-time step: geometry
// derivation, planning, accelerator discovery, and I/O backend
// resolution, all of which must fail fast, before any task runs.
func newRunFromConfig(cfg *config.Config, statusAddr string) (*Run, error) {
	det, err := geometry.NewDetector(cfg.Detector.NH, cfg.Detector.NV, cfg.Detector.PitchH, cfg.Detector.PitchV, cfg.Detector.DSO, cfg.Detector.DSD)
	if err != nil {
		return nil, fmt.Errorf("detector geometry: %w", err)
	}

	roi := geometry.ROI{
		Enabled: cfg.ROI.Enabled,
		X1: cfg.ROI.X1, X2: cfg.ROI.X2,
		Y1: cfg.ROI.Y1, Y2: cfg.ROI.Y2,
		Z1: cfg.ROI.Z1, Z2: cfg.ROI.Z2,
	}
	vol, err := geometry.DeriveVolume(det, roi)
	if err != nil {
		return nil, fmt.Errorf("volume geometry: %w", err)
	}

	accels := device.DiscoverAccelerators(0, cfg.DeviceMemoryBudget)
	if len(accels) == 0 {
		return nil, fmt.Errorf("no accelerators present")
	}

	bytesPerProj := int64(det.NH*det.NV) * 4
	budget := int64(float64(cfg.DeviceMemoryBudget) * cfg.DeviceFraction)
	plan, err := geometry.BuildPlan(vol, geometry.PlannerConfig{
		NumDevices:          len(accels),
		NumProjections:      cfg.Scan.NumProj,
		MemoryBudget:        budget,
		BytesPerProjection:  bytesPerProj,
		ParallelProjections: cfg.InputLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("task plan: %w", err)
	}
	if cfg.Output != "" {
		sidecarPath := cfg.Output + "/" + plan.RunID + "_plan.msgp"
		if err := geometry.WritePlanSidecar(sidecarPath, plan); err != nil {
			nlog.Warningf("writing plan sidecar: %v", err)
		}
	}

	if !cfg.EnableIO {
		return nil, fmt.Errorf("enable_io is false: nothing to do")
	}

	ctx := context.Background()
	reader, err := projio.OpenReader(ctx, cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("opening projection source: %w", err)
	}
	writer, err := projio.OpenWriter(ctx, cfg.Output, cfg.OutputPrefix)
	if err != nil {
		return nil, fmt.Errorf("opening volume sink: %w", err)
	}

	led, err := ledger.Open(cfg.Output + "/.fdkrecon-ledger")
	if err != nil {
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}

	sink := &recon.Sink{
		Writer:       writer,
		Ledger:       led,
		RunID:        plan.RunID,
		ManifestDir:  cfg.Output,
		Compression:  cfg.Compression,
		ParityShards: cfg.ParityShards,
	}

	queue := recon.NewTaskQueue(plan)
	engines := make([]*recon.Engine, 0, len(accels))
	for _, accel := range accels {
		engines = append(engines, &recon.Engine{
			Accel:     accel,
			Detector:  det,
			Vol:       vol,
			DeltaPhi:  cfg.Scan.DeltaPhi,
			Reader:    reader,
			ProjPool:  devmem.NewPool[float32](accel.ID(), cfg.InputLimit),
			SlabPool:  devmem.NewPool[float32](accel.ID(), cfg.PoolLimit),
			Queue:     queue,
			Sink:      sink,
			EdgeDepth: cfg.InputLimit,
		})
	}

	var status *metrics.Server
	if statusAddr != "" {
		status = metrics.NewServer(statusAddr)
		go func() {
			if err := status.ListenAndServe(); err != nil {
				nlog.Warningf("status endpoint stopped: %v", err)
			}
		}()
	}

	return &Run{runID: plan.RunID, engines: engines, sink: sink, ledger: led, status: status}, nil
}

// Execute drives every device's engine to completion in parallel and
// finalizes the sink's manifest once every engine has drained the
// shared task queue; the driver joins all workers on a fatal error.
func (r *Run) Execute(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, eng := range r.engines {
		eng := eng
		g.Go(func() error { return eng.Run(ctx) })
	}
	runErr := g.Wait()

	if err := r.sink.Finalize(); err != nil {
		nlog.Errorf("finalizing run manifest: %v", err)
	}
	if r.ledger != nil {
		if err := r.ledger.Close(); err != nil {
			nlog.Warningf("closing ledger: %v", err)
		}
	}
	if r.status != nil {
		_ = r.status.Shutdown()
	}
	return runErr
}
