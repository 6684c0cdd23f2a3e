package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrlite/mrlite/pkg/events"
	"github.com/mrlite/mrlite/pkg/history"
	"github.com/mrlite/mrlite/pkg/log"
	"github.com/mrlite/mrlite/pkg/metrics"
	"github.com/mrlite/mrlite/pkg/remote"
	"github.com/mrlite/mrlite/pkg/scheduler"
	"github.com/mrlite/mrlite/pkg/taskspec"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch a MapReduce job",
	Long: `Launch a MapReduce job described by flags or a YAML manifest.

Examples:
  # Flags, two mappers and one reducer
  mrlite run --cmd ./wordcount \
    --map-io "{10.0.0.1,10.0.0.2}:WCMapper:text:/data/part-*:/tmp/shuffle" \
    --reduce-io "{10.0.0.1}:WCReducer:/tmp/shuffle:text:/out/result" \
    --tmp-dir "{10.0.0.1,10.0.0.2}/tmp/mrlite" \
    --log-filebase "{10.0.0.1,10.0.0.2}/tmp/mrlite/log"

  # Manifest
  mrlite run -f wordcount.yaml`,
	RunE: runJob,
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "YAML job manifest")
	runCmd.Flags().String("cmd", "", "Worker command: binary path plus pass-through arguments")
	runCmd.Flags().String("map-io", "", "Map worker io spec: {hosts}:class:input_format:input_path:output_path;...")
	runCmd.Flags().String("reduce-io", "", "Reduce worker io spec: {hosts}:class:input_path:output_format:output_path;...")
	runCmd.Flags().String("maponly-map-io", "", "Map-only io spec: {hosts}:class:input_format:input_path:output_format:output_path;...")
	runCmd.Flags().String("tmp-dir", "", "Per-host scratch directory spec: {hosts}path;...")
	runCmd.Flags().String("log-filebase", "", "Per-host worker log filebase spec: {hosts}path;...")
	runCmd.Flags().Int("buffer-size", 1024, "Per-mapper memory buffer in MB, split across reducers")
	runCmd.Flags().Bool("incremental", false, "Incremental reduction mode (reducers start first)")
	runCmd.Flags().Bool("force-mkdir", false, "Create missing worker directories instead of failing")
	runCmd.Flags().Int("ssh-port", 22, "SSH port for the remote transport")
	runCmd.Flags().String("scheduler-ip", "", "Scheduler IPv4 agents dial back to (default: resolved hostname)")
	runCmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().String("data-dir", defaultDataDir(), "Directory for the job history ledger")
}

// JobManifest is the YAML shape accepted by -f.
type JobManifest struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ManifestMetadata `yaml:"metadata"`
	Spec       JobManifestSpec  `yaml:"spec"`
}

type ManifestMetadata struct {
	Name string `yaml:"name"`
}

type JobManifestSpec struct {
	Cmd         string `yaml:"cmd"`
	MapIO       string `yaml:"mapIO,omitempty"`
	ReduceIO    string `yaml:"reduceIO,omitempty"`
	MapOnlyIO   string `yaml:"maponlyMapIO,omitempty"`
	TmpDir      string `yaml:"tmpDir"`
	LogFilebase string `yaml:"logFilebase"`
	BufferSize  int    `yaml:"bufferSize,omitempty"`
	Incremental bool   `yaml:"incremental,omitempty"`
	ForceMkdir  bool   `yaml:"forceMkdir,omitempty"`
	SSHPort     int    `yaml:"sshPort,omitempty"`
}

func runJob(cmd *cobra.Command, args []string) error {
	opts, err := gatherOptions(cmd)
	if err != nil {
		return err
	}

	job, err := taskspec.Parse(opts)
	if err != nil {
		return err
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	ledger, err := openLedger(dataDir)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("Job history ledger unavailable")
	}

	if metricsAddr, _ := cmd.Flags().GetString("metrics-addr"); metricsAddr != "" {
		go func() {
			if err := metrics.StartServer(metricsAddr); err != nil {
				log.Logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	eventSub := broker.Subscribe()
	go func() {
		for ev := range eventSub {
			log.Logger.Debug().
				Str("event", string(ev.Type)).
				Str("message", ev.Message).
				Msg("Job event")
		}
	}()

	var rec *history.Record
	if ledger != nil {
		defer ledger.Close()
		rec = history.NewRecord(job.Config)
		if err := ledger.Put(rec); err != nil {
			log.Logger.Warn().Err(err).Msg("Failed to record job start")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedulerIP, _ := cmd.Flags().GetString("scheduler-ip")
	s := scheduler.New(scheduler.Config{
		Job:      job,
		Runner:   remote.NewExecRunner(opts.SSHPort),
		Broker:   broker,
		ListenIP: schedulerIP,
	})

	start := time.Now()
	runErr := s.Run(ctx)

	if ledger != nil && rec != nil {
		rec.Phase = s.Phase()
		rec.FinishedAt = time.Now()
		if runErr != nil {
			rec.Error = runErr.Error()
		}
		if err := ledger.Put(rec); err != nil {
			log.Logger.Warn().Err(err).Msg("Failed to record job outcome")
		}
	}

	if runErr != nil {
		if errors.Is(runErr, scheduler.ErrInterrupted) {
			log.Info("Interrupted by user")
		}
		return runErr
	}
	log.Logger.Info().
		Str("identity", job.Config.Identity).
		Dur("elapsed", time.Since(start)).
		Msg("Job finished")
	return nil
}

// gatherOptions merges the manifest (if any) under the explicit flags.
func gatherOptions(cmd *cobra.Command) (taskspec.Options, error) {
	opts := taskspec.Options{}

	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return opts, fmt.Errorf("failed to read manifest: %w", err)
		}
		var manifest JobManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return opts, fmt.Errorf("failed to parse manifest: %w", err)
		}
		if manifest.Kind != "" && manifest.Kind != "Job" {
			return opts, fmt.Errorf("unsupported manifest kind: %s", manifest.Kind)
		}
		spec := manifest.Spec
		opts = taskspec.Options{
			Cmd:             spec.Cmd,
			MapIO:           spec.MapIO,
			ReduceIO:        spec.ReduceIO,
			MapOnlyIO:       spec.MapOnlyIO,
			TmpDirSpec:      spec.TmpDir,
			LogFilebaseSpec: spec.LogFilebase,
			BufferSize:      spec.BufferSize,
			Incremental:     spec.Incremental,
			ForceMkdir:      spec.ForceMkdir,
			SSHPort:         spec.SSHPort,
		}
	}

	setIfGiven := func(flag string, target *string) {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*target = v
		}
	}
	setIfGiven("cmd", &opts.Cmd)
	setIfGiven("map-io", &opts.MapIO)
	setIfGiven("reduce-io", &opts.ReduceIO)
	setIfGiven("maponly-map-io", &opts.MapOnlyIO)
	setIfGiven("tmp-dir", &opts.TmpDirSpec)
	setIfGiven("log-filebase", &opts.LogFilebaseSpec)

	if cmd.Flags().Changed("buffer-size") || opts.BufferSize == 0 {
		opts.BufferSize, _ = cmd.Flags().GetInt("buffer-size")
	}
	if cmd.Flags().Changed("incremental") {
		opts.Incremental, _ = cmd.Flags().GetBool("incremental")
	}
	if cmd.Flags().Changed("force-mkdir") {
		opts.ForceMkdir, _ = cmd.Flags().GetBool("force-mkdir")
	}
	if cmd.Flags().Changed("ssh-port") || opts.SSHPort == 0 {
		opts.SSHPort, _ = cmd.Flags().GetInt("ssh-port")
	}
	return opts, nil
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".mrlite")
	}
	return ".mrlite"
}

func openLedger(dataDir string) (*history.Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return history.Open(dataDir)
}
