// Package main is the storageenginectl entry point: it wires discovery,
// engine and the rest of the core packages into a long-lived process the
// way cmd/sysbox-fs/main.go wires sysbox-fs's services.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/suse/storageengine/discovery"
	"github.com/suse/storageengine/domain"
	"github.com/suse/storageengine/engine"
	"github.com/suse/storageengine/freeinfo"
	"github.com/suse/storageengine/sysexec"
)

const usage = `storageenginectl

storageenginectl builds a storage topology from the injected system state,
applies a scripted sequence of mutations against it, and commits the staged
changes through the four-stage planner/executor.
`

var version = "dev"

// runProfiler mirrors cmd/sysbox-fs/main.go's runProfiler: cpu and memory
// profiling are mutually exclusive, and NoShutdownHook is passed so this
// process's own signal handler remains the one that stops profiling.
func runProfiler(ctx *cli.Context) (interface{ Stop() }, error) {
	cpuOn := ctx.Bool("cpu-profiling")
	memOn := ctx.Bool("memory-profiling")
	if cpuOn && memOn {
		return nil, fmt.Errorf("unsupported parameter combination: cpu and memory profiling")
	}
	if !cpuOn && !memOn {
		return nil, nil
	}
	if cpuOn {
		return profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook), nil
	}
	return profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook), nil
}

// sampleInputs builds the single-disk Inputs a testmode run discovers from,
// standing in for the block-device/partition/mount/fstab/blkid readers a
// production deployment would inject instead (spec.md §1 Non-goals: the core
// never parses those sources itself).
func sampleInputs() discovery.Inputs {
	return discovery.Inputs{
		Mode: domain.ModeTest,
		BlockDevices: []discovery.BlockDevice{
			{Name: "sda", Range: 16, SizeSectors: 20971520},
		},
	}
}

func exitHandler(signalChan chan os.Signal, eng *engine.Engine, prof interface{ Stop() }) {
	s := <-signalChan
	logrus.Warnf("storageenginectl caught signal: %s", s)
	logrus.Info("stopping (gracefully) ...")
	systemd.SdNotify(false, systemd.SdNotifyStopping)

	if err := eng.Close(); err != nil {
		logrus.Warnf("failed to release engine lock: %v", err)
	}
	if prof != nil {
		prof.Stop()
	}
	logrus.Info("exiting ...")
	os.Exit(0)
}

// runDemoSequence exercises a representative slice of the mutation API (one
// partition create, an LVM VG+LV, a format and mount point, a commit) the way a real caller
// would drive the engine, and reports what happened.
func runDemoSequence(eng *engine.Engine) error {
	eng.SetCacheChanges(true)

	if err := eng.InitializeDisk("sda", "msdos"); err != nil {
		return fmt.Errorf("initialize disk: %w", err)
	}

	device, err := eng.CreatePartitionKb("sda", domain.PRIMARY, 0, 1048576)
	if err != nil {
		return fmt.Errorf("create partition: %w", err)
	}
	logrus.Infof("created partition %s", device)

	if err := eng.CreateLvmVg("system", 4096, false, []string{device}); err != nil {
		return fmt.Errorf("create VG: %w", err)
	}
	lv, err := eng.CreateLvmLv("system", "root", 524288, 1)
	if err != nil {
		return fmt.Errorf("create LV: %w", err)
	}
	logrus.Infof("created LV %s", lv)

	if err := eng.ChangeFormatVolume(lv, domain.EXT3); err != nil {
		return fmt.Errorf("format LV: %w", err)
	}
	if err := eng.ChangeMountPoint(lv, "/"); err != nil {
		return fmt.Errorf("mount LV: %w", err)
	}

	eng.Backups().Create("pre-commit")

	if err := eng.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logrus.Info("commit succeeded")
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "storageenginectl"
	app.Usage = usage
	app.Version = version

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "testmode",
			Usage: "run against a scripted fake system-command runner instead of the real one",
		},
		cli.StringFlag{
			Name:  "test-dir",
			Usage: "directory backing the process-wide lock and transient mounts (when unset, the lock falls back to YAST2_STORAGE_TDIR or /run)",
		},
		cli.BoolFlag{
			Name:  "readonly",
			Usage: "construct the engine read-only; create, remove, extend/shrink, format and partition-resize calls return CHANGE_READONLY, while the per-volume attribute setters do not check it",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "log categories to include (debug, info, warning, error, fatal)",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "log format; must be json or text",
		},
		cli.BoolFlag{
			Name:   "cpu-profiling",
			Usage:  "enable cpu-profiling data collection",
			Hidden: true,
		},
		cli.BoolFlag{
			Name:   "memory-profiling",
			Usage:  "enable memory-profiling data collection",
			Hidden: true,
		},
	}

	app.Before = func(ctx *cli.Context) error {
		logrus.SetOutput(os.Stderr)
		if ctx.GlobalString("log-format") == "json" {
			logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
		} else {
			logrus.SetFormatter(&logrus.TextFormatter{TimestampFormat: "2006-01-02 15:04:05", FullTimestamp: true})
		}
		switch ctx.GlobalString("log-level") {
		case "debug":
			logrus.SetLevel(logrus.DebugLevel)
		case "warning":
			logrus.SetLevel(logrus.WarnLevel)
		case "error":
			logrus.SetLevel(logrus.ErrorLevel)
		case "fatal":
			logrus.SetLevel(logrus.FatalLevel)
		default:
			logrus.SetLevel(logrus.InfoLevel)
		}
		return nil
	}

	app.Action = func(ctx *cli.Context) error {
		logrus.Info("initiating storageenginectl ...")

		mode := domain.ModeAutodetect
		var sys domain.SystemRunner
		if ctx.Bool("testmode") {
			mode = domain.ModeTest
			sys = sysexec.NewFakeRunner()
		} else {
			sys = sysexec.NewRealRunner()
		}

		model, err := discovery.Run(sampleInputs())
		if err != nil {
			return fmt.Errorf("discovery: %w", err)
		}

		prober := func(device string) (freeinfo.Entry, error) { return freeinfo.Entry{}, nil }
		if !ctx.Bool("testmode") {
			prober = freeinfo.RealProber(sys, ctx.GlobalString("test-dir"),
				func(device string) freeinfo.MountState {
					if v := model.FindVolumeByDevice(device); v != nil {
						return freeinfo.MountState{Mounted: v.Mount != "", Mountpoint: v.Mount}
					}
					return freeinfo.MountState{}
				},
				func(device string) domain.FsKind {
					if v := model.FindVolumeByDevice(device); v != nil {
						return v.Fs
					}
					return domain.FSUNKNOWN
				},
			)
		}

		eng, err := engine.New(model, sys, engine.Options{
			Mode:     mode,
			ReadOnly: ctx.Bool("readonly"),
			TmpDir:   ctx.GlobalString("test-dir"),
		}, prober)
		if err != nil {
			return fmt.Errorf("failed to start engine: %w", err)
		}

		prof, err := runProfiler(ctx)
		if err != nil {
			logrus.Fatal(err)
		}

		exitChan := make(chan os.Signal, 1)
		signal.Notify(exitChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		go exitHandler(exitChan, eng, prof)

		systemd.SdNotify(false, systemd.SdNotifyReady)
		logrus.Info("ready ...")

		if err := runDemoSequence(eng); err != nil {
			return err
		}

		return eng.Close()
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
