package main

import (
	"flag"
	"log"
	"os"
	"os/signal"

	"syscall"

	"bazil.org/fuse"

	"github.com/msg555/beakfs/forward"
	"github.com/msg555/beakfs/fusefs"
	"github.com/msg555/beakfs/vfs"
)

// runForward scans sourceDir and serves the synthesized tar/manifest
// view at mountPoint until a signal is received.
func runForward(args []string) error {
	flagSet := flag.NewFlagSet("beakfs forward", flag.ExitOnError)
	flagAllowOther := flagSet.Bool("allow-other", false, "allow other users to see the mount")
	flagDepth := flagSet.Int("depth", 0, "force any directory at this depth to become a storage directory")
	flagTargetSize := flagSet.String("target-size", "", "target tar size, accepts K/M/G/T suffixes")
	flagTriggerSize := flagSet.String("trigger-size", "", "cumulative subtree size that forces a storage directory, accepts K/M/G/T suffixes")
	flagMessage := flagSet.String("message", "", "message recorded in each manifest's #message header")
	var flagInclude, flagExclude, flagTriggerGlob stringList
	flagSet.Var(&flagInclude, "include", "glob to include (repeatable)")
	flagSet.Var(&flagExclude, "exclude", "glob to exclude (repeatable)")
	flagSet.Var(&flagTriggerGlob, "trigger-glob", "glob that forces a storage directory (repeatable)")
	flagSet.Parse(args)

	rest := flagSet.Args()
	if len(rest) != 2 {
		log.Fatal("usage: beakfs forward [options] source_dir mount_point")
	}
	sourceDir, mountPoint := rest[0], rest[1]

	if err := forward.CheckLocale(); err != nil {
		return err
	}

	cfg := forward.DefaultConfig()
	if *flagDepth > 0 {
		cfg.Depth = *flagDepth
	}
	cfg.Include = flagInclude
	cfg.Exclude = flagExclude
	cfg.TriggerGlob = flagTriggerGlob
	cfg.Message = *flagMessage
	if *flagTargetSize != "" {
		size, err := forward.ParseSize(*flagTargetSize)
		if err != nil {
			return err
		}
		cfg.TargetSize = size
	}
	if *flagTriggerSize != "" {
		size, err := forward.ParseSize(*flagTriggerSize)
		if err != nil {
			return err
		}
		cfg.TriggerSize = size
	}

	tree, err := forward.Build(vfs.NewOSFilesystem(sourceDir), "/", cfg)
	if err != nil {
		return err
	}

	var options []fuse.MountOption
	if *flagAllowOther {
		options = append(options, fuse.AllowOther())
	}

	srv := forward.NewServer(tree)
	mount, err := fusefs.NewForwardMount(mountPoint, fusefs.NewForwardTree(srv), options...)
	if err != nil {
		return err
	}

	log.Printf("serving forward view of %q at %q", sourceDir, mountPoint)
	waitForSignal()
	return mount.Close()
}

func waitForSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	log.Print("signal received: ", <-sigs)
}
