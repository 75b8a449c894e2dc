package main

import (
	"flag"
	"log"

	"bazil.org/fuse"

	"github.com/msg555/beakfs/fusefs"
	"github.com/msg555/beakfs/reverse"
	"github.com/msg555/beakfs/vfs"
)

// runReverse reconstructs the source tree recorded under backingDir and
// serves it at mountPoint until a signal is received.
func runReverse(args []string) error {
	flagSet := flag.NewFlagSet("beakfs reverse", flag.ExitOnError)
	flagAllowOther := flagSet.Bool("allow-other", false, "allow other users to see the mount")
	flagPointInTime := flagSet.String("point-in-time", "", "select an older root manifest, e.g. @1 for the next newest")
	flagSet.Parse(args)

	rest := flagSet.Args()
	if len(rest) != 2 {
		log.Fatal("usage: beakfs reverse [options] backing_dir mount_point")
	}
	backingDir, mountPoint := rest[0], rest[1]

	tree := reverse.NewTree(vfs.NewOSFilesystem(backingDir), reverse.Config{
		PointInTime: *flagPointInTime,
	})

	var options []fuse.MountOption
	if *flagAllowOther {
		options = append(options, fuse.AllowOther())
	}

	srv := reverse.NewServer(tree)
	mount, err := fusefs.NewReverseMount(mountPoint, fusefs.NewReverseTree(srv), options...)
	if err != nil {
		return err
	}

	log.Printf("serving reverse reconstruction of %q at %q", backingDir, mountPoint)
	waitForSignal()
	return mount.Close()
}
