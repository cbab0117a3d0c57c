// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package cmd implements the bio-cas command tree.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/cas/assembly"
	"github.com/grailbio/cas/export"
	"v.io/x/lib/cmdline"
)

// assemblyFlags are the flags shared by commands that open an assembly.
type assemblyFlags struct {
	dir         *string
	trimMap     *string
	queueSize   *int
	parallelism *int
}

func newAssemblyFlags(cmd *cmdline.Command) assemblyFlags {
	return assemblyFlags{
		dir: cmd.Flags.String("dir", "", `Directory of the reference and read files named by the cas header.
By default, the directory of the cas file.`),
		trimMap: cmd.Flags.String("trim-map", "", `A two column TSV file mapping trimmed read files to the untrimmed files
they were derived from. Reads of a listed file are reported with their
untrimmed bases.`),
		queueSize:   cmd.Flags.Int("queue-size", assembly.DefaultOpts.QueueSize, "Number of reads buffered ahead of placement"),
		parallelism: cmd.Flags.Int("parallelism", assembly.DefaultOpts.Parallelism, "Number of reference files read concurrently"),
	}
}

func (f assemblyFlags) open(ctx context.Context, path string) (*assembly.Assembly, error) {
	return assembly.Open(ctx, path, assembly.Opts{
		Dir:         *f.dir,
		TrimMapPath: *f.trimMap,
		QueueSize:   *f.queueSize,
		Parallelism: *f.parallelism,
	})
}

// output opens path for writing, or returns stdout when path is empty.
func output(ctx context.Context, env *cmdline.Env, path string) (io.Writer, func() error, error) {
	if path == "" {
		return env.Stdout, func() error { return nil }, nil
	}
	o, err := export.Create(ctx, path, 4)
	if err != nil {
		return nil, nil, err
	}
	return o, o.Close, nil
}

func oneArg(name string, argv []string) error {
	if len(argv) != 1 {
		return fmt.Errorf("%s takes one cas pathname argument, but got %v", name, argv)
	}
	return nil
}

func newCmdHeader() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "header",
		Short:    "Print the header of a cas file",
		ArgsName: "path",
	}
	jsonFlag := cmd.Flags.Bool("json", false, "Print the header as JSON")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if err := oneArg("header", argv); err != nil {
			return err
		}
		return printHeader(vcontext.Background(), env.Stdout, argv[0], *jsonFlag)
	})
	return cmd
}

func newCmdRefs() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "refs",
		Short:    "Write the gapped reference sequences as FASTA",
		ArgsName: "path",
	}
	af := newAssemblyFlags(cmd)
	out := cmd.Flags.String("o", "", "Output FASTA path. Suffixes .gz and .bgz select compression. By default, stdout")
	width := cmd.Flags.Int("width", 80, "Bases per FASTA line; 0 writes each sequence on one line")
	index := cmd.Flags.Bool("index", false, "Also write a .fai index next to the uncompressed output")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if err := oneArg("refs", argv); err != nil {
			return err
		}
		return writeRefs(vcontext.Background(), env, af, argv[0], *out, *width, *index)
	})
	return cmd
}

func newCmdReads() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "reads",
		Short:    "Write the placed reads as TSV",
		ArgsName: "path",
	}
	af := newAssemblyFlags(cmd)
	out := cmd.Flags.String("o", "", "Output TSV path. By default, stdout")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if err := oneArg("reads", argv); err != nil {
			return err
		}
		return writeReads(vcontext.Background(), env, af, argv[0], *out)
	})
	return cmd
}

func newCmdSAM() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "sam",
		Short:    "Write the placed reads as padded SAM",
		ArgsName: "path",
	}
	af := newAssemblyFlags(cmd)
	out := cmd.Flags.String("o", "", "Output SAM path. By default, stdout")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if err := oneArg("sam", argv); err != nil {
			return err
		}
		return writeSAM(vcontext.Background(), env, af, argv[0], *out)
	})
	return cmd
}

func newCmdChecksum() *cmdline.Command {
	cmd := &cmdline.Command{
		Name: "checksum",
		Short: `Compute a checksum of a cas assembly.
The checksum is a JSON string summarizing the gapped references and placed reads`,
		ArgsName: "path",
	}
	af := newAssemblyFlags(cmd)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if err := oneArg("checksum", argv); err != nil {
			return err
		}
		return checksum(vcontext.Background(), env.Stdout, af, argv[0])
	})
	return cmd
}

func newCmdSubset() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "subset",
		Short:    "Write a cas file restricted to a range of reads",
		ArgsName: "srcpath destpath",
	}
	af := newAssemblyFlags(cmd)
	begin := cmd.Flags.Int("begin", 0, "Index of the first read to keep")
	end := cmd.Flags.Int("end", -1, "Index one past the last read to keep. By default, the last read")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("subset takes srcpath destpath, but got %v", argv)
		}
		return subset(vcontext.Background(), af, argv[0], argv[1], *begin, *end)
	})
	return cmd
}

func newRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-cas",
		Short:    "Tools for working with CLC cas reference assemblies",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdHeader(),
			newCmdRefs(),
			newCmdReads(),
			newCmdSAM(),
			newCmdChecksum(),
			newCmdSubset(),
		},
	}
}

// Exec runs the command line args against env and returns the exit code.
func Exec(env *cmdline.Env, args []string) int {
	return cmdline.ExitCode(cmdline.ParseAndRun(newRoot(), env, args), env.Stderr)
}

// Run runs the command line of the process.
func Run() int {
	cmdline.HideGlobalFlagsExcept()
	return Exec(cmdline.EnvFromOS(), os.Args[1:])
}
