// meshtool is a CLI utility for building and inspecting axmesh assets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/axmesh/internal/config"
	"github.com/Faultbox/axmesh/internal/convert"
	"github.com/Faultbox/axmesh/internal/logger"
	"github.com/Faultbox/axmesh/internal/loops"
	"github.com/Faultbox/axmesh/internal/watch"
	"github.com/Faultbox/axmesh/pkg/axmesh"
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = printUsage
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	stop, err := startProfile(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer stop()

	args := config.Args()
	if len(args) < 1 {
		printUsage()
		return 1
	}

	command, args := args[0], args[1:]
	logger.Debug("Running command", zap.String("command", command), zap.Strings("args", args))

	switch command {
	case "info":
		err = cmdInfo(cfg, args)
	case "dump":
		err = cmdDump(cfg, args)
	case "verify":
		err = cmdVerify(cfg, args)
	case "convert":
		err = cmdConvert(cfg, args)
	case "watch":
		err = cmdWatch(cfg, args)
	case "quad":
		err = cmdQuad(args)
	case "config":
		err = cmdConfig(cfg, args)
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return 1
	}

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Println(`meshtool - axmesh asset utility

Usage:
  meshtool [flags] <command> [options]

Commands:
  info <file.axmesh>...           Show asset header, layout and bounds
  dump [-n N] <file.axmesh>       Print vertex streams and indices
  verify <file.axmesh>...         Decode assets and report problems
  convert <file|dir>...           Convert OBJ files (or re-layout assets)
  watch <dir>                     Re-convert OBJ files as they change
  quad [output]                   Write the reference quad plane asset
  config [-save]                  Print (or save) the effective config

Flags:
  -config <path>   Config file (default ./meshtool.yaml, then user config dir)
  -debug           Debug logging
  -strict          Reject trailing data when reading assets
  -out <dir>       Output directory for exported assets
  -overwrite       Overwrite existing assets
  -profile <mode>  Write a cpu or mem profile

Examples:
  meshtool quad plane.axmesh
  meshtool info plane.axmesh
  meshtool -out build convert models/
  meshtool -overwrite watch models/`)
}

// startProfile starts the configured profiler and returns its stop func.
func startProfile(cfg config.DebugConfig) (func(), error) {
	var mode func(*profile.Profile)
	switch strings.ToLower(cfg.Profile) {
	case "":
		return func() {}, nil
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	default:
		return nil, fmt.Errorf("unknown profile mode %q (want cpu or mem)", cfg.Profile)
	}
	p := profile.Start(mode, profile.ProfilePath(cfg.ProfileDir), profile.NoShutdownHook, profile.Quiet)
	return p.Stop, nil
}

func cmdInfo(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool info <file.axmesh>...")
		return errUsage
	}

	for i, path := range args {
		if i > 0 {
			fmt.Println()
		}
		mesh, err := axmesh.ReadFile(path, cfg.Import.DecodeOptions())
		if err != nil {
			return err
		}
		printInfo(os.Stdout, path, mesh)
	}
	return nil
}

func printInfo(w io.Writer, path string, mesh *axmesh.Mesh) {
	layout := mesh.Layout()

	fmt.Fprintf(w, "Asset:      %s\n", path)
	fmt.Fprintf(w, "Version:    %d\n", axmesh.FormatVersion)
	fmt.Fprintf(w, "Vertices:   %d\n", mesh.VertexCount())
	fmt.Fprintf(w, "Indices:    %d (%d triangles)\n", mesh.IndexCount(), mesh.IndexCount()/3)
	fmt.Fprintf(w, "Stride:     %d floats\n", mesh.Stride())
	fmt.Fprintf(w, "Size:       %d bytes\n", axmesh.EncodedSize(mesh))

	fmt.Fprintln(w, "Attributes:")
	for i, attr := range mesh.Attributes() {
		n, _ := attr.Components()
		fmt.Fprintf(w, "  %d  %-12s %d\n", i, attr, n)
	}

	fmt.Fprintln(w, "Streams:")
	for i, s := range mesh.Streams() {
		fmt.Fprintf(w, "  %d  %-40s stride %d\n", i, layout.DescribeStream(i), s.Stride)
	}

	if lo, hi, ok := mesh.Bounds(); ok {
		fmt.Fprintf(w, "Bounds:     %s .. %s\n", formatVec(lo), formatVec(hi))
	}
}

func formatVec(v mgl32.Vec3) string {
	return fmt.Sprintf("(%g, %g, %g)", v[0], v[1], v[2])
}

func cmdDump(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N vertices (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool dump [-n N] <file.axmesh>")
		return errUsage
	}

	mesh, err := axmesh.ReadFile(fs.Arg(0), cfg.Import.DecodeOptions())
	if err != nil {
		return err
	}
	printDump(os.Stdout, mesh, *limit)
	return nil
}

func printDump(w io.Writer, mesh *axmesh.Mesh, limit int) {
	count := mesh.VertexCount()
	if limit > 0 && limit < count {
		count = limit
	}

	layout := mesh.Layout()
	for i, s := range mesh.Streams() {
		fmt.Fprintf(w, "%s:\n", layout.DescribeStream(i))
		block, _ := mesh.StreamVertices(i)
		for v := 0; v < count; v++ {
			row := block[v*s.Stride : (v+1)*s.Stride]
			fmt.Fprintf(w, "  %6d  %v\n", v, row)
		}
		if count < mesh.VertexCount() {
			fmt.Fprintf(w, "  ... %d more\n", mesh.VertexCount()-count)
		}
	}

	fmt.Fprintf(w, "Indices (%d):\n", mesh.IndexCount())
	idx := mesh.Indices()
	for i := 0; i < len(idx); i += 3 {
		end := min(i+3, len(idx))
		fmt.Fprintf(w, "  %v\n", idx[i:end])
	}
}

func cmdVerify(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool verify <file.axmesh>...")
		return errUsage
	}

	failed := 0
	for _, path := range args {
		if err := verifyFile(path, cfg.Import.DecodeOptions()); err != nil {
			fmt.Printf("FAIL  %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("OK    %s\n", path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d assets failed verification", failed, len(args))
	}
	return nil
}

// verifyFile decodes path and checks the result re-encodes to the same bytes.
func verifyFile(path string, opts axmesh.DecodeOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", axmesh.ErrIO, err)
	}
	mesh, err := axmesh.Decode(data, opts)
	if err != nil {
		return err
	}
	encoded, err := mesh.MarshalBinary()
	if err != nil {
		return err
	}
	if len(encoded) > len(data) || string(encoded) != string(data[:len(encoded)]) {
		return errors.New("re-encoded asset differs from file")
	}
	return nil
}

func cmdConvert(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool convert <file|dir>...")
		return errUsage
	}

	sources, err := convert.Collect(args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Println("No source files found")
		return nil
	}

	conv, err := convert.New(cfg.Export, cfg.Import)
	if err != nil {
		return err
	}

	var progress io.Writer
	if len(sources) > 1 && term.IsTerminal(int(os.Stderr.Fd())) {
		progress = os.Stderr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	results, err := conv.Batch(ctx, sources, progress)
	converted, skipped := 0, 0
	for _, r := range results {
		if r.Skipped {
			skipped++
			continue
		}
		converted++
	}
	fmt.Printf("Converted %d, skipped %d, failed %d\n", converted, skipped, len(sources)-len(results))
	return err
}

func cmdWatch(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshtool watch <dir>")
		return errUsage
	}

	// A changed source always replaces its asset
	export := cfg.Export
	export.Overwrite = true
	conv, err := convert.New(export, cfg.Import)
	if err != nil {
		return err
	}

	w, err := watch.New(conv, cfg.Watch.Debounce)
	if err != nil {
		return err
	}
	for _, dir := range args {
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("Watching for changes", zap.Strings("dirs", args), zap.Duration("debounce", cfg.Watch.Debounce))
	return w.Run(ctx)
}

// quadRecords is a unit quad on the XY plane facing +Z.
func quadRecords() []loops.Record {
	n := mgl32.Vec3{0, 0, 1}
	return []loops.Record{
		{Position: mgl32.Vec3{-1, -1, 0}, Normal: n, UV: mgl32.Vec2{0, 0}},
		{Position: mgl32.Vec3{1, -1, 0}, Normal: n, UV: mgl32.Vec2{1, 0}},
		{Position: mgl32.Vec3{1, 1, 0}, Normal: n, UV: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{-1, 1, 0}, Normal: n, UV: mgl32.Vec2{0, 1}},
	}
}

var quadIndices = []uint32{0, 1, 2, 2, 3, 0}

func cmdQuad(args []string) error {
	path := "plane" + axmesh.Extension
	if len(args) > 0 {
		path = args[0]
	}

	mesh, err := loops.Build(quadRecords(), quadIndices)
	if err != nil {
		return err
	}
	if err := axmesh.WriteFile(path, mesh); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d vertices, %d indices)\n", path, mesh.VertexCount(), mesh.IndexCount())
	return nil
}

func cmdConfig(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	save := fs.Bool("save", false, "Save to the user config directory")
	fs.Parse(args)

	if *save {
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", config.ConfigDir())
		return nil
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
