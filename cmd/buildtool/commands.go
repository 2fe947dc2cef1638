package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/buildplate/internal/config"
	"github.com/Faultbox/buildplate/internal/logger"
	"github.com/Faultbox/buildplate/internal/sample"
	"github.com/Faultbox/buildplate/pkg/formats"
	"github.com/Faultbox/buildplate/pkg/model"
)

func cmdInfo(out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: buildtool info <file>")
	}

	m, err := formats.ReadFile(args[0], model.WithLogger(logger.Named("model")))
	if err != nil {
		return err
	}
	defer m.Close()

	unit, _ := m.Unit()
	fmt.Fprintf(out, "File:    %s\n", args[0])
	fmt.Fprintf(out, "Unit:    %s\n", unit)

	md, _ := m.Metadata()
	if len(md) > 0 {
		fmt.Fprintln(out, "Metadata:")
		for _, e := range md {
			fmt.Fprintf(out, "  %-14s %s\n", e.Name, e.Value)
		}
	}

	objs, err := m.Objects()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Objects: %d\n", len(objs))
	for _, obj := range objs {
		name, _ := obj.Name()
		switch o := obj.(type) {
		case *model.MeshObject:
			v, _ := o.VertexCount()
			t, _ := o.TriangleCount()
			fmt.Fprintf(out, "  #%-4d mesh        %-16q %d vertices, %d triangles\n", o.ID(), name, v, t)
		case *model.ComponentsObject:
			c, _ := o.ComponentCount()
			fmt.Fprintf(out, "  #%-4d components  %-16q %d components\n", o.ID(), name, c)
		}
	}

	items, err := m.BuildItems()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Build:   %d items\n", len(items))
	for _, item := range items {
		line := fmt.Sprintf("  -> #%d", item.ObjectID)
		if !item.Transform.IsIdentity() {
			line += " [" + item.Transform.String() + "]"
		}
		if item.PartNumber != "" {
			line += " part " + item.PartNumber
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func cmdConvert(ctx context.Context, out io.Writer, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	format := fs.String("format", "", "Output format for every output (default: from extension)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: buildtool convert [-format name] <in> <out>...")
	}

	log := logger.Named("convert")
	m, err := formats.ReadFile(fs.Arg(0), model.WithLogger(logger.Named("model")))
	if err != nil {
		return err
	}
	defer m.Close()

	var targets []target
	for _, path := range fs.Args()[1:] {
		name := *format
		if name == "" {
			f, ok := model.FormatForExtension(filepath.Ext(path))
			if !ok {
				return fmt.Errorf("%s: no format for extension %q", path, filepath.Ext(path))
			}
			name = f.Name
		}
		targets = append(targets, target{path: outputPath(cfg, path), format: name})
	}

	if err := writeAll(ctx, log, m, targets); err != nil {
		return err
	}
	for _, t := range targets {
		fmt.Fprintf(out, "wrote %s (%s)\n", t.path, t.format)
	}
	return nil
}

func cmdSample(ctx context.Context, out io.Writer, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	name := fs.String("name", sample.SceneComponents, "Scene: "+strings.Join(sample.Scenes, ", "))
	if err := fs.Parse(args); err != nil {
		return err
	}

	m := model.New(
		model.WithLogger(logger.Named("model")),
		model.WithUnit(model.Unit(cfg.Model.Unit)),
	)
	defer m.Close()

	keys := make([]string, 0, len(cfg.Model.Metadata))
	for k := range cfg.Model.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := m.SetMetadata(k, cfg.Model.Metadata[k]); err != nil {
			return err
		}
	}

	if err := sample.Build(m, *name); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return err
	}
	var targets []target
	for _, format := range cfg.Output.Formats {
		f, ok := model.LookupFormat(format)
		if !ok {
			return fmt.Errorf("unknown output format %q", format)
		}
		file := *name + "." + f.Name
		if len(f.Extensions) > 0 {
			file = *name + f.Extensions[0]
		}
		targets = append(targets, target{path: filepath.Join(cfg.Output.Dir, file), format: f.Name})
	}

	if err := writeAll(ctx, logger.Named("sample"), m, targets); err != nil {
		return err
	}
	for _, t := range targets {
		fmt.Fprintf(out, "wrote %s (%s)\n", t.path, t.format)
	}
	return nil
}

func cmdVersion(out io.Writer) error {
	fmt.Fprintf(out, "buildplate %s\n", model.Version())
	fmt.Fprintln(out, "Formats:")
	for _, f := range model.Formats() {
		fmt.Fprintf(out, "  %-10s %s\n", f.Name, strings.Join(f.Extensions, " "))
	}
	return nil
}

type target struct {
	path   string
	format string
}

// writeAll writes the model once per target in parallel. Writers only read
// the model.
func writeAll(ctx context.Context, log *zap.Logger, m *model.Model, targets []target) error {
	writers := make([]*model.Writer, len(targets))
	for i, t := range targets {
		w, err := m.QueryWriter(t.format)
		if err != nil {
			return err
		}
		writers[i] = w
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		w := writers[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := w.WriteToFile(t.path); err != nil {
				return fmt.Errorf("%s: %w", t.path, err)
			}
			log.Info("wrote file", zap.String("path", t.path), zap.String("format", t.format))
			return nil
		})
	}
	return g.Wait()
}

// outputPath places relative output paths under the configured output dir.
func outputPath(cfg *config.Config, path string) string {
	if filepath.IsAbs(path) || cfg.Output.Dir == "" || cfg.Output.Dir == "." {
		return path
	}
	return filepath.Join(cfg.Output.Dir, path)
}
