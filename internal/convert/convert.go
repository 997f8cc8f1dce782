// Package convert turns source geometry into mesh asset files.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/Faultbox/axmesh/internal/config"
	"github.com/Faultbox/axmesh/internal/logger"
	"github.com/Faultbox/axmesh/internal/loops"
	"github.com/Faultbox/axmesh/internal/objfile"
	"github.com/Faultbox/axmesh/pkg/axmesh"
)

// SourceExtension is the extension of convertible source files.
const SourceExtension = ".obj"

// ErrUnsupportedSource is returned for files the converter cannot read.
var ErrUnsupportedSource = errors.New("unsupported source file")

// Result describes one conversion.
type Result struct {
	Source   string
	Output   string
	Skipped  bool // Output existed and overwrite is off
	Vertices int
	Indices  int
}

// Converter exports sources using one set of export settings.
type Converter struct {
	cfg    config.ExportConfig
	decode axmesh.DecodeOptions
	layout *axmesh.Layout
	model  mgl32.Mat4
	log    *zap.Logger
}

// New creates a converter. The configured stream layout is validated here.
func New(export config.ExportConfig, imp config.ImportConfig) (*Converter, error) {
	layout, err := export.Layout()
	if err != nil {
		return nil, err
	}
	return &Converter{
		cfg:    export,
		decode: imp.DecodeOptions(),
		layout: layout,
		model:  modelMatrix(export),
		log:    logger.Named("convert"),
	}, nil
}

// modelMatrix builds the source-to-asset transform.
func modelMatrix(cfg config.ExportConfig) mgl32.Mat4 {
	m := mgl32.Ident4()
	if cfg.ZUp {
		m = mgl32.HomogRotate3DX(-math.Pi / 2)
	}
	if cfg.Scale != 1 {
		m = mgl32.Scale3D(cfg.Scale, cfg.Scale, cfg.Scale).Mul4(m)
	}
	return m
}

// Layout returns the layout assets are exported with.
func (c *Converter) Layout() *axmesh.Layout {
	return c.layout.Clone()
}

// OutputPath returns where the asset for src is written.
func (c *Converter) OutputPath(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + axmesh.Extension
	if c.cfg.OutputDir != "" {
		return filepath.Join(c.cfg.OutputDir, base)
	}
	return filepath.Join(filepath.Dir(src), base)
}

// Mesh builds an asset mesh from parsed OBJ geometry.
func (c *Converter) Mesh(model *objfile.Model) (*axmesh.Mesh, error) {
	records, indices, err := model.Loops()
	if err != nil {
		return nil, err
	}
	if c.model != mgl32.Ident4() {
		records = loops.Transform(records, c.model)
	}
	return loops.BuildLayout(records, indices, c.layout)
}

// Load reads a source file into a mesh. OBJ files are triangulated; existing
// assets are re-laid out into the configured streams.
func (c *Converter) Load(src string) (*axmesh.Mesh, error) {
	switch strings.ToLower(filepath.Ext(src)) {
	case SourceExtension:
		model, err := objfile.ParseFile(src)
		if err != nil {
			return nil, err
		}
		return c.Mesh(model)
	case axmesh.Extension:
		mesh, err := axmesh.ReadFile(src, c.decode)
		if err != nil {
			return nil, err
		}
		return axmesh.Relayout(mesh, c.layout)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, src)
	}
}

// File converts one source file.
func (c *Converter) File(src string) (Result, error) {
	res := Result{Source: src, Output: c.OutputPath(src)}

	if same, _ := samePath(src, res.Output); same {
		return res, fmt.Errorf("%w: %s would overwrite itself", ErrUnsupportedSource, src)
	}
	if !c.cfg.Overwrite {
		if _, err := os.Stat(res.Output); err == nil {
			c.log.Debug("Output exists, skipping", zap.String("path", res.Output))
			res.Skipped = true
			return res, nil
		}
	}

	mesh, err := c.Load(src)
	if err != nil {
		return res, fmt.Errorf("converting %s: %w", src, err)
	}
	if c.cfg.OutputDir != "" {
		if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
			return res, fmt.Errorf("%w: creating output dir: %w", axmesh.ErrIO, err)
		}
	}
	if err := axmesh.WriteFile(res.Output, mesh); err != nil {
		return res, fmt.Errorf("converting %s: %w", src, err)
	}

	res.Vertices = mesh.VertexCount()
	res.Indices = mesh.IndexCount()
	c.log.Info("Converted",
		zap.String("source", src),
		zap.String("output", res.Output),
		zap.Int("vertices", res.Vertices),
		zap.Int("indices", res.Indices))
	return res, nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}

// Batch converts every source, continuing past failures. When progress is
// non-nil a progress bar is drawn to it. The returned error joins all
// per-file failures.
func (c *Converter) Batch(ctx context.Context, sources []string, progress io.Writer) ([]Result, error) {
	var bar *progressbar.ProgressBar
	if progress != nil {
		bar = progressbar.NewOptions(len(sources),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription("converting"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
	}

	results := make([]Result, 0, len(sources))
	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := c.File(src)
		if err != nil {
			c.log.Error("Conversion failed", zap.String("source", src), zap.Error(err))
			errs = append(errs, err)
		} else {
			results = append(results, res)
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	return results, errors.Join(errs...)
}

// Collect expands paths into source files. Directories are walked
// recursively for OBJ files; files are taken as given.
func Collect(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsSource(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

// IsSource reports whether path names an OBJ file.
func IsSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), SourceExtension)
}
