// Command fourax plans four-axis CNC machining of an STL model: it
// computes a milling direction per face and, when a smoothed companion
// model is given, restores the original detail under the machinability
// constraint.
//
// Outputs in the output directory: the restored mesh (restored.stl),
// the per-face direction assignment (association.csv), a face count per
// surviving direction (directions.png), and, with the render strategy
// and -previews, a per-direction coverage thumbnail.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/hschendel/stl"
	"github.com/nfnt/resize"
	"github.com/pelletier/go-toml/v2"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/fabware/fourax"
	"github.com/fabware/fourax/trimesh"
	"github.com/fabware/fourax/visibility"
)

type config struct {
	Input    string `toml:"input"`
	Smoothed string `toml:"smoothed"`
	Output   string `toml:"output"`

	Directions        int     `toml:"directions"`
	HeightfieldAngle  float64 `toml:"heightfield_angle_deg"`
	Orientations      int     `toml:"orientations"`
	Deterministic     bool    `toml:"deterministic"`
	Compactness       float64 `toml:"compactness"`
	RestoreIterations int     `toml:"restore_iterations"`
	Mode              string  `toml:"mode"`
	Resolution        int     `toml:"resolution"`
	GeometricExtremes bool    `toml:"geometric_extremes"`
	SetCovering       bool    `toml:"set_covering"`
	Recheck           bool    `toml:"recheck"`

	Previews bool `toml:"previews"`
	Verbose  bool `toml:"verbose"`
}

func defaultConfig() config {
	return config{
		Output:            "out",
		Directions:        120,
		HeightfieldAngle:  60,
		Orientations:      1000,
		Deterministic:     true,
		RestoreIterations: 50,
		Mode:              "projection",
		Resolution:        1024,
		SetCovering:       true,
		Recheck:           true,
	}
}

func main() {
	logger := log.New(os.Stderr)
	if err := run(logger); err != nil {
		var stageErr *fourax.StageError
		if errors.As(err, &stageErr) {
			logger.Error("pipeline failed", "stage", stageErr.Stage, "err", stageErr.Err)
		} else {
			logger.Error("fourax failed", "err", err)
		}
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	cfg := defaultConfig()

	configPath := flag.String("config", "", "TOML config file; flags override it")
	input := flag.String("input", cfg.Input, "input STL model")
	smoothed := flag.String("smoothed", cfg.Smoothed, "smoothed companion STL (optional)")
	output := flag.String("output", cfg.Output, "output directory")
	directions := flag.Int("directions", cfg.Directions, "sampled direction count (even)")
	angle := flag.Float64("angle", cfg.HeightfieldAngle, "heightfield angle in degrees")
	orientations := flag.Int("orientations", cfg.Orientations, "orientation search samples")
	deterministic := flag.Bool("deterministic", cfg.Deterministic, "reproducible orientation search")
	compactness := flag.Float64("compactness", cfg.Compactness, "label change penalty (0 = default)")
	iterations := flag.Int("iterations", cfg.RestoreIterations, "detail restoration iterations")
	mode := flag.String("mode", cfg.Mode, "visibility strategy: projection, ray or render")
	resolution := flag.Int("resolution", cfg.Resolution, "render strategy resolution")
	geomExtremes := flag.Bool("geometric-extremes", cfg.GeometricExtremes, "compute extreme rows geometrically")
	cover := flag.Bool("cover", cfg.SetCovering, "reduce the direction set by set covering")
	recheck := flag.Bool("recheck", cfg.Recheck, "recheck visibility after restoration")
	previews := flag.Bool("previews", cfg.Previews, "write per-direction previews (render mode)")
	verbose := flag.Bool("verbose", cfg.Verbose, "debug logging")
	flag.Parse()

	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			return err
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("parse %s: %w", *configPath, err)
		}
	}
	// Explicit flags win over the config file.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	apply := func(name string, fn func()) {
		if set[name] || *configPath == "" {
			fn()
		}
	}
	apply("input", func() { cfg.Input = *input })
	apply("smoothed", func() { cfg.Smoothed = *smoothed })
	apply("output", func() { cfg.Output = *output })
	apply("directions", func() { cfg.Directions = *directions })
	apply("angle", func() { cfg.HeightfieldAngle = *angle })
	apply("orientations", func() { cfg.Orientations = *orientations })
	apply("deterministic", func() { cfg.Deterministic = *deterministic })
	apply("compactness", func() { cfg.Compactness = *compactness })
	apply("iterations", func() { cfg.RestoreIterations = *iterations })
	apply("mode", func() { cfg.Mode = *mode })
	apply("resolution", func() { cfg.Resolution = *resolution })
	apply("geometric-extremes", func() { cfg.GeometricExtremes = *geomExtremes })
	apply("cover", func() { cfg.SetCovering = *cover })
	apply("recheck", func() { cfg.Recheck = *recheck })
	apply("previews", func() { cfg.Previews = *previews })
	apply("verbose", func() { cfg.Verbose = *verbose })

	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if cfg.Input == "" {
		return errors.New("no input model; use -input or a config file")
	}

	visMode, err := parseMode(cfg.Mode)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return err
	}

	session := &fourax.Session{}
	if session.Original, err = loadSTL(cfg.Input); err != nil {
		return fmt.Errorf("load %s: %w", cfg.Input, err)
	}
	logger.Info("model loaded", "path", cfg.Input, "faces", session.Original.NumFaces())
	if cfg.Smoothed != "" {
		if session.Smoothed, err = loadSTL(cfg.Smoothed); err != nil {
			return fmt.Errorf("load %s: %w", cfg.Smoothed, err)
		}
	}

	pipeline := fourax.NewPipeline(fourax.Config{
		Directions:        cfg.Directions,
		Orientations:      cfg.Orientations,
		Deterministic:     cfg.Deterministic,
		HeightfieldAngle:  cfg.HeightfieldAngle * math.Pi / 180,
		Compactness:       cfg.Compactness,
		RestoreIterations: cfg.RestoreIterations,
		Mode:              visMode,
		Resolution:        cfg.Resolution,
		GeometricExtremes: cfg.GeometricExtremes,
		SetCovering:       cfg.SetCovering,
		Recheck:           cfg.Recheck,
	})
	pipeline.Logger = logger

	var render *visibility.RenderStrategy
	if visMode == visibility.ModeRender {
		render = visibility.NewRenderStrategy(cfg.Resolution)
		render.KeepImages = cfg.Previews
		pipeline.Strategy = render
	}

	if err := pipeline.Run(session); err != nil {
		return err
	}
	if len(session.NonVisible) > 0 {
		logger.Warn("faces with no valid direction", "count", len(session.NonVisible))
	}

	if session.Restored != nil {
		path := filepath.Join(cfg.Output, "restored.stl")
		if err := trimesh.WriteSTLFile(path, session.Restored); err != nil {
			return err
		}
		logger.Info("restored mesh written", "path", path, "regressed", session.Regressed)
	}
	if err := writeAssociationCSV(filepath.Join(cfg.Output, "association.csv"), session); err != nil {
		return err
	}
	if err := writeDirectionChart(filepath.Join(cfg.Output, "directions.png"), session); err != nil {
		return err
	}
	if render != nil && cfg.Previews {
		if err := writePreviews(cfg.Output, render); err != nil {
			return err
		}
	}
	logger.Info("done", "output", cfg.Output)
	return nil
}

func parseMode(s string) (visibility.Mode, error) {
	switch s {
	case "projection":
		return visibility.ModeProjection, nil
	case "ray":
		return visibility.ModeRay, nil
	case "render":
		return visibility.ModeRender, nil
	}
	return 0, fmt.Errorf("unknown visibility mode %q", s)
}

// loadSTL reads an ASCII or binary STL file into an indexed mesh.
func loadSTL(path string) (*trimesh.Mesh, error) {
	solid, err := stl.ReadFile(path)
	if err != nil {
		return nil, err
	}
	triangles := make([][3]r3.Vec, len(solid.Triangles))
	for i, tri := range solid.Triangles {
		for j, v := range tri.Vertices {
			triangles[i][j] = r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
		}
	}
	return trimesh.FromTriangles(triangles, 0)
}

// writeAssociationCSV writes one row per face: face index, assigned
// direction row and the direction vector.
func writeAssociationCSV(path string, s *fourax.Session) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.Write([]string{"face", "direction", "dx", "dy", "dz"}); err != nil {
		return err
	}
	for f, row := range s.Association {
		d := s.Directions[row]
		record := []string{
			strconv.Itoa(f),
			strconv.Itoa(row),
			strconv.FormatFloat(d.X, 'g', -1, 64),
			strconv.FormatFloat(d.Y, 'g', -1, 64),
			strconv.FormatFloat(d.Z, 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// writeDirectionChart renders a bar chart of face counts per surviving
// direction.
func writeDirectionChart(path string, s *fourax.Session) error {
	counts := map[int]int{}
	for _, row := range s.Association {
		counts[row]++
	}
	values := make(plotter.Values, 0, len(s.TargetDirections))
	labels := make([]string, 0, len(s.TargetDirections))
	for _, row := range s.TargetDirections {
		values = append(values, float64(counts[row]))
		labels = append(labels, strconv.Itoa(row))
	}

	p := plot.New()
	p.Title.Text = "faces per milling direction"
	p.Y.Label.Text = "faces"
	p.X.Label.Text = "direction row"
	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return err
	}
	p.Add(bars)
	p.NominalX(labels...)
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}

// writePreviews saves a downscaled coverage render per checked
// direction row.
func writePreviews(dir string, render *visibility.RenderStrategy) error {
	for row, img := range render.Images {
		thumb := resize.Resize(256, 0, img, resize.Lanczos3)
		file, err := os.Create(filepath.Join(dir, fmt.Sprintf("direction_%03d.png", row)))
		if err != nil {
			return err
		}
		if err := png.Encode(file, thumb); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
	}
	return nil
}
