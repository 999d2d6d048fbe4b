// Package fourax plans four-axis CNC machining of a triangle mesh: it
// orients the workpiece about the milling axis, finds for every face a
// milling direction it can be machined from, groups faces into
// contiguous same-direction regions, and restores smoothed-away surface
// detail without breaking machinability.
//
// The pipeline runs a fixed stage sequence over a Session, each stage
// reading only fields the previous stages populated:
//
//	normalize -> extremes -> visibility -> directions -> assignment ->
//	restore -> recheck
package fourax

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fabware/fourax/frequency"
	"github.com/fabware/fourax/labeling"
	"github.com/fabware/fourax/trimesh"
	"github.com/fabware/fourax/visibility"
)

// Stage identifies one step of the pipeline.
type Stage int

const (
	StageNormalize Stage = iota
	StageExtremes
	StageVisibility
	StageDirections
	StageAssignment
	StageRestore
	StageRecheck
)

func (s Stage) String() string {
	switch s {
	case StageNormalize:
		return "normalize"
	case StageExtremes:
		return "extremes"
	case StageVisibility:
		return "visibility"
	case StageDirections:
		return "directions"
	case StageAssignment:
		return "assignment"
	case StageRestore:
		return "restore"
	case StageRecheck:
		return "recheck"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// StageError wraps a pipeline failure with the stage it happened in.
// Later stages never run after a StageError; the session holds only
// what the completed stages produced.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%v stage: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Config holds the pipeline parameters.
type Config struct {
	// Directions is the sampled direction count D about the milling
	// axis. Must be even and positive.
	Directions int
	// Orientations is the candidate count for the orientation search.
	Orientations int
	// Deterministic makes the orientation search reproducible.
	Deterministic bool
	// HeightfieldAngle is the machinability angle limit in radians.
	HeightfieldAngle float64
	// Compactness is the label-change penalty between adjacent faces;
	// <= 0 selects labeling.DefaultCompactness.
	Compactness float64
	// RestoreIterations is the detail restoration budget.
	RestoreIterations int
	// Mode selects the visibility strategy.
	Mode visibility.Mode
	// Resolution is the rasterization size for the render mode.
	Resolution int
	// GeometricExtremes computes the extreme visibility rows
	// geometrically instead of copying the extreme face sets.
	GeometricExtremes bool
	// SetCovering reduces the direction set before assignment.
	SetCovering bool
	// Recheck recomputes visibility on the restored mesh and counts
	// the faces whose assigned direction regressed.
	Recheck bool
}

// Session is the shared state of one planning job. The pipeline
// populates it stage by stage; completed fields are never rolled back.
type Session struct {
	// Original is the detailed input mesh. Required.
	Original *trimesh.Mesh
	// Smoothed is the manufacturable companion mesh, topologically
	// identical to Original. When nil the pipeline plans on Original
	// and skips restoration.
	Smoothed *trimesh.Mesh

	MinExtremes []int
	MaxExtremes []int

	Visibility *visibility.Matrix
	Directions []r3.Vec
	Angles     []float64
	NonVisible []int

	// TargetDirections lists the matrix rows surviving set covering.
	TargetDirections []int
	// Association maps face index to its assigned matrix row.
	Association []int

	// Restored is the smoothed mesh with detail restored; nil when no
	// smoothed mesh was supplied.
	Restored *trimesh.Mesh
	// Regressed counts faces whose assigned direction went invisible
	// after restoration. Only set when Config.Recheck is on.
	Regressed int
}

// workMesh returns the mesh the planning stages operate on: the
// smoothed mesh when present, the original otherwise.
func (s *Session) workMesh() *trimesh.Mesh {
	if s.Smoothed != nil {
		return s.Smoothed
	}
	return s.Original
}

// Pipeline runs the planning stages with injected collaborators. The
// zero value is not usable; construct with NewPipeline and override
// fields before the first Run.
type Pipeline struct {
	Config Config

	// Search overrides the orientation search; nil selects
	// DefaultOrientationSearch.
	Search OrientationSearch
	// Strategy overrides the visibility strategy; nil derives one from
	// Config.Mode.
	Strategy visibility.Strategy
	// Cover is the optional set-covering solver. Nil, or one returning
	// labeling.ErrCoverUnavailable, keeps the full direction set.
	Cover labeling.CoverSolver
	// Energy solves the face labeling. Required.
	Energy labeling.EnergySolver

	Logger *log.Logger
}

// NewPipeline returns a pipeline with the in-tree solvers wired up.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		Config: cfg,
		Energy: labeling.LocalMoveSolver{},
		Logger: log.Default(),
	}
	if cfg.SetCovering {
		p.Cover = labeling.BranchBoundCover{}
	}
	return p
}

func (p *Pipeline) visibilityOptions() visibility.Options {
	return visibility.Options{
		Directions:        p.Config.Directions,
		HeightfieldAngle:  p.Config.HeightfieldAngle,
		GeometricExtremes: p.Config.GeometricExtremes,
		Resolution:        p.Config.Resolution,
	}
}

// Run executes the stage sequence on s. On failure the returned error
// is a *StageError naming the failed stage and s keeps the output of
// the stages that completed.
func (p *Pipeline) Run(s *Session) error {
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}
	strategy := p.Strategy
	if strategy == nil {
		var err error
		strategy, err = visibility.NewStrategy(p.Config.Mode, p.Config.Resolution)
		if err != nil {
			return &StageError{StageVisibility, err}
		}
	}

	// normalize
	if s.Original == nil {
		return &StageError{StageNormalize, errors.New("no input mesh")}
	}
	if s.Smoothed != nil {
		if err := trimesh.SameTopology(s.Original, s.Smoothed); err != nil {
			return &StageError{StageNormalize, err}
		}
	}
	Normalize(s.workMesh(), companionOf(s), p.Config.Orientations, p.Config.Deterministic, p.Search)
	logger.Debug("orientation normalized", "bounds", s.workMesh().Bounds())

	// extremes
	s.MinExtremes, s.MaxExtremes = SelectExtremes(s.workMesh())
	logger.Debug("extremes selected", "min", len(s.MinExtremes), "max", len(s.MaxExtremes))

	// visibility
	res, err := visibility.Compute(s.workMesh(), s.MinExtremes, s.MaxExtremes, p.visibilityOptions(), strategy)
	if err != nil {
		return &StageError{StageVisibility, err}
	}
	s.Visibility = res.Matrix
	s.Directions = res.Directions
	s.Angles = res.Angles
	s.NonVisible = res.NonVisible
	logger.Info("visibility computed", "mode", p.Config.Mode, "directions", len(s.Directions), "nonvisible", len(s.NonVisible))

	// directions
	s.TargetDirections, err = labeling.TargetDirections(s.Visibility, p.Cover)
	if err != nil {
		return &StageError{StageDirections, err}
	}
	logger.Debug("direction set derived", "survived", len(s.TargetDirections))

	// assignment
	s.Association, err = labeling.Assign(s.workMesh(), s.Visibility, s.TargetDirections, p.Config.Compactness, p.Energy)
	if err != nil {
		return &StageError{StageAssignment, err}
	}
	logger.Info("faces assigned", "labels", len(s.TargetDirections))

	// restore
	if s.Smoothed == nil {
		logger.Debug("no smoothed mesh, skipping restoration")
		return nil
	}
	diff := frequency.DifferentialCoordinates(s.Original)
	restored := s.Smoothed.Clone()
	if err := frequency.Restore(restored, diff, s.Association, s.Directions, p.Config.RestoreIterations, p.Config.HeightfieldAngle); err != nil {
		return &StageError{StageRestore, err}
	}
	s.Restored = restored
	logger.Info("detail restored", "iterations", p.Config.RestoreIterations)

	// recheck
	if p.Config.Recheck {
		_, lost, err := frequency.RecheckVisibility(s.Restored, s.MinExtremes, s.MaxExtremes, s.Association, p.visibilityOptions(), strategy)
		if err != nil {
			return &StageError{StageRecheck, err}
		}
		s.Regressed = lost
		logger.Info("restored mesh rechecked", "regressed", lost)
	}
	return nil
}

// companionOf returns the mesh that must follow the work mesh through
// the normalization transform, or nil when there is only one mesh.
func companionOf(s *Session) *trimesh.Mesh {
	if s.Smoothed != nil {
		return s.Original
	}
	return nil
}
