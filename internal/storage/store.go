package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/moonlander/internal/config"
	"github.com/san-kum/moonlander/internal/dynamo"
	"github.com/san-kum/moonlander/internal/lander"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
)

// Columns is the header of trajectory.csv. The first ten columns are enough
// to rebuild a trajectory; the rest are derived and kept for plotting tools.
var Columns = []string{"tau", "t", "x", "y", "vx", "vy", "p1", "p2", "p3", "p4", "ux", "uy", "thrust", "angle"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID               string             `json:"id"`
	Problem          string             `json:"problem"`
	Timestamp        time.Time          `json:"timestamp"`
	TF               float64            `json:"tf"`
	Nodes            int                `json:"nodes"`
	Iterations       int                `json:"iterations"`
	MaxResidual      float64            `json:"max_residual"`
	BoundaryResidual float64            `json:"boundary_residual"`
	Config           *config.Config     `json:"config"`
	Metrics          map[string]float64 `json:"metrics"`
}

// Save writes a solved run under a fresh id and returns the id.
func (s *Store) Save(cfg *config.Config, tr *lander.Trajectory, metrics map[string]float64) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", cfg.Problem, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:               runID,
		Problem:          cfg.Problem,
		Timestamp:        now,
		TF:               tr.TF,
		Nodes:            tr.Nodes,
		Iterations:       tr.Iterations,
		MaxResidual:      tr.MaxResidual,
		BoundaryResidual: tr.BoundaryResidual,
		Config:           cfg,
		Metrics:          finite(metrics),
	}

	if err := writeRun(runDir, meta, tr); err != nil {
		return "", multierr.Append(err, os.RemoveAll(runDir))
	}
	return runID, nil
}

func writeRun(runDir string, meta RunMetadata, tr *lander.Trajectory) (err error) {
	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, metaFile.Close()) }()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}

	csvFile, err := os.Create(filepath.Join(runDir, trajectoryFile))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, csvFile.Close()) }()

	return WriteCSV(csvFile, tr)
}

// List returns the metadata of every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadTrajectory rebuilds the trajectory of a stored run. The result has no
// solution spline, so it cannot be resampled.
func (s *Store) LoadTrajectory(runID string) (*lander.Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	if meta.Config == nil {
		return nil, fmt.Errorf("storage: %s has no config: %w", runID, dynamo.ErrInvalidInput)
	}
	f, err := meta.Config.Formulation()
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tau, z, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}

	tr, err := lander.Restore(f, tau, z, meta.TF)
	if err != nil {
		return nil, err
	}
	tr.Nodes = meta.Nodes
	tr.Iterations = meta.Iterations
	tr.MaxResidual = meta.MaxResidual
	tr.BoundaryResidual = meta.BoundaryResidual
	return tr, nil
}

// finite drops values JSON cannot encode.
func finite(metrics map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(metrics))
	for k, v := range metrics {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes one row per mesh point with full float precision.
func WriteCSV(w io.Writer, tr *lander.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}

	cols := [][]float64{tr.Tau, tr.T, tr.X, tr.Y, tr.VX, tr.VY, tr.P1, tr.P2, tr.P3, tr.P4, tr.UX, tr.UY, tr.Thrust, tr.Angle}
	row := make([]string, len(cols))
	for i := 0; i < tr.Len(); i++ {
		for j, c := range cols {
			row[j] = format(c[i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the output of WriteCSV into mesh and state-costate columns.
func ReadCSV(r io.Reader) ([]float64, *mat.Dense, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 3 {
		return nil, nil, dynamo.InvalidInputf("trajectory needs at least 2 rows, got %d", max(len(records)-1, 0))
	}

	header := records[0]
	if len(header) < 2+lander.StateDim || header[0] != "tau" {
		return nil, nil, dynamo.InvalidInputf("unexpected trajectory header %v", header)
	}

	rows := records[1:]
	tau := make([]float64, len(rows))
	z := mat.NewDense(lander.StateDim, len(rows), nil)
	for j, record := range rows {
		v, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", j+1, err)
		}
		tau[j] = v
		// column 1 is physical time, recomputed from tau and tf
		for i := 0; i < lander.StateDim; i++ {
			v, err := strconv.ParseFloat(record[2+i], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d: %w", j+1, err)
			}
			z.Set(i, j, v)
		}
	}
	return tau, z, nil
}

type ExportData struct {
	Problem     string             `json:"problem"`
	Trajectory  *lander.Trajectory `json:"trajectory"`
	Hamiltonian []float64          `json:"hamiltonian"`
	Metrics     map[string]float64 `json:"metrics"`
}

// ExportJSON writes the trajectory, its Hamiltonian and metrics as indented JSON.
func ExportJSON(w io.Writer, problem string, tr *lander.Trajectory, metrics map[string]float64) error {
	data := ExportData{
		Problem:     problem,
		Trajectory:  tr,
		Hamiltonian: tr.Hamiltonian(),
		Metrics:     metrics,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
