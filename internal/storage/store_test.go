package storage

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/moonlander/internal/config"
	"github.com/san-kum/moonlander/internal/lander"
)

// cubicTrajectory builds a descent with a cubic height profile and costates
// that are linear in tau, without running the solver.
func cubicTrajectory(t *testing.T, cfg *config.Config) *lander.Trajectory {
	t.Helper()
	f, err := cfg.Formulation()
	if err != nil {
		t.Fatalf("formulation: %v", err)
	}

	const n = 11
	tf := 4.0
	tau := make([]float64, n)
	z := mat.NewDense(lander.StateDim, n, nil)
	for j := range tau {
		s := float64(j) / (n - 1)
		tau[j] = s
		z.Set(lander.IdxX, j, 5+s)
		z.Set(lander.IdxY, j, 10*(1-s)*(1-s)*(1-s))
		z.Set(lander.IdxVX, j, 1-s)
		z.Set(lander.IdxVY, j, -30*(1-s)*(1-s)/tf)
		z.Set(lander.IdxP3, j, 2-s)
		z.Set(lander.IdxP4, j, 40+s/3)
	}
	tr, err := lander.Restore(f, tau, z, tf)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	tr.Nodes = n
	tr.Iterations = 3
	return tr
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg := config.GetPreset(config.ProblemObstacles, "rock")
	if cfg == nil {
		t.Fatal("rock preset missing")
	}
	tr := cubicTrajectory(t, cfg)

	runID, err := st.Save(cfg, tr, map[string]float64{"control_effort": 1.5, "clearance": math.Inf(1)})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(runID, config.ProblemObstacles+"_") {
		t.Errorf("run id %q lacks problem prefix", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Problem != config.ProblemObstacles {
		t.Errorf("expected problem %q, got %q", config.ProblemObstacles, meta.Problem)
	}
	if meta.TF != tr.TF || meta.Nodes != tr.Nodes || meta.Iterations != 3 {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.Metrics["control_effort"] != 1.5 {
		t.Errorf("expected effort 1.5, got %f", meta.Metrics["control_effort"])
	}
	if _, ok := meta.Metrics["clearance"]; ok {
		t.Error("non-finite metric should be dropped")
	}
	if len(meta.Config.Obstacles) != len(cfg.Obstacles) {
		t.Errorf("obstacles = %d, want %d", len(meta.Config.Obstacles), len(cfg.Obstacles))
	}

	got, err := st.LoadTrajectory(runID)
	if err != nil {
		t.Fatalf("load trajectory failed: %v", err)
	}
	if got.Len() != tr.Len() {
		t.Fatalf("expected %d points, got %d", tr.Len(), got.Len())
	}
	for i := 0; i < tr.Len(); i++ {
		if got.StateAt(i).Sub(tr.StateAt(i)).Norm() != 0 {
			t.Errorf("point %d: %v != %v", i, got.StateAt(i), tr.StateAt(i))
		}
		if math.Abs(got.T[i]-tr.T[i]) > 1e-12 || got.Angle[i] != tr.Angle[i] {
			t.Errorf("point %d: derived columns differ", i)
		}
	}
	if len(got.Formulation().Terms) != len(cfg.Obstacles) {
		t.Errorf("restored formulation has %d terms", len(got.Formulation().Terms))
	}
}

func TestStoreList(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "runs"))

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list on missing dir: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}

	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	tr := cubicTrajectory(t, cfg)
	for i := 0; i < 2; i++ {
		if _, err := st.Save(cfg, tr, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(st.baseDir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[1].Timestamp.Before(runs[0].Timestamp) {
		t.Error("runs not sorted by time")
	}
}

func TestLoadTrajectoryMissing(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.LoadTrajectory("nope"); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestReadCSVRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"header":     "tau,t,x\n0,0,1\n1,1,2\n",
		"one row":    strings.Join(Columns, ",") + "\n" + strings.Repeat("0,", len(Columns)-1) + "0\n",
		"not number": strings.Join(Columns, ",") + "\n" + strings.Repeat("a,", len(Columns)-1) + "a\n" + strings.Repeat("1,", len(Columns)-1) + "1\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ReadCSV(strings.NewReader(in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExportJSON(t *testing.T) {
	cfg := config.DefaultConfig()
	tr := cubicTrajectory(t, cfg)

	var buf bytes.Buffer
	if err := ExportJSON(&buf, cfg.Problem, tr, map[string]float64{"peak_thrust": 2}); err != nil {
		t.Fatalf("export: %v", err)
	}

	var data struct {
		Problem    string `json:"problem"`
		Trajectory struct {
			TF float64   `json:"tf"`
			Y  []float64 `json:"y"`
		} `json:"trajectory"`
		Hamiltonian []float64          `json:"hamiltonian"`
		Metrics     map[string]float64 `json:"metrics"`
	}
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.Problem != config.ProblemBaseline || data.Trajectory.TF != tr.TF {
		t.Errorf("decoded %+v", data)
	}
	if len(data.Trajectory.Y) != tr.Len() || len(data.Hamiltonian) != tr.Len() {
		t.Errorf("lengths y=%d h=%d, want %d", len(data.Trajectory.Y), len(data.Hamiltonian), tr.Len())
	}
	if data.Metrics["peak_thrust"] != 2 {
		t.Errorf("metrics = %v", data.Metrics)
	}
}
