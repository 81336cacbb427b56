package engine

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

func TestSimulatedRunner_Dock(t *testing.T) {
	runner := &SimulatedRunner{StepDelay: 0}
	if runner.Method() != models.MethodSimulated {
		t.Fatalf("method: got %q", runner.Method())
	}

	var progress []int
	res, err := runner.Dock(context.Background(),
		Request{Config: SearchConfig{NumPoses: 9}},
		func(p int, _ string) { progress = append(progress, p) })
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(progress, []int{50, 75}) {
		t.Errorf("progress events: got %v, want [50 75]", progress)
	}
	if res.Status != "success" {
		t.Errorf("status: got %q", res.Status)
	}
	if len(res.Poses) != 9 {
		t.Fatalf("poses: got %d, want 9", len(res.Poses))
	}

	// Scores ascend; the first pose is the best affinity.
	for i := 1; i < len(res.Poses); i++ {
		if res.Poses[i].Score <= res.Poses[i-1].Score {
			t.Errorf("scores not ascending at %d: %v", i, res.Poses)
		}
	}
	if res.BestAffinity != res.Poses[0].Score {
		t.Errorf("best affinity mismatch: %v vs %v", res.BestAffinity, res.Poses[0].Score)
	}

	// RMSD values are banded: tight within a band, well separated across.
	for i, p := range res.Poses {
		band := i / 3
		within := math.Abs(p.RMSDLower - res.Poses[band*3].RMSDLower)
		if within > 2.0 {
			t.Errorf("pose %d strays from its band: rmsd %v", i, p.RMSDLower)
		}
		if p.RMSDUpper <= p.RMSDLower {
			t.Errorf("pose %d: rmsd_ub %v not above rmsd_lb %v", i, p.RMSDUpper, p.RMSDLower)
		}
	}
	gap := res.Poses[3].RMSDLower - res.Poses[2].RMSDLower
	if gap <= 2.0 {
		t.Errorf("bands not separated: gap %v", gap)
	}
}

func TestSimulatedRunner_Deterministic(t *testing.T) {
	runner := &SimulatedRunner{StepDelay: 0}
	req := Request{Config: SearchConfig{NumPoses: 9}}

	a, err := runner.Dock(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := runner.Dock(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("simulated results are not deterministic")
	}
}

func TestSimulatedRunner_DefaultsPoseCount(t *testing.T) {
	runner := &SimulatedRunner{StepDelay: 0}
	res, err := runner.Dock(context.Background(), Request{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Poses) != 9 {
		t.Fatalf("poses: got %d, want 9", len(res.Poses))
	}
}

func TestSimulatedRunner_CanceledContext(t *testing.T) {
	runner := NewSimulatedRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runner.Dock(ctx, Request{}, nil); err == nil {
		t.Fatal("expected context error")
	}
}
