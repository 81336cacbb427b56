package docking

import (
	"fmt"
	"math"
	"sort"

	"github.com/YashJadhav21/ProteinDock/internal/docking/engine"
	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

// DefaultRMSDThreshold is the clustering cutoff in Ångström.
const DefaultRMSDThreshold = 2.0

// buildResults normalizes a raw engine result into the persisted shape:
// poses sorted by score, clusters assigned, interactions attached.
func buildResults(method string, raw *engine.Result) (*models.DockingResults, error) {
	if len(raw.Poses) == 0 {
		return nil, fmt.Errorf("engine result contains no poses")
	}

	poses := make([]models.Pose, len(raw.Poses))
	for i, rp := range raw.Poses {
		id := rp.PoseID
		if id == 0 {
			id = i + 1
		}
		poses[i] = models.Pose{
			PoseID:       id,
			Score:        rp.Score,
			RMSDLower:    rp.RMSDLower,
			RMSDUpper:    rp.RMSDUpper,
			File:         rp.File,
			Interactions: rp.Interactions,
		}
	}
	sort.SliceStable(poses, func(i, j int) bool {
		return poses[i].Score < poses[j].Score
	})

	clusters := ClusterPoses(poses, DefaultRMSDThreshold)

	interactions := raw.Interactions
	if interactions == nil && method == models.MethodSimulated {
		interactions = PlaceholderInteractions()
	}
	if poses[0].Interactions == nil && interactions != nil {
		poses[0].Interactions = interactions
	}

	results := &models.DockingResults{
		Method:       method,
		BestScore:    poses[0].Score,
		Poses:        poses,
		Clusters:     clusters,
		Interactions: interactions,
		OutputFiles:  outputFiles(raw),
		GridInfo:     raw.GridInfo,
	}
	return results, nil
}

// ClusterPoses groups poses by RMSD proximity. Poses are scanned in order;
// the first unassigned pose opens a cluster and becomes its representative,
// and every later unassigned pose whose RMSD lower bound is within threshold
// of the representative's joins it. Cluster ids are assigned 0-based in
// discovery order and written back onto the poses. The result is
// deterministic for a given pose order.
func ClusterPoses(poses []models.Pose, threshold float64) []models.PoseCluster {
	assigned := make([]bool, len(poses))
	var clusters []models.PoseCluster

	for i := range poses {
		if assigned[i] {
			continue
		}
		id := len(clusters)
		assigned[i] = true
		poses[i].ClusterID = id
		cluster := models.PoseCluster{
			ClusterID:      id,
			MemberCount:    1,
			BestScore:      poses[i].Score,
			Representative: poses[i].PoseID,
		}
		for j := i + 1; j < len(poses); j++ {
			if assigned[j] {
				continue
			}
			if math.Abs(poses[j].RMSDLower-poses[i].RMSDLower) <= threshold {
				assigned[j] = true
				poses[j].ClusterID = id
				cluster.MemberCount++
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// PlaceholderInteractions fabricates a fixed interaction profile for
// simulated runs. The residues follow the HIV-1 protease binding site so
// demo output reads plausibly; the method tag on the results marks the data
// as synthetic.
func PlaceholderInteractions() *models.Interactions {
	ix := &models.Interactions{
		HBonds: []models.InteractionContact{
			{Residue: "ASP25", ProteinAtom: "OD1", LigandAtom: "O1", Distance: 2.8},
			{Residue: "GLY27", ProteinAtom: "O", LigandAtom: "N1", Distance: 3.1},
			{Residue: "ASP29", ProteinAtom: "N", LigandAtom: "O2", Distance: 2.9},
		},
		Hydrophobic: []models.InteractionContact{
			{Residue: "ILE50", ProteinAtom: "CD1", LigandAtom: "C7", Distance: 3.8},
			{Residue: "VAL82", ProteinAtom: "CG1", LigandAtom: "C12", Distance: 3.9},
			{Residue: "ILE84", ProteinAtom: "CD1", LigandAtom: "C14", Distance: 4.0},
		},
		PiStacking: []models.InteractionContact{
			{Residue: "PHE53", ProteinAtom: "CZ", LigandAtom: "C9", Distance: 4.2},
		},
	}
	ix.Summary = summarize(ix)
	return ix
}

// summarize counts contacts per category and collects the distinct residues.
func summarize(ix *models.Interactions) models.InteractionSummary {
	seen := map[string]struct{}{}
	var residues []string
	add := func(contacts []models.InteractionContact) {
		for _, c := range contacts {
			if _, ok := seen[c.Residue]; ok {
				continue
			}
			seen[c.Residue] = struct{}{}
			residues = append(residues, c.Residue)
		}
	}
	add(ix.HBonds)
	add(ix.Hydrophobic)
	add(ix.PiStacking)
	add(ix.Ionic)
	sort.Strings(residues)

	return models.InteractionSummary{
		Total:               len(ix.HBonds) + len(ix.Hydrophobic) + len(ix.PiStacking) + len(ix.Ionic),
		HBondCount:          len(ix.HBonds),
		HydrophobicCount:    len(ix.Hydrophobic),
		PiStackingCount:     len(ix.PiStacking),
		IonicCount:          len(ix.Ionic),
		InteractingResidues: residues,
	}
}

func outputFiles(raw *engine.Result) map[string]string {
	files := map[string]string{}
	if raw.OutputFile != "" {
		files["docked"] = raw.OutputFile
	}
	if raw.BestPosePDB != "" {
		files["best_pose"] = raw.BestPosePDB
	}
	if raw.ComplexPDB != "" {
		files["complex"] = raw.ComplexPDB
	}
	for i, f := range raw.PoseFiles {
		files[fmt.Sprintf("pose_%d", i+1)] = f
	}
	if len(files) == 0 {
		return nil
	}
	return files
}
