// Package gridbox detects a docking search box from a PDB structure.
//
// Detection prefers the bounding box of the largest co-crystallized ligand
// (HETATM records, excluding water/ions/buffers); when no ligand is present it
// falls back to the center of mass of the protein's C-alpha trace with a
// generous whole-protein box.
package gridbox

import (
	"strconv"
	"strings"

	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

// Confidence levels reported alongside a detected box.
const (
	ConfidenceHigh = "high"
	ConfidenceLow  = "low"
	ConfidenceNone = "none"
)

// Box is a detected search region: cuboid center and extent in Ångströms.
type Box struct {
	Center     models.Vec3 `json:"center"`
	Size       models.Vec3 `json:"size"`
	Method     string      `json:"method"`
	Confidence string      `json:"confidence"`
}

// Residues that are never the binding-site ligand: water, ions, metals,
// buffers, cryoprotectants.
var skipResidues = map[string]bool{
	"HOH": true, "WAT": true, "H2O": true, "DOD": true, "D2O": true,
	"NA": true, "CL": true, "K": true, "BR": true, "I": true, "F": true,
	"MG": true, "CA": true, "ZN": true, "FE": true, "MN": true, "CU": true, "NI": true, "CO": true,
	"SO4": true, "PO4": true, "NO3": true, "ACT": true, "EDO": true, "GOL": true, "PEG": true,
	"DMS": true, "BME": true, "DTT": true, "TRS": true, "EPE": true,
	"PG4": true, "P6G": true, "P33": true, "PE8": true, "PE7": true,
	"SO3": true, "SUL": true, "FMT": true, "AZI": true, "IOD": true, "CIT": true,
}

type point struct{ x, y, z float64 }

// Detect locates the search box for pdbContent. It never fails: when nothing
// can be extracted it returns a default 25 Å cube at the origin with
// ConfidenceNone.
func Detect(pdbContent string) Box {
	hetero := map[string][]point{}
	var calphas []point

	for _, line := range strings.Split(pdbContent, "\n") {
		if len(line) < 54 {
			continue
		}
		record := strings.TrimSpace(line[0:6])
		switch record {
		case "HETATM":
			resName := strings.TrimSpace(line[17:20])
			if skipResidues[resName] {
				continue
			}
			if p, ok := parseCoords(line); ok {
				hetero[resName] = append(hetero[resName], p)
			}
		case "ATOM":
			atomName := strings.TrimSpace(line[12:16])
			if atomName != "CA" {
				continue
			}
			if p, ok := parseCoords(line); ok {
				calphas = append(calphas, p)
			}
		}
	}

	// Largest hetero group is most likely the inhibitor, not a cofactor.
	var ligandName string
	var ligand []point
	for name, pts := range hetero {
		if len(pts) > len(ligand) || (len(pts) == len(ligand) && name < ligandName) {
			ligandName, ligand = name, pts
		}
	}

	if len(ligand) > 0 {
		center := mean(ligand)
		span := extent(ligand)

		base := 22.0
		switch {
		case len(ligand) >= 50:
			base = 28.0
		case len(ligand) >= 20:
			base = 25.0
		}

		size := models.Vec3{
			X: clampSize(span.X+12.0, base),
			Y: clampSize(span.Y+12.0, base),
			Z: clampSize(span.Z+12.0, base),
		}

		return Box{
			Center:     center,
			Size:       size,
			Method:     "co-crystallized ligand (" + ligandName + ", " + strconv.Itoa(len(ligand)) + " atoms)",
			Confidence: ConfidenceHigh,
		}
	}

	if len(calphas) > 0 {
		return Box{
			Center:     mean(calphas),
			Size:       models.Vec3{X: 30, Y: 30, Z: 30},
			Method:     "center of mass (whole protein)",
			Confidence: ConfidenceLow,
		}
	}

	return Box{
		Size:       models.Vec3{X: 25, Y: 25, Z: 25},
		Method:     "default (failed detection)",
		Confidence: ConfidenceNone,
	}
}

// parseCoords extracts x/y/z from PDB fixed columns 31-54.
func parseCoords(line string) (point, bool) {
	x, errX := strconv.ParseFloat(strings.TrimSpace(line[30:38]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(line[38:46]), 64)
	z, errZ := strconv.ParseFloat(strings.TrimSpace(line[46:54]), 64)
	if errX != nil || errY != nil || errZ != nil {
		return point{}, false
	}
	return point{x, y, z}, true
}

func mean(pts []point) models.Vec3 {
	var sx, sy, sz float64
	for _, p := range pts {
		sx += p.x
		sy += p.y
		sz += p.z
	}
	n := float64(len(pts))
	return models.Vec3{X: sx / n, Y: sy / n, Z: sz / n}
}

// extent returns the axis-aligned span of the point set.
func extent(pts []point) models.Vec3 {
	minP, maxP := pts[0], pts[0]
	for _, p := range pts[1:] {
		if p.x < minP.x {
			minP.x = p.x
		}
		if p.y < minP.y {
			minP.y = p.y
		}
		if p.z < minP.z {
			minP.z = p.z
		}
		if p.x > maxP.x {
			maxP.x = p.x
		}
		if p.y > maxP.y {
			maxP.y = p.y
		}
		if p.z > maxP.z {
			maxP.z = p.z
		}
	}
	return models.Vec3{X: maxP.x - minP.x, Y: maxP.y - minP.y, Z: maxP.z - minP.z}
}

// clampSize applies the minimum padded size and the 35 Å search-space cap.
func clampSize(padded, base float64) float64 {
	size := padded
	if size < base {
		size = base
	}
	if size > 35.0 {
		size = 35.0
	}
	return size
}
