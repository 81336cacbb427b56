package models

// Pose is one candidate binding configuration from a single docking run.
// Ordinal IDs are 1-based and unique within a job; the persisted pose list is
// sorted ascending by score, which is independent of the ordinal.
type Pose struct {
	PoseID       int           `json:"poseId"`
	ClusterID    int           `json:"clusterId"`
	Score        float64       `json:"score"`
	RMSDLower    float64       `json:"rmsd_lb"`
	RMSDUpper    float64       `json:"rmsd_ub"`
	File         string        `json:"file,omitempty"`
	Interactions *Interactions `json:"interactions,omitempty"`
}

// PoseCluster groups poses whose RMSD-to-best values sit within a threshold
// of the cluster representative's. IDs follow creation order, 0-based.
// BestScore is the representative's score, by definition, even when a later
// member scores lower.
type PoseCluster struct {
	ClusterID      int     `json:"clusterId"`
	MemberCount    int     `json:"memberCount"`
	BestScore      float64 `json:"bestScore"`
	Representative int     `json:"representativePoseId"`
}

// InteractionContact names one protein residue contacting the ligand.
type InteractionContact struct {
	Residue     string  `json:"residue"`
	ProteinAtom string  `json:"proteinAtom,omitempty"`
	LigandAtom  string  `json:"ligandAtom,omitempty"`
	Distance    float64 `json:"distance"`
}

// Interactions holds the contact lists derived from a protein-ligand complex.
type Interactions struct {
	HBonds      []InteractionContact `json:"hBonds"`
	Hydrophobic []InteractionContact `json:"hydrophobic"`
	PiStacking  []InteractionContact `json:"piStacking"`
	Ionic       []InteractionContact `json:"ionic"`
	Summary     InteractionSummary   `json:"summary"`
}

// InteractionSummary aggregates contact counts across all interaction types.
type InteractionSummary struct {
	Total               int      `json:"totalInteractions"`
	HBondCount          int      `json:"hBondCount"`
	HydrophobicCount    int      `json:"hydrophobicCount"`
	PiStackingCount     int      `json:"piStackingCount"`
	IonicCount          int      `json:"ionicCount"`
	InteractingResidues []string `json:"interactingResidues"`
}
