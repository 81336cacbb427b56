package models

import (
	"time"

	"github.com/google/uuid"
)

// Protein is a receptor structure in PDB format. Content is stored verbatim;
// the engine performs its own receptor preparation.
type Protein struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	TenantID  uuid.UUID `db:"tenant_id"  json:"tenant_id"`
	Name      string    `db:"name"       json:"name"`
	PDBID     *string   `db:"pdb_id"     json:"pdb_id,omitempty"`
	Content   string    `db:"content"    json:"-"`
	SizeBytes int       `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Ligand is a small molecule described by a SMILES string. 3D conformer
// generation happens inside the engine, not here.
type Ligand struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	TenantID  uuid.UUID `db:"tenant_id"  json:"tenant_id"`
	Name      string    `db:"name"       json:"name"`
	SMILES    string    `db:"smiles"     json:"smiles"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
