package models

// ProductionState is what the production directory currently holds. It is
// either Undeployed (bootstrap manifest and score, no model yet) or Deployed.
type ProductionState interface {
	Ingested() Manifest
	LatestScore() float64
	productionState()
}

// Undeployed is the first-implementation state: nothing has been promoted yet.
type Undeployed struct {
	Manifest Manifest
	Score    float64
}

func (u Undeployed) Ingested() Manifest   { return u.Manifest }
func (u Undeployed) LatestScore() float64 { return u.Score }
func (Undeployed) productionState()       {}

// Deployed holds the three promoted artifacts.
type Deployed struct {
	ModelPath string
	Manifest  Manifest
	Score     float64
}

func (d Deployed) Ingested() Manifest   { return d.Manifest }
func (d Deployed) LatestScore() float64 { return d.Score }
func (Deployed) productionState()       {}

// StateName labels a state for logs and health output.
func StateName(s ProductionState) string {
	switch s.(type) {
	case Deployed:
		return "deployed"
	case Undeployed:
		return "undeployed"
	default:
		return "unknown"
	}
}
