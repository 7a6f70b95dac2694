package service

import "fmt"

// Stage is a step of the import state machine. Stages run in declaration
// order and never repeat.
type Stage string

const (
	StageStart                     Stage = "Start"
	StageSessionEstablished        Stage = "SessionEstablished"
	StageBuyerResolved             Stage = "BuyerResolved"
	StageCatalogResolved           Stage = "CatalogResolved"
	StageBuyerCatalogLinked        Stage = "BuyerCatalogLinked"
	StageCategoriesBuilt           Stage = "CategoriesBuilt"
	StageCategoriesUploaded        Stage = "CategoriesUploaded"
	StageCategoriesAssignedToBuyer Stage = "CategoriesAssignedToBuyer"
	StageProductsUploaded          Stage = "ProductsUploaded"
	StageDone                      Stage = "Done"
)

// StageError is a fatal failure that stopped the run while trying to reach Stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
