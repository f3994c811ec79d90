package domain

import "errors"

// ErrMunicipalityNotFound is returned for unknown IBGE codes.
var ErrMunicipalityNotFound = errors.New("municipality not found")

// Municipality lookup limits.
const (
	MinCitySearchLength  = 2
	MaxCitySearchResults = 10
)

// Municipality is a city identified by its IBGE code.
type Municipality struct {
	Code      int    `json:"code"`
	Name      string `json:"name"`
	StateCode int    `json:"stateCode"`
	UF        string `json:"uf"`
}

// State is a federative unit.
type State struct {
	Code int    `json:"code"`
	UF   string `json:"uf"`
	Name string `json:"name"`
}
