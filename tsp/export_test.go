package tsp

// StepSize exposes the subgradient schedule to tests.
var StepSize = stepSize
