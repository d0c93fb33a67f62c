/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package model builds a mixed-integer linear program from a cleaned
// planning dataset. The builder is pure: no I/O, no mutation of inputs. It
// lowers the domain (plants, routes, demand, periods) into a generic,
// solver-agnostic Model so the solver package never needs to know about
// plants or shipments, only variables and constraints — the same separation
// the teacher keeps between its provider-agnostic dispatch and each
// provider's own request shape.
package model

import "math"

// VarKind classifies a variable's domain.
type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

// Sense is a constraint's relational operator.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

// Variable is one decision variable in the generic MILP.
type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// Constraint is one linear row: Σ Coeffs[v]·v {<=, >=, =} RHS.
type Constraint struct {
	Name   string
	Coeffs map[string]float64
	Sense  Sense
	RHS    float64
}

// Model is the generic mixed-integer linear program the solver package
// consumes. Variable names are the only bridge back to domain semantics;
// the result package parses them (see names.go) to reconstitute a PlanResult.
type Model struct {
	Variables   []Variable
	Constraints []Constraint
	Objective   map[string]float64 // minimize
	BigM        float64
}

// VarByName returns the variable with the given name, or nil.
func (m *Model) VarByName(name string) *Variable {
	for i := range m.Variables {
		if m.Variables[i].Name == name {
			return &m.Variables[i]
		}
	}
	return nil
}

func newVariable(name string, kind VarKind) Variable {
	return Variable{Name: name, Kind: kind, Lower: 0, Upper: math.Inf(1)}
}

func newConstraint(name string, sense Sense, rhs float64) Constraint {
	return Constraint{Name: name, Coeffs: make(map[string]float64), Sense: sense, RHS: rhs}
}
