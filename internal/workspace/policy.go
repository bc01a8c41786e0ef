package workspace

import (
	_ "embed"
)

//go:embed policies/instruction_policy.md
var instructionPolicy string

//go:embed policies/investment_dashboard_policy.md
var dashboardPolicy string

// InstructionPolicy is the operating policy the agent reads before using the
// file tools.
func InstructionPolicy() string { return instructionPolicy }

// DashboardPolicy is the workflow for portfolio analysis and dashboards.
func DashboardPolicy() string { return dashboardPolicy }
