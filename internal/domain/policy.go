package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Policy is a pollution-control measure that can be simulated.
type Policy string

const (
	PolicyTraffic      Policy = "TRAFFIC"
	PolicyIndustry     Policy = "INDUSTRY"
	PolicyConstruction Policy = "CONSTRUCTION"
	PolicyFirecracker  Policy = "FIRECRACKER"
	PolicyCropBurning  Policy = "CROP_BURNING"
)

// PolicyImpact describes how strongly a policy cuts its target source. The
// reduction rate scales linearly from MinReduction at 0% implementation to
// MaxReduction at 100%.
type PolicyImpact struct {
	Name         string
	Source       Contribution
	MinReduction float64
	MaxReduction float64
	CostPerDay   float64 // rupees
}

var policyImpacts = map[Policy]PolicyImpact{
	PolicyTraffic:      {"Traffic Control (Odd-Even)", ContribTraffic, 0.10, 0.25, 50_000_000},
	PolicyIndustry:     {"Industrial Control", ContribIndustrial, 0.15, 0.35, 100_000_000},
	PolicyConstruction: {"Construction Regulation", ContribConstruction, 0.20, 0.40, 30_000_000},
	PolicyFirecracker:  {"Firecracker Ban", ContribOther, 0.30, 0.50, 10_000_000},
	PolicyCropBurning:  {"Crop Burning Control", ContribCropBurning, 0.25, 0.45, 200_000_000},
}

// PolicyImpactFor returns the impact model of p.
func PolicyImpactFor(p Policy) (PolicyImpact, bool) {
	impact, ok := policyImpacts[p]
	return impact, ok
}

// Simulation defaults and limits.
const (
	DefaultImplementationLevel = 75
	DefaultSimulationDays      = 30
	MaxSimulationDays          = 3650
	AllAreas                   = "all"

	// minSimulatedAQI is the floor no combination of policies can push below.
	minSimulatedAQI = 50
	maxAreaResults  = 10
	rupeesPerCrore  = 10_000_000
)

// ErrUnknownArea is returned when a simulation names an area with no reading.
var ErrUnknownArea = errors.New("unknown area")

// SimulationRequest selects the policies to apply, how fully they are
// enforced (percent), for how many days, and where. An empty Area or
// AllAreas covers every area.
type SimulationRequest struct {
	Policies            []Policy `json:"policies"`
	ImplementationLevel float64  `json:"implementation_level"`
	DurationDays        int      `json:"duration"`
	Area                string   `json:"area"`
}

// Validate reports the first problem with r.
func (r SimulationRequest) Validate() error {
	if r.ImplementationLevel < 0 || r.ImplementationLevel > 100 {
		return errors.New("implementation_level must be between 0 and 100")
	}
	if r.DurationDays < 1 || r.DurationDays > MaxSimulationDays {
		return fmt.Errorf("duration must be between 1 and %d days", MaxSimulationDays)
	}
	seen := make(map[Policy]bool, len(r.Policies))
	for _, p := range r.Policies {
		if _, ok := policyImpacts[p]; !ok {
			return fmt.Errorf("unknown policy %q", p)
		}
		if seen[p] {
			return fmt.Errorf("policy %q listed more than once", p)
		}
		seen[p] = true
	}
	return nil
}

// AreaSimulation is the projected effect on one area.
type AreaSimulation struct {
	Area          string  `json:"area"`
	BeforeAQI     int     `json:"before_aqi"`
	AfterAQI      int     `json:"after_aqi"`
	Reduction     float64 `json:"reduction"`
	HealthBenefit int     `json:"health_benefit"`
}

// SimulationSummary aggregates a simulation across the affected areas.
type SimulationSummary struct {
	AvgBeforeAQI        int      `json:"avg_before_aqi"`
	AvgAfterAQI         int      `json:"avg_after_aqi"`
	AvgReduction        float64  `json:"avg_reduction"`
	BeforeCategory      Category `json:"before_category"`
	AfterCategory       Category `json:"after_category"`
	TotalHealthBenefit  int      `json:"total_health_benefit"`
	TotalCostCrores     float64  `json:"total_cost_crores"`
	DurationDays        int      `json:"duration_days"`
	ImplementationLevel int      `json:"implementation_level"`
	PoliciesApplied     int      `json:"policies_applied"`
	AreasAffected       int      `json:"areas_affected"`
}

// SimulationResult holds the summary and up to ten areas, largest
// reduction first.
type SimulationResult struct {
	Summary     SimulationSummary `json:"summary"`
	AreaResults []AreaSimulation  `json:"area_results"`
}

// SimulatePolicies projects the AQI of each selected area after the
// requested policies have run for the given duration.
//
// Each policy removes rate × (source share / 100) × AQI, where rate is
// interpolated between the policy's min and max reduction by the
// implementation level. The projected AQI never drops below 50 (or below the
// current value when that is already lower). Health benefit is reported per
// million population as ΔAQI × 0.15 × days/365 × 1000. Implementation cost is
// charged per policy per area.
func SimulatePolicies(areas []AreaReading, req SimulationRequest) (SimulationResult, error) {
	if err := req.Validate(); err != nil {
		return SimulationResult{}, err
	}

	selected := areas
	if req.Area != "" && req.Area != AllAreas {
		i := slices.IndexFunc(areas, func(a AreaReading) bool { return strings.EqualFold(a.Area, req.Area) })
		if i < 0 {
			return SimulationResult{}, fmt.Errorf("%w: %s", ErrUnknownArea, req.Area)
		}
		selected = areas[i : i+1]
	}

	level := req.ImplementationLevel / 100
	days := float64(req.DurationDays)

	results := make([]AreaSimulation, 0, len(selected))
	var totalBefore, totalAfter, totalHealth, totalCost float64
	for _, a := range selected {
		before := float64(a.AQI)
		var reduction float64
		for _, p := range req.Policies {
			impact := policyImpacts[p]
			rate := impact.MinReduction + (impact.MaxReduction-impact.MinReduction)*level
			reduction += a.Share(impact.Source) / 100 * before * rate
			totalCost += impact.CostPerDay * days * level
		}

		after := math.Max(math.Min(before, minSimulatedAQI), before-reduction)
		var pct float64
		if before > 0 {
			pct = (before - after) / before * 100
		}
		health := (before - after) * 0.15 * (days / 365) * 1000

		results = append(results, AreaSimulation{
			Area:          a.Area,
			BeforeAQI:     int(math.Round(before)),
			AfterAQI:      int(math.Round(after)),
			Reduction:     round1(pct),
			HealthBenefit: int(math.Round(health)),
		})
		totalBefore += before
		totalAfter += after
		totalHealth += health
	}

	n := float64(max(len(results), 1))
	avgBefore := int(math.Round(totalBefore / n))
	avgAfter := int(math.Round(totalAfter / n))
	var avgReduction float64
	if avgBefore > 0 {
		avgReduction = round1(float64(avgBefore-avgAfter) / float64(avgBefore) * 100)
	}

	slices.SortStableFunc(results, func(x, y AreaSimulation) int {
		switch {
		case x.Reduction > y.Reduction:
			return -1
		case x.Reduction < y.Reduction:
			return 1
		}
		return 0
	})
	if len(results) > maxAreaResults {
		results = results[:maxAreaResults]
	}

	return SimulationResult{
		Summary: SimulationSummary{
			AvgBeforeAQI:        avgBefore,
			AvgAfterAQI:         avgAfter,
			AvgReduction:        avgReduction,
			BeforeCategory:      CategoryFor(float64(avgBefore)),
			AfterCategory:       CategoryFor(float64(avgAfter)),
			TotalHealthBenefit:  int(math.Round(totalHealth)),
			TotalCostCrores:     math.Round(totalCost/rupeesPerCrore*100) / 100,
			DurationDays:        req.DurationDays,
			ImplementationLevel: int(req.ImplementationLevel),
			PoliciesApplied:     len(req.Policies),
			AreasAffected:       int(n),
		},
		AreaResults: results,
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
