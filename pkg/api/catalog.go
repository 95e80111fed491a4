package api

type (
	// DisplayStatus is the derived presentation state of a catalog step
	DisplayStatus string

	// StepDefinition describes one step of a submission process
	StepDefinition struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	// Catalog is the fixed, ordered list of steps for a submission process.
	// It is static configuration; the engine reads it and never mutates it
	Catalog struct {
		Process string           `json:"process"`
		Steps   []StepDefinition `json:"steps"`
	}

	// StepState pairs a catalog step with its derived display status for a
	// particular instance
	StepState struct {
		Number      StepNumber    `json:"number"`
		Name        string        `json:"name"`
		Description string        `json:"description"`
		Status      DisplayStatus `json:"status"`
	}
)

const (
	StepCompleted DisplayStatus = "completed"
	StepActive    DisplayStatus = "active"
	StepPending   DisplayStatus = "pending"
)

// CommercialPropertyCatalog returns the reference eight-step commercial
// property submission process
func CommercialPropertyCatalog() *Catalog {
	return &Catalog{
		Process: "commercial-property",
		Steps: []StepDefinition{
			{
				Name:        "Broker Information",
				Description: "Producing broker and agency details",
			},
			{
				Name:        "Insured Details",
				Description: "Named insured and business classification",
			},
			{
				Name:        "Property Details",
				Description: "Locations, construction, and occupancy",
			},
			{
				Name:        "Coverage Selection",
				Description: "Limits, deductibles, and endorsements",
			},
			{
				Name:        "Loss History",
				Description: "Prior claims and loss runs",
			},
			{
				Name:        "Financials",
				Description: "Valuations and business income figures",
			},
			{
				Name:        "Documents",
				Description: "Supporting documents and attachments",
			},
			{
				Name:        "Review & Submit",
				Description: "Final review before submission",
			},
		},
	}
}

// Total returns the number of steps in the catalog
func (c *Catalog) Total() int {
	return len(c.Steps)
}

// LastStep returns the highest step number in the catalog
func (c *Catalog) LastStep() StepNumber {
	return StepNumber(len(c.Steps))
}

// Contains reports whether a step number is within the catalog range
func (c *Catalog) Contains(n StepNumber) bool {
	return n >= 1 && n <= c.LastStep()
}

// NextStep returns the step an instance advances to after completing the
// given step. Advancing past the last step pins at the last step
func (c *Catalog) NextStep(n StepNumber) StepNumber {
	return min(n+1, c.LastStep())
}

// StepStates derives the display status of every catalog step for an
// instance: completed when the step is in the completed set, active when it
// is the current step, pending otherwise. Pure function of its inputs
func (c *Catalog) StepStates(w *WorkflowInstance) []StepState {
	res := make([]StepState, len(c.Steps))
	for i, def := range c.Steps {
		n := StepNumber(i + 1)
		res[i] = StepState{
			Number:      n,
			Name:        def.Name,
			Description: def.Description,
			Status:      c.stepStatus(w, n),
		}
	}
	return res
}

// CanNavigateTo reports whether a user may jump to the step: any completed
// step, or the single step beyond the highest completed one. This gating is
// advisory; navigation itself does not enforce it
func (c *Catalog) CanNavigateTo(w *WorkflowInstance, n StepNumber) bool {
	if !c.Contains(n) {
		return false
	}
	return n <= w.CompletedSteps.Max()+1
}

func (c *Catalog) stepStatus(w *WorkflowInstance, n StepNumber) DisplayStatus {
	switch {
	case w.CompletedSteps.Contains(n):
		return StepCompleted
	case w.CurrentStep == n:
		return StepActive
	default:
		return StepPending
	}
}
