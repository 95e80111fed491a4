package api

type (
	// InitializeRequest contains the optional seed data for an initialize
	// operation
	InitializeRequest struct {
		InitialData *InitialData `json:"initial_data,omitempty"`
	}

	// UpdateStepRequest replaces the payload for a single step
	UpdateStepRequest struct {
		Data StepData `json:"data"`
	}

	// NavigateRequest moves the current step of an instance
	NavigateRequest struct {
		StepNumber StepNumber `json:"step_number"`
	}

	// CompleteStepRequest marks a step complete. NextStep is computed by the
	// caller as min(step+1, N) to match the optimistic transform
	CompleteStepRequest struct {
		NextStep StepNumber `json:"next_step"`
		Data     StepData   `json:"data,omitempty"`
	}

	// CompleteRequest finishes the whole workflow
	CompleteRequest struct {
		FinalData StepData `json:"final_data,omitempty"`
	}

	// Ack confirms a successful mutation
	Ack struct {
		SubmissionID SubmissionID `json:"submission_id"`
		Status       Status       `json:"status"`
	}

	// ErrorResponse is the uniform error body returned by the persistence
	// service
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}
)
