package server

// Request payloads

type CreateIdeaRequest struct {
	Name            string `json:"name" minLength:"1"`
	Description     string `json:"description" minLength:"1"`
	Domain          string `json:"domain,omitempty" enum:"saas,media,services,commerce,fintech,health,education,real_estate,other"`
	TargetCustomer  string `json:"target_customer,omitempty"`
	InitialThoughts string `json:"initial_thoughts,omitempty"`
}

type UpdateResearchRequest struct {
	Content string `json:"content"`
}

type ApprovalRequest struct {
	Decision string `json:"decision" enum:"approved,parked,killed"`
	Comment  string `json:"comment,omitempty"`
}

type CompileRequest struct {
	NewVenture bool   `json:"new_venture,omitempty"`
	VentureID  string `json:"venture_id,omitempty"`
}
