package domain

// Domain is the market category an idea targets.
type Domain string

const (
	DomainSaaS       Domain = "saas"
	DomainMedia      Domain = "media"
	DomainServices   Domain = "services"
	DomainCommerce   Domain = "commerce"
	DomainFintech    Domain = "fintech"
	DomainHealth     Domain = "health"
	DomainEducation  Domain = "education"
	DomainRealEstate Domain = "real_estate"
	DomainOther      Domain = "other"
)

var domains = []Domain{
	DomainSaaS, DomainMedia, DomainServices, DomainCommerce, DomainFintech,
	DomainHealth, DomainEducation, DomainRealEstate, DomainOther,
}

func ParseDomain(s string) (Domain, bool) {
	if s == "" {
		return DomainOther, true
	}
	for _, d := range domains {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

type Idea struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Domain          Domain `json:"domain" enum:"saas,media,services,commerce,fintech,health,education,real_estate,other"`
	TargetCustomer  string `json:"target_customer,omitempty"`
	InitialThoughts string `json:"initial_thoughts,omitempty"`
	Status          Status `json:"status" enum:"idea,researching,researched,scoring,scored,approved,rejected,parked,compiling,compiled,failed"`
	Version         int64  `json:"version"`

	ResearchDocID       *string `json:"research_doc_id,omitempty"`
	ResearchCompletedAt *string `json:"research_completed_at,omitempty" format:"date-time"`
	ResearchModel       *string `json:"research_model,omitempty"`
	ResearchTokens      *int    `json:"research_tokens,omitempty"`

	Score     *Score   `json:"score,omitempty"`
	Verdict   *Verdict `json:"verdict,omitempty" enum:"GREEN,YELLOW,RED"`
	ScoreHash *string  `json:"score_hash,omitempty"`
	ScoredAt  *string  `json:"scored_at,omitempty" format:"date-time"`

	ApprovalDecision *Decision `json:"approval_decision,omitempty" enum:"approved,parked,killed"`
	ApprovalComment  *string   `json:"approval_comment,omitempty"`
	ApprovedBy       *string   `json:"approved_by,omitempty"`
	ApprovedAt       *string   `json:"approved_at,omitempty" format:"date-time"`

	VentureID  *string       `json:"venture_id,omitempty"`
	CompiledAt *string       `json:"compiled_at,omitempty" format:"date-time"`
	Stats      *CompileStats `json:"compile_stats,omitempty"`
	LastError  *string       `json:"last_error,omitempty"`
	CreatedAt  string        `json:"created_at" format:"date-time"`
	UpdatedAt  string        `json:"updated_at" format:"date-time"`
}

// Dimension is one rubric line of a score.
type Dimension struct {
	Key           string  `json:"key"`
	Label         string  `json:"label"`
	Score         float64 `json:"score"`
	Max           float64 `json:"max"`
	Inverse       bool    `json:"inverse,omitempty"`
	Justification string  `json:"justification"`
}

type Score struct {
	RubricVersion   string      `json:"rubric_version"`
	Dimensions      []Dimension `json:"dimensions"`
	RawTotal        float64     `json:"raw_total"`
	Confidence      float64     `json:"confidence"`
	FinalScore      float64     `json:"final_score"`
	KillReasons     []string    `json:"kill_reasons"`
	NextValidations []string    `json:"next_validation_steps"`
	Model           string      `json:"model,omitempty"`
}

type CompileStats struct {
	Projects int `json:"projects"`
	Phases   int `json:"phases"`
	Tasks    int `json:"tasks"`
}

type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	Domain    string `json:"domain,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Venture struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Domain      Domain `json:"domain"`
	Status      string `json:"status" enum:"planning,active,paused,archived"`
	OneLiner    string `json:"one_liner,omitempty"`
	IdeaID      string `json:"idea_id,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string `json:"id"`
	VentureID   string `json:"venture_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"not_started,in_progress,done"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Phase struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Task struct {
	ID          string `json:"id"`
	VentureID   string `json:"venture_id"`
	ProjectID   string `json:"project_id"`
	PhaseID     string `json:"phase_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority" enum:"P0,P1,P2,P3"`
	Status      string `json:"status" enum:"todo,in_progress,done"`
	Order       int    `json:"order"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
