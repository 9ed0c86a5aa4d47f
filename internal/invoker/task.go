package invoker

// Tier controls whether an agent is included in a run. Ordering within a
// stage never depends on tier.
type Tier string

const (
	TierCore      Tier = "core"
	TierImportant Tier = "important"
	TierOptional  Tier = "optional"
)

// TaskDescriptor is one schedulable analysis task: which agent runs, whose
// outputs it reads, and how it frames its request.
type TaskDescriptor struct {
	// AgentID uniquely identifies the agent within a session.
	AgentID string
	// Role is the persona line used as the system instruction.
	Role string
	// Prompt frames the task in the user instruction.
	Prompt string
	// Dependencies lists agent IDs whose outputs this task consumes.
	Dependencies []string
	// Tier decides inclusion when a run is configured to skip
	// optional agents.
	Tier Tier
	// Model overrides the configured default model when set.
	Model string
}
