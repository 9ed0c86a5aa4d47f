package invoker

import (
	"fmt"
	"sort"
	"strings"
)

// excerptLimit bounds how much of each upstream output is embedded in a
// downstream request, so prompts stay a bounded size regardless of how
// verbose earlier agents were.
const excerptLimit = 500

// excerpt returns the first excerptLimit runes of s.
func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptLimit {
		return s
	}
	return string(runes[:excerptLimit]) + "..."
}

// composeSystem builds the role-framing system instruction for a task.
func composeSystem(task TaskDescriptor) string {
	role := task.Role
	if role == "" {
		role = "a financial analysis agent"
	}
	return fmt.Sprintf("You are %s. Give a focused, well-reasoned assessment grounded in the material provided. Answer in plain prose without markdown headings.", role)
}

// composeUser builds the user instruction: the task prompt, excerpts of
// the upstream outputs this task depends on, and an optional ad-hoc
// directive from the caller. Only outputs that actually exist are
// included; a failed upstream agent simply contributes nothing.
func composeUser(task TaskDescriptor, subject string, priorOutputs map[string]string, directive string) string {
	var b strings.Builder

	prompt := task.Prompt
	if prompt == "" {
		prompt = "Analyze the instrument and state your conclusion."
	}
	fmt.Fprintf(&b, "Subject: %s\n\nTask: %s\n", subject, prompt)

	if len(task.Dependencies) > 0 {
		var available []string
		for _, dep := range task.Dependencies {
			if _, ok := priorOutputs[dep]; ok {
				available = append(available, dep)
			}
		}
		sort.Strings(available)

		if len(available) > 0 {
			b.WriteString("\nPrior analysis:\n")
			for _, dep := range available {
				fmt.Fprintf(&b, "\n[%s]\n%s\n", dep, excerpt(priorOutputs[dep]))
			}
		}
	}

	if directive != "" {
		fmt.Fprintf(&b, "\nAdditional instruction: %s\n", directive)
	}

	return b.String()
}
