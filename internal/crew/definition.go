// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package crew

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// ErrUnknownAgent is returned when a task names an agent the crew does not define
var ErrUnknownAgent = errors.New("unknown agent")

// runtimeVars are template variables filled in by Kickoff rather than by the caller
var runtimeVars = []string{
	"run_id",     // current run ID
	"step_index", // current task index (0-based)
	"previous",   // output of the previous task, empty for the first
}

// AgentSpec describes an agent and the tools it may use
type AgentSpec struct {
	Name      string   `yaml:"name"`
	Role      string   `yaml:"role"`
	Goal      string   `yaml:"goal"`
	Backstory string   `yaml:"backstory"`
	Tools     []string `yaml:"tools"`
	Verbose   bool     `yaml:"verbose"`
}

// HasTool reports whether the agent is allowed to use the named tool
func (a *AgentSpec) HasTool(name string) bool {
	return lo.Contains(a.Tools, name)
}

// TaskSpec defines a single task of the crew. Arg values are templates over
// the run variables plus the runtime variables.
type TaskSpec struct {
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	ExpectedOutput string            `yaml:"expected_output"`
	Agent          string            `yaml:"agent"`
	Tool           string            `yaml:"tool"`
	Args           map[string]string `yaml:"args"`
}

// Definition represents a crew YAML file. Tasks run in declaration order.
type Definition struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Variables   map[string]string `yaml:"variables"`
	Agents      []AgentSpec       `yaml:"agents"`
	Tasks       []TaskSpec        `yaml:"tasks"`
}

// LoadDefinition reads and parses a crew YAML file
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read crew definition: %w", err)
	}
	return ParseDefinition(data)
}

// ParseDefinition parses a crew definition from YAML. Structural checks run
// here; tool availability is checked by Validate.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse crew YAML: %w", err)
	}
	if err := def.validateStructure(); err != nil {
		return nil, fmt.Errorf("invalid crew definition: %w", err)
	}
	return &def, nil
}

// Agent returns the agent with the given name
func (d *Definition) Agent(name string) (*AgentSpec, error) {
	for i := range d.Agents {
		if d.Agents[i].Name == name {
			return &d.Agents[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
}

// Validate checks the definition against a tool registry
func (d *Definition) Validate(reg *Registry) error {
	if err := d.validateStructure(); err != nil {
		return err
	}

	for i, task := range d.Tasks {
		agent, err := d.Agent(task.Agent)
		if err != nil {
			return fmt.Errorf("task %d (%s): %w", i+1, task.Name, err)
		}
		if !agent.HasTool(task.Tool) {
			return fmt.Errorf("task %d (%s): agent '%s' does not have tool '%s'", i+1, task.Name, agent.Name, task.Tool)
		}
		if _, err := reg.Get(task.Tool); err != nil {
			return fmt.Errorf("task %d (%s): %w", i+1, task.Name, err)
		}
	}
	return nil
}

// CheckVariables reports task args that reference variables neither vars
// nor the runtime provides.
func (d *Definition) CheckVariables(vars map[string]string) error {
	for _, task := range d.Tasks {
		for _, key := range sortedKeys(task.Args) {
			if err := validateTemplateVars(task.Args[key], vars); err != nil {
				return fmt.Errorf("task %s arg %s: %w", task.Name, key, err)
			}
		}
	}
	return nil
}

// MergeVariables returns the definition defaults overridden by overrides
func (d *Definition) MergeVariables(overrides map[string]string) map[string]string {
	return lo.Assign(map[string]string{}, d.Variables, overrides)
}

func (d *Definition) validateStructure() error {
	if d.Name == "" {
		return errors.New("crew name is required")
	}
	if len(d.Agents) == 0 {
		return errors.New("crew must have at least one agent")
	}
	if len(d.Tasks) == 0 {
		return errors.New("crew must have at least one task")
	}

	seenAgents := make(map[string]bool)
	for i, agent := range d.Agents {
		if agent.Name == "" {
			return fmt.Errorf("agent %d: name is required", i+1)
		}
		if seenAgents[agent.Name] {
			return fmt.Errorf("agent %d: duplicate name '%s'", i+1, agent.Name)
		}
		seenAgents[agent.Name] = true
	}

	seenTasks := make(map[string]bool)
	for i, task := range d.Tasks {
		if task.Name == "" {
			return fmt.Errorf("task %d: name is required", i+1)
		}
		if seenTasks[task.Name] {
			return fmt.Errorf("task %d: duplicate name '%s'", i+1, task.Name)
		}
		seenTasks[task.Name] = true

		if task.Agent == "" {
			return fmt.Errorf("task %d (%s): agent is required", i+1, task.Name)
		}
		if task.Tool == "" {
			return fmt.Errorf("task %d (%s): tool is required", i+1, task.Name)
		}
	}
	return nil
}

// templateVarPattern matches template variable references: {{.name}}
var templateVarPattern = regexp.MustCompile(`\{\{\s*\.(\w+)\s*\}\}`)

func validateTemplateVars(text string, vars map[string]string) error {
	var missing []string
	for _, m := range templateVarPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if _, ok := vars[name]; ok || lo.Contains(runtimeVars, name) {
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) > 0 {
		missing = lo.Uniq(missing)
		return fmt.Errorf("undefined template variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

const defaultCode = `class Node:
    def __init__(self, value, next=None):
        self.value = value
        self.next = next


def reverse(head):
    previous = None
    current = head
    while current:
        upcoming = current.next
        current.next = previous
        previous = current
        current = upcoming
    return previous


head = None
for v in reversed(range(1, 6)):
    head = Node(v, head)
head = reverse(head)
values = []
while head:
    values.append(str(head.value))
    head = head.next
print(" -> ".join(values + ["None"]))
`

// DefaultDefinition is the four-agent sequential crew: generate, save,
// execute, then test a linked list reversal.
func DefaultDefinition() *Definition {
	return &Definition{
		Name:        "code-crew",
		Description: "Generates, saves, executes and tests a code snippet",
		Variables: map[string]string{
			"topic":    "reverse a singly linked list",
			"filename": "reverse_linked_list.py",
			"code":     defaultCode,
		},
		Agents: []AgentSpec{
			{
				Name:      "code_generation_agent",
				Role:      "Code Generator",
				Goal:      "Generate code for {{.topic}}",
				Backstory: "Writes small, focused programs from a short prompt.",
				Tools:     []string{ToolCodeGeneration},
				Verbose:   true,
			},
			{
				Name:      "code_saving_agent",
				Role:      "Code Saver",
				Goal:      "Save generated code to disk",
				Backstory: "Keeps the output directory tidy.",
				Tools:     []string{ToolCodeSaving, ToolFileGeneration},
				Verbose:   true,
			},
			{
				Name:      "code_execution_agent",
				Role:      "Code Runner",
				Goal:      "Execute the saved code and report its output",
				Backstory: "Runs code in a local interpreter.",
				Tools:     []string{ToolCodeExecution},
				Verbose:   true,
			},
			{
				Name:      "code_testing_agent",
				Role:      "Code Tester",
				Goal:      "Test the code and report the results",
				Backstory: "Checks that code does what it claims.",
				Tools:     []string{ToolCodeTesting},
				Verbose:   true,
			},
		},
		Tasks: []TaskSpec{
			{
				Name:           "code_generation_task",
				Description:    "Generate code for the topic",
				ExpectedOutput: "A code snippet",
				Agent:          "code_generation_agent",
				Tool:           ToolCodeGeneration,
				Args:           map[string]string{"prompt": "{{.topic}}"},
			},
			{
				Name:           "code_saving_task",
				Description:    "Save the code to a file",
				ExpectedOutput: "Confirmation that the file was saved",
				Agent:          "code_saving_agent",
				Tool:           ToolCodeSaving,
				Args:           map[string]string{"filename": "{{.filename}}", "code": "{{.code}}"},
			},
			{
				Name:           "code_execution_task",
				Description:    "Execute the saved code",
				ExpectedOutput: "The program output",
				Agent:          "code_execution_agent",
				Tool:           ToolCodeExecution,
				Args:           map[string]string{"code": "{{.code}}"},
			},
			{
				Name:           "code_testing_task",
				Description:    "Test the saved code",
				ExpectedOutput: "A test report",
				Agent:          "code_testing_agent",
				Tool:           ToolCodeTesting,
				Args:           map[string]string{"code": "{{.code}}", "filename": "{{.filename}}"},
			},
		},
	}
}
