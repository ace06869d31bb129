package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MarcosLauremiro/miKan-api/internal/models"
)

// Action names a workspace scoped operation guarded by a minimum role.
type Action string

// Rule binds an action to the lowest role allowed to perform it.
type Rule struct {
	Action      Action
	Module      string
	MinRole     models.WorkspaceRole
	Description string
}

type ruleRegistry struct {
	mu    sync.RWMutex
	rules map[Action]Rule
}

var globalRegistry = &ruleRegistry{rules: make(map[Action]Rule)}

var (
	errEmptyAction   = errors.New("permission: action is required")
	errInvalidRole   = errors.New("permission: minimum role is invalid")
	errDuplicateRule = errors.New("permission: already registered")
	// ErrUnknownAction is returned when checking an action nobody registered.
	ErrUnknownAction = errors.New("permission: unknown action")
)

// Register adds a rule to the global registry.
func Register(rule Rule) error {
	rule.Action = Action(strings.TrimSpace(string(rule.Action)))
	if rule.Action == "" {
		return errEmptyAction
	}
	if !rule.MinRole.Valid() {
		return fmt.Errorf("%w: %q", errInvalidRole, rule.MinRole)
	}
	rule.Module = strings.TrimSpace(rule.Module)

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.rules[rule.Action]; exists {
		return fmt.Errorf("%w: %s", errDuplicateRule, rule.Action)
	}
	globalRegistry.rules[rule.Action] = rule
	return nil
}

// Get returns the rule registered for action.
func Get(action Action) (Rule, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	rule, ok := globalRegistry.rules[action]
	return rule, ok
}

// All returns every registered rule ordered by action name.
func All() []Rule {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	out := make([]Rule, 0, len(globalRegistry.rules))
	for _, rule := range globalRegistry.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

func removeRule(action Action) {
	globalRegistry.mu.Lock()
	delete(globalRegistry.rules, action)
	globalRegistry.mu.Unlock()
}
