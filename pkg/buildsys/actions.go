package buildsys

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
)

// ActionEnv describes the task an action is called from
type ActionEnv struct {
	ProjectRoot string
	// StateDir holds files actions keep between runs, see Options.StateDir
	StateDir string
	Task     *Task
	DryRun   bool
}

// ActionFunc implements a task step in Go instead of shell
type ActionFunc func(ctx context.Context, env ActionEnv, args []string) error

var (
	actionLock sync.RWMutex
	actions    = map[string]ActionFunc{}
)

// RegisterAction makes fn available to tasks under name. Registering the same name twice replaces
// the previous action.
func RegisterAction(name string, fn ActionFunc) {
	actionLock.Lock()
	defer actionLock.Unlock()

	actions[name] = fn
}

// LookupAction returns the action registered under name
func LookupAction(name string) (ActionFunc, error) {
	actionLock.RLock()
	defer actionLock.RUnlock()

	fn, ok := actions[name]
	if !ok {
		return nil, eris.Errorf("Action %s not found", name)
	}
	return fn, nil
}

// ActionNames returns the sorted names of all registered actions
func ActionNames() []string {
	actionLock.RLock()
	defer actionLock.RUnlock()

	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
