// Package buildsys implements a small task runner. Tasks are either generated in Go or declared
// by a Starlark script, and their commands run in the mvdan.cc/sh shell interpreter so that
// they behave the same on every platform.
//
// Each task runs at most once per invocation. Dependencies run before the task itself, invoke()
// runs another task in the middle of a task and action() calls Go code registered with
// RegisterAction.
package buildsys
