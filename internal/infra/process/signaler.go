//go:build unix

package process

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
)

var _ execution.GroupSignaler = (*GroupSignaler)(nil)

// GroupSignaler sends SIGTERM to the process group of recorded pids.
type GroupSignaler struct{}

// NewGroupSignaler creates a new GroupSignaler.
func NewGroupSignaler() *GroupSignaler { return &GroupSignaler{} }

// TerminateGroup signals the process group led by pid. Every process started by
// ShellRunner leads its own group, so the group id is the pid even after the
// leader has been reaped and only descendants remain. A live pid that belongs
// to some other group has been recycled and is left alone.
func (s *GroupSignaler) TerminateGroup(pid int) execution.ReapAttempt {
	attempt := execution.ReapAttempt{PID: pid, PGID: pid}
	if pid <= 0 {
		attempt.Result = execution.ReapNotFound
		return attempt
	}

	if pgid, err := unix.Getpgid(pid); err == nil && pgid != pid {
		attempt.Result = execution.ReapNotFound
		attempt.Err = unix.ESRCH
		return attempt
	}

	// Never signal our own group.
	if pid == unix.Getpgrp() {
		attempt.Result = execution.ReapPermissionDenied
		attempt.Err = unix.EPERM
		return attempt
	}

	err := unix.Kill(-attempt.PGID, unix.SIGTERM)
	attempt.Err = err
	switch {
	case err == nil:
		attempt.Result = execution.ReapSignaled
	case errors.Is(err, unix.ESRCH):
		attempt.Result = execution.ReapNotFound
	case errors.Is(err, unix.EPERM):
		attempt.Result = execution.ReapPermissionDenied
	default:
		attempt.Result = execution.ReapFailed
	}
	return attempt
}
