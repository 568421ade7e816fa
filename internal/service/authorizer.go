package service

import "github.com/mtlprog/missionboard/internal/domain"

// StatusChangeDecision is the outcome of a status-change permission check.
// Reason is human-readable and ends up both in the API error and in the
// permission_denied audit event.
type StatusChangeDecision struct {
	Allowed bool
	Reason  string
}

// AuthorizeStatusChange decides whether the requestor may change the task's
// status. Pure function over current assignees:
//
//  1. no assignees    -> coordinator only (bootstraps assignment)
//  2. requestor is an assignee -> allowed
//  3. requestor is the coordinator -> denied (may reassign, not move cards)
//  4. anyone else -> denied
func AuthorizeStatusChange(task *domain.Task, requestorID, coordinatorID string) StatusChangeDecision {
	if len(task.AssigneeIDs) == 0 {
		if requestorID == coordinatorID {
			return StatusChangeDecision{Allowed: true}
		}
		return StatusChangeDecision{
			Reason: "Task has no assignees. Only the coordinator can move it to assign resources.",
		}
	}

	if task.IsAssignee(requestorID) {
		return StatusChangeDecision{Allowed: true}
	}

	if requestorID == coordinatorID {
		return StatusChangeDecision{
			Reason: "Coordinator can only reprioritize/reassign, not change task status.",
		}
	}

	return StatusChangeDecision{
		Reason: "Only assignees can change task status.",
	}
}
