package domain

import "errors"

var (
	// ErrAlreadyVoted is returned when a user already has a vote on a question.
	ErrAlreadyVoted = errors.New("user already voted on this question")
	// ErrQuestionClosed is returned when the question or its quiz group is no longer active.
	ErrQuestionClosed = errors.New("question is closed")
	// ErrDeadlineExpired is returned when the quiz group's end time has passed.
	ErrDeadlineExpired = errors.New("voting deadline expired")
	// ErrInvalidOption indicates an option index outside the question's option list.
	ErrInvalidOption = errors.New("option index out of range")
	// ErrAlreadyResolved is returned when a question's correct option is already set.
	ErrAlreadyResolved = errors.New("question already resolved")
	// ErrForbidden is returned when the requesting user may not perform the operation.
	ErrForbidden = errors.New("operation not allowed for this user")
	// ErrInsufficientMembers is returned when fewer than two members are available for teams.
	ErrInsufficientMembers = errors.New("not enough members to form two teams")
	// ErrIncompleteAssignment is returned when manual teams do not cover every eligible member.
	ErrIncompleteAssignment = errors.New("team assignment does not cover all members")
	// ErrTeamEmpty is returned when a manual team has no members.
	ErrTeamEmpty = errors.New("team must not be empty")
	// ErrOverlapDetected is returned when a member appears in both teams.
	ErrOverlapDetected = errors.New("member assigned to both teams")
	// ErrNotFound indicates a referenced question, quiz group, or record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrRecordExists is returned by Create when the id is already taken.
	ErrRecordExists = errors.New("record already exists")
	// ErrConcurrentModification is returned when a conditional update lost a
	// race. Callers should re-read current state and retry, not treat it as a
	// hard failure.
	ErrConcurrentModification = errors.New("record changed concurrently")
)
