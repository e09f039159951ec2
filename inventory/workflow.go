package inventory

import (
	"context"
	"fmt"
	"time"

	chemtrack "github.com/chemtrackhq/chemtrack"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	textCodeInvalidTransition = "INVALID_ASSESSMENT_TRANSITION"
	textCodeTerminalState     = "TERMINAL_ASSESSMENT_STATE"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid assessment transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move an approved assessment.
var ErrTerminalState = goerrors.New("assessment state is terminal", goerrors.CategoryConflict).
	WithTextCode(textCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// ActivityEventAssessmentChanged tags workflow transitions in the audit log.
const ActivityEventAssessmentChanged chemtrack.ActivityEventType = "inventory.assessment.transition"

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor      chemtrack.ActorRef
	Assessment *RiskAssessment
	From       AssessmentStatus
	To         AssessmentStatus
	Meta       TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// AssessmentStateMachine defines workflow operations for risk assessments.
type AssessmentStateMachine interface {
	Transition(ctx context.Context, actor chemtrack.ActorRef, assessment *RiskAssessment, target AssessmentStatus, opts ...TransitionOption) (*RiskAssessment, error)
	CurrentStatus(assessment *RiskAssessment) AssessmentStatus
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*assessmentStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *assessmentStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the sink used to publish workflow events.
func WithStateMachineActivitySink(sink chemtrack.ActivitySink) StateMachineOption {
	return func(sm *assessmentStateMachine) {
		if sink != nil {
			sm.activitySink = sink
		}
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *assessmentStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger chemtrack.Logger) StateMachineOption {
	return func(sm *assessmentStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses validation rules (use sparingly).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// WithReviewer records who approved or rejected the assessment.
func WithReviewer(reviewer chemtrack.ActorRef) TransitionOption {
	return func(opts *transitionOptions) {
		opts.reviewer = &reviewer
	}
}

// NewAssessmentStateMachine returns the default implementation backed by the
// provided repository.
func NewAssessmentStateMachine(assessments RiskAssessments, opts ...StateMachineOption) AssessmentStateMachine {
	sm := &assessmentStateMachine{
		assessments: assessments,
		transitions: map[AssessmentStatus]map[AssessmentStatus]struct{}{
			AssessmentStatusDraft: {
				AssessmentStatusSubmitted: {},
			},
			AssessmentStatusSubmitted: {
				AssessmentStatusApproved: {},
				AssessmentStatusRejected: {},
			},
			AssessmentStatusRejected: {
				AssessmentStatusDraft: {},
			},
		},
		now:    time.Now,
		logger: noopLogger{},
		hookErrorHandler: func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
			return defaultHookErrorHandler(ctx, phase, err, tc)
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type assessmentStateMachine struct {
	assessments      RiskAssessments
	transitions      map[AssessmentStatus]map[AssessmentStatus]struct{}
	now              func() time.Time
	activitySink     chemtrack.ActivitySink
	logger           chemtrack.Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata    TransitionMetadata
	force       bool
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
	reviewer    *chemtrack.ActorRef
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (sm *assessmentStateMachine) Transition(ctx context.Context, actor chemtrack.ActorRef, assessment *RiskAssessment, target AssessmentStatus, opts ...TransitionOption) (*RiskAssessment, error) {
	if assessment == nil {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "assessment is nil",
		})
	}

	assessment.EnsureStatus()
	from := assessment.Status
	if target == "" {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "target status is empty",
		})
	}

	if from == target {
		return assessment, nil
	}

	options := sm.buildTransitionOptions(opts...)

	if from.Terminal() && !options.force {
		return nil, ErrTerminalState.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	if !options.force && !sm.canTransition(from, target) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	ctxData := TransitionContext{
		Actor:      actor,
		Assessment: assessment,
		From:       from,
		To:         target,
		Meta:       options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return nil, err
	}

	sm.applyTimestamps(assessment, from, target, options)
	assessment.Status = target

	updated, err := sm.assessments.UpdateStatus(ctx, assessment)
	if err != nil {
		assessment.Status = from
		return nil, err
	}
	if updated != nil {
		assessment = updated
	}

	if err := sm.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return nil, err
	}

	sm.recordActivity(ctx, chemtrack.ActivityEvent{
		EventType: ActivityEventAssessmentChanged,
		Actor:     actor,
		Metadata:  sm.transitionMetadata(ctxData.Meta, from, target, assessment),
	})

	return assessment, nil
}

func (sm *assessmentStateMachine) CurrentStatus(assessment *RiskAssessment) AssessmentStatus {
	if assessment == nil {
		return ""
	}
	assessment.EnsureStatus()
	return assessment.Status
}

func (sm *assessmentStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (sm *assessmentStateMachine) canTransition(from, to AssessmentStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *assessmentStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *assessmentStateMachine) applyTimestamps(assessment *RiskAssessment, from, to AssessmentStatus, opts *transitionOptions) {
	now := sm.now()

	switch to {
	case AssessmentStatusSubmitted:
		assessment.SubmittedAt = &now
		assessment.ReviewedAt = nil
		assessment.ReviewerID = nil
	case AssessmentStatusApproved, AssessmentStatusRejected:
		assessment.ReviewedAt = &now
		if opts.reviewer != nil {
			if id, err := parseActorID(opts.reviewer.ID); err == nil {
				assessment.ReviewerID = &id
			}
		}
	case AssessmentStatusDraft:
		// rejected work reopened, the review trail stays on the row
	}
}

func defaultHookErrorHandler(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
	panic(fmt.Sprintf(
		"chemtrack: %s transition hook failed: %v\nAssessmentID: %s from=%s to=%s reason=%s\nProvide inventory.WithStateMachineHookErrorHandler to customize error handling in production.",
		phase,
		err,
		tc.Assessment.ID,
		tc.From,
		tc.To,
		tc.Meta.Reason,
	))
}

func (sm *assessmentStateMachine) recordActivity(ctx context.Context, event chemtrack.ActivityEvent) {
	if event.Actor == (chemtrack.ActorRef{}) {
		event.Actor = chemtrack.ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	if sm.activitySink == nil {
		return
	}

	if err := sm.activitySink.Record(ctx, event); err != nil {
		sm.logger.Warn("workflow activity sink error: %v", err)
	}
}

func (sm *assessmentStateMachine) transitionMetadata(meta TransitionMetadata, from, to AssessmentStatus, assessment *RiskAssessment) map[string]any {
	result := map[string]any{
		"assessment_id": assessment.ID.String(),
		"from":          string(from),
		"to":            string(to),
	}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}

func parseActorID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
